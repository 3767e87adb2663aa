/*
store.go - Persistence interfaces for accounts, orders, and the transaction log

PURPOSE:
  Defines the interface between the engine and its state. The engine never
  touches maps or slices directly; everything goes through these interfaces
  so that in-memory and persistent implementations are interchangeable.

KEY INTERFACES:
  AccountStore:   Account records and atomic balance mutation
  OrderStore:     Order records; creation, lookup, per-party listing
  TransactionLog: Append-only settlement log

ATOMIC PAIR UPDATES:
  Every ledger movement touches one or two accounts. UpdatePair applies a
  mutation to both accounts under a single store lock and commits only if
  the mutation succeeds, so no reader ever observes a half-applied move.

LAZY LISTINGS:
  ListFor and All return iter.Seq sequences: finite, restartable, and
  evaluated lazily in insertion order. Ranging twice replays the sequence.

OWNERSHIP:
  The OrderStore exclusively owns Order records; the AccountStore exclusively
  owns balances. The engine owns no data of its own.

IMPLEMENTATIONS:
  - escrow/store/memory.go: In-memory store (runtime default and tests)

SEE ALSO:
  - ledger.go: Balance movements built on AccountStore
  - engine.go: Orchestration across all three interfaces
  - snapshot.go: Snapshot/restore at the persistence boundary
*/
package escrow

import (
	"context"
	"iter"
)

// =============================================================================
// ACCOUNT STORE
// =============================================================================

// AccountStore holds account records keyed by email.
type AccountStore interface {
	// Get returns the account for email, or ErrNotFound.
	Get(ctx context.Context, email string) (Account, error)

	// Insert adds a new account. Returns ErrDuplicateAccount if the email
	// already exists.
	Insert(ctx context.Context, account Account) error

	// Update applies fn to the account under the store lock. If fn returns
	// an error, no change is committed.
	Update(ctx context.Context, email string, fn func(*Account) error) error

	// UpdatePair applies fn to two distinct accounts atomically. Either both
	// mutations commit or neither does; no reader observes a partial state.
	UpdatePair(ctx context.Context, emailA, emailB string, fn func(a, b *Account) error) error

	// All returns every account in insertion order.
	All(ctx context.Context) ([]Account, error)

	// ReplaceAll swaps the entire account set. Used only by snapshot restore,
	// between intents.
	ReplaceAll(ctx context.Context, accounts []Account) error
}

// =============================================================================
// ORDER STORE
// =============================================================================

// OrderStore holds order records. Orders are never deleted; terminal orders
// are retained for history.
type OrderStore interface {
	// Create assigns a unique id, inserts, and returns the id. Id generation
	// is collision-free regardless of how quickly orders are created.
	Create(ctx context.Context, order Order) (OrderID, error)

	// Find returns the order for id, or ErrNotFound.
	Find(ctx context.Context, id OrderID) (Order, error)

	// Update applies fn to the order under the store lock. If fn returns an
	// error, no change is committed.
	Update(ctx context.Context, id OrderID, fn func(*Order) error) error

	// ListFor returns a lazy, restartable sequence of orders in which email
	// participates under role, in insertion order.
	ListFor(ctx context.Context, email string, role Role) iter.Seq[Order]

	// All returns every order in insertion order.
	All(ctx context.Context) ([]Order, error)

	// ReplaceAll swaps the entire order set. Used only by snapshot restore.
	ReplaceAll(ctx context.Context, orders []Order) error
}

// =============================================================================
// TRANSACTION LOG
// =============================================================================

// TransactionLog is the append-only record of completed fund movements.
// IMPORTANT: append-only. No Update, No Delete. Ever.
type TransactionLog interface {
	// Append assigns a unique id and timestamp, inserts at the end, and
	// returns the stored record. This is the ONLY write operation.
	Append(ctx context.Context, record TransactionRecord) (TransactionRecord, error)

	// All returns the full ordered sequence, lazily.
	All(ctx context.Context) iter.Seq[TransactionRecord]

	// ReplaceAll swaps the entire log. Used only by snapshot restore.
	ReplaceAll(ctx context.Context, records []TransactionRecord) error
}
