/*
snapshot.go - Persistence boundary: snapshot and restore of engine state

PURPOSE:
  The engine's entire state is three collections: accounts, orders, and the
  transaction log. A Snapshot captures all three between intents; Restore
  replaces them wholesale. Persistence is an external collaborator behind
  the SnapshotStore interface, so the engine itself never touches storage.

CONTRACT:
  - A snapshot may be taken at any point between intents and restored later
    into a fresh engine with identical observable behavior.
  - The snapshot holds exactly the three collections, no derived fields.
  - Restore validates order statuses so a corrupt snapshot cannot smuggle
    an unrepresentable status into the state machine.

SEE ALSO:
  - store.go: ReplaceAll on each store, used by Restore
  - store/sqlite: SnapshotStore implementation
*/
package escrow

import (
	"context"
	"fmt"
)

// =============================================================================
// SNAPSHOT - Full engine state between intents
// =============================================================================

type Snapshot struct {
	Users        []Account           `json:"users"`
	Orders       []Order             `json:"orders"`
	Transactions []TransactionRecord `json:"transactions"`
}

// SnapshotStore persists snapshots. Implementations live outside the core.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot Snapshot) error
	// Load returns the latest snapshot, or (nil, nil) when none exists.
	Load(ctx context.Context) (*Snapshot, error)
}

// Snapshot captures the current state of all three collections.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	users, err := e.Accounts.All(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	orders, err := e.Orders.All(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	var records []TransactionRecord
	for record := range e.Log.All(ctx) {
		records = append(records, record)
	}
	return Snapshot{Users: users, Orders: orders, Transactions: records}, nil
}

// Restore replaces the engine's state with the snapshot. Must only be called
// between intents.
func (e *Engine) Restore(ctx context.Context, snapshot Snapshot) error {
	for _, order := range snapshot.Orders {
		if !order.Status.Valid() {
			return fmt.Errorf("restore: order %s has unknown status %q", order.ID, order.Status)
		}
	}
	for _, user := range snapshot.Users {
		if user.CoinBalance.IsNegative() || user.CashBalance.IsNegative() || user.EscrowBalance.IsNegative() {
			return fmt.Errorf("restore: account %s has a negative balance", user.Email)
		}
	}
	if err := e.Accounts.ReplaceAll(ctx, snapshot.Users); err != nil {
		return err
	}
	if err := e.Orders.ReplaceAll(ctx, snapshot.Orders); err != nil {
		return err
	}
	return e.Log.ReplaceAll(ctx, snapshot.Transactions)
}
