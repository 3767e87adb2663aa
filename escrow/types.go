/*
Package escrow provides the core peer-to-peer payment and escrow engine.

PURPOSE:
  This package contains the domain types and algorithms for a locally
  simulated payment ledger: accounts hold coin and cash balances, buyers
  place orders against sellers, and funds move between a buyer's spendable
  balance, an escrow holding balance, and a seller's spendable balance as
  the order walks a fixed lifecycle.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A currency quantity (coins or cash) backed by decimal.Decimal
  - Account: A user with three balances (coin, cash, escrow)
  - Order: A buyer/seller agreement with a status lifecycle
  - TransactionRecord: An immutable log entry for a completed fund movement

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all money; never binary floating point
  2. Type Safety: closed status/action enums make invalid states unrepresentable
  3. Immutability: transaction records are written once and never touched
  4. Conservation: every fund movement debits one balance and credits another

USAGE:
  amount := escrow.NewAmount(200, escrow.CurrencyCoins)
  order := escrow.Order{BuyerEmail: "buyer@example.com", Amount: amount}

SEE ALSO:
  - ledger.go: Balance movements (hold, release, refund, transfer, exchange)
  - order.go: Order status lifecycle and transition table
  - engine.go: The intent API tying it all together
*/
package escrow

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Currency quantity
// =============================================================================

type Currency string

const (
	CurrencyCoins Currency = "coins"
	CurrencyCash  Currency = "cash"
)

type Amount struct {
	Value    decimal.Decimal
	Currency Currency
}

func NewAmount(value float64, currency Currency) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Currency: currency}
}

func NewAmountFromInt(value int, currency Currency) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Currency: currency}
}

func (a Amount) Zero() Amount              { return Amount{Value: decimal.Zero, Currency: a.Currency} }
func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Currency: a.Currency} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Currency: a.Currency} }
func (a Amount) Neg() Amount               { return Amount{Value: a.Value.Neg(), Currency: a.Currency} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type OrderID string
type TransactionID string

// =============================================================================
// ACCOUNT - A user with coin, cash, and escrow balances
// =============================================================================

// Account is a participant in the payment system. Email is the natural key:
// orders reference accounts by email, never by ownership.
//
// INVARIANTS:
//   - No balance is ever negative.
//   - EscrowBalance changes only as the mirrored counterpart of an order's
//     hold, release, or refund.
type Account struct {
	ID    AccountID
	Name  string
	Email string

	// Password is stored opaque and unhashed. The simulation has no
	// authentication security model.
	Password string

	CoinBalance   decimal.Decimal
	CashBalance   decimal.Decimal
	EscrowBalance decimal.Decimal

	CreatedAt time.Time
}

// Total returns the sum of all three balances. Used by conservation checks:
// order flows never create or destroy funds, only move them.
func (a Account) Total() decimal.Decimal {
	return a.CoinBalance.Add(a.CashBalance).Add(a.EscrowBalance)
}

// =============================================================================
// ORDER - Buyer/seller agreement with a status lifecycle
// =============================================================================

// Order is created by a buyer with funds held in escrow at creation time,
// mutated only through the transitions in order.go, and never deleted.
// Terminal orders are retained for history.
type Order struct {
	ID          OrderID
	BuyerEmail  string
	SellerEmail string
	ProductName string
	Amount      Amount // always coins, always positive
	Status      OrderStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Role selects which side of an order an account participates on.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAny    Role = "any"
)

// Involves reports whether the account participates in the order under the
// given role.
func (o Order) Involves(email string, role Role) bool {
	switch role {
	case RoleBuyer:
		return o.BuyerEmail == email
	case RoleSeller:
		return o.SellerEmail == email
	default:
		return o.BuyerEmail == email || o.SellerEmail == email
	}
}

// =============================================================================
// TRANSACTION RECORD - Immutable log entry for a completed fund movement
// =============================================================================

type TransactionKind string

const (
	TxEscrow   TransactionKind = "escrow"   // settlement of held funds to a seller
	TxTransfer TransactionKind = "transfer" // direct account-to-account payment
	TxExchange TransactionKind = "exchange" // coin/cash conversion within one account
	TxGrant    TransactionKind = "grant"    // registration starting balance
)

// TransactionRecord is written exactly once, at the moment a fund movement
// completes. Append-only: never mutated, never removed.
type TransactionRecord struct {
	ID          TransactionID
	Kind        TransactionKind
	From        string // source account email; empty for grants
	To          string // destination account email
	Amount      decimal.Decimal
	Currency    Currency
	Description string
	Timestamp   time.Time
}
