/*
engine.go - The intent API: one entry point per user action

PURPOSE:
  The Engine orchestrates the account store, order store, ledger, and
  transaction log. A caller issues an intent (register, create order,
  accept, reject, ship, confirm, dispute, transfer, exchange) naming the
  acting account; the engine validates authority and preconditions, then
  applies the status change and its ledger movement together.

CONTROL FLOW FOR A TRANSITION:
  1. Serialize on the order id (one authoritative writer per order)
  2. Load the order and validate actor + status against the table
  3. Apply the ledger movement, if the table names one
  4. Commit the status change
  5. Append the settlement record, if the table says so

  Steps 2-5 run under the per-order lock, so a concurrent duplicate intent
  observes the committed status at step 2 and fails with
  ErrInvalidTransition instead of double-moving funds.

CONCURRENCY:
  The reference model is a single logical actor; every intent completes
  synchronously before the caller resumes. The per-order locks plus the
  account store's own locking make the engine safe to embed in a
  multi-goroutine server: same-order intents serialize here, shared-account
  balance movements serialize in the store.

OWNERSHIP:
  The engine owns no data. It orchestrates the stores transactionally.

SEE ALSO:
  - order.go: The transition table consulted in step 2
  - ledger.go: The movements applied in step 3
  - snapshot.go: Persistence boundary between intents
*/
package escrow

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Accounts AccountStore
	Orders   OrderStore
	Log      TransactionLog
	Ledger   *Ledger

	// StartingCoins and StartingCash are granted to every new registration.
	StartingCoins decimal.Decimal
	StartingCash  decimal.Decimal

	locks lockTable
}

// NewEngine wires an engine over the given stores. New registrations are
// granted 1000 coins and 1000 cash unless the starting balances are changed.
func NewEngine(accounts AccountStore, orders OrderStore, log TransactionLog) *Engine {
	return &Engine{
		Accounts:      accounts,
		Orders:        orders,
		Log:           log,
		Ledger:        NewLedger(accounts),
		StartingCoins: decimal.NewFromInt(1000),
		StartingCash:  decimal.NewFromInt(1000),
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// Register creates an account with the starting balances and logs the grant.
// Returns ErrDuplicateAccount if the email is taken.
func (e *Engine) Register(ctx context.Context, name, email, password string) (Account, error) {
	account := Account{
		ID:            AccountID(newID()),
		Name:          name,
		Email:         email,
		Password:      password,
		CoinBalance:   e.StartingCoins,
		CashBalance:   e.StartingCash,
		EscrowBalance: decimal.Zero,
		CreatedAt:     time.Now().UTC(),
	}
	if err := e.Accounts.Insert(ctx, account); err != nil {
		return Account{}, err
	}
	_, err := e.Log.Append(ctx, TransactionRecord{
		Kind:        TxGrant,
		To:          email,
		Amount:      e.StartingCoins,
		Currency:    CurrencyCoins,
		Description: "registration grant",
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// Authenticate returns the account matching email and password. The
// simulation keeps passwords opaque; there is no hashing or session model.
func (e *Engine) Authenticate(ctx context.Context, email, password string) (Account, error) {
	account, err := e.Accounts.Get(ctx, email)
	if err != nil {
		return Account{}, ErrInvalidCredentials
	}
	if account.Password != password {
		return Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// Balances is the caller-facing view of one account's funds.
type Balances struct {
	Coin   decimal.Decimal
	Cash   decimal.Decimal
	Escrow decimal.Decimal
}

// GetBalances returns the three balances for email, or ErrNotFound.
func (e *Engine) GetBalances(ctx context.Context, email string) (Balances, error) {
	account, err := e.Accounts.Get(ctx, email)
	if err != nil {
		return Balances{}, err
	}
	return Balances{
		Coin:   account.CoinBalance,
		Cash:   account.CashBalance,
		Escrow: account.EscrowBalance,
	}, nil
}

// =============================================================================
// ORDERS
// =============================================================================

// CreateOrder is the buyer-only entry transition: it holds amount from the
// buyer's coin balance and inserts the order as initiated, as one intent.
// Fails with ErrInsufficientFunds (nothing mutated) if coins are short.
func (e *Engine) CreateOrder(ctx context.Context, buyerEmail, sellerEmail, productName string, amount decimal.Decimal) (OrderID, error) {
	if !amount.IsPositive() {
		return "", fmt.Errorf("create order for %s: %w", buyerEmail, ErrInvalidAmount)
	}
	if buyerEmail == sellerEmail {
		return "", fmt.Errorf("create order: buyer and seller are the same account: %w", ErrInvalidAmount)
	}
	// Both parties must exist before any funds move.
	if _, err := e.Accounts.Get(ctx, buyerEmail); err != nil {
		return "", err
	}
	if _, err := e.Accounts.Get(ctx, sellerEmail); err != nil {
		return "", err
	}

	if err := e.Ledger.Hold(ctx, buyerEmail, amount); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	id, err := e.Orders.Create(ctx, Order{
		BuyerEmail:  buyerEmail,
		SellerEmail: sellerEmail,
		ProductName: productName,
		Amount:      Amount{Value: amount, Currency: CurrencyCoins},
		Status:      StatusInitiated,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		// Undo the hold so a store failure leaves balances untouched.
		if refundErr := e.Ledger.Refund(ctx, buyerEmail, amount); refundErr != nil {
			return "", fmt.Errorf("create order: %w (refund after failure also failed: %v)", err, refundErr)
		}
		return "", err
	}
	return id, nil
}

// Transition applies action to the order as actor. On success the returned
// order carries the new status. Any authority or status mismatch fails with
// ErrInvalidTransition and mutates nothing; a repeated intent observes the
// already-advanced status and fails the same way.
func (e *Engine) Transition(ctx context.Context, id OrderID, actorEmail string, action Action) (Order, error) {
	lock := e.locks.forOrder(id)
	lock.Lock()
	defer lock.Unlock()

	order, err := e.Orders.Find(ctx, id)
	if err != nil {
		return Order{}, err
	}

	rule, err := validate(order, actorEmail, action)
	if err != nil {
		return Order{}, err
	}

	switch rule.effect {
	case effectRefund:
		if err := e.Ledger.Refund(ctx, order.BuyerEmail, order.Amount.Value); err != nil {
			return Order{}, err
		}
	case effectRelease:
		if err := e.Ledger.Release(ctx, order.BuyerEmail, order.SellerEmail, order.Amount.Value); err != nil {
			return Order{}, err
		}
	}

	now := time.Now().UTC()
	if err := e.Orders.Update(ctx, id, func(o *Order) error {
		o.Status = rule.to
		o.UpdatedAt = now
		return nil
	}); err != nil {
		return Order{}, err
	}

	if rule.logsRecord {
		if _, err := e.Log.Append(ctx, TransactionRecord{
			Kind:        TxEscrow,
			From:        order.BuyerEmail,
			To:          order.SellerEmail,
			Amount:      order.Amount.Value,
			Currency:    CurrencyCoins,
			Description: order.ProductName,
		}); err != nil {
			return Order{}, err
		}
	}

	order.Status = rule.to
	order.UpdatedAt = now
	return order, nil
}

// ListOrders returns the lazy sequence of orders email participates in under
// role, in insertion order. Ranging the sequence twice replays it.
func (e *Engine) ListOrders(ctx context.Context, email string, role Role) iter.Seq[Order] {
	return e.Orders.ListFor(ctx, email, role)
}

// ActiveOrderCount returns how many non-terminal orders email participates
// in, on either side.
func (e *Engine) ActiveOrderCount(ctx context.Context, email string) int {
	count := 0
	for order := range e.Orders.ListFor(ctx, email, RoleAny) {
		if !order.Status.Terminal() {
			count++
		}
	}
	return count
}

// =============================================================================
// PAYMENTS OUTSIDE ORDERS
// =============================================================================

// Transfer moves funds directly between two accounts and logs the movement.
func (e *Engine) Transfer(ctx context.Context, fromEmail, toEmail string, amount decimal.Decimal, currency Currency, description string) (TransactionRecord, error) {
	if err := e.Ledger.Transfer(ctx, fromEmail, toEmail, amount, currency); err != nil {
		return TransactionRecord{}, err
	}
	return e.Log.Append(ctx, TransactionRecord{
		Kind:        TxTransfer,
		From:        fromEmail,
		To:          toEmail,
		Amount:      amount,
		Currency:    currency,
		Description: description,
	})
}

// Exchange converts between coins and cash within one account, at par, and
// logs the conversion.
func (e *Engine) Exchange(ctx context.Context, email string, amount decimal.Decimal, from Currency) (TransactionRecord, error) {
	if err := e.Ledger.Exchange(ctx, email, amount, from); err != nil {
		return TransactionRecord{}, err
	}
	to := CurrencyCash
	if from == CurrencyCash {
		to = CurrencyCoins
	}
	return e.Log.Append(ctx, TransactionRecord{
		Kind:        TxExchange,
		From:        email,
		To:          email,
		Amount:      amount,
		Currency:    from,
		Description: fmt.Sprintf("exchange %s to %s", from, to),
	})
}

// ListTransactions returns the full settlement log, lazily, in append order.
func (e *Engine) ListTransactions(ctx context.Context) iter.Seq[TransactionRecord] {
	return e.Log.All(ctx)
}

// =============================================================================
// PER-ORDER LOCKS
// =============================================================================

// lockTable hands out one mutex per order id. Entries are never removed;
// orders are never deleted, so the table is bounded by the order count.
type lockTable struct {
	mu    sync.Mutex
	locks map[OrderID]*sync.Mutex
}

func (t *lockTable) forOrder(id OrderID) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.locks == nil {
		t.locks = make(map[OrderID]*sync.Mutex)
	}
	lock, ok := t.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[id] = lock
	}
	return lock
}
