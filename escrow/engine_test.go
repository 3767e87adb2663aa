package escrow_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paysecure/escrow-engine/escrow"
	"github.com/paysecure/escrow-engine/escrow/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	buyer  = "buyer@example.com"
	seller = "seller@example.com"
	other  = "other@example.com"
)

// newTestEngine returns an engine over fresh memory stores with buyer,
// seller, and a third party registered, 1000 coins and 1000 cash each.
func newTestEngine(t *testing.T) *escrow.Engine {
	t.Helper()
	engine := escrow.NewEngine(store.NewMemoryAccounts(), store.NewMemoryOrders(), store.NewMemoryLog())
	ctx := context.Background()
	for _, email := range []string{buyer, seller, other} {
		_, err := engine.Register(ctx, email, email, "123456")
		require.NoError(t, err)
	}
	return engine
}

func createOrder(t *testing.T, engine *escrow.Engine, amount int64) escrow.OrderID {
	t.Helper()
	id, err := engine.CreateOrder(context.Background(), buyer, seller, "Widget", decimal.NewFromInt(amount))
	require.NoError(t, err)
	return id
}

func mustBalances(t *testing.T, engine *escrow.Engine, email string) escrow.Balances {
	t.Helper()
	b, err := engine.GetBalances(context.Background(), email)
	require.NoError(t, err)
	return b
}

// engineTotal sums coin+cash+escrow across every account.
func engineTotal(t *testing.T, engine *escrow.Engine) decimal.Decimal {
	t.Helper()
	all, err := engine.Accounts.All(context.Background())
	require.NoError(t, err)
	total := decimal.Zero
	for _, account := range all {
		total = total.Add(account.Total())
	}
	return total
}

func countTransactions(engine *escrow.Engine, kind escrow.TransactionKind) int {
	count := 0
	for record := range engine.ListTransactions(context.Background()) {
		if record.Kind == kind {
			count++
		}
	}
	return count
}

// =============================================================================
// ORDER CREATION
// =============================================================================

func TestEngine_CreateOrder_HoldsBuyerFunds(t *testing.T) {
	// GIVEN: Buyer with 1000 coins
	// WHEN: Creating an order for 200
	// THEN: Buyer has 800 coins and 200 in escrow, order is initiated

	engine := newTestEngine(t)
	id := createOrder(t, engine, 200)

	b := mustBalances(t, engine, buyer)
	assert.True(t, b.Coin.Equal(decimal.NewFromInt(800)), "coin: %v", b.Coin)
	assert.True(t, b.Escrow.Equal(decimal.NewFromInt(200)), "escrow: %v", b.Escrow)

	order, err := engine.Orders.Find(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusInitiated, order.Status)
	assert.Equal(t, buyer, order.BuyerEmail)
	assert.Equal(t, seller, order.SellerEmail)
}

func TestEngine_CreateOrder_InsufficientFunds_NothingMutated(t *testing.T) {
	// GIVEN: Buyer with 1000 coins
	// WHEN: Creating an order for 2000
	// THEN: ErrInsufficientFunds, no order, no balance change

	engine := newTestEngine(t)

	_, err := engine.CreateOrder(context.Background(), buyer, seller, "Widget", decimal.NewFromInt(2000))

	assert.ErrorIs(t, err, escrow.ErrInsufficientFunds)
	b := mustBalances(t, engine, buyer)
	assert.True(t, b.Coin.Equal(decimal.NewFromInt(1000)))
	assert.True(t, b.Escrow.IsZero())

	orders, err := engine.Orders.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestEngine_CreateOrder_UnknownSeller_NoHold(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.CreateOrder(context.Background(), buyer, "ghost@example.com", "Widget", decimal.NewFromInt(100))

	assert.ErrorIs(t, err, escrow.ErrNotFound)
	assert.True(t, mustBalances(t, engine, buyer).Escrow.IsZero())
}

func TestEngine_CreateOrder_SelfDealRejected(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.CreateOrder(context.Background(), buyer, buyer, "Widget", decimal.NewFromInt(100))
	assert.ErrorIs(t, err, escrow.ErrInvalidAmount)
}

func TestEngine_CreateOrder_DistinctIDs(t *testing.T) {
	// Rapid sequential creations must never collide on id.

	engine := newTestEngine(t)
	seen := make(map[escrow.OrderID]bool)
	for range 50 {
		id := createOrder(t, engine, 1)
		assert.False(t, seen[id], "duplicate order id %s", id)
		seen[id] = true
	}
}

// =============================================================================
// LIFECYCLE SCENARIOS
// =============================================================================

func TestEngine_RejectedOrder_RefundsBuyer(t *testing.T) {
	// GIVEN: An initiated order for 200
	// WHEN: The seller rejects it
	// THEN: Buyer is made whole, order is cancelled, nothing logged

	engine := newTestEngine(t)
	id := createOrder(t, engine, 200)

	order, err := engine.Transition(context.Background(), id, seller, escrow.ActionReject)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusCancelled, order.Status)

	b := mustBalances(t, engine, buyer)
	assert.True(t, b.Coin.Equal(decimal.NewFromInt(1000)))
	assert.True(t, b.Escrow.IsZero())
	assert.Equal(t, 0, countTransactions(engine, escrow.TxEscrow))
}

func TestEngine_HappyPath_SettlesExactlyOnce(t *testing.T) {
	// GIVEN: An initiated order for 200
	// WHEN: Seller accepts and ships, buyer confirms delivery
	// THEN: Seller gains 200, buyer escrow is empty, order completed,
	//       exactly one settlement record appended

	engine := newTestEngine(t)
	ctx := context.Background()
	id := createOrder(t, engine, 200)
	before := engineTotal(t, engine)

	_, err := engine.Transition(ctx, id, seller, escrow.ActionAccept)
	require.NoError(t, err)
	_, err = engine.Transition(ctx, id, seller, escrow.ActionShip)
	require.NoError(t, err)
	order, err := engine.Transition(ctx, id, buyer, escrow.ActionConfirm)
	require.NoError(t, err)

	assert.Equal(t, escrow.StatusCompleted, order.Status)
	assert.True(t, mustBalances(t, engine, seller).Coin.Equal(decimal.NewFromInt(1200)))
	assert.True(t, mustBalances(t, engine, buyer).Escrow.IsZero())
	assert.True(t, mustBalances(t, engine, buyer).Coin.Equal(decimal.NewFromInt(800)))

	assert.Equal(t, 1, countTransactions(engine, escrow.TxEscrow), "settlement must be logged exactly once")
	assert.True(t, engineTotal(t, engine).Equal(before), "conservation violated")

	for record := range engine.ListTransactions(ctx) {
		if record.Kind == escrow.TxEscrow {
			assert.Equal(t, buyer, record.From)
			assert.Equal(t, seller, record.To)
			assert.True(t, record.Amount.Equal(decimal.NewFromInt(200)))
			assert.Equal(t, "Widget", record.Description)
			assert.NotEmpty(t, record.ID)
			assert.False(t, record.Timestamp.IsZero())
		}
	}
}

func TestEngine_Dispute_FreezesEscrow(t *testing.T) {
	// GIVEN: A shipped order
	// WHEN: The buyer disputes
	// THEN: Order is disputed, funds stay in escrow, nothing logged

	engine := newTestEngine(t)
	ctx := context.Background()
	id := createOrder(t, engine, 200)
	_, err := engine.Transition(ctx, id, seller, escrow.ActionAccept)
	require.NoError(t, err)
	_, err = engine.Transition(ctx, id, seller, escrow.ActionShip)
	require.NoError(t, err)

	order, err := engine.Transition(ctx, id, buyer, escrow.ActionDispute)
	require.NoError(t, err)

	assert.Equal(t, escrow.StatusDisputed, order.Status)
	assert.True(t, mustBalances(t, engine, buyer).Escrow.Equal(decimal.NewFromInt(200)))
	assert.True(t, mustBalances(t, engine, seller).Coin.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 0, countTransactions(engine, escrow.TxEscrow))
}

// =============================================================================
// AUTHORITY AND PRECONDITIONS
// =============================================================================

func TestEngine_Transition_AuthorityIsEnforced(t *testing.T) {
	// Every action rejected for every actor who lacks the authority.

	cases := []struct {
		name   string
		action escrow.Action
		actor  string
		setup  []escrow.Action // seller/buyer actions to reach the precondition status
	}{
		{"accept by buyer", escrow.ActionAccept, buyer, nil},
		{"accept by third party", escrow.ActionAccept, other, nil},
		{"reject by buyer", escrow.ActionReject, buyer, nil},
		{"ship by buyer", escrow.ActionShip, buyer, []escrow.Action{escrow.ActionAccept}},
		{"confirm by seller", escrow.ActionConfirm, seller, []escrow.Action{escrow.ActionAccept, escrow.ActionShip}},
		{"dispute by seller", escrow.ActionDispute, seller, []escrow.Action{escrow.ActionAccept, escrow.ActionShip}},
		{"dispute by third party", escrow.ActionDispute, other, []escrow.Action{escrow.ActionAccept, escrow.ActionShip}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := newTestEngine(t)
			ctx := context.Background()
			id := createOrder(t, engine, 200)
			for _, action := range tc.setup {
				_, err := engine.Transition(ctx, id, seller, action)
				require.NoError(t, err)
			}
			statusBefore, err := engine.Orders.Find(ctx, id)
			require.NoError(t, err)
			totalBefore := engineTotal(t, engine)

			_, err = engine.Transition(ctx, id, tc.actor, tc.action)

			assert.ErrorIs(t, err, escrow.ErrInvalidTransition)
			var invalid *escrow.InvalidTransitionError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, "authority", invalid.Reason)

			after, err := engine.Orders.Find(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, statusBefore.Status, after.Status, "status must not change")
			assert.True(t, engineTotal(t, engine).Equal(totalBefore), "balances must not change")
		})
	}
}

func TestEngine_Transition_RepeatedActionIsRejectedIdempotently(t *testing.T) {
	// GIVEN: An initiated order
	// WHEN: The seller accepts twice (double-click)
	// THEN: First succeeds, second fails with ErrInvalidTransition and
	//       balances are identical after both attempts

	engine := newTestEngine(t)
	ctx := context.Background()
	id := createOrder(t, engine, 200)

	_, err := engine.Transition(ctx, id, seller, escrow.ActionAccept)
	require.NoError(t, err)
	afterFirst := engineTotal(t, engine)

	_, err = engine.Transition(ctx, id, seller, escrow.ActionAccept)

	assert.ErrorIs(t, err, escrow.ErrInvalidTransition)
	assert.True(t, engineTotal(t, engine).Equal(afterFirst))

	order, err := engine.Orders.Find(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusAccepted, order.Status)
}

func TestEngine_Transition_RepeatedConfirm_NeverDoubleSettles(t *testing.T) {
	// The central exactly-once property: a second confirm must not move
	// funds or append a second settlement record.

	engine := newTestEngine(t)
	ctx := context.Background()
	id := createOrder(t, engine, 200)
	_, err := engine.Transition(ctx, id, seller, escrow.ActionAccept)
	require.NoError(t, err)
	_, err = engine.Transition(ctx, id, seller, escrow.ActionShip)
	require.NoError(t, err)
	_, err = engine.Transition(ctx, id, buyer, escrow.ActionConfirm)
	require.NoError(t, err)

	_, err = engine.Transition(ctx, id, buyer, escrow.ActionConfirm)

	assert.ErrorIs(t, err, escrow.ErrInvalidTransition)
	assert.True(t, mustBalances(t, engine, seller).Coin.Equal(decimal.NewFromInt(1200)), "seller must be paid exactly once")
	assert.Equal(t, 1, countTransactions(engine, escrow.TxEscrow))
}

func TestEngine_Transition_TerminalStatesAreImmutable(t *testing.T) {
	// Once cancelled, completed, or disputed, no action succeeds.

	reach := map[string][]struct {
		actor  string
		action escrow.Action
	}{
		"cancelled": {{seller, escrow.ActionReject}},
		"completed": {{seller, escrow.ActionAccept}, {seller, escrow.ActionShip}, {buyer, escrow.ActionConfirm}},
		"disputed":  {{seller, escrow.ActionAccept}, {seller, escrow.ActionShip}, {buyer, escrow.ActionDispute}},
	}

	for name, steps := range reach {
		t.Run(name, func(t *testing.T) {
			engine := newTestEngine(t)
			ctx := context.Background()
			id := createOrder(t, engine, 200)
			for _, step := range steps {
				_, err := engine.Transition(ctx, id, step.actor, step.action)
				require.NoError(t, err)
			}
			before, err := engine.Orders.Find(ctx, id)
			require.NoError(t, err)
			require.True(t, before.Status.Terminal())

			for _, action := range []escrow.Action{
				escrow.ActionAccept, escrow.ActionReject, escrow.ActionShip,
				escrow.ActionConfirm, escrow.ActionDispute,
			} {
				for _, actor := range []string{buyer, seller} {
					_, err := engine.Transition(ctx, id, actor, action)
					assert.ErrorIs(t, err, escrow.ErrInvalidTransition, "%s as %s", action, actor)
				}
			}

			after, err := engine.Orders.Find(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, before.Status, after.Status)
		})
	}
}

func TestEngine_Transition_UnknownOrder(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Transition(context.Background(), "no-such-order", seller, escrow.ActionAccept)
	assert.ErrorIs(t, err, escrow.ErrNotFound)
}

// =============================================================================
// CONSERVATION ACROSS WHOLE LIFECYCLES
// =============================================================================

func TestEngine_Conservation_AcrossMixedLifecycles(t *testing.T) {
	// GIVEN: Three accounts
	// WHEN: Orders complete, cancel, dispute, and transfers/exchanges run
	// THEN: The summed total of all balances never changes

	engine := newTestEngine(t)
	ctx := context.Background()
	before := engineTotal(t, engine)

	completed := createOrder(t, engine, 150)
	rejected := createOrder(t, engine, 75)
	disputed := createOrder(t, engine, 30)

	_, err := engine.Transition(ctx, completed, seller, escrow.ActionAccept)
	require.NoError(t, err)
	_, err = engine.Transition(ctx, completed, seller, escrow.ActionShip)
	require.NoError(t, err)
	_, err = engine.Transition(ctx, completed, buyer, escrow.ActionConfirm)
	require.NoError(t, err)

	_, err = engine.Transition(ctx, rejected, seller, escrow.ActionReject)
	require.NoError(t, err)

	_, err = engine.Transition(ctx, disputed, seller, escrow.ActionAccept)
	require.NoError(t, err)
	_, err = engine.Transition(ctx, disputed, seller, escrow.ActionShip)
	require.NoError(t, err)
	_, err = engine.Transition(ctx, disputed, buyer, escrow.ActionDispute)
	require.NoError(t, err)

	_, err = engine.Transfer(ctx, other, buyer, decimal.NewFromInt(42), escrow.CurrencyCash, "rent")
	require.NoError(t, err)
	_, err = engine.Exchange(ctx, other, decimal.NewFromInt(10), escrow.CurrencyCoins)
	require.NoError(t, err)

	assert.True(t, engineTotal(t, engine).Equal(before), "conservation violated: %v != %v", engineTotal(t, engine), before)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestEngine_Register_GrantsStartingBalances(t *testing.T) {
	engine := escrow.NewEngine(store.NewMemoryAccounts(), store.NewMemoryOrders(), store.NewMemoryLog())

	account, err := engine.Register(context.Background(), "New User", "new@example.com", "pw")
	require.NoError(t, err)

	assert.True(t, account.CoinBalance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, account.CashBalance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, account.EscrowBalance.IsZero())
	assert.NotEmpty(t, account.ID)
	assert.Equal(t, 1, countTransactions(engine, escrow.TxGrant))
}

func TestEngine_Register_DuplicateEmail(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Register(context.Background(), "Another", buyer, "pw")
	assert.ErrorIs(t, err, escrow.ErrDuplicateAccount)
}

func TestEngine_Authenticate(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	account, err := engine.Authenticate(ctx, buyer, "123456")
	require.NoError(t, err)
	assert.Equal(t, buyer, account.Email)

	_, err = engine.Authenticate(ctx, buyer, "wrong")
	assert.ErrorIs(t, err, escrow.ErrInvalidCredentials)

	_, err = engine.Authenticate(ctx, "ghost@example.com", "123456")
	assert.ErrorIs(t, err, escrow.ErrInvalidCredentials)
}

func TestEngine_GetBalances_UnknownAccount(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.GetBalances(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, escrow.ErrNotFound)
}

// =============================================================================
// LISTINGS
// =============================================================================

func TestEngine_ListOrders_ByRole_InInsertionOrder(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	first := createOrder(t, engine, 10)
	second := createOrder(t, engine, 20)
	// An order where the usual buyer is the seller.
	reverse, err := engine.CreateOrder(ctx, seller, buyer, "Return", decimal.NewFromInt(5))
	require.NoError(t, err)

	var asBuyer []escrow.OrderID
	for order := range engine.ListOrders(ctx, buyer, escrow.RoleBuyer) {
		asBuyer = append(asBuyer, order.ID)
	}
	assert.Equal(t, []escrow.OrderID{first, second}, asBuyer)

	var asSeller []escrow.OrderID
	for order := range engine.ListOrders(ctx, buyer, escrow.RoleSeller) {
		asSeller = append(asSeller, order.ID)
	}
	assert.Equal(t, []escrow.OrderID{reverse}, asSeller)

	var asAny []escrow.OrderID
	for order := range engine.ListOrders(ctx, buyer, escrow.RoleAny) {
		asAny = append(asAny, order.ID)
	}
	assert.Equal(t, []escrow.OrderID{first, second, reverse}, asAny)
}

func TestEngine_ListOrders_SequenceIsRestartable(t *testing.T) {
	engine := newTestEngine(t)
	createOrder(t, engine, 10)
	createOrder(t, engine, 20)

	seq := engine.ListOrders(context.Background(), buyer, escrow.RoleBuyer)

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	assert.Equal(t, 2, count())
	assert.Equal(t, 2, count(), "ranging again must replay the sequence")
}

func TestEngine_ActiveOrderCount_IgnoresTerminalOrders(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	createOrder(t, engine, 10)
	done := createOrder(t, engine, 20)
	_, err := engine.Transition(ctx, done, seller, escrow.ActionReject)
	require.NoError(t, err)

	assert.Equal(t, 1, engine.ActiveOrderCount(ctx, buyer))
	assert.Equal(t, 1, engine.ActiveOrderCount(ctx, seller))
	assert.Equal(t, 0, engine.ActiveOrderCount(ctx, other))
}

// =============================================================================
// SNAPSHOT / RESTORE
// =============================================================================

func TestEngine_SnapshotRestore_RoundTrip(t *testing.T) {
	// GIVEN: An engine mid-lifecycle (one active order, one settlement)
	// WHEN: Snapshotting and restoring into a fresh engine
	// THEN: Balances, orders, and the log are identical, and the active
	//       order finishes its lifecycle in the restored engine

	source := newTestEngine(t)
	ctx := context.Background()
	done := createOrder(t, source, 100)
	_, err := source.Transition(ctx, done, seller, escrow.ActionAccept)
	require.NoError(t, err)
	_, err = source.Transition(ctx, done, seller, escrow.ActionShip)
	require.NoError(t, err)
	_, err = source.Transition(ctx, done, buyer, escrow.ActionConfirm)
	require.NoError(t, err)
	active := createOrder(t, source, 50)

	snapshot, err := source.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot.Users, 3)
	require.Len(t, snapshot.Orders, 2)

	restored := escrow.NewEngine(store.NewMemoryAccounts(), store.NewMemoryOrders(), store.NewMemoryLog())
	require.NoError(t, restored.Restore(ctx, snapshot))

	assert.True(t, mustBalances(t, restored, seller).Coin.Equal(decimal.NewFromInt(1100)))
	assert.True(t, mustBalances(t, restored, buyer).Escrow.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 1, countTransactions(restored, escrow.TxEscrow))

	// The restored engine continues where the source left off.
	_, err = restored.Transition(ctx, active, seller, escrow.ActionReject)
	require.NoError(t, err)
	assert.True(t, mustBalances(t, restored, buyer).Escrow.IsZero())
}

func TestEngine_Restore_RejectsUnknownStatus(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	snapshot, err := engine.Snapshot(ctx)
	require.NoError(t, err)

	snapshot.Orders = append(snapshot.Orders, escrow.Order{
		ID: "bad", BuyerEmail: buyer, SellerEmail: seller, Status: "teleported",
	})

	err = engine.Restore(ctx, snapshot)
	assert.Error(t, err)
}

func TestEngine_Restore_RejectsNegativeBalances(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	snapshot, err := engine.Snapshot(ctx)
	require.NoError(t, err)

	snapshot.Users[0].CoinBalance = decimal.NewFromInt(-1)

	err = engine.Restore(ctx, snapshot)
	assert.Error(t, err)
}

// =============================================================================
// TRANSFERS AND EXCHANGES
// =============================================================================

func TestEngine_Transfer_LogsRecord(t *testing.T) {
	engine := newTestEngine(t)

	record, err := engine.Transfer(context.Background(), buyer, seller, decimal.NewFromInt(25), escrow.CurrencyCash, "lunch")
	require.NoError(t, err)

	assert.Equal(t, escrow.TxTransfer, record.Kind)
	assert.NotEmpty(t, record.ID)
	assert.True(t, mustBalances(t, engine, buyer).Cash.Equal(decimal.NewFromInt(975)))
	assert.True(t, mustBalances(t, engine, seller).Cash.Equal(decimal.NewFromInt(1025)))
}

func TestEngine_Transfer_FailureLogsNothing(t *testing.T) {
	engine := newTestEngine(t)
	before := countTransactions(engine, escrow.TxTransfer)

	_, err := engine.Transfer(context.Background(), buyer, seller, decimal.NewFromInt(99999), escrow.CurrencyCash, "too much")

	assert.ErrorIs(t, err, escrow.ErrInsufficientFunds)
	assert.Equal(t, before, countTransactions(engine, escrow.TxTransfer))
}

func TestEngine_Exchange_LogsRecord(t *testing.T) {
	engine := newTestEngine(t)

	record, err := engine.Exchange(context.Background(), buyer, decimal.NewFromInt(100), escrow.CurrencyCash)
	require.NoError(t, err)

	assert.Equal(t, escrow.TxExchange, record.Kind)
	assert.True(t, mustBalances(t, engine, buyer).Coin.Equal(decimal.NewFromInt(1100)))
	assert.True(t, mustBalances(t, engine, buyer).Cash.Equal(decimal.NewFromInt(900)))
}
