package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paysecure/escrow-engine/escrow"
	"github.com/paysecure/escrow-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleSnapshot() escrow.Snapshot {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	return escrow.Snapshot{
		Users: []escrow.Account{
			{
				ID: "u1", Name: "User One", Email: "user1@example.com", Password: "123456",
				CoinBalance:   decimal.NewFromInt(800),
				CashBalance:   decimal.NewFromInt(1000),
				EscrowBalance: decimal.NewFromInt(200),
				CreatedAt:     now,
			},
			{
				ID: "u2", Name: "User Two", Email: "user2@example.com", Password: "123456",
				CoinBalance:   decimal.NewFromInt(1000),
				CashBalance:   decimal.NewFromInt(1000),
				EscrowBalance: decimal.Zero,
				CreatedAt:     now,
			},
		},
		Orders: []escrow.Order{
			{
				ID: "o1", BuyerEmail: "user1@example.com", SellerEmail: "user2@example.com",
				ProductName: "Widget",
				Amount:      escrow.Amount{Value: decimal.NewFromInt(200), Currency: escrow.CurrencyCoins},
				Status:      escrow.StatusInitiated,
				CreatedAt:   now, UpdatedAt: now,
			},
		},
		Transactions: []escrow.TransactionRecord{
			{
				ID: "t1", Kind: escrow.TxGrant, To: "user1@example.com",
				Amount: decimal.NewFromInt(1000), Currency: escrow.CurrencyCoins,
				Description: "registration grant", Timestamp: now,
			},
		},
	}
}

// =============================================================================
// ROUND TRIP
// =============================================================================

func TestStore_SaveLoad_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	snapshot := sampleSnapshot()

	require.NoError(t, store.Save(ctx, snapshot))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	require.Len(t, loaded.Users, 2)
	assert.Equal(t, "user1@example.com", loaded.Users[0].Email)
	assert.True(t, loaded.Users[0].CoinBalance.Equal(decimal.NewFromInt(800)))
	assert.True(t, loaded.Users[0].EscrowBalance.Equal(decimal.NewFromInt(200)))
	assert.True(t, loaded.Users[0].CreatedAt.Equal(snapshot.Users[0].CreatedAt))

	require.Len(t, loaded.Orders, 1)
	assert.Equal(t, escrow.StatusInitiated, loaded.Orders[0].Status)
	assert.True(t, loaded.Orders[0].Amount.Value.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, escrow.CurrencyCoins, loaded.Orders[0].Amount.Currency)

	require.Len(t, loaded.Transactions, 1)
	assert.Equal(t, escrow.TxGrant, loaded.Transactions[0].Kind)
}

func TestStore_Load_EmptyDatabase(t *testing.T) {
	store := newTestStore(t)

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, loaded, "empty database must load as no snapshot")
}

func TestStore_Save_ReplacesUsersAndOrders(t *testing.T) {
	// Saving twice must not duplicate users or orders: the snapshot is the
	// whole state, replaced wholesale.

	store := newTestStore(t)
	ctx := context.Background()
	snapshot := sampleSnapshot()

	require.NoError(t, store.Save(ctx, snapshot))

	snapshot.Users[0].CoinBalance = decimal.NewFromInt(500)
	snapshot.Orders[0].Status = escrow.StatusAccepted
	require.NoError(t, store.Save(ctx, snapshot))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Users, 2)
	require.Len(t, loaded.Orders, 1)
	assert.True(t, loaded.Users[0].CoinBalance.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, escrow.StatusAccepted, loaded.Orders[0].Status)
}

func TestStore_Save_TransactionsAccumulate(t *testing.T) {
	// The settlement log is append-only across saves: earlier records
	// survive and new ones are added by id.

	store := newTestStore(t)
	ctx := context.Background()
	snapshot := sampleSnapshot()
	require.NoError(t, store.Save(ctx, snapshot))

	snapshot.Transactions = append(snapshot.Transactions, escrow.TransactionRecord{
		ID: "t2", Kind: escrow.TxEscrow,
		From: "user1@example.com", To: "user2@example.com",
		Amount: decimal.NewFromInt(200), Currency: escrow.CurrencyCoins,
		Description: "Widget", Timestamp: time.Now().UTC(),
	})
	require.NoError(t, store.Save(ctx, snapshot))
	// A third save with the same records must not duplicate them.
	require.NoError(t, store.Save(ctx, snapshot))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded.Transactions, 2)
}
