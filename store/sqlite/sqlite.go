/*
Package sqlite provides a SQLite-backed implementation of the snapshot
persistence contract.

PURPOSE:
  The engine's persistence boundary is a whole-state snapshot: the three
  collections (users, orders, transactions), saved between intents and
  restored on startup. This package maps that contract onto SQLite. The
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  escrow.SnapshotStore: Save and Load of full snapshots

KEY TABLES:
  users:        Account records with the three balances
  orders:       Order records, terminal states retained forever
  transactions: Append-only settlement log

APPEND-ONLY ENFORCEMENT:
  The transactions table is insert-only across saves: rows are inserted by
  id and never updated or deleted. Users and orders are replaced wholesale
  on each save, matching the snapshot contract (no derived fields, no
  partial writes).

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/paysecure.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  snap, err := store.Load(ctx)     // nil snapshot on first run
  err = store.Save(ctx, snapshot)  // after each intent, or on shutdown

SEE ALSO:
  - escrow/snapshot.go: The contract this package implements
  - escrow/store/memory.go: The runtime store the snapshot feeds
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/paysecure/escrow-engine/escrow"
)

// Store implements escrow.SnapshotStore using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Accounts with coin, cash, and escrow balances
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		coin_balance TEXT NOT NULL,
		cash_balance TEXT NOT NULL,
		escrow_balance TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Orders; terminal states are retained for history
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		buyer_email TEXT NOT NULL,
		seller_email TEXT NOT NULL,
		product_name TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_buyer ON orders(buyer_email);
	CREATE INDEX IF NOT EXISTS idx_orders_seller ON orders(seller_email);

	-- Settlement log (append-only: no UPDATE, no DELETE)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		from_email TEXT,
		to_email TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		description TEXT,
		timestamp TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SAVE
// =============================================================================

// Save persists the snapshot atomically: users and orders are replaced
// wholesale, transaction records are inserted by id and never touched again.
func (s *Store) Save(ctx context.Context, snapshot escrow.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return err
	}
	for _, user := range snapshot.Users {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, name, email, password, coin_balance, cash_balance, escrow_balance, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(user.ID), user.Name, user.Email, user.Password,
			user.CoinBalance.String(), user.CashBalance.String(), user.EscrowBalance.String(),
			user.CreatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to save user %s: %w", user.Email, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM orders`); err != nil {
		return err
	}
	for _, order := range snapshot.Orders {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO orders (id, buyer_email, seller_email, product_name, amount, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(order.ID), order.BuyerEmail, order.SellerEmail, order.ProductName,
			order.Amount.Value.String(), string(order.Status),
			order.CreatedAt.Format(time.RFC3339Nano), order.UpdatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to save order %s: %w", order.ID, err)
		}
	}

	for _, record := range snapshot.Transactions {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO transactions (id, kind, from_email, to_email, amount, currency, description, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(record.ID), string(record.Kind), record.From, record.To,
			record.Amount.String(), string(record.Currency), record.Description,
			record.Timestamp.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", record.ID, err)
		}
	}

	return tx.Commit()
}

// =============================================================================
// LOAD
// =============================================================================

// Load reads the latest snapshot. Returns (nil, nil) when the database holds
// no accounts yet (first run).
func (s *Store) Load(ctx context.Context) (*escrow.Snapshot, error) {
	var snapshot escrow.Snapshot

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, password, coin_balance, cash_balance, escrow_balance, created_at
		FROM users ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			user                 escrow.Account
			id                   string
			coin, cash, escrowed string
			createdAt            string
		)
		if err := rows.Scan(&id, &user.Name, &user.Email, &user.Password, &coin, &cash, &escrowed, &createdAt); err != nil {
			return nil, err
		}
		user.ID = escrow.AccountID(id)
		if user.CoinBalance, err = decimal.NewFromString(coin); err != nil {
			return nil, fmt.Errorf("bad coin balance for %s: %w", user.Email, err)
		}
		if user.CashBalance, err = decimal.NewFromString(cash); err != nil {
			return nil, fmt.Errorf("bad cash balance for %s: %w", user.Email, err)
		}
		if user.EscrowBalance, err = decimal.NewFromString(escrowed); err != nil {
			return nil, fmt.Errorf("bad escrow balance for %s: %w", user.Email, err)
		}
		if user.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("bad created_at for %s: %w", user.Email, err)
		}
		snapshot.Users = append(snapshot.Users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(snapshot.Users) == 0 {
		return nil, nil
	}

	orderRows, err := s.db.QueryContext(ctx, `
		SELECT id, buyer_email, seller_email, product_name, amount, status, created_at, updated_at
		FROM orders ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer orderRows.Close()
	for orderRows.Next() {
		var (
			order                escrow.Order
			id, amount, status   string
			createdAt, updatedAt string
		)
		if err := orderRows.Scan(&id, &order.BuyerEmail, &order.SellerEmail, &order.ProductName, &amount, &status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		order.ID = escrow.OrderID(id)
		order.Status = escrow.OrderStatus(status)
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("bad amount for order %s: %w", id, err)
		}
		order.Amount = escrow.Amount{Value: value, Currency: escrow.CurrencyCoins}
		if order.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("bad created_at for order %s: %w", id, err)
		}
		if order.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, fmt.Errorf("bad updated_at for order %s: %w", id, err)
		}
		snapshot.Orders = append(snapshot.Orders, order)
	}
	if err := orderRows.Err(); err != nil {
		return nil, err
	}

	txRows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, from_email, to_email, amount, currency, description, timestamp
		FROM transactions ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer txRows.Close()
	for txRows.Next() {
		var (
			record             escrow.TransactionRecord
			id, kind, currency string
			amount, timestamp  string
		)
		if err := txRows.Scan(&id, &kind, &record.From, &record.To, &amount, &currency, &record.Description, &timestamp); err != nil {
			return nil, err
		}
		record.ID = escrow.TransactionID(id)
		record.Kind = escrow.TransactionKind(kind)
		record.Currency = escrow.Currency(currency)
		if record.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("bad amount for transaction %s: %w", id, err)
		}
		if record.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
			return nil, fmt.Errorf("bad timestamp for transaction %s: %w", id, err)
		}
		snapshot.Transactions = append(snapshot.Transactions, record)
	}
	if err := txRows.Err(); err != nil {
		return nil, err
	}

	return &snapshot, nil
}
