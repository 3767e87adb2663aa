// Package store provides in-memory implementations of the escrow store
// interfaces. This is the runtime default for the single-process simulation
// and the store used by tests.
package store

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paysecure/escrow-engine/escrow"
)

// =============================================================================
// MEMORY ACCOUNT STORE
// =============================================================================

type MemoryAccounts struct {
	mu       sync.RWMutex
	accounts map[string]escrow.Account
	order    []string // emails in insertion order
}

func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{accounts: make(map[string]escrow.Account)}
}

func (m *MemoryAccounts) Get(_ context.Context, email string) (escrow.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[email]
	if !ok {
		return escrow.Account{}, escrow.ErrNotFound
	}
	return account, nil
}

func (m *MemoryAccounts) Insert(_ context.Context, account escrow.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[account.Email]; exists {
		return escrow.ErrDuplicateAccount
	}
	m.accounts[account.Email] = account
	m.order = append(m.order, account.Email)
	return nil
}

// Update applies fn to a copy and commits only on success, so a failed
// mutation is never observable.
func (m *MemoryAccounts) Update(_ context.Context, email string, fn func(*escrow.Account) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[email]
	if !ok {
		return escrow.ErrNotFound
	}
	if err := fn(&account); err != nil {
		return err
	}
	m.accounts[email] = account
	return nil
}

// UpdatePair applies fn to copies of both accounts under one lock. Both
// commits happen together or not at all.
func (m *MemoryAccounts) UpdatePair(_ context.Context, emailA, emailB string, fn func(a, b *escrow.Account) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[emailA]
	if !ok {
		return escrow.ErrNotFound
	}
	b, ok := m.accounts[emailB]
	if !ok {
		return escrow.ErrNotFound
	}
	if err := fn(&a, &b); err != nil {
		return err
	}
	m.accounts[emailA] = a
	m.accounts[emailB] = b
	return nil
}

func (m *MemoryAccounts) All(_ context.Context) ([]escrow.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]escrow.Account, 0, len(m.order))
	for _, email := range m.order {
		result = append(result, m.accounts[email])
	}
	return result, nil
}

func (m *MemoryAccounts) ReplaceAll(_ context.Context, accounts []escrow.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = make(map[string]escrow.Account, len(accounts))
	m.order = m.order[:0]
	for _, account := range accounts {
		m.accounts[account.Email] = account
		m.order = append(m.order, account.Email)
	}
	return nil
}

// =============================================================================
// MEMORY ORDER STORE
// =============================================================================

type MemoryOrders struct {
	mu     sync.RWMutex
	orders map[escrow.OrderID]escrow.Order
	order  []escrow.OrderID // ids in insertion order
}

func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{orders: make(map[escrow.OrderID]escrow.Order)}
}

func (m *MemoryOrders) Create(_ context.Context, order escrow.Order) (escrow.OrderID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := escrow.OrderID(uuid.NewString())
	// uuid collisions are not a practical concern, but the contract is
	// strict: never overwrite an existing order.
	for {
		if _, exists := m.orders[id]; !exists {
			break
		}
		id = escrow.OrderID(uuid.NewString())
	}
	order.ID = id
	m.orders[id] = order
	m.order = append(m.order, id)
	return id, nil
}

func (m *MemoryOrders) Find(_ context.Context, id escrow.OrderID) (escrow.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return escrow.Order{}, escrow.ErrNotFound
	}
	return order, nil
}

func (m *MemoryOrders) Update(_ context.Context, id escrow.OrderID, fn func(*escrow.Order) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return escrow.ErrNotFound
	}
	if err := fn(&order); err != nil {
		return err
	}
	m.orders[id] = order
	return nil
}

// ListFor yields matching orders in insertion order. The sequence is
// restartable: each range re-reads the store.
func (m *MemoryOrders) ListFor(_ context.Context, email string, role escrow.Role) iter.Seq[escrow.Order] {
	return func(yield func(escrow.Order) bool) {
		for _, order := range m.snapshot() {
			if !order.Involves(email, role) {
				continue
			}
			if !yield(order) {
				return
			}
		}
	}
}

func (m *MemoryOrders) All(_ context.Context) ([]escrow.Order, error) {
	return m.snapshot(), nil
}

func (m *MemoryOrders) ReplaceAll(_ context.Context, orders []escrow.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = make(map[escrow.OrderID]escrow.Order, len(orders))
	m.order = m.order[:0]
	for _, order := range orders {
		m.orders[order.ID] = order
		m.order = append(m.order, order.ID)
	}
	return nil
}

func (m *MemoryOrders) snapshot() []escrow.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]escrow.Order, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.orders[id])
	}
	return result
}

// =============================================================================
// MEMORY TRANSACTION LOG
// =============================================================================

type MemoryLog struct {
	mu      sync.RWMutex
	records []escrow.TransactionRecord
	clock   func() time.Time
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{clock: time.Now}
}

// Append is the only write. Id and timestamp are assigned here so callers
// cannot forge either.
func (m *MemoryLog) Append(_ context.Context, record escrow.TransactionRecord) (escrow.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.ID = escrow.TransactionID(uuid.NewString())
	record.Timestamp = m.clock().UTC()
	m.records = append(m.records, record)
	return record, nil
}

func (m *MemoryLog) All(_ context.Context) iter.Seq[escrow.TransactionRecord] {
	return func(yield func(escrow.TransactionRecord) bool) {
		m.mu.RLock()
		records := make([]escrow.TransactionRecord, len(m.records))
		copy(records, m.records)
		m.mu.RUnlock()
		for _, record := range records {
			if !yield(record) {
				return
			}
		}
	}
}

func (m *MemoryLog) ReplaceAll(_ context.Context, records []escrow.TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append([]escrow.TransactionRecord(nil), records...)
	return nil
}
