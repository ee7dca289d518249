// Package store is the durable record of every submitted order's
// immutable attributes (spec §3, §4.2). It is a shared read surface for
// the engine, settlement, and API observers; the only in-place change to
// a stored order is the engine decrementing a resting order's Qty.
package store

import (
	"sync"
	"time"

	"freightex/internal/common"

	"github.com/shopspring/decimal"
)

// Order is the immutable record described in spec §3. TotalQty is the
// quantity the trader originally asked for; Qty is what remains unmatched
// and is the only field the engine mutates in place while an order still
// rests in a book; the book and the store share the same *Order, so the
// change shows in both (the record is never replaced by another Put).
type Order struct {
	ID         string
	BookID     string
	Trader     string
	Side       common.Side
	Price      decimal.Decimal
	Qty        uint64
	TotalQty   uint64
	OrderType  common.OrderType
	ContractID *string
	Ts         time.Time
}

// Store is a shared append-mostly map of order records, guarded by a
// single mutex (grounded on the teacher's clientSessionsLock pattern in
// internal/net/server.go).
type Store struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

// New returns an empty order store.
func New() *Store {
	return &Store{orders: make(map[string]*Order)}
}

// Put persists order, keyed by its ID, storing the pointer itself. The
// engine mutates a resting order's remaining quantity through the same
// pointer the book holds, only inside the owning book's single critical
// section (spec §5).
func (s *Store) Put(o *Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

// Get returns the full record for id, or false if it has never existed or
// was deleted.
func (s *Store) Get(id string) (*Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	return o, ok
}

// Delete removes an order's record. Only valid once an order is fully
// consumed or explicitly cancelled (spec §4.2); dangling references from
// the match log after a delete are acceptable.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, id)
}

// Reset clears every stored order, used by Scheduler.Reset (spec §5).
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = make(map[string]*Order)
}
