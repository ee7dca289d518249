// Package book implements the per-instrument price-time priority order
// books described in spec §4.3, grounded on the price-level btree in the
// teacher's internal/engine/orderbook.go.
package book

import (
	"sync"

	"freightex/internal/common"
	"freightex/internal/store"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

// PriceLevel groups every resting order at one price, in arrival order
// (earliest first) so FIFO within a level falls straight out of slice
// order — spec §4.3's "ties at equal price broken by earliest arrival
// timestamp".
type PriceLevel struct {
	Price  decimal.Decimal
	Orders []*store.Order
}

// Book is one tradable instrument's bid/ask priority queues. Books
// exclusively own resting-order identity (spec §3): the *store.Order
// pointers held here are the same pointers the Store holds, so mutating
// Qty in place keeps both views consistent without duplication.
type Book struct {
	mu sync.Mutex

	ID string

	bids *btree.BTreeG[*PriceLevel] // sorted highest price first
	asks *btree.BTreeG[*PriceLevel] // sorted lowest price first

	// orderLevel indexes a resting order's id to the level (and side)
	// holding it, so Remove doesn't need to scan every level (spec §9
	// design note).
	orderLevel map[string]ref
}

type ref struct {
	side common.Side
	lvl  *PriceLevel
}

// New returns an empty book for id.
func New(id string) *Book {
	return &Book{
		ID: id,
		bids: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price.GreaterThan(b.Price)
		}),
		asks: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price.LessThan(b.Price)
		}),
		orderLevel: make(map[string]ref),
	}
}

func (b *Book) tree(side common.Side) *btree.BTreeG[*PriceLevel] {
	if side == common.Bid {
		return b.bids
	}
	return b.asks
}

// Lock acquires the book's single exclusive critical section (spec §5:
// "one logical critical section per book_id"). Callers (the matching
// engine) must hold this for the full duration of a submit, including the
// ledger lock and settlement hand-off, so book state and locked funds
// never diverge.
func (b *Book) Lock()   { b.mu.Lock() }
func (b *Book) Unlock() { b.mu.Unlock() }

// Insert places order on its own side. Must be called only when the
// opposite side no longer crosses it — the engine is responsible for
// crossing before ever calling Insert, so the book never rests a crossed
// order (spec §3 book invariant).
func (b *Book) Insert(order *store.Order) {
	tree := b.tree(order.Side)
	lvl, ok := tree.Get(&PriceLevel{Price: order.Price})
	if !ok {
		lvl = &PriceLevel{Price: order.Price}
		tree.Set(lvl)
	}
	lvl.Orders = append(lvl.Orders, order)
	b.orderLevel[order.ID] = ref{side: order.Side, lvl: lvl}
}

// Peek returns the best resting order on side, or (nil, false) if empty.
func (b *Book) Peek(side common.Side) (*store.Order, bool) {
	lvl, ok := b.tree(side).Min()
	if !ok || len(lvl.Orders) == 0 {
		return nil, false
	}
	return lvl.Orders[0], true
}

// Remove deletes the resting order with orderID from whichever side it
// sits on. No-op if unknown.
func (b *Book) Remove(orderID string) {
	r, ok := b.orderLevel[orderID]
	if !ok {
		return
	}
	for i, o := range r.lvl.Orders {
		if o.ID == orderID {
			r.lvl.Orders = append(r.lvl.Orders[:i], r.lvl.Orders[i+1:]...)
			break
		}
	}
	delete(b.orderLevel, orderID)
	if len(r.lvl.Orders) == 0 {
		b.tree(r.side).Delete(&PriceLevel{Price: r.lvl.Price})
	}
}

// BestBidBelowAsk reports whether the book is currently uncrossed, the
// invariant spec §3/§8 requires at rest: best_bid < best_ask.
func (b *Book) BestBidBelowAsk() bool {
	bid, bidOK := b.Peek(common.Bid)
	ask, askOK := b.Peek(common.Ask)
	if !bidOK || !askOK {
		return true
	}
	return bid.Price.LessThan(ask.Price)
}

// Level is one row of a Snapshot: price, order id, remaining qty.
type Level struct {
	Price   decimal.Decimal
	OrderID string
	Qty     uint64
}

// Snapshot returns ordered (price, order_id, qty) rows for both sides
// (spec §4.3): bids descending, asks ascending, and within a level in
// arrival order.
func (b *Book) Snapshot() (bids, asks []Level) {
	b.bids.Scan(func(lvl *PriceLevel) bool {
		for _, o := range lvl.Orders {
			bids = append(bids, Level{Price: lvl.Price, OrderID: o.ID, Qty: o.Qty})
		}
		return true
	})
	b.asks.Scan(func(lvl *PriceLevel) bool {
		for _, o := range lvl.Orders {
			asks = append(asks, Level{Price: lvl.Price, OrderID: o.ID, Qty: o.Qty})
		}
		return true
	})
	return bids, asks
}

// Manager owns one Book per book_id, created lazily, each with its own
// exclusive lock (spec §5).
type Manager struct {
	mu    sync.Mutex
	books map[string]*Book
}

// NewManager returns an empty book manager.
func NewManager() *Manager {
	return &Manager{books: make(map[string]*Book)}
}

// Get returns (creating if necessary) the book for id.
func (m *Manager) Get(id string) *Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	bk, ok := m.books[id]
	if !ok {
		bk = New(id)
		m.books[id] = bk
	}
	return bk
}

// IDs returns every book id currently known to the manager.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.books))
	for id := range m.books {
		out = append(out, id)
	}
	return out
}

// Reset drops every book, used by Scheduler.Reset (spec §5, §6).
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books = make(map[string]*Book)
}
