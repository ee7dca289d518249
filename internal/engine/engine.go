// Package engine implements the matching engine of spec §4.4: order
// admission, fund-locking, crossing, settlement hand-off, and book
// insertion. Grounded on the dispatch shape of the teacher's
// internal/engine/orderbook.go PlaceOrder/Match, generalized from a
// single-asset equities book to many independent freight and ownership
// books.
package engine

import (
	"errors"
	"fmt"
	"time"

	"freightex/internal/book"
	"freightex/internal/common"
	"freightex/internal/contract"
	"freightex/internal/idgen"
	"freightex/internal/ledger"
	"freightex/internal/metrics"
	"freightex/internal/settlement"
	"freightex/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Errors returned by Submit, mirroring spec §4.4 step 1 and step 3.
var (
	ErrBadOrder          = errors.New("REJECTED_BAD_ORDER")
	ErrInsufficientFunds = errors.New("REJECTED_INSUFFICIENT_FUNDS")
)

// Match is the immutable per-book trade record of spec §3.
type Match struct {
	ID         string
	BookID     string
	BidID      string
	AskID      string
	BidTrader  string
	AskTrader  string
	Price      decimal.Decimal
	Qty        uint64
	MatchType  common.OrderType
	ContractID *string
	Ts         time.Time
}

// Engine owns the books, order store, ledger, settlement, and contract
// registry, and is the sole entry point for order submission.
type Engine struct {
	books    *book.Manager
	store    *store.Store
	ledger   *ledger.Ledger
	settle   *settlement.Settlement
	registry *contract.Registry

	matchLogs *matchLogs
}

// New returns an Engine wired to the given collaborators.
func New(books *book.Manager, st *store.Store, l *ledger.Ledger, settle *settlement.Settlement, registry *contract.Registry) *Engine {
	return &Engine{
		books:     books,
		store:     st,
		ledger:    l,
		settle:    settle,
		registry:  registry,
		matchLogs: newMatchLogs(),
	}
}

// Submit implements spec §4.4's algorithm. orderType and contractID
// select CONTRACT_OWNERSHIP vs LEG_FREIGHT settlement dispatch; for a
// LEG_FREIGHT book, legID identifies which leg the freight hold belongs
// to; the caller supplies it alongside book_id (the scenario passes the
// leg it built the book id from, the API passes the request's leg_id).
func (e *Engine) Submit(side common.Side, bookID string, price decimal.Decimal, qty uint64, trader string, orderType common.OrderType, contractID *string, legID string) ([]*Match, error) {
	// Step 1: validate.
	if price.Sign() <= 0 || qty == 0 {
		metrics.OrdersRejected.WithLabelValues("bad_order").Inc()
		return nil, ErrBadOrder
	}

	bk := e.books.Get(bookID)
	bk.Lock()
	defer bk.Unlock()

	// Step 2: persist the order.
	incoming := &store.Order{
		ID:         idgen.New(),
		BookID:     bookID,
		Trader:     trader,
		Side:       side,
		Price:      price,
		Qty:        qty,
		TotalQty:   qty,
		OrderType:  orderType,
		ContractID: contractID,
		Ts:         time.Now(),
	}
	e.store.Put(incoming)

	// Step 3: pre-trade lock for bids only.
	if side == common.Bid {
		lockAmount := price.Mul(decimal.NewFromInt(int64(qty)))
		if err := e.ledger.Lock(trader, lockAmount); err != nil {
			e.store.Delete(incoming.ID)
			metrics.OrdersRejected.WithLabelValues("insufficient_funds").Inc()
			return nil, fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
		}
	}
	metrics.OrdersSubmitted.WithLabelValues(bookID, side.String()).Inc()

	var matches []*Match

	// Steps 4-5: crossing loop, multi-level per the general §4.4 behavior
	// (the Open Question in §9 is resolved in favor of looping rather
	// than stopping after one resting order).
	for incoming.Qty > 0 {
		resting, ok := bk.Peek(side.Opposite())
		if !ok || !crosses(side, price, resting.Price) {
			break
		}

		matchPrice := resting.Price
		matchQty := incoming.Qty
		if resting.Qty < matchQty {
			matchQty = resting.Qty
		}

		resting.Qty -= matchQty
		incoming.Qty -= matchQty
		if resting.Qty == 0 {
			bk.Remove(resting.ID)
			e.store.Delete(resting.ID)
		}

		m := e.buildMatch(bookID, side, incoming, resting, matchPrice, matchQty, orderType, contractID)
		e.matchLogs.append(bookID, m)
		matches = append(matches, m)
		metrics.MatchesTotal.WithLabelValues(bookID).Inc()

		e.settleMatch(m, legID)

		// Price improvement: incoming bid cleared below its limit price.
		if side == common.Bid && matchPrice.LessThan(price) {
			refund := price.Sub(matchPrice).Mul(decimal.NewFromInt(int64(matchQty)))
			e.ledger.Release(trader, refund, "price improvement on "+m.ID)
		}
	}

	if incoming.Qty == 0 {
		e.store.Delete(incoming.ID)
	} else {
		bk.Insert(incoming)
	}

	if orderType == common.ContractOwnership && contractID != nil {
		e.applyOwnershipSideEffect(bk, *contractID, side, matches)
	}

	bids, asks := bk.Snapshot()
	metrics.BookDepth.WithLabelValues(bookID, common.Bid.String()).Set(float64(len(bids)))
	metrics.BookDepth.WithLabelValues(bookID, common.Ask.String()).Set(float64(len(asks)))

	return matches, nil
}

// crosses reports whether an incoming order at price crosses the
// opposing best quote restingPrice (spec §4.4 step 4).
func crosses(side common.Side, price, restingPrice decimal.Decimal) bool {
	if side == common.Bid {
		return price.GreaterThanOrEqual(restingPrice)
	}
	return price.LessThanOrEqual(restingPrice)
}

func (e *Engine) buildMatch(bookID string, side common.Side, incoming, resting *store.Order, price decimal.Decimal, qty uint64, orderType common.OrderType, contractID *string) *Match {
	m := &Match{
		ID:         idgen.New(),
		BookID:     bookID,
		Price:      price,
		Qty:        qty,
		MatchType:  orderType,
		ContractID: contractID,
		Ts:         time.Now(),
	}
	if side == common.Bid {
		m.BidID, m.BidTrader = incoming.ID, incoming.Trader
		m.AskID, m.AskTrader = resting.ID, resting.Trader
	} else {
		m.BidID, m.BidTrader = resting.ID, resting.Trader
		m.AskID, m.AskTrader = incoming.ID, incoming.Trader
	}
	return m
}

// settleMatch dispatches to Settlement per match_type (spec §4.5).
func (e *Engine) settleMatch(m *Match, legID string) {
	contractID := ""
	if m.ContractID != nil {
		contractID = *m.ContractID
	}
	switch m.MatchType {
	case common.ContractOwnership:
		if err := e.settle.SettleOwnership(contractID, m.BidTrader, m.AskTrader, m.Price, m.Qty); err != nil {
			log.Error().Err(err).Str("match", m.ID).Msg("ownership settlement failed")
		}
	case common.LegFreight:
		e.settle.HoldFreight(m.ID, legID, contractID, m.BidTrader, m.AskTrader, m.Price, m.Qty)
	}
}

// applyOwnershipSideEffect updates contract.current_owner after any
// admitted bid on a CONTRACT_OWNERSHIP book (spec §4.4): if the incoming
// bid matched, settlement already assigned ownership directly; otherwise,
// if it now rests as the best bid, it becomes current_owner.
func (e *Engine) applyOwnershipSideEffect(bk *book.Book, contractID string, side common.Side, matches []*Match) {
	if side != common.Bid || len(matches) > 0 {
		return // no bid admitted, or settlement already set current_owner to the matched bidder
	}
	best, ok := bk.Peek(common.Bid)
	if !ok {
		return
	}
	e.registry.SetCurrentOwner(contractID, best.Trader)
}

// MatchLog returns every match recorded for bookID, in timestamp order
// (spec §6 match log record).
func (e *Engine) MatchLog(bookID string) []*Match {
	return e.matchLogs.get(bookID)
}

// Reset clears every match log, used by Scheduler.Reset (spec §5, §6).
func (e *Engine) Reset() {
	e.matchLogs.reset()
}
