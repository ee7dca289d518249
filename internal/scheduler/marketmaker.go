package scheduler

import (
	"freightex/internal/book"
	"freightex/internal/common"

	"github.com/shopspring/decimal"
)

// MarketMakerQuote implements the market-maker policy of spec §4.7: posts
// a bid-ask pair around a reference price, the book's current best ask if
// present, otherwise defaultRef. submit is the caller's hook into
// engine.Submit (kept as a function value here to avoid an import cycle
// between scheduler and engine).
func MarketMakerQuote(bk *book.Book, defaultRef, bidOffset, askOffset decimal.Decimal, submit func(side common.Side, price decimal.Decimal) error) error {
	ref := defaultRef
	if best, ok := bk.Peek(common.Ask); ok {
		ref = best.Price
	}

	bidPrice := ref.Sub(bidOffset)
	askPrice := ref.Add(askOffset)

	if err := submit(common.Bid, bidPrice); err != nil {
		return err
	}
	return submit(common.Ask, askPrice)
}
