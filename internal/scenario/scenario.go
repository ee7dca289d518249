// Package scenario builds the default scripted timeline driving the
// scheduler (spec §4.7), grounded on original_source/backend/app/seed.py,
// adapted to this module's fuller multi-leg, ten-state contract model
// rather than the original's two-leg ad hoc script.
package scenario

import (
	"freightex/internal/book"
	"freightex/internal/common"
	"freightex/internal/contract"
	"freightex/internal/engine"
	"freightex/internal/ledger"
	"freightex/internal/scheduler"
	"freightex/internal/settlement"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Cast of scripted actors, carried over from original_source/main.py's
// hardcoded demo ids.
const (
	ContractID   = "C1"
	ShipperA     = "ShipperA"
	MarketMaker1 = "MarketMaker1"
	Platform     = "Platform"
	CheapLtd     = "CheapLtd"
	FastPLC      = "FastPLC"
	WealthyCorp  = "WealthyCorp"
)

// Carriers is the fixed carrier roster, in descending ask-price order
// per leg (original_source/seed.py preloads each at base - i*500).
var Carriers = []string{"Maersk", "Evergreen", "COSCO", "MSC", "Hapag"}

var legBase = map[string]decimal.Decimal{
	"L1": decimal.NewFromInt(8000),
	"L2": decimal.NewFromInt(4000),
	"L3": decimal.NewFromInt(2000),
}

// ownershipAskPrice is ShipperA's resting ask on the contract's ownership
// book, the reserve price against which the bidding war in §8 scenario 4
// ultimately crosses.
var ownershipAskPrice = decimal.NewFromInt(1450)

// marketMakerBidOffset/marketMakerAskOffset are MarketMaker1's quote
// spread around the ownership book's reference price (§4.7 market-maker
// policy).
var (
	marketMakerBidOffset = decimal.NewFromInt(50)
	marketMakerAskOffset = decimal.NewFromInt(50)
)

// shipperFunding covers both the contract's escrow lock and every
// freight bid ShipperA places across all three legs, with headroom.
// Scaled up from original_source/seed.py's flat fund(SHIPPER, 20_000)
// to fit this spec's richer three-leg model, where the escrow lock and
// each leg's pre-trade bid lock both draw from the same available pool.
var shipperFunding = decimal.NewFromInt(40000)

// biddingWarFunding is enough for any single ownership bidder to cover
// their own bid lock in the CheapLtd/FastPLC/WealthyCorp escalation.
var biddingWarFunding = decimal.NewFromInt(2000)

// IoTEvent is the delivery-progress record supplemented from
// original_source/backend/app/models.py's IoTEvent: status is one of the
// five original strings, lat/lon are optional. Only DELIVERED_FINAL_LEG
// drives settlement; the rest are observability only.
type IoTEvent struct {
	ContractID string
	LegID      string
	Status     string
	Lat        *float64
	Lon        *float64
}

const (
	StatusDepartedOrigin    = "DEPARTED_ORIGIN_PORT"
	StatusInTransit         = "IN_TRANSIT"
	StatusArrivedTransship  = "ARRIVED_TRANSSHIPMENT"
	StatusDepartedTransship = "DEPARTED_TRANSSHIPMENT"
	StatusDeliveredFinal    = "DELIVERED_FINAL_LEG"
)

// Builder assembles the default timeline against live engine/registry/
// ledger collaborators, deferring leg-id-to-book-id translation to
// contract.LegBookID/ContractBookID so identifiers round-trip per §6.
type Builder struct {
	Engine   *engine.Engine
	Books    *book.Manager
	Registry *contract.Registry
	Ledger   *ledger.Ledger
	Settle   *settlement.Settlement
}

// Default returns the scripted timeline described in SPEC_FULL.md's
// Scheduler module: fund the shipper and market-maker, preload carrier
// asks on all three legs, run the L1 auction and freight settlement, run
// the ownership bidding war, then L2 and L3 auctions/deliveries through
// DELIVERED_FINAL.
func (b *Builder) Default() []scheduler.TimelineEntry {
	var tl []scheduler.TimelineEntry

	tl = append(tl, scheduler.TimelineEntry{SimTimeS: 0, Action: b.fundActors})
	tl = append(tl, scheduler.TimelineEntry{SimTimeS: 0, Action: b.createContract})
	tl = append(tl, scheduler.TimelineEntry{SimTimeS: 1, Action: b.preloadCarrierAsks})

	tl = append(tl, scheduler.TimelineEntry{SimTimeS: 2, Action: b.openAuction("L1")})
	tl = append(tl, scheduler.TimelineEntry{SimTimeS: 10, Action: b.submitShipperBid("L1")})
	tl = append(tl, scheduler.TimelineEntry{SimTimeS: 25, Action: b.deliverLeg("L1")})

	tl = append(tl, scheduler.TimelineEntry{SimTimeS: 28, Action: b.marketMakerQuote})
	tl = append(tl, scheduler.TimelineEntry{SimTimeS: 29, Action: b.postOwnershipAsk})
	tl = append(tl, scheduler.TimelineEntry{SimTimeS: 30, Action: b.ownershipBid(CheapLtd, decimal.NewFromInt(1000))})
	tl = append(tl, scheduler.TimelineEntry{SimTimeS: 30, Action: b.ownershipBid(FastPLC, decimal.NewFromInt(1200))})
	tl = append(tl, scheduler.TimelineEntry{SimTimeS: 40, Action: b.ownershipBid(WealthyCorp, decimal.NewFromInt(1500))})

	tl = append(tl, scheduler.TimelineEntry{SimTimeS: 41, Action: b.openAuction("L2")})
	tl = append(tl, scheduler.TimelineEntry{SimTimeS: 55, Action: b.submitShipperBid("L2")})
	tl = append(tl, scheduler.TimelineEntry{SimTimeS: 70, Action: b.deliverLeg("L2")})

	tl = append(tl, scheduler.TimelineEntry{SimTimeS: 71, Action: b.openAuction("L3")})
	tl = append(tl, scheduler.TimelineEntry{SimTimeS: 85, Action: b.submitShipperBid("L3")})
	tl = append(tl, scheduler.TimelineEntry{SimTimeS: 100, Action: b.deliverLeg("L3")})

	return tl
}

func (b *Builder) fundActors() error {
	funding := map[string]decimal.Decimal{
		ShipperA:     shipperFunding,
		MarketMaker1: decimal.NewFromInt(5000),
		CheapLtd:     biddingWarFunding,
		FastPLC:      biddingWarFunding,
		WealthyCorp:  biddingWarFunding,
	}
	for trader, amount := range funding {
		if err := b.Ledger.Fund(trader, amount); err != nil {
			return err
		}
	}
	return nil
}

// escrowAmount is Σ leg high estimates + a 10% safety margin (spec
// §4.6), computed from the fixed per-leg base prices.
func escrowAmount() decimal.Decimal {
	total := decimal.Zero
	for _, base := range legBase {
		total = total.Add(base)
	}
	return total.Mul(decimal.NewFromFloat(1.1))
}

func (b *Builder) createContract() error {
	_, err := b.Registry.CreateContract(
		ContractID,
		"Shanghai",
		"Rotterdam",
		ShipperA,
		escrowAmount(),
		[]contract.LegSpec{
			{ID: "L1", Origin: "Shanghai", Destination: "Singapore"},
			{ID: "L2", Origin: "Singapore", Destination: "Suez"},
			{ID: "L3", Origin: "Suez", Destination: "Rotterdam"},
		},
	)
	return err
}

// carrierUndercut is the fractional discount each successive carrier
// applies off its leg's base price. Expressed as a fraction of the base
// rather than original_source/seed.py's flat 500 decrement so the
// formula stays strictly positive across legs of very different scale
// (L3's base is a quarter of L1's).
const carrierUndercut = 0.05

// preloadCarrierAsks posts one resting ask per carrier per leg, each
// carrier undercutting the previous (original_source/seed.py).
func (b *Builder) preloadCarrierAsks() error {
	for leg, base := range legBase {
		bookID := contract.LegBookID(leg, ContractID)
		for i, carrier := range Carriers {
			discount := decimal.NewFromFloat(1 - carrierUndercut*float64(i))
			price := base.Mul(discount).Round(2)
			_, err := b.Engine.Submit(common.Ask, bookID, price, 1, carrier, common.LegFreight, strPtr(ContractID), leg)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// marketMakerQuote posts MarketMaker1's two-sided quote on the contract's
// ownership book ahead of the bidding war, implementing §4.7's
// market-maker policy via scheduler.MarketMakerQuote.
func (b *Builder) marketMakerQuote() error {
	bookID := contract.ContractBookID(ContractID)
	bk := b.Books.Get(bookID)
	return scheduler.MarketMakerQuote(bk, ownershipAskPrice, marketMakerBidOffset, marketMakerAskOffset, func(side common.Side, price decimal.Decimal) error {
		_, err := b.Engine.Submit(side, bookID, price, 1, MarketMaker1, common.ContractOwnership, strPtr(ContractID), "")
		return err
	})
}

// postOwnershipAsk has ShipperA rest an ask on the contract's ownership
// book, establishing the reserve price the ownership bidding war crosses
// (spec §8 scenario 4).
func (b *Builder) postOwnershipAsk() error {
	bookID := contract.ContractBookID(ContractID)
	_, err := b.Engine.Submit(common.Ask, bookID, ownershipAskPrice, 1, ShipperA, common.ContractOwnership, strPtr(ContractID), "")
	return err
}

func (b *Builder) openAuction(legID string) scheduler.Action {
	return func() error {
		return b.Registry.OpenAuction(ContractID, legID)
	}
}

func (b *Builder) submitShipperBid(legID string) scheduler.Action {
	return func() error {
		bookID := contract.LegBookID(legID, ContractID)
		price := legBase[legID]
		matches, err := b.Engine.Submit(common.Bid, bookID, price, 1, ShipperA, common.LegFreight, strPtr(ContractID), legID)
		if err != nil {
			return err
		}
		if len(matches) > 0 {
			return b.Registry.MarkInTransit(ContractID, legID)
		}
		return nil
	}
}

func (b *Builder) deliverLeg(legID string) scheduler.Action {
	return func() error {
		event := IoTEvent{ContractID: ContractID, LegID: legID, Status: StatusDeliveredFinal}
		return b.HandleIoTEvent(event)
	}
}

// HandleIoTEvent records a delivery-progress event; only
// DELIVERED_FINAL_LEG advances the leg to DELIVERED and triggers
// settlement finalization (spec §4.5), the rest are observability-only
// (SPEC_FULL.md scheduler module).
func (b *Builder) HandleIoTEvent(event IoTEvent) error {
	if event.Status != StatusDeliveredFinal {
		log.Info().Str("leg", event.LegID).Str("status", event.Status).Msg("iot progress event")
		return nil
	}
	if err := b.Registry.MarkDelivered(event.ContractID, event.LegID, event.Status, event.Lat, event.Lon); err != nil {
		return err
	}
	b.Settle.OnDelivery(event.LegID, event.ContractID)
	return nil
}

func (b *Builder) ownershipBid(trader string, price decimal.Decimal) scheduler.Action {
	return func() error {
		bookID := contract.ContractBookID(ContractID)
		_, err := b.Engine.Submit(common.Bid, bookID, price, 1, trader, common.ContractOwnership, strPtr(ContractID), "")
		return err
	}
}

func strPtr(s string) *string { return &s }
