// Package settlement implements the two settlement modes of spec §4.5:
// immediate settlement for CONTRACT_OWNERSHIP matches and deferred holds
// for LEG_FREIGHT matches, finalized on delivery events.
package settlement

import (
	"sync"

	"freightex/internal/contract"
	"freightex/internal/ledger"
	"freightex/internal/money"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// HoldStatus is a settlement hold's lifecycle position.
type HoldStatus int

const (
	PendingDelivery HoldStatus = iota
	Settled
	// Errored marks a hold that failed its settlement debit, per §7's
	// "partial settlement failure" handling: flagged, not rolled back.
	Errored
)

func (s HoldStatus) String() string {
	switch s {
	case PendingDelivery:
		return "PENDING_DELIVERY"
	case Settled:
		return "SETTLED"
	default:
		return "ERRORED"
	}
}

// Hold is the deferred-settlement record created per LEG_FREIGHT match
// (spec §3).
type Hold struct {
	MatchID    string
	LegID      string
	ContractID string
	Amount     decimal.Decimal
	Payer      string
	Payee      string
	Status     HoldStatus
}

// key indexes holds by (leg_id, contract_id), avoiding a full scan on
// every delivery event; OnDelivery filters the indexed holds by status.
type key struct {
	legID, contractID string
}

// Settlement owns every hold and dispatches both settlement modes.
type Settlement struct {
	mu       sync.Mutex
	ledger   *ledger.Ledger
	registry *contract.Registry
	platform string

	holds   map[string]*Hold   // by match id
	byIndex map[key][]*Hold    // by (leg_id, contract_id), every hold whatever its status
}

// New returns a Settlement writing through l and updating contract/leg
// state in registry, crediting platform as the fee sink.
func New(l *ledger.Ledger, registry *contract.Registry, platform string) *Settlement {
	return &Settlement{
		ledger:   l,
		registry: registry,
		platform: platform,
		holds:    make(map[string]*Hold),
		byIndex:  make(map[key][]*Hold),
	}
}

// SettleOwnership performs immediate settlement for a CONTRACT_OWNERSHIP
// match (spec §4.5): debits the bidder's locked escrow, credits the
// asker and platform, and updates the contract's current_owner.
func (s *Settlement) SettleOwnership(contractID, bidTrader, askTrader string, price decimal.Decimal, qty uint64) error {
	amount := price.Mul(decimal.NewFromInt(int64(qty)))
	fee, payout := money.Split(amount)

	if err := s.ledger.Debit(bidTrader, amount, ledger.Locked); err != nil {
		return err
	}
	if err := s.ledger.Credit(askTrader, payout, ledger.Available); err != nil {
		return err
	}
	if err := s.ledger.Credit(s.platform, fee, ledger.Available); err != nil {
		return err
	}

	s.registry.SetCurrentOwner(contractID, bidTrader)
	log.Info().Str("contract", contractID).Str("owner", bidTrader).
		Str("amount", amount.String()).Msg("ownership settled immediately")
	return nil
}

// HoldFreight creates a PENDING_DELIVERY hold for a LEG_FREIGHT match
// (spec §4.5). Funds stay in payer.locked; no balance changes here.
func (s *Settlement) HoldFreight(matchID, legID, contractID, payer, payee string, price decimal.Decimal, qty uint64) *Hold {
	amount := price.Mul(decimal.NewFromInt(int64(qty)))
	h := &Hold{
		MatchID:    matchID,
		LegID:      legID,
		ContractID: contractID,
		Amount:     amount,
		Payer:      payer,
		Payee:      payee,
		Status:     PendingDelivery,
	}

	s.mu.Lock()
	s.holds[matchID] = h
	k := key{legID: legID, contractID: contractID}
	s.byIndex[k] = append(s.byIndex[k], h)
	s.mu.Unlock()

	log.Info().Str("match", matchID).Str("leg", legID).Str("contract", contractID).
		Str("amount", amount.String()).Msg("freight hold created")
	return h
}

// OnDelivery finalizes every PENDING_DELIVERY hold for (legID, contractID)
// (spec §4.5). Replaying for an already-settled leg is a no-op (§8
// idempotent-delivery invariant): holds not in PENDING_DELIVERY are
// skipped rather than re-processed.
func (s *Settlement) OnDelivery(legID, contractID string) {
	s.mu.Lock()
	k := key{legID: legID, contractID: contractID}
	pending := make([]*Hold, 0, len(s.byIndex[k]))
	for _, h := range s.byIndex[k] {
		if h.Status == PendingDelivery {
			pending = append(pending, h)
		}
	}
	s.mu.Unlock()

	for _, h := range pending {
		s.settleHold(h)
	}
	if err := s.registry.MarkSettled(contractID, legID); err != nil {
		log.Warn().Err(err).Str("leg", legID).Str("contract", contractID).
			Msg("could not mark leg settled")
	}
}

// settleHold debits one hold independently of its siblings: a failure
// here does not roll back any other hold already settled (spec §4.5,
// §7).
func (s *Settlement) settleHold(h *Hold) {
	fee, payout := money.Split(h.Amount)

	if err := s.ledger.Debit(h.Payer, h.Amount, ledger.Locked); err != nil {
		s.mu.Lock()
		h.Status = Errored
		s.mu.Unlock()
		log.Error().Err(err).Str("match", h.MatchID).Str("payer", h.Payer).
			Msg("settlement hold debit failed, flagged for operator review")
		return
	}
	if err := s.ledger.Credit(h.Payee, payout, ledger.Available); err != nil {
		log.Error().Err(err).Str("match", h.MatchID).Msg("settlement hold payee credit failed")
	}
	if err := s.ledger.Credit(s.platform, fee, ledger.Available); err != nil {
		log.Error().Err(err).Str("match", h.MatchID).Msg("settlement hold fee credit failed")
	}

	s.mu.Lock()
	h.Status = Settled
	s.mu.Unlock()

	log.Info().Str("match", h.MatchID).Str("leg", h.LegID).Str("contract", h.ContractID).
		Msg("freight hold settled")
}

// Holds returns every hold for a given leg/contract pair, for tests and
// observability; order is not significant.
func (s *Settlement) Holds(legID, contractID string) []*Hold {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.byIndex[key{legID: legID, contractID: contractID}]
	out := make([]*Hold, len(src))
	copy(out, src)
	return out
}

// Reset clears every hold, used by Scheduler.Reset (spec §5, §6).
func (s *Settlement) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holds = make(map[string]*Hold)
	s.byIndex = make(map[key][]*Hold)
}
