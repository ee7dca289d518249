// Package contract implements the contract and leg lifecycle state
// machines described in spec §4.6, grounded on the enum-discriminator
// style of the teacher's internal/engine/types.go.
package contract

import (
	"fmt"
	"sync"
	"time"

	"freightex/internal/idgen"
	"freightex/internal/ledger"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Status is a contract's position in the ten-state delivery DAG (§4.6).
type Status int

const (
	Booked Status = iota
	AuctioningL1
	InTransitL1
	DeliveredL1AwaitingL2
	AuctioningL2
	InTransitL2
	DeliveredL2AwaitingL3
	AuctioningL3
	InTransitL3
	DeliveredFinal
)

var statusNames = [...]string{
	"BOOKED",
	"AUCTIONING_L1",
	"IN_TRANSIT_L1",
	"DELIVERED_L1_AWAITING_L2",
	"AUCTIONING_L2",
	"IN_TRANSIT_L2",
	"DELIVERED_L2_AWAITING_L3",
	"AUCTIONING_L3",
	"IN_TRANSIT_L3",
	"DELIVERED_FINAL",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "UNKNOWN"
	}
	return statusNames[s]
}

// LegStatus is a leg's position in its five-state DAG (§4.6).
type LegStatus int

const (
	PendingAuction LegStatus = iota
	AuctionOpen
	InTransit
	Delivered
	Settled
)

var legStatusNames = [...]string{
	"PENDING_AUCTION",
	"AUCTION_OPEN",
	"IN_TRANSIT",
	"DELIVERED",
	"SETTLED",
}

func (s LegStatus) String() string {
	if s < 0 || int(s) >= len(legStatusNames) {
		return "UNKNOWN"
	}
	return legStatusNames[s]
}

// DefaultContractType mirrors original_source/backend/app/models.py's
// ContainerContract.contract_type default. It decorates data already in
// scope and participates in no invariant; carried for API completeness.
const DefaultContractType = "40ft_STD_USE"

// Leg is one ordered transport segment of a Contract. Legs reference
// their contract by id only, never by back-pointer (§9 design note).
type Leg struct {
	ID           string
	ContractID   string
	Seq          int // 1, 2, 3 ...
	Origin       string
	Destination  string
	Status       LegStatus
	Carrier      string
	FreightCost  decimal.Decimal
	StartSimTime time.Duration
	ETADuration  time.Duration

	// IoT observability state (supplemented from original_source's
	// IoTEvent), not part of any invariant.
	LastIoTStatus string
	LastLat       *float64
	LastLon       *float64
}

// Contract is a container's end-to-end ownership and delivery record.
type Contract struct {
	ID               string
	ContractType     string
	Origin           string
	FinalDestination string
	InitialShipper   string
	CurrentOwner     string
	Status           Status
	MaxPrepaidCost   decimal.Decimal
	CreationTs       time.Time
	FinalETA         *time.Time

	Legs []*Leg
}

// LegBookID produces the <leg_id>_<contract_id> book identifier (§6)
// that must round-trip bit-exactly through the streaming channel.
func LegBookID(legID, contractID string) string {
	return fmt.Sprintf("%s_%s", legID, contractID)
}

// ContractBookID produces the contract:<contract_id> ownership book
// identifier (§6).
func ContractBookID(contractID string) string {
	return fmt.Sprintf("contract:%s", contractID)
}

// Registry is the shared-mutable, single-writer-many-reader store of
// every contract and its legs (§5: "Contract state is single-writer
// (scheduler) with many readers").
type Registry struct {
	mu        sync.RWMutex
	contracts map[string]*Contract
	ledger    *ledger.Ledger
}

// NewRegistry returns an empty contract registry backed by l for the
// escrow lock taken on contract creation.
func NewRegistry(l *ledger.Ledger) *Registry {
	return &Registry{contracts: make(map[string]*Contract), ledger: l}
}

// LegSpec describes one leg to create alongside a new contract.
type LegSpec struct {
	ID          string
	Origin      string
	Destination string
}

// CreateContract registers a new contract with the given legs and locks
// maxPrepaidCost from the initial shipper's available balance (§4.6).
func (r *Registry) CreateContract(id, origin, finalDestination, initialShipper string, maxPrepaidCost decimal.Decimal, legs []LegSpec) (*Contract, error) {
	if err := r.ledger.Lock(initialShipper, maxPrepaidCost); err != nil {
		return nil, fmt.Errorf("lock escrow for contract %s: %w", id, err)
	}

	c := &Contract{
		ID:               id,
		ContractType:     DefaultContractType,
		Origin:           origin,
		FinalDestination: finalDestination,
		InitialShipper:   initialShipper,
		CurrentOwner:     initialShipper,
		Status:           Booked,
		MaxPrepaidCost:   maxPrepaidCost,
		CreationTs:       time.Now(),
	}
	for i, spec := range legs {
		c.Legs = append(c.Legs, &Leg{
			ID:          spec.ID,
			ContractID:  id,
			Seq:         i + 1,
			Origin:      spec.Origin,
			Destination: spec.Destination,
			Status:      PendingAuction,
		})
	}

	r.mu.Lock()
	r.contracts[id] = c
	r.mu.Unlock()

	log.Info().Str("contract", id).Str("shipper", initialShipper).
		Str("locked", maxPrepaidCost.String()).Msg("contract created")
	return c, nil
}

// Get returns the contract by id, or false if unknown.
func (r *Registry) Get(id string) (*Contract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contracts[id]
	return c, ok
}

// Leg returns a specific leg of contractID by legID.
func (r *Registry) Leg(contractID, legID string) (*Leg, bool) {
	c, ok := r.Get(contractID)
	if !ok {
		return nil, false
	}
	for _, l := range c.Legs {
		if l.ID == legID {
			return l, true
		}
	}
	return nil, false
}

// SetCurrentOwner updates a contract's current_owner, called by the
// engine's ownership book side-effect (§4.4).
func (r *Registry) SetCurrentOwner(contractID, owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contracts[contractID]
	if !ok {
		return
	}
	c.CurrentOwner = owner
}

// OpenAuction advances a leg to AUCTION_OPEN and, if this is leg 1,
// advances the contract from BOOKED to AUCTIONING_L1 (or the matching
// AUCTIONING_Lx status for later legs).
func (r *Registry) OpenAuction(contractID, legID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contracts[contractID]
	if !ok {
		return fmt.Errorf("unknown contract %s", contractID)
	}
	leg := legByID(c, legID)
	if leg == nil {
		return fmt.Errorf("unknown leg %s on contract %s", legID, contractID)
	}
	leg.Status = AuctionOpen
	switch leg.Seq {
	case 1:
		c.Status = AuctioningL1
	case 2:
		c.Status = AuctioningL2
	case 3:
		c.Status = AuctioningL3
	}
	return nil
}

// MarkInTransit advances a leg (and its contract) to in-transit once its
// freight auction has matched.
func (r *Registry) MarkInTransit(contractID, legID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contracts[contractID]
	if !ok {
		return fmt.Errorf("unknown contract %s", contractID)
	}
	leg := legByID(c, legID)
	if leg == nil {
		return fmt.Errorf("unknown leg %s on contract %s", legID, contractID)
	}
	leg.Status = InTransit
	switch leg.Seq {
	case 1:
		c.Status = InTransitL1
	case 2:
		c.Status = InTransitL2
	case 3:
		c.Status = InTransitL3
	}
	return nil
}

// MarkDelivered advances a leg to DELIVERED, recording optional IoT
// coordinates and the raw source status string (supplemented from
// original_source's IoTEvent). If this is the final leg, the contract
// advances to DELIVERED_FINAL and the initial shipper's residual escrow
// (locked funds up to the contract's MaxPrepaidCost) is released; locked
// funds beyond that, such as a pending freight hold, stay locked (§4.6).
func (r *Registry) MarkDelivered(contractID, legID, iotStatus string, lat, lon *float64) error {
	r.mu.Lock()
	c, ok := r.contracts[contractID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("unknown contract %s", contractID)
	}
	leg := legByID(c, legID)
	if leg == nil {
		r.mu.Unlock()
		return fmt.Errorf("unknown leg %s on contract %s", legID, contractID)
	}
	leg.Status = Delivered
	leg.LastIoTStatus = iotStatus
	leg.LastLat = lat
	leg.LastLon = lon

	isFinal := leg.Seq == len(c.Legs)
	switch leg.Seq {
	case 1:
		c.Status = DeliveredL1AwaitingL2
	case 2:
		c.Status = DeliveredL2AwaitingL3
	}
	if isFinal {
		c.Status = DeliveredFinal
	}
	shipper := c.InitialShipper
	escrow := c.MaxPrepaidCost
	r.mu.Unlock()

	if isFinal {
		bal := r.ledger.Balance(shipper)
		residual := decimal.Min(bal.Locked, escrow)
		if residual.Sign() > 0 {
			r.ledger.Release(shipper, residual, "contract "+contractID+" delivered final: residual escrow release")
		}
	}
	return nil
}

// MarkSettled advances a leg to SETTLED, called by settlement's
// OnDelivery after it has processed the leg's pending holds, whether or
// not each of them settled without error.
func (r *Registry) MarkSettled(contractID, legID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contracts[contractID]
	if !ok {
		return fmt.Errorf("unknown contract %s", contractID)
	}
	leg := legByID(c, legID)
	if leg == nil {
		return fmt.Errorf("unknown leg %s on contract %s", legID, contractID)
	}
	leg.Status = Settled
	return nil
}

func legByID(c *Contract, legID string) *Leg {
	for _, l := range c.Legs {
		if l.ID == legID {
			return l
		}
	}
	return nil
}

// Reset clears every contract, used by Scheduler.Reset (spec §5, §6).
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts = make(map[string]*Contract)
}

// NewID returns a fresh contract or leg identifier when the caller
// doesn't supply its own (scenarios generally supply human-readable ids
// like "C1"/"L1" directly; this exists for programmatic callers).
func NewID() string {
	return idgen.New()
}
