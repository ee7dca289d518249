// Package ledger implements the double-entry escrow ledger described in
// spec §4.1: per-trader balances split into available and locked
// partitions, mutated only through the operations below.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"freightex/internal/money"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Field selects which partition of an account an operation touches.
type Field int

const (
	Available Field = iota
	Locked
)

func (f Field) String() string {
	if f == Available {
		return "available"
	}
	return "locked"
}

var (
	// ErrInsufficientFunds is returned by lock and debit when the source
	// field cannot cover the requested amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNonPositiveAmount guards against negative amounts reaching the
	// ledger from a caller bug; a zero amount is accepted as a no-op.
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// Balance is a read-only snapshot of an account (spec §4.1 balance()).
type Balance struct {
	Available decimal.Decimal
	Locked    decimal.Decimal
}

type account struct {
	available decimal.Decimal
	locked    decimal.Decimal
}

// Ledger is the shared-mutable store of every trader's account. A single
// mutex serializes all mutations; spec §5 only requires per-trader
// serialization and two-account atomicity for transfer, which a single
// lock trivially provides without the complexity of per-account sharding
// (see DESIGN.md).
type Ledger struct {
	mu       sync.Mutex
	accounts map[string]*account
}

// New returns an empty ledger; accounts are created lazily on first touch.
func New() *Ledger {
	return &Ledger{accounts: make(map[string]*account)}
}

func (l *Ledger) acctLocked(trader string) *account {
	a, ok := l.accounts[trader]
	if !ok {
		a = &account{available: money.Zero, locked: money.Zero}
		l.accounts[trader] = a
	}
	return a
}

// Balance returns a snapshot of trader's account, auto-initializing a
// missing account to zero (spec §4.1).
func (l *Ledger) Balance(trader string) Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.acctLocked(trader)
	return Balance{Available: a.available, Locked: a.locked}
}

// Snapshot returns every account currently known to the ledger, keyed by
// trader id — used by the /balances API handler and the monetary
// conservation test (spec §8).
func (l *Ledger) Snapshot() map[string]Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]Balance, len(l.accounts))
	for trader, a := range l.accounts {
		out[trader] = Balance{Available: a.available, Locked: a.locked}
	}
	return out
}

// Credit increases field by amount.
func (l *Ledger) Credit(trader string, amount decimal.Decimal, field Field) error {
	if amount.Sign() < 0 {
		return ErrNonPositiveAmount
	}
	if amount.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.acctLocked(trader)
	switch field {
	case Available:
		a.available = a.available.Add(amount)
	case Locked:
		a.locked = a.locked.Add(amount)
	}
	log.Info().Str("trader", trader).Str("field", field.String()).
		Str("amount", amount.String()).Msg("ledger credit")
	return nil
}

// Debit decreases field by amount, failing if that would drive the field
// below zero (spec §4.1).
func (l *Ledger) Debit(trader string, amount decimal.Decimal, field Field) error {
	if amount.Sign() < 0 {
		return ErrNonPositiveAmount
	}
	if amount.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.acctLocked(trader)
	var current decimal.Decimal
	switch field {
	case Available:
		current = a.available
	case Locked:
		current = a.locked
	}
	if current.LessThan(amount) {
		return fmt.Errorf("%w: trader %s %s has %s, need %s", ErrInsufficientFunds, trader, field, current, amount)
	}
	switch field {
	case Available:
		a.available = a.available.Sub(amount)
	case Locked:
		a.locked = a.locked.Sub(amount)
	}
	log.Info().Str("trader", trader).Str("field", field.String()).
		Str("amount", amount.String()).Msg("ledger debit")
	return nil
}

// Lock moves amount from available to locked atomically, failing with
// ErrInsufficientFunds if available < amount (spec §4.1).
func (l *Ledger) Lock(trader string, amount decimal.Decimal) error {
	if amount.Sign() < 0 {
		return ErrNonPositiveAmount
	}
	if amount.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.acctLocked(trader)
	if a.available.LessThan(amount) {
		return fmt.Errorf("%w: trader %s available %s, need %s", ErrInsufficientFunds, trader, a.available, amount)
	}
	a.available = a.available.Sub(amount)
	a.locked = a.locked.Add(amount)
	log.Info().Str("trader", trader).Str("amount", amount.String()).Msg("ledger lock")
	return nil
}

// Release moves amount from locked back to available. If amount exceeds
// what is actually locked, only the locked balance is released and the
// shortfall is logged as a soft anomaly rather than an error (spec §4.1).
func (l *Ledger) Release(trader string, amount decimal.Decimal, reason string) {
	if amount.Sign() <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.acctLocked(trader)
	toRelease := amount
	if amount.GreaterThan(a.locked) {
		log.Warn().Str("trader", trader).Str("requested", amount.String()).
			Str("locked", a.locked.String()).Str("reason", reason).
			Msg("release shortfall: releasing only what is locked")
		toRelease = a.locked
	}
	a.locked = a.locked.Sub(toRelease)
	a.available = a.available.Add(toRelease)
	log.Info().Str("trader", trader).Str("amount", toRelease.String()).
		Str("reason", reason).Msg("ledger release")
}

// Transfer composes a debit then credit between two traders; both must
// succeed or neither mutates (spec §4.1).
func (l *Ledger) Transfer(from, to string, amount decimal.Decimal, fromField, toField Field) error {
	if amount.Sign() < 0 {
		return ErrNonPositiveAmount
	}
	if amount.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	fromAcct := l.acctLocked(from)
	var fromCurrent decimal.Decimal
	switch fromField {
	case Available:
		fromCurrent = fromAcct.available
	case Locked:
		fromCurrent = fromAcct.locked
	}
	if fromCurrent.LessThan(amount) {
		return fmt.Errorf("%w: transfer from %s %s has %s, need %s", ErrInsufficientFunds, from, fromField, fromCurrent, amount)
	}

	switch fromField {
	case Available:
		fromAcct.available = fromAcct.available.Sub(amount)
	case Locked:
		fromAcct.locked = fromAcct.locked.Sub(amount)
	}
	toAcct := l.acctLocked(to)
	switch toField {
	case Available:
		toAcct.available = toAcct.available.Add(amount)
	case Locked:
		toAcct.locked = toAcct.locked.Add(amount)
	}
	log.Info().Str("from", from).Str("to", to).Str("amount", amount.String()).Msg("ledger transfer")
	return nil
}

// Fund is an unconditional credit to available, used only by the
// scheduler's funding actions (spec §4.7 / original_source seed.py's
// fund()) — kept distinct from Credit so logs distinguish external
// funding events from settlement payouts.
func (l *Ledger) Fund(trader string, amount decimal.Decimal) error {
	return l.Credit(trader, amount, Available)
}

// Reset clears every account, used by Scheduler.Reset (spec §5, §6).
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts = make(map[string]*account)
}
