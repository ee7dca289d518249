// Package scheduler drives a scripted timeline over a simulated clock
// (spec §4.7), supporting play/pause/resume/reset. Grounded on the
// tomb.Tomb + context cancellation shape of the teacher's
// internal/net/server.go Server.Run, generalized from a single server
// goroutine to a cooperatively pausable/stoppable worker.
package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/tomb.v2"
)

// tickInterval is the granularity at which the run loop checks for pause
// and advances the simulated clock (spec §5: "yield at 100ms granularity
// or finer to remain cancellable").
const tickInterval = 100 * time.Millisecond

var (
	ErrAlreadyRunning = errors.New("already-running")
	ErrNotRunning     = errors.New("not-running")
	ErrNotPaused      = errors.New("not-paused")
	ErrResetFailed    = errors.New("reset-failed")
)

// Action is one scripted timeline step. It takes no arguments: the
// caller's closure carries the live engine it submits orders, emits
// delivery events, etc. against.
type Action func() error

// TimelineEntry pairs a simulated-time target with the action to run
// when the clock reaches it (spec §4.7).
type TimelineEntry struct {
	SimTimeS float64
	Action   Action
}

// Resetter is implemented by every stateful collaborator the scheduler
// must wipe on Reset (books, store, ledger, contract registry, engine
// match logs, settlement holds) — spec §5: "wipes the persistence
// backing the books/ledger/holds".
type Resetter interface {
	Reset()
}

// Scheduler owns the simulated clock and the worker goroutine executing
// a timeline.
type Scheduler struct {
	mu       sync.Mutex
	running  bool
	paused   bool
	simClock time.Duration

	pauseCh chan struct{} // closed while not paused; open while paused, so ticks block on it
	t       *tomb.Tomb

	timeline  []TimelineEntry
	resetters []Resetter
}

// New returns an idle scheduler over timeline, wiping every resetter on
// Reset.
func New(timeline []TimelineEntry, resetters ...Resetter) *Scheduler {
	return &Scheduler{timeline: timeline, resetters: resetters}
}

// State is the externally observable scheduler state (spec §4.7).
type State struct {
	SimClock time.Duration
	Running  bool
	Paused   bool
}

// State returns a snapshot of the scheduler's current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{SimClock: s.simClock, Running: s.running, Paused: s.paused}
}

// Play transitions idle→running or paused→running (spec §6 POST /play).
func (s *Scheduler) Play() error {
	s.mu.Lock()
	if s.running && !s.paused {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	if s.running && s.paused {
		s.paused = false
		close(s.pauseCh)
		s.mu.Unlock()
		log.Info().Msg("scheduler resumed via play")
		return nil
	}
	s.running = true
	s.paused = false
	s.pauseCh = make(chan struct{})
	close(s.pauseCh) // not paused: reads never block
	s.t = &tomb.Tomb{}
	s.mu.Unlock()

	s.t.Go(s.run)
	log.Info().Msg("scheduler started")
	return nil
}

// Pause transitions running,¬paused → paused (spec §6 POST /pause).
func (s *Scheduler) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrNotRunning
	}
	if s.paused {
		return nil
	}
	s.paused = true
	s.pauseCh = make(chan struct{}) // new, open channel: ticks block until Resume
	log.Info().Msg("scheduler paused")
	return nil
}

// Resume transitions running,paused → running (spec §6 POST /resume).
func (s *Scheduler) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrNotRunning
	}
	if !s.paused {
		return ErrNotPaused
	}
	s.paused = false
	close(s.pauseCh)
	log.Info().Msg("scheduler resumed")
	return nil
}

// Reset issues stop, joins the worker within a bounded wait, clears
// in-memory state, wipes every registered Resetter, and readies the
// scheduler for a fresh Play (spec §5, §6 POST /reset).
func (s *Scheduler) Reset() error {
	s.mu.Lock()
	t := s.t
	wasPaused := s.paused
	s.mu.Unlock()

	if t != nil {
		t.Kill(nil)
		if wasPaused {
			// unblock a parked tick so the worker can observe Dying().
			s.mu.Lock()
			if s.pauseCh != nil {
				select {
				case <-s.pauseCh:
				default:
					close(s.pauseCh)
				}
			}
			s.mu.Unlock()
		}
		select {
		case <-waitDone(t):
		case <-time.After(5 * time.Second):
			log.Error().Msg("scheduler worker did not stop within 5s, forcing reset anyway")
		}
	}

	for _, r := range s.resetters {
		r.Reset()
	}

	s.mu.Lock()
	s.running = false
	s.paused = false
	s.simClock = 0
	s.t = nil
	s.mu.Unlock()

	log.Info().Msg("scheduler reset")
	return nil
}

func waitDone(t *tomb.Tomb) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		_ = t.Wait()
		close(done)
	}()
	return done
}

// run is the worker goroutine: it advances the simulated clock at
// tickInterval granularity, firing any timeline entries whose target has
// been reached, until every entry has fired or stop is requested.
func (s *Scheduler) run() error {
	fired := make([]bool, len(s.timeline))
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.t.Dying():
			return nil
		case <-ticker.C:
		}

		s.mu.Lock()
		pauseCh := s.pauseCh
		s.mu.Unlock()
		select {
		case <-pauseCh:
		case <-s.t.Dying():
			return nil
		}
		select {
		case <-s.t.Dying():
			return nil
		default:
		}

		s.mu.Lock()
		s.simClock += tickInterval
		clock := s.simClock.Seconds()
		s.mu.Unlock()

		allFired := true
		for i, entry := range s.timeline {
			if fired[i] {
				continue
			}
			if entry.SimTimeS > clock {
				allFired = false
				continue
			}
			fired[i] = true
			if err := entry.Action(); err != nil {
				log.Error().Err(err).Int("entry", i).Msg("scheduled action failed, terminating scheduler worker")
				s.mu.Lock()
				s.running = false
				s.mu.Unlock()
				return fmt.Errorf("timeline entry %d: %w", i, err)
			}
		}
		if allFired {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			log.Info().Msg("scheduler timeline exhausted")
			return nil
		}
	}
}
