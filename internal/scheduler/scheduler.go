// Package scheduler owns the per-booking timers and the attempt pipeline.
//
// Every pending booking has at most one armed timer, keyed by booking id. A
// timer firing runs one attempt: re-read the booking, bail if it is no longer
// pending, drive the portal collaborator, persist the terminal outcome.
// Nothing about the timers themselves is persisted; ResumeAll re-derives the
// whole set from the store after a restart.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/example/slot-scheduler/internal/booking"
)

// Store is the slice of the Request Store the scheduler needs.
type Store interface {
	Get(ctx context.Context, id string) (booking.Booking, error)
	ListPending(ctx context.Context) ([]booking.Booking, error)
	Resolve(ctx context.Context, id string, st booking.Status) (bool, error)
}

// Attempter is the portal automation collaborator: one call, one booking
// attempt, nil error meaning the slot was claimed. Calls can take tens of
// seconds and fail for any number of portal-side reasons; the scheduler only
// cares about the boolean outcome.
type Attempter interface {
	Attempt(ctx context.Context, b booking.Booking) error
}

type Config struct {
	Store     Store
	Attempter Attempter
	Window    booking.Window
	Location  *time.Location
	Logger    *slog.Logger

	// AttemptTimeout bounds one collaborator call. Zero means 5 minutes.
	AttemptTimeout time.Duration

	// Now is the clock, injectable for tests. Nil means time.Now.
	Now func() time.Time
}

type Scheduler struct {
	store          Store
	attempter      Attempter
	window         booking.Window
	loc            *time.Location
	log            *slog.Logger
	attemptTimeout time.Duration
	now            func() time.Time

	// One browser-equivalent portal session at a time. Timers for other
	// bookings keep firing; their attempts queue here.
	sem *semaphore.Weighted

	mu     sync.Mutex
	timers map[string]*time.Timer

	wg sync.WaitGroup
}

func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 5 * time.Minute
	}
	if cfg.Window == (booking.Window{}) {
		cfg.Window = booking.DefaultWindow()
	}
	return &Scheduler{
		store:          cfg.Store,
		attempter:      cfg.Attempter,
		window:         cfg.Window,
		loc:            cfg.Location,
		log:            cfg.Logger,
		attemptTimeout: cfg.AttemptTimeout,
		now:            cfg.Now,
		sem:            semaphore.NewWeighted(1),
		timers:         make(map[string]*time.Timer),
	}
}

// Schedule arms a timer for a pending booking. Non-pending bookings are a
// no-op. Immediate bookings fire as soon as possible; otherwise the trigger
// is the opening instant, firing right away if the window is already open
// and still inside the grace period. A window missed past the grace period
// is logged and left un-armed: it will not fire without user intervention.
func (s *Scheduler) Schedule(b booking.Booking) {
	if b.Status != booking.StatusPending {
		return
	}
	slot, err := b.SlotAt(s.loc)
	if err != nil {
		s.log.Error("schedule: bad slot", "booking", b.ID, "err", err)
		return
	}

	now := s.now()
	if !now.Before(slot) {
		s.log.Warn("schedule: slot already passed, not arming", "booking", b.ID, "slot", slot)
		return
	}

	var delay time.Duration
	if !b.Immediate {
		trigger := s.window.OpensAt(slot)
		switch {
		case trigger.After(now):
			delay = trigger.Sub(now)
		case now.Sub(trigger) <= s.window.Grace:
			delay = 0
		default:
			s.log.Warn("schedule: opening window missed, not arming",
				"booking", b.ID, "opened_at", trigger, "grace", s.window.Grace)
			return
		}
	}

	s.mu.Lock()
	if old, ok := s.timers[b.ID]; ok {
		old.Stop()
	}
	id := b.ID
	s.timers[id] = time.AfterFunc(delay, func() { s.fire(id) })
	s.mu.Unlock()

	s.log.Info("schedule: timer armed", "booking", b.ID, "facility", b.Facility,
		"slot", slot, "fires_in", delay, "immediate", b.Immediate)
}

// Cancel stops the booking's timer if one is armed. Idempotent; it does not
// interrupt an attempt already in flight, which runs to completion and
// persists its outcome.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
		s.log.Info("schedule: timer cancelled", "booking", id)
	}
}

// Reschedule is cancel-then-schedule, used after a user edits a pending
// booking's slot.
func (s *Scheduler) Reschedule(b booking.Booking) {
	s.Cancel(b.ID)
	s.Schedule(b)
}

// ResumeAll re-arms a timer for every pending booking in the store. Called
// once at process start, before the web layer begins accepting scheduling
// changes.
func (s *Scheduler) ResumeAll(ctx context.Context) error {
	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return err
	}
	for _, b := range pending {
		s.Schedule(b)
	}
	s.log.Info("schedule: resumed pending bookings", "pending", len(pending), "armed", len(s.Armed()))
	return nil
}

// Armed returns the booking ids that currently hold a timer.
func (s *Scheduler) Armed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.timers))
	for id := range s.timers {
		out = append(out, id)
	}
	return out
}

// Shutdown stops every armed timer and waits for in-flight attempts to
// finish persisting their outcomes.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Wait blocks until all in-flight attempts are done. Test hook.
func (s *Scheduler) Wait() { s.wg.Wait() }

// RunNow drives the attempt pipeline for one booking synchronously, without
// arming a timer. Used by the book-now command; the usual pending and
// attempt-due guards still apply.
func (s *Scheduler) RunNow(ctx context.Context, id string) {
	s.Cancel(id)
	s.runAttempt(ctx, id)
}

func (s *Scheduler) fire(id string) {
	s.wg.Add(1)
	defer s.wg.Done()

	// The timer has fired; drop the handle so Cancel stays idempotent and
	// the map cannot grow without bound.
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("attempt: panic contained", "booking", id, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.attemptTimeout)
	defer cancel()
	s.runAttempt(ctx, id)
}

// runAttempt is the attempt pipeline: one state transition from pending to
// confirmed or failed. The store is re-read so a stale in-memory copy can
// never drive an attempt, and the conditional Resolve makes the transition
// stick at most once.
func (s *Scheduler) runAttempt(ctx context.Context, id string) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.log.Error("attempt: gave up waiting for portal session", "booking", id, "err", err)
		return
	}
	defer s.sem.Release(1)

	// Read under the session slot: a concurrent fire for the same id queues
	// behind us and then observes whatever status we persist.
	b, err := s.store.Get(ctx, id)
	if err != nil {
		s.log.Error("attempt: cannot read booking, skipping", "booking", id, "err", err)
		return
	}
	if b.Status != booking.StatusPending {
		s.log.Info("attempt: already resolved, skipping", "booking", id, "status", b.Status)
		return
	}
	if !s.window.AttemptDue(b, s.now(), s.loc) {
		s.log.Warn("attempt: no longer due, skipping", "booking", id)
		return
	}

	attemptErr := s.attempter.Attempt(ctx, b)

	outcome := booking.StatusConfirmed
	if attemptErr != nil {
		outcome = booking.StatusFailed
		s.log.Warn("attempt: portal booking failed", "booking", id, "err", attemptErr)
	}

	applied, err := s.store.Resolve(ctx, id, outcome)
	if err != nil {
		s.log.Error("attempt: persisting outcome failed", "booking", id, "outcome", outcome, "err", err)
		return
	}
	if !applied {
		s.log.Info("attempt: outcome raced with another resolution", "booking", id)
		return
	}
	s.log.Info("attempt: resolved", "booking", id, "facility", b.Facility,
		"date", b.Date, "time", b.Time, "outcome", outcome)
}
