package alarm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/martvell/tg-alarm-reminder/pkg/logger"
)

const (
	DefaultSnooze            = 10 * time.Minute
	defaultPresentationRetry = 30 * time.Second
)

// Engine is the single scheduling authority for one running session. Every
// mutation holds the engine lock from validation through persistence to the
// schedule change, so "a reminder is being dismissed" can never race "the
// clock just declared it due again". Each mutation wakes the run loop, so a
// wait in progress is always interruptible by a reminder due sooner.
type Engine struct {
	store Store

	mu        sync.Mutex
	clock     *TriggerClock
	disp      *dispatcher
	states    map[uint]State
	reminders map[uint]Reminder // last committed snapshots

	wake chan struct{}
	now  func() time.Time

	defaultSnooze     time.Duration
	presentationRetry time.Duration
}

type Option func(*Engine)

// WithNow injects the clock source. The engine only ever compares "trigger
// instant <= now", so a wall clock that jumps forward (device sleep) yields a
// late firing, never a lost one.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithDefaultSnooze(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.defaultSnooze = d
		}
	}
}

// WithPresentationRetry sets how soon a queued alarm is retried after the
// presenter reported no available surface.
func WithPresentationRetry(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.presentationRetry = d
		}
	}
}

func New(store Store, presenter Presenter, opts ...Option) *Engine {
	e := &Engine{
		store:             store,
		clock:             NewTriggerClock(),
		disp:              newDispatcher(presenter),
		states:            make(map[uint]State),
		reminders:         make(map[uint]Reminder),
		wake:              make(chan struct{}, 1),
		now:               time.Now,
		defaultSnooze:     DefaultSnooze,
		presentationRetry: defaultPresentationRetry,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run loads the active reminders and drives the scheduling loop until ctx is
// done. The loop blocks on a timer armed to the earliest pending trigger (or
// the presentation retry, whichever is sooner) and on the wake channel.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.load(ctx); err != nil {
		return err
	}
	logger.Info("alarm engine started")
	for {
		timerC, stop := e.armWait()
		select {
		case <-ctx.Done():
			stop()
			logger.Info("alarm engine stopped")
			return nil
		case <-timerC:
			e.tick(ctx)
		case <-e.wake:
			stop()
			e.tick(ctx)
		}
	}
}

func (e *Engine) armWait() (<-chan time.Time, func()) {
	e.mu.Lock()
	next, ok := e.clock.Earliest()
	pending := e.disp.pending()
	e.mu.Unlock()

	armed := false
	var wait time.Duration
	if ok {
		wait = next.Sub(e.now())
		if wait < 0 {
			wait = 0
		}
		armed = true
	}
	if pending && (!armed || e.presentationRetry < wait) {
		wait = e.presentationRetry
		armed = true
	}
	if !armed {
		return nil, func() {}
	}
	timer := time.NewTimer(wait)
	return timer.C, func() { timer.Stop() }
}

// load seeds the schedule from the store. Stale effective triggers are kept
// as-is so each such reminder fires exactly once right away; the next future
// occurrence is only computed on dismissal. Missed historical occurrences
// are never replayed.
func (e *Engine) load(ctx context.Context) error {
	reminders, err := e.store.ListActive(ctx, 0)
	if err != nil {
		return fmt.Errorf("load reminders: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	for _, r := range reminders {
		if !r.IsActive {
			continue
		}
		e.reminders[r.ID] = r
		e.states[r.ID] = StateScheduled
		e.clock.Upsert(r.ID, r.EffectiveTrigger(now))
	}
	logger.Info("reminders loaded", "count", len(reminders))
	return nil
}

// tick moves every due reminder to firing and lets the dispatcher present.
func (e *Engine) tick(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	for _, due := range e.clock.Due(now) {
		if e.states[due.ID] == StateFiring {
			// Duplicate due signal; the presentation already exists.
			continue
		}
		if err := transition(e.states, due.ID, StateFiring); err != nil {
			logger.Error("due reminder refused to fire", "reminder_id", due.ID, "error", err)
			continue
		}
		e.disp.enqueue(due.ID, due.At)
		logger.Debug("reminder due", "reminder_id", due.ID, "trigger_at", due.At)
	}
	e.presentLocked(ctx)
}

func (e *Engine) presentLocked(ctx context.Context) {
	e.disp.presentNext(ctx, func(id uint) (Reminder, bool) {
		r, ok := e.reminders[id]
		return r, ok
	})
}

func (e *Engine) notify() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Add validates, persists and schedules a new reminder. The store assigns
// the id. A reminder created already overdue fires once right away.
func (e *Engine) Add(ctx context.Context, r Reminder) (Reminder, error) {
	if err := r.Rule.Validate(); err != nil {
		return Reminder{}, err
	}
	if r.StartDate.IsZero() {
		r.StartDate = r.DueDate
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Create(ctx, &r); err != nil {
		return Reminder{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	e.reminders[r.ID] = r
	if r.IsActive {
		e.states[r.ID] = StateScheduled
		e.clock.Upsert(r.ID, r.EffectiveTrigger(e.now()))
	}
	e.notify()
	logger.Info("reminder added", "reminder_id", r.ID, "user_id", r.UserID, "due", r.DueDate)
	return r, nil
}

// Update replaces a reminder wholesale. The old clock and queue entries are
// removed before the new schedule is inserted, so the id never has two live
// entries; an in-progress presentation for it is torn down.
func (e *Engine) Update(ctx context.Context, r Reminder) error {
	if err := r.Rule.Validate(); err != nil {
		return err
	}
	if r.StartDate.IsZero() {
		r.StartDate = r.DueDate
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.reminders[r.ID]; !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, r.ID)
	}
	if err := e.store.Update(ctx, &r); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	e.clock.Remove(r.ID)
	e.disp.remove(ctx, r.ID)
	e.reminders[r.ID] = r
	if r.IsActive {
		e.states[r.ID] = StateScheduled
		e.clock.Upsert(r.ID, r.EffectiveTrigger(e.now()))
	} else {
		delete(e.states, r.ID)
	}
	e.notify()
	return nil
}

// Remove deletes the reminder everywhere in one logical step: store, clock,
// dispatcher queue and, when it is being presented, the presentation itself.
// Once Remove returns the reminder cannot fire.
func (e *Engine) Remove(ctx context.Context, id uint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.reminders[id]; !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err := e.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	e.clock.Remove(id)
	e.disp.remove(ctx, id)
	delete(e.reminders, id)
	delete(e.states, id)
	e.notify()
	logger.Info("reminder removed", "reminder_id", id)
	return nil
}

// SetActive toggles scheduling for the reminder. Deactivation is synchronous
// cancellation, like Remove but keeping the record. Reactivation re-enters
// scheduling at the current effective trigger when that is still future;
// otherwise a recurring reminder gets a fresh occurrence computed and a
// single-shot one fires once right away.
func (e *Engine) SetActive(ctx context.Context, id uint, active bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.reminders[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if r.IsActive == active {
		return nil
	}

	now := e.now()
	updated := r
	updated.IsActive = active
	trigger := updated.EffectiveTrigger(now)
	if active && !trigger.After(now) && updated.IsRecurring() {
		if next, hasNext := NextOccurrence(&updated, now); hasNext {
			updated.DueDate = next
			updated.SnoozeUntil = nil
			trigger = next
		}
	}
	if err := e.store.Update(ctx, &updated); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	e.reminders[id] = updated
	if active {
		e.states[id] = StateScheduled
		e.clock.Upsert(id, trigger)
	} else {
		e.clock.Remove(id)
		e.disp.remove(ctx, id)
		delete(e.states, id)
	}
	e.notify()
	return nil
}

// Snooze answers the currently firing reminder with a delay. The reminder
// returns to the schedule with SnoozeUntil = now + d and cannot fire again
// before that instant.
func (e *Engine) Snooze(ctx context.Context, id uint, d time.Duration) error {
	if d <= 0 {
		d = e.defaultSnooze
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.reminders[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if e.states[id] != StateFiring {
		return fmt.Errorf("%w: id %d is %s", ErrNotFiring, id, e.states[id])
	}

	until := e.now().Add(d)
	updated := r
	updated.SnoozeUntil = &until
	if err := e.store.Update(ctx, &updated); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	e.reminders[id] = updated
	if err := transition(e.states, id, StateSnoozed); err != nil {
		return err
	}
	e.disp.resolve(id)
	e.clock.Upsert(id, until)
	e.presentLocked(ctx)
	e.notify()
	logger.Info("reminder snoozed", "reminder_id", id, "until", until)
	return nil
}

// Dismiss answers the currently firing reminder. A recurring reminder gets
// its next occurrence as the new due date (computed from the effective
// trigger, but always strictly after the dismissal instant) and SnoozeUntil
// cleared; a single-shot one completes and leaves the schedule for good.
func (e *Engine) Dismiss(ctx context.Context, id uint) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.reminders[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if e.states[id] != StateFiring {
		return fmt.Errorf("%w: id %d is %s", ErrNotFiring, id, e.states[id])
	}

	now := e.now()
	updated := r
	if !updated.IsRecurring() {
		updated.IsActive = false
		updated.SnoozeUntil = nil
		if err := e.store.Update(ctx, &updated); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		e.reminders[id] = updated
		if err := transition(e.states, id, StateCompleted); err != nil {
			return err
		}
		delete(e.states, id)
		e.disp.resolve(id)
		e.clock.Remove(id)
		e.presentLocked(ctx)
		e.notify()
		logger.Info("reminder completed", "reminder_id", id)
		return nil
	}

	ref := updated.EffectiveTrigger(now)
	if ref.Before(now) {
		ref = now
	}
	next, hasNext := NextOccurrence(&updated, ref)
	if !hasNext {
		return fmt.Errorf("%w: recurring reminder %d yielded no occurrence", ErrInvalidRule, id)
	}
	updated.DueDate = next
	updated.SnoozeUntil = nil
	if err := e.store.Update(ctx, &updated); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	e.reminders[id] = updated
	if err := transition(e.states, id, StateScheduled); err != nil {
		return err
	}
	e.disp.resolve(id)
	e.clock.Upsert(id, next)
	e.presentLocked(ctx)
	e.notify()
	logger.Info("reminder rescheduled", "reminder_id", id, "due", next)
	return nil
}

// Snapshot returns the committed copy of a reminder, mainly for surfaces
// that need to render it.
func (e *Engine) Snapshot(id uint) (Reminder, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.reminders[id]
	return r, ok
}
