package alarm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/martvell/tg-alarm-reminder/pkg/logger"
)

// Intent is the dispatcher's request to the presentation layer: show, sound
// and vibrate for one reminder. The presentation layer owns the actual
// rendering; the dispatcher never touches platform APIs.
type Intent struct {
	ID        string
	Reminder  Reminder
	SoundTone string // empty means no sound
	Vibrate   bool
}

func newIntent(r Reminder) Intent {
	tone := ""
	if r.SoundEnabled {
		tone = r.SoundTone
	}
	return Intent{
		ID:        uuid.NewString(),
		Reminder:  r,
		SoundTone: tone,
		Vibrate:   r.VibrationEnabled,
	}
}

type queuedAlarm struct {
	id uint
	at time.Time
}

// dispatcher mediates between the clock's due-set and the one-alarm-at-a-time
// presentation constraint. Due reminders wait in a queue ordered by
// (trigger instant, id); the head is presented and the next one goes up as
// soon as the current one resolves.
type dispatcher struct {
	presenter Presenter
	queue     []queuedAlarm
	active    uint
	hasActive bool
}

func newDispatcher(p Presenter) *dispatcher {
	return &dispatcher{presenter: p}
}

// enqueue inserts the reminder in (instant, id) order. An id already queued
// or being presented is ignored so duplicate due signals cannot produce a
// second concurrent presentation.
func (d *dispatcher) enqueue(id uint, at time.Time) {
	if d.hasActive && d.active == id {
		return
	}
	pos := len(d.queue)
	for i, q := range d.queue {
		if q.id == id {
			return
		}
		if at.Before(q.at) || (at.Equal(q.at) && id < q.id) {
			if i < pos {
				pos = i
			}
		}
	}
	d.queue = append(d.queue, queuedAlarm{})
	copy(d.queue[pos+1:], d.queue[pos:])
	d.queue[pos] = queuedAlarm{id: id, at: at}
}

// presentNext shows the queue head if nothing is on screen. lookup resolves
// a queued id to its current snapshot; ids that vanished are skipped. On
// ErrPresentationUnavailable the head stays queued for a later retry.
func (d *dispatcher) presentNext(ctx context.Context, lookup func(uint) (Reminder, bool)) {
	for !d.hasActive && len(d.queue) > 0 {
		head := d.queue[0]
		r, ok := lookup(head.id)
		if !ok {
			d.queue = d.queue[1:]
			continue
		}
		intent := newIntent(r)
		if err := d.presenter.Present(ctx, intent); err != nil {
			logger.Error("alarm presentation failed, keeping queued",
				"reminder_id", head.id, "intent_id", intent.ID, "error", err)
			return
		}
		d.queue = d.queue[1:]
		d.active = head.id
		d.hasActive = true
		logger.Debug("alarm presented", "reminder_id", head.id, "intent_id", intent.ID)
	}
}

// resolve marks the reminder as answered (snoozed or dismissed). Its queue
// entry, if any, is dropped along with the active slot; an answered reminder
// must never surface again until its next trigger, even when it was still
// waiting behind another presentation.
func (d *dispatcher) resolve(id uint) {
	for i, q := range d.queue {
		if q.id == id {
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			break
		}
	}
	if d.hasActive && d.active == id {
		d.hasActive = false
	}
}

// remove drops the reminder from the queue and, when it is the one being
// presented, tears the presentation down so no orphaned alarm stays up.
func (d *dispatcher) remove(ctx context.Context, id uint) {
	wasActive := d.hasActive && d.active == id
	d.resolve(id)
	if wasActive {
		if err := d.presenter.Clear(ctx, id); err != nil {
			logger.Error("failed to clear presentation for removed reminder",
				"reminder_id", id, "error", err)
		}
	}
}

func (d *dispatcher) presenting(id uint) bool {
	return d.hasActive && d.active == id
}

// pending reports whether something is waiting for a surface.
func (d *dispatcher) pending() bool {
	return !d.hasActive && len(d.queue) > 0
}
