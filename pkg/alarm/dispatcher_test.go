package alarm

import (
	"context"
	"testing"
	"time"
)

type fakePresenter struct {
	presented []Intent
	cleared   []uint
	failWith  error
}

func (p *fakePresenter) Present(ctx context.Context, intent Intent) error {
	if p.failWith != nil {
		return p.failWith
	}
	p.presented = append(p.presented, intent)
	return nil
}

func (p *fakePresenter) Clear(ctx context.Context, reminderID uint) error {
	p.cleared = append(p.cleared, reminderID)
	return nil
}

func lookupFrom(reminders map[uint]Reminder) func(uint) (Reminder, bool) {
	return func(id uint) (Reminder, bool) {
		r, ok := reminders[id]
		return r, ok
	}
}

func TestDispatcherPresentsOneAtATime(t *testing.T) {
	p := &fakePresenter{}
	d := newDispatcher(p)
	base := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	reminders := map[uint]Reminder{
		1: {ID: 1, Title: "first"},
		2: {ID: 2, Title: "second"},
	}

	d.enqueue(1, base)
	d.enqueue(2, base.Add(time.Minute))
	d.presentNext(context.Background(), lookupFrom(reminders))

	if len(p.presented) != 1 || p.presented[0].Reminder.ID != 1 {
		t.Fatalf("presented = %v, want only reminder 1", p.presented)
	}
	if !d.presenting(1) {
		t.Fatal("dispatcher does not report reminder 1 as presented")
	}

	// Second one comes up only after the first resolves.
	d.presentNext(context.Background(), lookupFrom(reminders))
	if len(p.presented) != 1 {
		t.Fatalf("second presentation started while first active: %v", p.presented)
	}
	d.resolve(1)
	d.presentNext(context.Background(), lookupFrom(reminders))
	if len(p.presented) != 2 || p.presented[1].Reminder.ID != 2 {
		t.Fatalf("presented = %v, want reminder 2 next", p.presented)
	}
}

func TestDispatcherTieBreaksOnID(t *testing.T) {
	p := &fakePresenter{}
	d := newDispatcher(p)
	at := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	reminders := map[uint]Reminder{3: {ID: 3}, 8: {ID: 8}}

	// Enqueued in the wrong order on purpose.
	d.enqueue(8, at)
	d.enqueue(3, at)

	d.presentNext(context.Background(), lookupFrom(reminders))
	if len(p.presented) != 1 || p.presented[0].Reminder.ID != 3 {
		t.Fatalf("presented %v first, want lower id 3", p.presented)
	}
}

func TestDispatcherIgnoresDuplicateEnqueue(t *testing.T) {
	p := &fakePresenter{}
	d := newDispatcher(p)
	at := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	reminders := map[uint]Reminder{1: {ID: 1}}

	d.enqueue(1, at)
	d.enqueue(1, at.Add(time.Second))
	d.presentNext(context.Background(), lookupFrom(reminders))
	// A duplicate signal while presented must not queue a second showing.
	d.enqueue(1, at.Add(time.Minute))

	d.resolve(1)
	d.presentNext(context.Background(), lookupFrom(reminders))
	if len(p.presented) != 1 {
		t.Fatalf("duplicate enqueue produced %d presentations", len(p.presented))
	}
}

func TestDispatcherKeepsQueuedWhenUnavailable(t *testing.T) {
	p := &fakePresenter{failWith: ErrPresentationUnavailable}
	d := newDispatcher(p)
	at := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	reminders := map[uint]Reminder{1: {ID: 1}}

	d.enqueue(1, at)
	d.presentNext(context.Background(), lookupFrom(reminders))
	if len(p.presented) != 0 {
		t.Fatalf("presentation succeeded despite unavailable surface")
	}
	if !d.pending() {
		t.Fatal("reminder was dropped instead of staying queued")
	}

	p.failWith = nil
	d.presentNext(context.Background(), lookupFrom(reminders))
	if len(p.presented) != 1 || p.presented[0].Reminder.ID != 1 {
		t.Fatalf("retry did not present the queued reminder: %v", p.presented)
	}
}

func TestDispatcherResolveDropsQueuedEntry(t *testing.T) {
	p := &fakePresenter{}
	d := newDispatcher(p)
	at := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	reminders := map[uint]Reminder{1: {ID: 1}, 2: {ID: 2}}

	d.enqueue(1, at)
	d.enqueue(2, at.Add(time.Second))
	d.presentNext(context.Background(), lookupFrom(reminders))

	// The user answers reminder 2 from an older message while 1 holds the
	// surface; once 1 resolves, 2 must not come up.
	d.resolve(2)
	d.resolve(1)
	d.presentNext(context.Background(), lookupFrom(reminders))
	if len(p.presented) != 1 {
		t.Fatalf("presented = %v, resolved reminder reached the surface", p.presented)
	}
	if d.pending() {
		t.Fatal("resolved reminder still queued")
	}
	if len(p.cleared) != 0 {
		t.Fatalf("cleared = %v, resolve must leave the message to the caller", p.cleared)
	}

	// Its next trigger schedules normally again.
	d.enqueue(2, at.Add(time.Minute))
	d.presentNext(context.Background(), lookupFrom(reminders))
	if len(p.presented) != 2 || p.presented[1].Reminder.ID != 2 {
		t.Fatalf("presented = %v, want reminder 2 on its next trigger", p.presented)
	}
}

func TestDispatcherRemoveClearsActivePresentation(t *testing.T) {
	p := &fakePresenter{}
	d := newDispatcher(p)
	at := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	reminders := map[uint]Reminder{1: {ID: 1}, 2: {ID: 2}}

	d.enqueue(1, at)
	d.enqueue(2, at.Add(time.Second))
	d.presentNext(context.Background(), lookupFrom(reminders))

	d.remove(context.Background(), 1)
	if len(p.cleared) != 1 || p.cleared[0] != 1 {
		t.Fatalf("cleared = %v, want the presented reminder torn down", p.cleared)
	}
	if d.presenting(1) {
		t.Fatal("removed reminder still reported as presented")
	}

	// Removing a merely queued reminder must not touch the presentation.
	d.remove(context.Background(), 2)
	if len(p.cleared) != 1 {
		t.Fatalf("cleared = %v, queued removal should not clear", p.cleared)
	}
	d.presentNext(context.Background(), lookupFrom(reminders))
	if len(p.presented) != 1 {
		t.Fatalf("removed reminders were presented anyway: %v", p.presented)
	}
}

func TestDispatcherSkipsVanishedReminder(t *testing.T) {
	p := &fakePresenter{}
	d := newDispatcher(p)
	at := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	reminders := map[uint]Reminder{2: {ID: 2}}

	d.enqueue(1, at) // no snapshot for this id anymore
	d.enqueue(2, at.Add(time.Second))
	d.presentNext(context.Background(), lookupFrom(reminders))

	if len(p.presented) != 1 || p.presented[0].Reminder.ID != 2 {
		t.Fatalf("presented = %v, want only the live reminder", p.presented)
	}
}

func TestIntentCarriesDeliveryPreferences(t *testing.T) {
	loud := Reminder{ID: 1, SoundEnabled: true, SoundTone: "chime", VibrationEnabled: true}
	intent := newIntent(loud)
	if intent.SoundTone != "chime" || !intent.Vibrate {
		t.Fatalf("intent = %+v, want sound and vibration", intent)
	}
	if intent.ID == "" {
		t.Fatal("intent has no id")
	}

	silent := Reminder{ID: 2, SoundEnabled: false, SoundTone: "chime"}
	intent = newIntent(silent)
	if intent.SoundTone != "" {
		t.Fatalf("sound disabled but intent carries tone %q", intent.SoundTone)
	}
}
