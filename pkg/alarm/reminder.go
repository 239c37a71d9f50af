package alarm

import (
	"context"
	"time"
)

// Pattern selects the recurrence family of a reminder.
type Pattern string

const (
	PatternNone    Pattern = "none"
	PatternDaily   Pattern = "daily"
	PatternWeekly  Pattern = "weekly"
	PatternMonthly Pattern = "monthly"
	// PatternCustom currently evaluates like weekly with an explicit weekday
	// set; it is the extension point for future rule kinds.
	PatternCustom Pattern = "custom"
)

// Rule is the {pattern, interval, days} tuple governing repeated scheduling.
type Rule struct {
	Pattern  Pattern
	Interval int
	Days     []time.Weekday
}

// Reminder is the unit of scheduling. Title and Message are opaque text; the
// engine never interprets them.
type Reminder struct {
	ID     uint
	UserID int64

	Title   string
	Message string

	// StartDate is the first occurrence and the recurrence anchor:
	// time-of-day, weekday and day-of-month all derive from it. DueDate is
	// only the next scheduled trigger and moves forward on every dismissal.
	StartDate   time.Time
	DueDate     time.Time
	SnoozeUntil *time.Time

	Rule     Rule
	IsActive bool

	SoundEnabled     bool
	SoundTone        string
	VibrationEnabled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsRecurring reports whether the reminder schedules further occurrences
// after it fires.
func (r *Reminder) IsRecurring() bool {
	return r.Rule.Pattern != PatternNone && r.Rule.Pattern != ""
}

// EffectiveTrigger returns the instant the reminder is due: SnoozeUntil when
// set and still in the future at now, otherwise DueDate.
func (r *Reminder) EffectiveTrigger(now time.Time) time.Time {
	if r.SnoozeUntil != nil && r.SnoozeUntil.After(now) {
		return *r.SnoozeUntil
	}
	return r.DueDate
}

// anchor is the reference the recurrence math derives clock values from.
func (r *Reminder) anchor() time.Time {
	if !r.StartDate.IsZero() {
		return r.StartDate
	}
	return r.DueDate
}

// Store is the persistence port. The engine calls Update on every change to
// a persisted field and never persists dispatcher queue state.
type Store interface {
	// ListActive returns the active reminders for the owner; userID 0 means
	// all owners.
	ListActive(ctx context.Context, userID int64) ([]Reminder, error)
	Create(ctx context.Context, r *Reminder) error
	Update(ctx context.Context, r *Reminder) error
	Delete(ctx context.Context, id uint) error
}

// Presenter is the delivery port. Present shows the alarm for the intent's
// reminder; it returns ErrPresentationUnavailable when no surface exists so
// the dispatcher can retry. Clear tears down the presentation for a reminder
// that was cancelled while being shown.
type Presenter interface {
	Present(ctx context.Context, intent Intent) error
	Clear(ctx context.Context, reminderID uint) error
}
