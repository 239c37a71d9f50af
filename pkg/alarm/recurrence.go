package alarm

import (
	"fmt"
	"math"
	"time"
)

// Validate checks the rule tuple. A zero-value rule (no pattern) is a valid
// single-shot reminder.
func (r Rule) Validate() error {
	switch r.Pattern {
	case PatternNone, "":
		return nil
	case PatternDaily, PatternWeekly, PatternMonthly, PatternCustom:
	default:
		return fmt.Errorf("%w: unknown pattern %q", ErrInvalidRule, r.Pattern)
	}
	if r.Interval < 1 {
		return fmt.Errorf("%w: interval %d, want >= 1", ErrInvalidRule, r.Interval)
	}
	for _, d := range r.Days {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidRule, int(d))
		}
	}
	if r.Pattern == PatternCustom && len(r.Days) == 0 {
		return fmt.Errorf("%w: custom pattern needs at least one weekday", ErrInvalidRule)
	}
	return nil
}

// NextOccurrence computes the next occurrence of the reminder strictly after
// ref. The second return is false when no further occurrence exists
// (single-shot reminders). The result is never at or before ref: when the
// naive computation lands in the past the candidate advances by whole
// interval units until it is strictly future.
func NextOccurrence(r *Reminder, ref time.Time) (time.Time, bool) {
	if !r.IsRecurring() {
		return time.Time{}, false
	}
	interval := r.Rule.Interval
	if interval < 1 {
		interval = 1
	}
	anchor := r.anchor()

	switch r.Rule.Pattern {
	case PatternDaily:
		return nextDaily(anchor, ref, interval), true
	case PatternWeekly, PatternCustom:
		if len(r.Rule.Days) > 0 {
			return nextOnWeekdays(anchor, ref, interval, r.Rule.Days)
		}
		return nextWeekly(anchor, ref, interval), true
	case PatternMonthly:
		return nextMonthly(anchor, ref, interval), true
	}
	return time.Time{}, false
}

// atClock places the anchor's time-of-day on the given calendar day.
func atClock(day, anchor time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(),
		anchor.Hour(), anchor.Minute(), anchor.Second(), 0, day.Location())
}

func nextDaily(anchor, ref time.Time, interval int) time.Time {
	c := atClock(ref, anchor)
	for !c.After(ref) {
		c = c.AddDate(0, 0, interval)
	}
	return c
}

func nextWeekly(anchor, ref time.Time, interval int) time.Time {
	// Same weekday as the anchor: start from that weekday in the seven days
	// ending at ref, then step whole interval weeks.
	back := (int(ref.Weekday()) - int(anchor.Weekday()) + 7) % 7
	c := atClock(ref.AddDate(0, 0, -back), anchor)
	for !c.After(ref) {
		c = c.AddDate(0, 0, 7*interval)
	}
	return c
}

func nextOnWeekdays(anchor, ref time.Time, interval int, days []time.Weekday) (time.Time, bool) {
	marked := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		marked[d] = true
	}
	if len(marked) == 0 {
		return time.Time{}, false
	}

	// Scan forward day by day. With interval > 1 only weeks aligned to the
	// anchor's week cycle carry occurrences, so the scan is bounded by one
	// full cycle plus a week.
	limit := 7*interval + 7
	for d := 0; d <= limit; d++ {
		c := atClock(ref.AddDate(0, 0, d), anchor)
		if !c.After(ref) {
			continue
		}
		if !marked[c.Weekday()] {
			continue
		}
		if interval > 1 && !inActiveWeek(anchor, c, interval) {
			continue
		}
		return c, true
	}
	return time.Time{}, false
}

// inActiveWeek reports whether t falls in a week that is a whole number of
// interval cycles away from the anchor's week. Weeks roll on Monday.
func inActiveWeek(anchor, t time.Time, interval int) bool {
	days := int(math.Round(startOfWeek(t).Sub(startOfWeek(anchor)).Hours() / 24))
	weeks := days / 7
	if weeks < 0 {
		weeks = -weeks
	}
	return weeks%interval == 0
}

func startOfWeek(t time.Time) time.Time {
	back := (int(t.Weekday()) + 6) % 7
	d := t.AddDate(0, 0, -back)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, t.Location())
}

func nextMonthly(anchor, ref time.Time, interval int) time.Time {
	day := anchor.Day()
	year, month := ref.Year(), int(ref.Month())
	c := monthlyAt(year, month, day, anchor, ref.Location())
	for !c.After(ref) {
		month += interval
		year += (month - 1) / 12
		month = (month-1)%12 + 1
		c = monthlyAt(year, month, day, anchor, ref.Location())
	}
	return c
}

// monthlyAt clamps the anchored day-of-month to the last day of a shorter
// target month instead of rolling into the next month. The anchor keeps its
// original day, so later months with enough days return to it.
func monthlyAt(year, month, day int, anchor time.Time, loc *time.Location) time.Time {
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, time.Month(month), day,
		anchor.Hour(), anchor.Minute(), anchor.Second(), 0, loc)
}

func daysInMonth(year, month int) int {
	// Day zero of the following month.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
