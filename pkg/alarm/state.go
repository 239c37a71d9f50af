package alarm

import "fmt"

// State is the per-reminder lifecycle position within the running session.
// Snoozed is a sub-label of scheduled: a snoozed reminder sits in the clock
// with SnoozeUntil as its trigger.
type State string

const (
	StateScheduled State = "scheduled"
	StateFiring    State = "firing"
	StateSnoozed   State = "snoozed"
	// StateCompleted is terminal and only reachable for single-shot
	// reminders after their one firing.
	StateCompleted State = "completed"
)

var ErrInvalidTransition = fmt.Errorf("invalid alarm state transition")

var transitions = map[State][]State{
	StateScheduled: {StateFiring},
	StateSnoozed:   {StateFiring},
	// firing -> firing is the re-entrant no-op for duplicate due signals.
	StateFiring:    {StateFiring, StateSnoozed, StateScheduled, StateCompleted},
	StateCompleted: {},
}

func (s State) canTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// transition validates and applies a lifecycle step for the reminder id in
// the session map.
func transition(states map[uint]State, id uint, to State) error {
	from, ok := states[id]
	if !ok {
		return fmt.Errorf("%w: reminder %d has no session state", ErrInvalidTransition, id)
	}
	if !from.canTransition(to) {
		return fmt.Errorf("%w: reminder %d cannot go %s -> %s", ErrInvalidTransition, id, from, to)
	}
	states[id] = to
	return nil
}
