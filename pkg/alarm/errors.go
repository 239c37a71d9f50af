package alarm

import "errors"

var (
	// ErrInvalidRule marks a malformed recurrence rule. It is returned to the
	// caller creating or updating a reminder and never coerced away.
	ErrInvalidRule = errors.New("invalid recurrence rule")

	// ErrPersistence marks a store update that was rejected. The in-memory
	// schedule keeps the previous committed state when this is returned.
	ErrPersistence = errors.New("reminder store rejected the change")

	// ErrPresentationUnavailable is returned by a Presenter that has no
	// surface to show an alarm on. The dispatcher keeps the reminder queued
	// and retries instead of dropping it.
	ErrPresentationUnavailable = errors.New("no surface available to present alarm")

	ErrNotFound  = errors.New("reminder not found")
	ErrNotFiring = errors.New("reminder is not firing")
)
