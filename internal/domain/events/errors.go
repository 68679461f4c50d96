package events

import (
	"errors"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrForbidden     = errors.New("not authorized to modify this event")

	// Registration state conflicts.
	ErrAlreadyRegistered      = errors.New("already registered for this event")
	ErrEventFull              = errors.New("event is full")
	ErrRegistrationClosed     = errors.New("registration is closed for this event")
	ErrEventNotOpen           = errors.New("event is not open for registration")
	ErrNotRegistered          = errors.New("not registered for this event")
	ErrDeadlinePassed         = errors.New("cancellation deadline has passed")
	ErrCancellationNotAllowed = errors.New("cancellation is not allowed for this event")
	ErrAlreadyAttended        = errors.New("attendance already recorded")
	ErrInvalidStateForCheckIn = errors.New("user cannot check in with current status")
)

var stateConflicts = []struct {
	err    error
	reason string
}{
	{ErrAlreadyRegistered, "already_registered"},
	{ErrEventFull, "event_full"},
	{ErrRegistrationClosed, "registration_closed"},
	{ErrEventNotOpen, "not_open"},
	{ErrNotRegistered, "not_registered"},
	{ErrDeadlinePassed, "deadline_passed"},
	{ErrCancellationNotAllowed, "cancellation_disallowed"},
	{ErrAlreadyAttended, "already_attended"},
	{ErrInvalidStateForCheckIn, "invalid_checkin_state"},
}

// IsStateConflict reports whether err is a registration transition that the
// event's current state does not allow.
func IsStateConflict(err error) bool {
	return conflictReason(err) != ""
}

// conflictReason returns a short label for a state conflict, or "" when err
// is not one.
func conflictReason(err error) string {
	for _, c := range stateConflicts {
		if errors.Is(err, c.err) {
			return c.reason
		}
	}
	return ""
}
