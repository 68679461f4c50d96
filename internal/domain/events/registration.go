package events

import "time"

// AvailableSpots is the remaining capacity, derived from records holding a spot.
func (e *Event) AvailableSpots() int {
	free := e.Capacity - e.FilledSpots()
	if free < 0 {
		return 0
	}
	return free
}

// FindAttendee returns the index of userID's record, or -1.
func (e *Event) FindAttendee(userID string) int {
	for i := range e.Attendees {
		if e.Attendees[i].UserID == userID {
			return i
		}
	}
	return -1
}

// Register appends a record for userID. The record is registered when a spot
// is free before it is appended, otherwise waitlisted. A leftover cancelled
// record for the same user is replaced.
func (e *Event) Register(userID string, now time.Time) (Attendee, error) {
	if e.Status == StatusCancelled || e.Status == StatusCompleted {
		return Attendee{}, ErrEventNotOpen
	}
	if !e.Settings.RegistrationOpen {
		return Attendee{}, ErrRegistrationClosed
	}

	idx := e.FindAttendee(userID)
	if idx >= 0 && e.Attendees[idx].Status != AttendeeCancelled {
		return Attendee{}, ErrAlreadyRegistered
	}

	spots := e.AvailableSpots()
	if spots <= 0 && !e.Settings.AllowWaitlist {
		return Attendee{}, ErrEventFull
	}

	if idx >= 0 {
		e.removeAt(idx)
	}

	record := Attendee{
		UserID:       userID,
		RegisteredAt: now,
		Status:       AttendeeWaitlisted,
	}
	if spots > 0 {
		record.Status = AttendeeRegistered
	}
	e.Attendees = append(e.Attendees, record)
	return record, nil
}

// Unregister deletes userID's record and then fills freed spots from the
// waitlist in registration order. It returns the removed record and any
// records that were promoted.
func (e *Event) Unregister(userID string, now time.Time) (Attendee, []Attendee, error) {
	idx := e.FindAttendee(userID)
	if idx < 0 || e.Attendees[idx].Status == AttendeeCancelled {
		return Attendee{}, nil, ErrNotRegistered
	}
	if d := e.Settings.CancellationDeadline; d != nil && now.After(*d) {
		return Attendee{}, nil, ErrDeadlinePassed
	}
	if !e.Settings.AllowCancellation {
		return Attendee{}, nil, ErrCancellationNotAllowed
	}
	if e.Attendees[idx].Status == AttendeeAttended {
		return Attendee{}, nil, ErrAlreadyAttended
	}

	removed := e.Attendees[idx]
	e.removeAt(idx)
	return removed, e.FillWaitlist(), nil
}

// CheckIn marks a registered attendee as attended.
func (e *Event) CheckIn(userID string, now time.Time) (Attendee, error) {
	idx := e.FindAttendee(userID)
	if idx < 0 {
		return Attendee{}, ErrNotRegistered
	}
	if e.Attendees[idx].Status != AttendeeRegistered {
		return Attendee{}, ErrInvalidStateForCheckIn
	}

	at := now
	e.Attendees[idx].Status = AttendeeAttended
	e.Attendees[idx].CheckInTime = &at
	return e.Attendees[idx], nil
}

// FillWaitlist promotes waitlisted records, earliest first, while spots are
// available. Every spot that is free gets filled, so a capacity increase or
// several freed spots promote several entries in one call.
func (e *Event) FillWaitlist() []Attendee {
	var promoted []Attendee
	spots := e.AvailableSpots()
	for i := range e.Attendees {
		if spots <= 0 {
			break
		}
		if e.Attendees[i].Status != AttendeeWaitlisted {
			continue
		}
		e.Attendees[i].Status = AttendeeRegistered
		promoted = append(promoted, e.Attendees[i])
		spots--
	}
	return promoted
}

func (e *Event) removeAt(idx int) {
	e.Attendees = append(e.Attendees[:idx:idx], e.Attendees[idx+1:]...)
}
