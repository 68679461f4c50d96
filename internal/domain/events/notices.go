package events

import "time"

// NoticeKind identifies a registration notification queued in the outbox.
type NoticeKind string

const (
	NoticeRegistered NoticeKind = "registration.confirmed"
	NoticeWaitlisted NoticeKind = "registration.waitlisted"
	NoticePromoted   NoticeKind = "registration.promoted"
	NoticeCancelled  NoticeKind = "registration.cancelled"
)

// Notice is written to the outbox in the same transaction as the attendee
// change it describes, and delivered later by the dispatcher.
type Notice struct {
	Kind       NoticeKind `json:"kind"`
	EventID    string     `json:"eventId"`
	EventTitle string     `json:"eventTitle"`
	EventStart time.Time  `json:"eventStart"`
	UserID     string     `json:"userId"`
}

func newNotice(kind NoticeKind, e *Event, userID string) Notice {
	return Notice{
		Kind:       kind,
		EventID:    e.ID,
		EventTitle: e.Title,
		EventStart: e.DateTime,
		UserID:     userID,
	}
}

func noticeForStatus(e *Event, a Attendee) Notice {
	if a.Status == AttendeeWaitlisted {
		return newNotice(NoticeWaitlisted, e, a.UserID)
	}
	return newNotice(NoticeRegistered, e, a.UserID)
}

func promotionNotices(e *Event, promoted []Attendee) []Notice {
	notices := make([]Notice, 0, len(promoted))
	for _, a := range promoted {
		notices = append(notices, newNotice(NoticePromoted, e, a.UserID))
	}
	return notices
}
