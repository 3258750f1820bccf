package domain

import (
	"time"
)

type SessionID string

func (id SessionID) String() string {
	return string(id)
}

// MaxDurationMinutes caps a session at one year, far below the point where
// the expiry would overflow time.Duration.
const MaxDurationMinutes = 525600

type SessionState string

const (
	Open            SessionState = "OPEN"
	ExpiredPending  SessionState = "EXPIRED_PENDING"
	ExpiredNotified SessionState = "EXPIRED_NOTIFIED"
)

// Session is a time-boxed collection of contacts.
// ExpiresAt is derived once at creation and never recomputed.
type Session struct {
	ID              SessionID
	Name            string
	DurationMinutes int
	CreatedAt       time.Time
	ExpiresAt       time.Time
	Contacts        []Contact
	Notified        bool
	NotifiedAt      time.Time
}

// NewSession expects a duration already bounded by MaxDurationMinutes.
func NewSession(id SessionID, name string, durationMinutes int, now time.Time) Session {
	now = now.UTC()
	return Session{
		ID:              id,
		Name:            name,
		DurationMinutes: durationMinutes,
		CreatedAt:       now,
		ExpiresAt:       now.Add(time.Duration(durationMinutes) * time.Minute),
	}
}

// IsExpired is the single expiry predicate of the system.
// A session is still open at exactly ExpiresAt.
func IsExpired(s Session, now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IsDue reports whether the sweeper must deliver the session.
func IsDue(s Session, now time.Time) bool {
	return IsExpired(s, now) && len(s.Contacts) > 0 && !s.Notified
}

func (s Session) State(now time.Time) SessionState {
	switch {
	case !IsExpired(s, now):
		return Open
	case s.Notified:
		return ExpiredNotified
	default:
		return ExpiredPending
	}
}

// CanAppend is evaluated on fresh state right before a contact is stored.
func (s Session) CanAppend(now time.Time) bool {
	return !IsExpired(s, now) && !s.Notified
}

func (s *Session) AppendContact(contact Contact) {
	s.Contacts = append(s.Contacts, contact)
}
