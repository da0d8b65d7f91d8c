package models

import (
	"time"

	"github.com/lib/pq"
)

// NotificationMethod is a delivery channel a user can opt into.
type NotificationMethod string

const (
	MethodEmail NotificationMethod = "email"
	MethodPush  NotificationMethod = "push"
)

// NotificationTiming is a reminder lead time before a call starts.
type NotificationTiming string

const (
	Timing1Day  NotificationTiming = "1day"
	Timing1Hour NotificationTiming = "1hour"
	Timing30Min NotificationTiming = "30min"
	Timing10Min NotificationTiming = "10min"
)

// LeadTimes maps every supported timing to its duration before call start.
var LeadTimes = map[NotificationTiming]time.Duration{
	Timing1Day:  24 * time.Hour,
	Timing1Hour: time.Hour,
	Timing30Min: 30 * time.Minute,
	Timing10Min: 10 * time.Minute,
}

// NotificationPreference is a user's channel and reminder opt-in.
type NotificationPreference struct {
	UserID    string         `db:"user_id" json:"user_id"`
	Enabled   bool           `db:"enabled" json:"enabled"`
	Methods   pq.StringArray `db:"methods" json:"methods"`
	Timings   pq.StringArray `db:"timings" json:"timings"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// HasMethod reports whether m is enabled in the preference.
func (p *NotificationPreference) HasMethod(m NotificationMethod) bool {
	for _, v := range p.Methods {
		if NotificationMethod(v) == m {
			return true
		}
	}
	return false
}

// HasTiming reports whether t is among the preferred reminder lead times.
func (p *NotificationPreference) HasTiming(t NotificationTiming) bool {
	for _, v := range p.Timings {
		if NotificationTiming(v) == t {
			return true
		}
	}
	return false
}

// Notification is an in-app notification record. Only the read flag changes after creation.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Kind      string    `db:"kind" json:"kind"`
	Message   string    `db:"message" json:"message"`
	Link      string    `db:"link" json:"link"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NotificationFilter narrows a user's notification listing.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Limit      int
}

// Recipient is one addressee of a notification event.
type Recipient struct {
	UserID string   `db:"id" json:"user_id"`
	Email  string   `db:"email" json:"email"`
	Name   string   `db:"full_name" json:"name"`
	Role   UserRole `db:"role" json:"role"`
}

// PushPayload is the body emitted on a user's live socket.
type PushPayload struct {
	NotificationID string    `json:"notification_id"`
	Kind           string    `json:"kind"`
	Message        string    `json:"message"`
	Link           string    `json:"link"`
	CreatedAt      time.Time `json:"created_at"`
}
