package models

import "time"

// CallStatus is the lifecycle state of a scheduled class session.
type CallStatus string

const (
	CallStatusScheduled   CallStatus = "Scheduled"
	CallStatusRescheduled CallStatus = "Rescheduled"
	CallStatusCancelled   CallStatus = "Cancelled"
	CallStatusCompleted   CallStatus = "Completed"
)

// Terminal reports whether no further transition is accepted from s.
func (s CallStatus) Terminal() bool {
	return s == CallStatusCancelled || s == CallStatusCompleted
}

// Valid reports whether s is a known status.
func (s CallStatus) Valid() bool {
	switch s {
	case CallStatusScheduled, CallStatusRescheduled, CallStatusCancelled, CallStatusCompleted:
		return true
	}
	return false
}

// ScheduledCall is one scheduled class session between a teacher and a batch.
// Status and the Previous* snapshot are written only by the call state machine.
type ScheduledCall struct {
	ID                 string     `db:"id" json:"id"`
	LessonID           string     `db:"lesson_id" json:"lesson_id"`
	BatchID            string     `db:"batch_id" json:"batch_id"`
	CourseID           string     `db:"course_id" json:"course_id"`
	TeacherID          string     `db:"teacher_id" json:"teacher_id"`
	Date               string     `db:"date" json:"date"`
	StartTime          string     `db:"start_time" json:"start_time"`
	EndTime            string     `db:"end_time" json:"end_time"`
	Timezone           string     `db:"timezone" json:"timezone"`
	Status             CallStatus `db:"status" json:"status"`
	PreviousDate       *string    `db:"previous_date" json:"previous_date,omitempty"`
	PreviousStartTime  *string    `db:"previous_start_time" json:"previous_start_time,omitempty"`
	PreviousEndTime    *string    `db:"previous_end_time" json:"previous_end_time,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	Type               string     `db:"type" json:"type"`
	JoinLink           string     `db:"join_link" json:"join_link"`
	CallDuration       int        `db:"call_duration" json:"call_duration"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// TimeRange returns the current schedule of the call.
func (c *ScheduledCall) TimeRange() CallTimeRange {
	return CallTimeRange{Date: c.Date, StartTime: c.StartTime, EndTime: c.EndTime, Timezone: c.Timezone}
}

// PreviousTimeRange returns the snapshot taken by the last reschedule, or nil.
func (c *ScheduledCall) PreviousTimeRange() *CallTimeRange {
	if c.PreviousDate == nil || c.PreviousStartTime == nil || c.PreviousEndTime == nil {
		return nil
	}
	return &CallTimeRange{Date: *c.PreviousDate, StartTime: *c.PreviousStartTime, EndTime: *c.PreviousEndTime, Timezone: c.Timezone}
}

// Clone returns a deep copy so transitions never alias the caller's record.
func (c *ScheduledCall) Clone() *ScheduledCall {
	if c == nil {
		return nil
	}
	cp := *c
	cp.PreviousDate = cloneString(c.PreviousDate)
	cp.PreviousStartTime = cloneString(c.PreviousStartTime)
	cp.PreviousEndTime = cloneString(c.PreviousEndTime)
	cp.CancellationReason = cloneString(c.CancellationReason)
	return &cp
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

// CallTimeRange is a wall-clock schedule in the call's own timezone.
type CallTimeRange struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Timezone  string `json:"timezone"`
}

// CallTransition names the operation that produced a CallDelta.
type CallTransition string

const (
	TransitionSchedule   CallTransition = "schedule"
	TransitionReschedule CallTransition = "reschedule"
	TransitionCancel     CallTransition = "cancel"
	TransitionComplete   CallTransition = "complete"
)

// CallDelta describes what a transition changed, for the notification layer.
type CallDelta struct {
	CallID     string         `json:"call_id"`
	Transition CallTransition `json:"transition"`
	From       CallStatus     `json:"from,omitempty"`
	To         CallStatus     `json:"to"`
	Previous   *CallTimeRange `json:"previous,omitempty"`
	Current    CallTimeRange  `json:"current"`
	Reason     string         `json:"reason,omitempty"`
	At         time.Time      `json:"at"`
}

// Notify reports whether the transition fans out to recipients. Completion is silent.
func (d *CallDelta) Notify() bool {
	return d != nil && d.Transition != TransitionComplete
}

// CallWindow is the read-only join/ongoing view of a call at a given instant.
type CallWindow struct {
	CallID   string    `json:"call_id"`
	Joinable bool      `json:"joinable"`
	Ongoing  bool      `json:"ongoing"`
	At       time.Time `json:"at"`
}
