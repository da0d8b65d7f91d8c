package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/lms-call-api/internal/models"
	appErrors "github.com/noah-isme/lms-call-api/pkg/errors"
)

// allowedTransitions lists, per current status, the statuses a call may move to.
var allowedTransitions = map[models.CallStatus]map[models.CallStatus]struct{}{
	models.CallStatusScheduled: {
		models.CallStatusRescheduled: {},
		models.CallStatusCancelled:   {},
		models.CallStatusCompleted:   {},
	},
	models.CallStatusRescheduled: {
		models.CallStatusRescheduled: {},
		models.CallStatusCancelled:   {},
		models.CallStatusCompleted:   {},
	},
}

// CallStateMachine validates and applies call status transitions. Every method returns a new
// record and a delta; the input record is never modified, and nothing is notified here.
type CallStateMachine struct {
	now func() time.Time
}

// NewCallStateMachine builds a state machine using clock for delta timestamps.
func NewCallStateMachine(clock func() time.Time) *CallStateMachine {
	if clock == nil {
		clock = time.Now
	}
	return &CallStateMachine{now: clock}
}

// CanTransition reports whether a call in from may move to to.
func CanTransition(from, to models.CallStatus) bool {
	_, ok := allowedTransitions[from][to]
	return ok
}

// Schedule initialises a new call as Scheduled with no snapshot.
func (m *CallStateMachine) Schedule(call *models.ScheduledCall) (*models.ScheduledCall, *models.CallDelta, error) {
	if call == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "call is required")
	}
	if call.Status != "" {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("call already has status %s", call.Status))
	}
	next := call.Clone()
	next.Status = models.CallStatusScheduled
	next.PreviousDate = nil
	next.PreviousStartTime = nil
	next.PreviousEndTime = nil
	next.CancellationReason = nil

	return next, &models.CallDelta{
		CallID:     next.ID,
		Transition: models.TransitionSchedule,
		To:         models.CallStatusScheduled,
		Current:    next.TimeRange(),
		At:         m.now().UTC(),
	}, nil
}

// Reschedule moves the current schedule into the snapshot and applies the new one.
func (m *CallStateMachine) Reschedule(call *models.ScheduledCall, newDate, newStart, newEnd string) (*models.ScheduledCall, *models.CallDelta, error) {
	if err := m.guard(call, models.CallStatusRescheduled); err != nil {
		return nil, nil, err
	}
	next := call.Clone()
	prevDate, prevStart, prevEnd := call.Date, call.StartTime, call.EndTime
	next.PreviousDate = &prevDate
	next.PreviousStartTime = &prevStart
	next.PreviousEndTime = &prevEnd
	next.Date = newDate
	next.StartTime = newStart
	next.EndTime = newEnd
	next.Status = models.CallStatusRescheduled

	return next, &models.CallDelta{
		CallID:     next.ID,
		Transition: models.TransitionReschedule,
		From:       call.Status,
		To:         models.CallStatusRescheduled,
		Previous:   next.PreviousTimeRange(),
		Current:    next.TimeRange(),
		At:         m.now().UTC(),
	}, nil
}

// Cancel marks the call Cancelled. The snapshot is left as it is.
func (m *CallStateMachine) Cancel(call *models.ScheduledCall, reason string) (*models.ScheduledCall, *models.CallDelta, error) {
	if err := m.guard(call, models.CallStatusCancelled); err != nil {
		return nil, nil, err
	}
	next := call.Clone()
	next.Status = models.CallStatusCancelled
	reason = strings.TrimSpace(reason)
	if reason != "" {
		next.CancellationReason = &reason
	}

	return next, &models.CallDelta{
		CallID:     next.ID,
		Transition: models.TransitionCancel,
		From:       call.Status,
		To:         models.CallStatusCancelled,
		Previous:   next.PreviousTimeRange(),
		Current:    next.TimeRange(),
		Reason:     reason,
		At:         m.now().UTC(),
	}, nil
}

// Complete marks the call Completed.
func (m *CallStateMachine) Complete(call *models.ScheduledCall) (*models.ScheduledCall, *models.CallDelta, error) {
	if err := m.guard(call, models.CallStatusCompleted); err != nil {
		return nil, nil, err
	}
	next := call.Clone()
	next.Status = models.CallStatusCompleted

	return next, &models.CallDelta{
		CallID:     next.ID,
		Transition: models.TransitionComplete,
		From:       call.Status,
		To:         models.CallStatusCompleted,
		Current:    next.TimeRange(),
		At:         m.now().UTC(),
	}, nil
}

func (m *CallStateMachine) guard(call *models.ScheduledCall, to models.CallStatus) error {
	if call == nil {
		return appErrors.Clone(appErrors.ErrValidation, "call is required")
	}
	if !CanTransition(call.Status, to) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move call from %s to %s", displayStatus(call.Status), to))
	}
	return nil
}

func displayStatus(s models.CallStatus) string {
	if s == "" {
		return "unscheduled"
	}
	return string(s)
}
