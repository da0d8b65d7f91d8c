package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-call-api/internal/dto"
	"github.com/noah-isme/lms-call-api/internal/models"
	appErrors "github.com/noah-isme/lms-call-api/pkg/errors"
)

type callStore interface {
	GetByID(ctx context.Context, id string) (*models.ScheduledCall, error)
	Create(ctx context.Context, call *models.ScheduledCall) error
	Save(ctx context.Context, call *models.ScheduledCall) error
}

type reportCardStore interface {
	Create(ctx context.Context, rc *models.ReportCard) error
}

type userDirectory interface {
	FindRecipient(ctx context.Context, id string) (*models.Recipient, error)
	CallAudience(ctx context.Context, call *models.ScheduledCall) ([]models.Recipient, error)
	ListByRoles(ctx context.Context, roles ...models.UserRole) ([]models.Recipient, error)
}

type eventDispatcher interface {
	Dispatch(ctx context.Context, event NotificationEvent, recipients []models.Recipient) *DispatchReport
}

// CallResult is a committed call together with what happened to its notifications.
type CallResult struct {
	Call          *models.ScheduledCall
	Notifications *DispatchReport
}

// ReportCardResult is a stored report card together with its notification report.
type ReportCardResult struct {
	ReportCard    *models.ReportCard
	Notifications *DispatchReport
}

// SchedulingService coordinates call transitions, persistence and notification fan-out.
type SchedulingService struct {
	calls       callStore
	reportCards reportCardStore
	users       userDirectory
	dispatcher  eventDispatcher
	machine     *CallStateMachine
	validator   *validator.Validate
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
}

// SchedulingOption configures SchedulingService.
type SchedulingOption func(*SchedulingService)

// WithSchedulingClock overrides the clock used for transitions and window checks.
func WithSchedulingClock(clock func() time.Time) SchedulingOption {
	return func(s *SchedulingService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithIDGenerator overrides id generation for new records.
func WithIDGenerator(gen func() string) SchedulingOption {
	return func(s *SchedulingService) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewSchedulingService wires the facade.
func NewSchedulingService(calls callStore, reportCards reportCardStore, users userDirectory, dispatcher eventDispatcher, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, opts ...SchedulingOption) *SchedulingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SchedulingService{
		calls:       calls,
		reportCards: reportCards,
		users:       users,
		dispatcher:  dispatcher,
		validator:   validate,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.machine = NewCallStateMachine(s.now)
	return s
}

// ScheduleCall validates and stores a new call, then notifies its audience.
func (s *SchedulingService) ScheduleCall(ctx context.Context, req dto.ScheduleCallRequest) (*CallResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid call payload")
	}
	date, err := validateSchedule(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	draft := &models.ScheduledCall{
		ID:           s.newID(),
		LessonID:     req.LessonID,
		BatchID:      req.BatchID,
		CourseID:     req.CourseID,
		TeacherID:    req.TeacherID,
		Date:         date,
		StartTime:    strings.TrimSpace(req.StartTime),
		EndTime:      strings.TrimSpace(req.EndTime),
		Timezone:     req.Timezone,
		Type:         req.Type,
		JoinLink:     req.JoinLink,
		CallDuration: req.CallDuration,
	}
	call, delta, err := s.machine.Schedule(draft)
	if err != nil {
		return nil, err
	}
	call.CreatedAt = delta.At
	call.UpdatedAt = delta.At

	if err := s.calls.Create(ctx, call); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create call")
	}
	s.metrics.RecordTransition(delta.From, delta.To)
	s.logger.Info("call scheduled", zap.String("call_id", call.ID), zap.String("batch_id", call.BatchID))

	return &CallResult{Call: call, Notifications: s.OnScheduled(ctx, call, s.callAudience(ctx, call))}, nil
}

// RescheduleCall moves a call and sends both schedules to its audience.
func (s *SchedulingService) RescheduleCall(ctx context.Context, callID string, req dto.RescheduleCallRequest) (*CallResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	date, err := validateSchedule(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	current, err := s.loadCall(ctx, callID)
	if err != nil {
		return nil, err
	}
	call, delta, err := s.machine.Reschedule(current, date, strings.TrimSpace(req.StartTime), strings.TrimSpace(req.EndTime))
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, call, delta); err != nil {
		return nil, err
	}
	return &CallResult{Call: call, Notifications: s.OnRescheduled(ctx, call, delta, s.callAudience(ctx, call))}, nil
}

// CancelCall cancels a call and notifies its audience.
func (s *SchedulingService) CancelCall(ctx context.Context, callID string, reason string) (*CallResult, error) {
	if len(reason) > 500 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reason must be at most 500 characters")
	}
	current, err := s.loadCall(ctx, callID)
	if err != nil {
		return nil, err
	}
	call, delta, err := s.machine.Cancel(current, reason)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, call, delta); err != nil {
		return nil, err
	}
	return &CallResult{Call: call, Notifications: s.OnCancelled(ctx, call, delta, s.callAudience(ctx, call))}, nil
}

// CompleteCall marks a call completed. Completion notifies nobody.
func (s *SchedulingService) CompleteCall(ctx context.Context, callID string) (*CallResult, error) {
	current, err := s.loadCall(ctx, callID)
	if err != nil {
		return nil, err
	}
	call, delta, err := s.machine.Complete(current)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, call, delta); err != nil {
		return nil, err
	}
	return &CallResult{Call: call}, nil
}

// GetCall returns a call by id.
func (s *SchedulingService) GetCall(ctx context.Context, callID string) (*models.ScheduledCall, error) {
	return s.loadCall(ctx, callID)
}

// CallWindow evaluates the join and ongoing windows of a stored call at the current instant.
func (s *SchedulingService) CallWindow(ctx context.Context, callID string) (*models.CallWindow, error) {
	call, err := s.loadCall(ctx, callID)
	if err != nil {
		return nil, err
	}
	window := EvaluateCallWindow(call, s.now())
	return &window, nil
}

// IsCallJoinableNow reports whether call can be joined at the current instant.
func (s *SchedulingService) IsCallJoinableNow(call *models.ScheduledCall) bool {
	if call == nil {
		return false
	}
	return IsCallJoinable(call.Date, call.StartTime, call.EndTime, call.Timezone, s.now())
}

// IsCallOngoingNow reports whether call is in progress at the current instant.
func (s *SchedulingService) IsCallOngoingNow(call *models.ScheduledCall) bool {
	if call == nil {
		return false
	}
	return IsCallOngoing(call.Date, call.StartTime, call.EndTime, call.Timezone, s.now())
}

// SubmitReportCard validates a report card, stores it and notifies every administrator.
func (s *SchedulingService) SubmitReportCard(ctx context.Context, req dto.SubmitReportCardRequest) (*ReportCardResult, error) {
	if err := validateRating(req.Rating); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report card payload")
	}

	date := s.now().UTC().Truncate(24 * time.Hour)
	if req.Date != "" {
		parsed, err := time.Parse(canonicalDateLayout, req.Date)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
		}
		date = parsed
	}

	student, err := s.findUser(ctx, req.StudentID, "student not found")
	if err != nil {
		return nil, err
	}
	teacher, err := s.findUser(ctx, req.TeacherID, "teacher not found")
	if err != nil {
		return nil, err
	}

	var comments *string
	if req.Comments != nil {
		trimmed := strings.TrimSpace(*req.Comments)
		if trimmed != "" {
			comments = &trimmed
		}
	}
	rc := &models.ReportCard{
		ID:        s.newID(),
		StudentID: req.StudentID,
		TeacherID: req.TeacherID,
		Rating:    req.Rating,
		Comments:  comments,
		Date:      date,
	}
	report, err := s.OnReportCardSubmitted(ctx, rc, *teacher, *student)
	if err != nil {
		return nil, err
	}
	return &ReportCardResult{ReportCard: rc, Notifications: report}, nil
}

// SendReminder dispatches the lead-time reminder for a stored, still active call.
func (s *SchedulingService) SendReminder(ctx context.Context, callID string, timing models.NotificationTiming) (*DispatchReport, error) {
	if _, ok := models.LeadTimes[timing]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown reminder timing")
	}
	call, err := s.loadCall(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "reminders are only sent for active calls")
	}
	return s.OnReminder(ctx, call, timing, s.callAudience(ctx, call)), nil
}

// OnScheduled notifies audience about a new call.
func (s *SchedulingService) OnScheduled(ctx context.Context, call *models.ScheduledCall, audience []models.Recipient) *DispatchReport {
	return s.dispatch(ctx, NotificationEvent{Kind: EventScheduled, Call: &CallEventPayload{Call: call}}, audience)
}

// OnRescheduled notifies audience about a move; delta carries the previous schedule.
func (s *SchedulingService) OnRescheduled(ctx context.Context, call *models.ScheduledCall, delta *models.CallDelta, audience []models.Recipient) *DispatchReport {
	return s.dispatch(ctx, NotificationEvent{Kind: EventRescheduled, Call: &CallEventPayload{Call: call, Delta: delta}}, audience)
}

// OnCancelled notifies audience about a cancellation.
func (s *SchedulingService) OnCancelled(ctx context.Context, call *models.ScheduledCall, delta *models.CallDelta, audience []models.Recipient) *DispatchReport {
	return s.dispatch(ctx, NotificationEvent{Kind: EventCancelled, Call: &CallEventPayload{Call: call, Delta: delta}}, audience)
}

// OnReminder notifies the recipients in audience who opted into timing.
func (s *SchedulingService) OnReminder(ctx context.Context, call *models.ScheduledCall, timing models.NotificationTiming, audience []models.Recipient) *DispatchReport {
	return s.dispatch(ctx, NotificationEvent{Kind: EventCallReminder, Call: &CallEventPayload{Call: call, LeadTime: timing}}, audience)
}

// OnReportCardSubmitted stores rc and notifies the admin audience. Storage errors abort; delivery errors
// only show up in the report.
func (s *SchedulingService) OnReportCardSubmitted(ctx context.Context, rc *models.ReportCard, teacher, student models.Recipient) (*DispatchReport, error) {
	if rc == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "report card is required")
	}
	if err := validateRating(rc.Rating); err != nil {
		return nil, err
	}
	if rc.StudentID == "" || rc.TeacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student and teacher are required")
	}
	if rc.CreatedAt.IsZero() {
		rc.CreatedAt = s.now().UTC()
	}
	if err := s.reportCards.Create(ctx, rc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report card")
	}
	s.logger.Info("report card submitted", zap.String("report_card_id", rc.ID), zap.String("student_id", rc.StudentID), zap.Int("rating", rc.Rating))

	admins, err := s.users.ListByRoles(ctx, models.RoleAdmin, models.RoleSuperAdmin)
	if err != nil {
		s.logger.Warn("failed to resolve admin audience", zap.String("report_card_id", rc.ID), zap.Error(err))
	}
	event := NotificationEvent{Kind: EventReportCardSubmitted, ReportCard: &ReportCardEventPayload{
		ReportCard:  rc,
		StudentName: student.Name,
		TeacherName: teacher.Name,
	}}
	return s.dispatch(ctx, event, admins), nil
}

func (s *SchedulingService) dispatch(ctx context.Context, event NotificationEvent, audience []models.Recipient) *DispatchReport {
	recipients := dedupeRecipients(audience)
	if s.dispatcher == nil {
		return &DispatchReport{Event: event.Kind, Results: []RecipientResult{}}
	}
	return s.dispatcher.Dispatch(ctx, event, recipients)
}

func (s *SchedulingService) commit(ctx context.Context, call *models.ScheduledCall, delta *models.CallDelta) error {
	call.UpdatedAt = delta.At
	if err := s.calls.Save(ctx, call); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "call not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save call")
	}
	s.metrics.RecordTransition(delta.From, delta.To)
	s.logger.Info("call transitioned",
		zap.String("call_id", call.ID),
		zap.String("from", string(delta.From)),
		zap.String("to", string(delta.To)),
	)
	return nil
}

func (s *SchedulingService) loadCall(ctx context.Context, callID string) (*models.ScheduledCall, error) {
	if strings.TrimSpace(callID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "call id is required")
	}
	call, err := s.calls.GetByID(ctx, callID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "call not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load call")
	}
	return call, nil
}

func (s *SchedulingService) findUser(ctx context.Context, id, notFound string) (*models.Recipient, error) {
	user, err := s.users.FindRecipient(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, notFound)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// callAudience resolves the batch students and the assigned teacher. A lookup failure leaves the
// committed transition in place and only costs the notifications.
func (s *SchedulingService) callAudience(ctx context.Context, call *models.ScheduledCall) []models.Recipient {
	audience, err := s.users.CallAudience(ctx, call)
	if err != nil {
		s.logger.Warn("failed to resolve call audience", zap.String("call_id", call.ID), zap.Error(err))
		return nil
	}
	return audience
}

func dedupeRecipients(in []models.Recipient) []models.Recipient {
	seen := make(map[string]struct{}, len(in))
	out := make([]models.Recipient, 0, len(in))
	for _, r := range in {
		if r.UserID == "" {
			continue
		}
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		out = append(out, r)
	}
	return out
}

func validateRating(rating int) error {
	if rating < models.MinReportCardRating || rating > models.MaxReportCardRating {
		return appErrors.Clone(appErrors.ErrValidation, "rating must be between 1 and 5")
	}
	return nil
}

// validateSchedule normalises the date and requires a start strictly before the end on that date.
func validateSchedule(date, start, end string) (string, error) {
	normalized, err := NormalizeCallDate(date)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "unrecognised date")
	}
	startClock, err := ParseCallTime(start)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "unrecognised start time")
	}
	endClock, err := ParseCallTime(end)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "unrecognised end time")
	}
	if startClock.Seconds() >= endClock.Seconds() {
		return "", appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}
	return normalized, nil
}
