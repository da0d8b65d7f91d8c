package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-call-api/internal/dto"
	"github.com/noah-isme/lms-call-api/internal/models"
	appErrors "github.com/noah-isme/lms-call-api/pkg/errors"
)

type callStoreStub struct {
	calls     map[string]*models.ScheduledCall
	created   []*models.ScheduledCall
	saved     []*models.ScheduledCall
	getErr    error
	createErr error
	saveErr   error
}

func newCallStoreStub(calls ...*models.ScheduledCall) *callStoreStub {
	s := &callStoreStub{calls: map[string]*models.ScheduledCall{}}
	for _, c := range calls {
		s.calls[c.ID] = c
	}
	return s
}

func (s *callStoreStub) GetByID(ctx context.Context, id string) (*models.ScheduledCall, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	call, ok := s.calls[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return call.Clone(), nil
}

func (s *callStoreStub) Create(ctx context.Context, call *models.ScheduledCall) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, call)
	s.calls[call.ID] = call.Clone()
	return nil
}

func (s *callStoreStub) Save(ctx context.Context, call *models.ScheduledCall) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, call)
	s.calls[call.ID] = call.Clone()
	return nil
}

type reportCardStoreStub struct {
	created []*models.ReportCard
	err     error
}

func (s *reportCardStoreStub) Create(ctx context.Context, rc *models.ReportCard) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, rc)
	return nil
}

type userDirectoryStub struct {
	users       map[string]models.Recipient
	audience    []models.Recipient
	audienceErr error
	admins      []models.Recipient
	roles       []models.UserRole
}

func (s *userDirectoryStub) FindRecipient(ctx context.Context, id string) (*models.Recipient, error) {
	r, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (s *userDirectoryStub) CallAudience(ctx context.Context, call *models.ScheduledCall) ([]models.Recipient, error) {
	return s.audience, s.audienceErr
}

func (s *userDirectoryStub) ListByRoles(ctx context.Context, roles ...models.UserRole) ([]models.Recipient, error) {
	s.roles = roles
	return s.admins, nil
}

type dispatcherSpy struct {
	events     []NotificationEvent
	recipients [][]models.Recipient
}

func (d *dispatcherSpy) Dispatch(ctx context.Context, event NotificationEvent, recipients []models.Recipient) *DispatchReport {
	d.events = append(d.events, event)
	d.recipients = append(d.recipients, recipients)
	return &DispatchReport{Event: event.Kind}
}

func newTestScheduling(calls *callStoreStub, cards *reportCardStoreStub, users *userDirectoryStub, dispatcher eventDispatcher) *SchedulingService {
	return NewSchedulingService(calls, cards, users, dispatcher, nil, NewMetricsService(), nil,
		WithSchedulingClock(fixedClock), WithIDGenerator(func() string { return "generated-id" }))
}

func validScheduleRequest() dto.ScheduleCallRequest {
	return dto.ScheduleCallRequest{
		LessonID:  "lesson-1",
		BatchID:   "batch-1",
		TeacherID: "teacher-1",
		Date:      "2024-06-10",
		StartTime: "9:00 am",
		EndTime:   "10:00 am",
		Timezone:  "Asia/Kolkata",
	}
}

func TestScheduleCallPersistsAndNotifies(t *testing.T) {
	calls := newCallStoreStub()
	users := &userDirectoryStub{audience: []models.Recipient{
		{UserID: "s1"}, {UserID: "s2"}, {UserID: "teacher-1"}, {UserID: "s1"},
	}}
	spy := &dispatcherSpy{}
	svc := newTestScheduling(calls, &reportCardStoreStub{}, users, spy)

	res, err := svc.ScheduleCall(context.Background(), validScheduleRequest())
	require.NoError(t, err)
	require.Len(t, calls.created, 1)
	assert.Equal(t, "generated-id", res.Call.ID)
	assert.Equal(t, models.CallStatusScheduled, res.Call.Status)
	assert.Equal(t, fixedNow, res.Call.CreatedAt)

	require.Len(t, spy.events, 1)
	assert.Equal(t, EventScheduled, spy.events[0].Kind)
	assert.Len(t, spy.recipients[0], 3, "duplicate recipients are collapsed")
}

func TestScheduleCallValidation(t *testing.T) {
	cases := map[string]func(*dto.ScheduleCallRequest){
		"missing batch":    func(r *dto.ScheduleCallRequest) { r.BatchID = "" },
		"bad timezone":     func(r *dto.ScheduleCallRequest) { r.Timezone = "Mars/Base" },
		"bad start":        func(r *dto.ScheduleCallRequest) { r.StartTime = "soon" },
		"end before start": func(r *dto.ScheduleCallRequest) { r.EndTime = "8:00 am" },
		"equal bounds":     func(r *dto.ScheduleCallRequest) { r.EndTime = "09:00" },
		"bad date":         func(r *dto.ScheduleCallRequest) { r.Date = "next tuesday" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			calls := newCallStoreStub()
			spy := &dispatcherSpy{}
			svc := newTestScheduling(calls, &reportCardStoreStub{}, &userDirectoryStub{}, spy)
			req := validScheduleRequest()
			mutate(&req)

			_, err := svc.ScheduleCall(context.Background(), req)
			assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
			assert.Empty(t, calls.created)
			assert.Empty(t, spy.events)
		})
	}
}

func TestScheduleCallSurfacesStoreFailure(t *testing.T) {
	calls := newCallStoreStub()
	calls.createErr = errors.New("connection refused")
	spy := &dispatcherSpy{}
	svc := newTestScheduling(calls, &reportCardStoreStub{}, &userDirectoryStub{}, spy)

	_, err := svc.ScheduleCall(context.Background(), validScheduleRequest())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal.Code))
	assert.Empty(t, spy.events)
}

func TestRescheduleCallCarriesDelta(t *testing.T) {
	calls := newCallStoreStub(scheduledCall())
	spy := &dispatcherSpy{}
	svc := newTestScheduling(calls, &reportCardStoreStub{}, &userDirectoryStub{audience: []models.Recipient{{UserID: "s1"}}}, spy)

	res, err := svc.RescheduleCall(context.Background(), "call-1", dto.RescheduleCallRequest{Date: "06/11/2024", StartTime: "10:00", EndTime: "11:00"})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-11", res.Call.Date)
	assert.Equal(t, "2024-06-10", *res.Call.PreviousDate)
	assert.Equal(t, models.CallStatusRescheduled, calls.calls["call-1"].Status)

	require.Len(t, spy.events, 1)
	event := spy.events[0]
	assert.Equal(t, EventRescheduled, event.Kind)
	require.NotNil(t, event.Call.Delta.Previous)
	assert.Equal(t, "09:00", event.Call.Delta.Previous.StartTime)
}

func TestTransitionsOnTerminalCallLeaveRecordUnchanged(t *testing.T) {
	cancelled := scheduledCall()
	cancelled.Status = models.CallStatusCancelled
	calls := newCallStoreStub(cancelled)
	spy := &dispatcherSpy{}
	svc := newTestScheduling(calls, &reportCardStoreStub{}, &userDirectoryStub{}, spy)
	before := *calls.calls["call-1"].Clone()

	_, err := svc.RescheduleCall(context.Background(), "call-1", dto.RescheduleCallRequest{Date: "2024-06-11", StartTime: "10:00", EndTime: "11:00"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition.Code))
	_, err = svc.CancelCall(context.Background(), "call-1", "again")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition.Code))
	_, err = svc.CompleteCall(context.Background(), "call-1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition.Code))

	assert.Empty(t, calls.saved)
	assert.Empty(t, spy.events)
	assert.Equal(t, before, *calls.calls["call-1"])
}

func TestCancelAndCompleteCall(t *testing.T) {
	calls := newCallStoreStub(scheduledCall())
	spy := &dispatcherSpy{}
	svc := newTestScheduling(calls, &reportCardStoreStub{}, &userDirectoryStub{audience: []models.Recipient{{UserID: "s1"}}}, spy)

	res, err := svc.CancelCall(context.Background(), "call-1", "holiday")
	require.NoError(t, err)
	assert.Equal(t, "holiday", *res.Call.CancellationReason)
	require.Len(t, spy.events, 1)
	assert.Equal(t, EventCancelled, spy.events[0].Kind)

	other := scheduledCall()
	other.ID = "call-2"
	calls.calls[other.ID] = other
	done, err := svc.CompleteCall(context.Background(), "call-2")
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusCompleted, done.Call.Status)
	assert.Nil(t, done.Notifications)
	assert.Len(t, spy.events, 1, "completion is silent")
}

func TestUnknownCallIsNotFound(t *testing.T) {
	svc := newTestScheduling(newCallStoreStub(), &reportCardStoreStub{}, &userDirectoryStub{}, &dispatcherSpy{})

	_, err := svc.CancelCall(context.Background(), "missing", "")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
	_, err = svc.CallWindow(context.Background(), "missing")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestSaveFailurePropagates(t *testing.T) {
	calls := newCallStoreStub(scheduledCall())
	calls.saveErr = errors.New("disk full")
	spy := &dispatcherSpy{}
	svc := newTestScheduling(calls, &reportCardStoreStub{}, &userDirectoryStub{}, spy)

	_, err := svc.CancelCall(context.Background(), "call-1", "")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal.Code))
	assert.Empty(t, spy.events)
}

func TestAudienceFailureDoesNotUndoTransition(t *testing.T) {
	calls := newCallStoreStub(scheduledCall())
	users := &userDirectoryStub{audienceErr: errors.New("timeout")}
	spy := &dispatcherSpy{}
	svc := newTestScheduling(calls, &reportCardStoreStub{}, users, spy)

	res, err := svc.CancelCall(context.Background(), "call-1", "")
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusCancelled, res.Call.Status)
	require.Len(t, spy.recipients, 1)
	assert.Empty(t, spy.recipients[0])
}

func reportCardUsers() *userDirectoryStub {
	return &userDirectoryStub{
		users: map[string]models.Recipient{
			"student-1": {UserID: "student-1", Name: "Asha"},
			"teacher-1": {UserID: "teacher-1", Name: "Mr. Rao"},
		},
		admins: []models.Recipient{
			{UserID: "admin-1", Email: "a1@example.com", Role: models.RoleAdmin},
			{UserID: "admin-2", Email: "a2@example.com", Role: models.RoleSuperAdmin},
		},
	}
}

func TestSubmitReportCardRejectsOutOfRangeRating(t *testing.T) {
	for _, rating := range []int{0, 6} {
		cards := &reportCardStoreStub{}
		spy := &dispatcherSpy{}
		svc := newTestScheduling(newCallStoreStub(), cards, reportCardUsers(), spy)

		_, err := svc.SubmitReportCard(context.Background(), dto.SubmitReportCardRequest{StudentID: "student-1", TeacherID: "teacher-1", Rating: rating})
		assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code), "rating %d", rating)
		assert.Empty(t, cards.created)
		assert.Empty(t, spy.events)
	}
}

func TestSubmitReportCardNotifiesEveryAdminDespiteEmailFailure(t *testing.T) {
	cards := &reportCardStoreStub{}
	users := reportCardUsers()
	email := &emailStub{failFor: map[string]bool{"admin-1": true}}
	dispatcher := newTestDispatcher(resolverStub{}, &notificationStoreStub{}, nil, email)
	svc := newTestScheduling(newCallStoreStub(), cards, users, dispatcher)

	comments := "Great"
	res, err := svc.SubmitReportCard(context.Background(), dto.SubmitReportCardRequest{
		StudentID: "student-1", TeacherID: "teacher-1", Rating: 5, Comments: &comments,
	})
	require.NoError(t, err)
	require.Len(t, cards.created, 1)
	assert.Equal(t, 5, cards.created[0].Rating)
	assert.Equal(t, "Great", *cards.created[0].Comments)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), cards.created[0].Date)
	assert.ElementsMatch(t, []models.UserRole{models.RoleAdmin, models.RoleSuperAdmin}, users.roles)

	assert.Equal(t, []string{"admin-2"}, email.sentTo())
	assert.Equal(t, "Asha", email.sent[0].Data["StudentName"])
	assert.Equal(t, "Mr. Rao", email.sent[0].Data["TeacherName"])
	assert.Equal(t, "Great", email.sent[0].Data["Comments"])

	summary := res.Notifications.Summary()
	assert.Equal(t, 2, summary.Recipients)
	assert.Equal(t, 1, summary.Delivered)
	assert.Equal(t, 1, summary.Failed)
}

func TestSubmitReportCardUnknownStudent(t *testing.T) {
	cards := &reportCardStoreStub{}
	svc := newTestScheduling(newCallStoreStub(), cards, reportCardUsers(), &dispatcherSpy{})

	_, err := svc.SubmitReportCard(context.Background(), dto.SubmitReportCardRequest{StudentID: "ghost", TeacherID: "teacher-1", Rating: 3})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
	assert.Empty(t, cards.created)
}

func TestSubmitReportCardStoreFailure(t *testing.T) {
	cards := &reportCardStoreStub{err: errors.New("db down")}
	spy := &dispatcherSpy{}
	svc := newTestScheduling(newCallStoreStub(), cards, reportCardUsers(), spy)

	_, err := svc.SubmitReportCard(context.Background(), dto.SubmitReportCardRequest{StudentID: "student-1", TeacherID: "teacher-1", Rating: 4})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal.Code))
	assert.Empty(t, spy.events)
}

func TestSendReminder(t *testing.T) {
	cancelled := scheduledCall()
	cancelled.ID = "call-2"
	cancelled.Status = models.CallStatusCancelled
	spy := &dispatcherSpy{}
	svc := newTestScheduling(newCallStoreStub(scheduledCall(), cancelled), &reportCardStoreStub{}, &userDirectoryStub{audience: []models.Recipient{{UserID: "s1"}}}, spy)

	_, err := svc.SendReminder(context.Background(), "call-1", models.Timing1Hour)
	require.NoError(t, err)
	require.Len(t, spy.events, 1)
	assert.Equal(t, EventCallReminder, spy.events[0].Kind)
	assert.Equal(t, models.Timing1Hour, spy.events[0].Call.LeadTime)

	_, err = svc.SendReminder(context.Background(), "call-2", models.Timing1Hour)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidTransition.Code))
	_, err = svc.SendReminder(context.Background(), "call-1", "2weeks")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestJoinableAndOngoingNow(t *testing.T) {
	call := scheduledCall()
	call.Timezone = "UTC"
	call.Date = "2024-06-01"
	call.StartTime = "12:10"
	call.EndTime = "13:00"
	svc := newTestScheduling(newCallStoreStub(), &reportCardStoreStub{}, &userDirectoryStub{}, &dispatcherSpy{})

	assert.True(t, svc.IsCallJoinableNow(call))
	assert.False(t, svc.IsCallOngoingNow(call))
	assert.False(t, svc.IsCallJoinableNow(nil))
}
