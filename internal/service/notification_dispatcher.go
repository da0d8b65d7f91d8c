package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-call-api/internal/models"
	appErrors "github.com/noah-isme/lms-call-api/pkg/errors"
	"github.com/noah-isme/lms-call-api/pkg/middleware/requestid"
)

// EventKind identifies a notification event.
type EventKind string

const (
	EventScheduled           EventKind = "ScheduledEmail"
	EventRescheduled         EventKind = "RescheduledEmail"
	EventCancelled           EventKind = "CancelledEmail"
	EventReportCardSubmitted EventKind = "ReportCardSubmitted"
	EventCallReminder        EventKind = "CallReminder"
)

// eventChannels lists the channels each event supports, in delivery order.
var eventChannels = map[EventKind][]models.NotificationMethod{
	EventScheduled:           {models.MethodPush, models.MethodEmail},
	EventRescheduled:         {models.MethodPush, models.MethodEmail},
	EventCancelled:           {models.MethodPush, models.MethodEmail},
	EventReportCardSubmitted: {models.MethodPush, models.MethodEmail},
	EventCallReminder:        {models.MethodPush, models.MethodEmail},
}

// CallEventPayload carries a call state change.
type CallEventPayload struct {
	Call     *models.ScheduledCall
	Delta    *models.CallDelta
	LeadTime models.NotificationTiming
}

// ReportCardEventPayload carries a submitted report card and the names around it.
type ReportCardEventPayload struct {
	ReportCard  *models.ReportCard
	StudentName string
	TeacherName string
}

// NotificationEvent is one state change to fan out. Exactly one payload is set, matching Kind.
type NotificationEvent struct {
	Kind       EventKind
	Call       *CallEventPayload
	ReportCard *ReportCardEventPayload
}

// leadTime returns the reminder timing that recipients must have opted into, if any.
func (e NotificationEvent) leadTime() models.NotificationTiming {
	if e.Kind == EventCallReminder && e.Call != nil {
		return e.Call.LeadTime
	}
	return ""
}

// EmailAdapter renders and sends one email. Errors are opaque and treated as a failed delivery.
type EmailAdapter interface {
	Send(ctx context.Context, msg models.EmailMessage) error
}

// PushAdapter emits a payload on a user's live connections. Delivery is not confirmed.
type PushAdapter interface {
	EmitToUser(ctx context.Context, userID string, payload models.PushPayload) error
}

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
}

// ChannelResult is the outcome of one channel for one recipient.
type ChannelResult struct {
	Channel   models.NotificationMethod `json:"channel"`
	Delivered bool                      `json:"delivered"`
	Emitted   *bool                     `json:"emitted,omitempty"`
	Error     string                    `json:"error,omitempty"`
	Err       error                     `json:"-"`
}

// RecipientResult is the outcome for one recipient across all channels.
type RecipientResult struct {
	Recipient  models.Recipient `json:"recipient"`
	Skipped    bool             `json:"skipped"`
	SkipReason string           `json:"skip_reason,omitempty"`
	Error      string           `json:"error,omitempty"`
	Err        error            `json:"-"`
	Channels   []ChannelResult  `json:"channels,omitempty"`
}

// Failed reports whether the recipient hit a preference error or any failed channel.
func (r RecipientResult) Failed() bool {
	if r.Err != nil {
		return true
	}
	for _, ch := range r.Channels {
		if !ch.Delivered {
			return true
		}
	}
	return false
}

// DispatchReport aggregates per-recipient, per-channel outcomes of one dispatch.
type DispatchReport struct {
	Event   EventKind         `json:"event"`
	Results []RecipientResult `json:"results"`
}

// DispatchSummary counts channel deliveries across a report.
type DispatchSummary struct {
	Recipients int `json:"recipients"`
	Skipped    int `json:"skipped"`
	Delivered  int `json:"delivered"`
	Failed     int `json:"failed"`
}

// Summary folds the report into counters.
func (r *DispatchReport) Summary() DispatchSummary {
	var s DispatchSummary
	if r == nil {
		return s
	}
	s.Recipients = len(r.Results)
	for _, res := range r.Results {
		if res.Skipped {
			s.Skipped++
			continue
		}
		if res.Err != nil {
			s.Failed++
		}
		for _, ch := range res.Channels {
			if ch.Delivered {
				s.Delivered++
			} else {
				s.Failed++
			}
		}
	}
	return s
}

// Result returns the outcome for userID.
func (r *DispatchReport) Result(userID string) (RecipientResult, bool) {
	if r == nil {
		return RecipientResult{}, false
	}
	for _, res := range r.Results {
		if res.Recipient.UserID == userID {
			return res, true
		}
	}
	return RecipientResult{}, false
}

// DispatcherConfig tunes fan-out.
type DispatcherConfig struct {
	Concurrency    int
	AdapterTimeout time.Duration
}

// NotificationDispatcher fans events out to recipients over the push and email channels.
type NotificationDispatcher struct {
	preferences PreferenceResolver
	store       NotificationStore
	push        PushAdapter
	email       EmailAdapter
	content     *NotificationContent
	metrics     *MetricsService
	logger      *zap.Logger
	cfg         DispatcherConfig
	now         func() time.Time
	newID       func() string
}

// DispatcherOption configures the dispatcher.
type DispatcherOption func(*NotificationDispatcher)

// WithDispatcherClock overrides the clock used for notification timestamps.
func WithDispatcherClock(clock func() time.Time) DispatcherOption {
	return func(d *NotificationDispatcher) {
		if clock != nil {
			d.now = clock
		}
	}
}

// WithDispatcherMetrics attaches metrics.
func WithDispatcherMetrics(metrics *MetricsService) DispatcherOption {
	return func(d *NotificationDispatcher) {
		d.metrics = metrics
	}
}

// NewNotificationDispatcher constructs the dispatcher. push or email may be nil, which disables the channel.
func NewNotificationDispatcher(preferences PreferenceResolver, store NotificationStore, push PushAdapter, email EmailAdapter, content *NotificationContent, logger *zap.Logger, cfg DispatcherConfig, opts ...DispatcherOption) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if content == nil {
		content = NewNotificationContent("")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = 15 * time.Second
	}
	d := &NotificationDispatcher{
		preferences: preferences,
		store:       store,
		push:        push,
		email:       email,
		content:     content,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Dispatch delivers event to every recipient concurrently and never fails for delivery problems.
// Callers pass each recipient once; no de-duplication happens here.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, event NotificationEvent, recipients []models.Recipient) *DispatchReport {
	report := &DispatchReport{Event: event.Kind, Results: make([]RecipientResult, len(recipients))}
	if len(recipients) == 0 {
		return report
	}
	// deliveries belong to an already committed change and outlive the triggering request
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	p := pool.New().WithMaxGoroutines(d.cfg.Concurrency)
	for i, recipient := range recipients {
		i, recipient := i, recipient
		p.Go(func() {
			report.Results[i] = d.deliverIsolated(ctx, event, recipient)
		})
	}
	p.Wait()

	d.metrics.ObserveDispatch(event.Kind, time.Since(start))
	summary := report.Summary()
	d.logger.Info("notification dispatch finished",
		zap.String("event", string(event.Kind)),
		zap.String("request_id", requestid.FromContext(ctx)),
		zap.Int("recipients", summary.Recipients),
		zap.Int("delivered", summary.Delivered),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)
	return report
}

func (d *NotificationDispatcher) deliverIsolated(ctx context.Context, event NotificationEvent, recipient models.Recipient) (result RecipientResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("recipient delivery panicked: %v", r)
			d.logger.Error("notification delivery panicked", zap.String("user_id", recipient.UserID), zap.String("event", string(event.Kind)), zap.Any("panic", r))
			result = RecipientResult{Recipient: recipient, Err: err, Error: err.Error()}
		}
	}()
	return d.deliver(ctx, event, recipient)
}

func (d *NotificationDispatcher) deliver(ctx context.Context, event NotificationEvent, recipient models.Recipient) RecipientResult {
	result := RecipientResult{Recipient: recipient}

	pref, err := d.preferences.Resolve(ctx, recipient.UserID)
	if err != nil {
		d.logger.Warn("notification preference lookup failed", zap.String("user_id", recipient.UserID), zap.String("event", string(event.Kind)), zap.Error(err))
		result.Err = err
		result.Error = err.Error()
		return result
	}
	if !pref.Enabled {
		return d.skip(result, event, "notifications disabled")
	}
	if lead := event.leadTime(); lead != "" && !pref.HasTiming(lead) {
		return d.skip(result, event, "reminder timing not selected")
	}

	for _, channel := range eventChannels[event.Kind] {
		if !pref.HasMethod(channel) {
			continue
		}
		var ch ChannelResult
		switch channel {
		case models.MethodPush:
			ch = d.deliverPush(ctx, event, recipient)
		case models.MethodEmail:
			ch = d.deliverEmail(ctx, event, recipient)
		default:
			continue
		}
		outcome := OutcomeDelivered
		if !ch.Delivered {
			outcome = OutcomeFailed
			d.logger.Warn("notification delivery failed",
				zap.String("user_id", recipient.UserID),
				zap.String("channel", string(channel)),
				zap.String("event", string(event.Kind)),
				zap.String("call_id", event.callID()),
				zap.Error(ch.Err),
			)
		}
		d.metrics.RecordDelivery(channel, event.Kind, outcome)
		result.Channels = append(result.Channels, ch)
	}
	if len(result.Channels) == 0 {
		return d.skip(result, event, "no eligible channel")
	}
	return result
}

func (d *NotificationDispatcher) skip(result RecipientResult, event NotificationEvent, reason string) RecipientResult {
	result.Skipped = true
	result.SkipReason = reason
	d.metrics.RecordDelivery("none", event.Kind, OutcomeSkipped)
	return result
}

// deliverPush persists the in-app record, then emits it live. Only persistence decides Delivered.
func (d *NotificationDispatcher) deliverPush(ctx context.Context, event NotificationEvent, recipient models.Recipient) ChannelResult {
	res := ChannelResult{Channel: models.MethodPush}
	if d.store == nil {
		return failChannel(res, errors.New("notification store not configured"))
	}
	message, link := d.content.Push(event, recipient)
	n := &models.Notification{
		ID:        d.newID(),
		UserID:    recipient.UserID,
		Kind:      string(event.Kind),
		Message:   message,
		Link:      link,
		CreatedAt: d.now().UTC(),
	}

	persistErr := d.withTimeout(ctx, func(ctx context.Context) error { return d.store.Create(ctx, n) })
	if persistErr != nil {
		res = failChannel(res, fmt.Errorf("persist notification: %w", persistErr))
	} else {
		res.Delivered = true
	}

	if d.push != nil {
		payload := models.PushPayload{NotificationID: n.ID, Kind: n.Kind, Message: n.Message, Link: n.Link, CreatedAt: n.CreatedAt}
		emitErr := d.withTimeout(ctx, func(ctx context.Context) error { return d.push.EmitToUser(ctx, recipient.UserID, payload) })
		emitted := emitErr == nil
		res.Emitted = &emitted
		if emitErr != nil {
			d.logger.Debug("live push not emitted", zap.String("user_id", recipient.UserID), zap.Error(emitErr))
		}
	}
	return res
}

func (d *NotificationDispatcher) deliverEmail(ctx context.Context, event NotificationEvent, recipient models.Recipient) ChannelResult {
	res := ChannelResult{Channel: models.MethodEmail}
	if d.email == nil {
		return failChannel(res, errors.New("email adapter not configured"))
	}
	if recipient.Email == "" {
		return failChannel(res, errors.New("recipient has no email address"))
	}
	msg := d.content.Email(event, recipient)
	if err := d.withTimeout(ctx, func(ctx context.Context) error { return d.email.Send(ctx, msg) }); err != nil {
		return failChannel(res, fmt.Errorf("send email: %w", err))
	}
	res.Delivered = true
	return res
}

// withTimeout runs fn under the adapter deadline and converts a panic into an error.
// A delivery that returns nil counts as delivered even if it finished after the deadline.
func (d *NotificationDispatcher) withTimeout(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.AdapterTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adapter panicked: %v", r)
		}
	}()
	if err = fn(ctx); err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}

func failChannel(res ChannelResult, err error) ChannelResult {
	res.Delivered = false
	res.Err = appErrors.Wrap(err, appErrors.ErrDeliveryFailure.Code, appErrors.ErrDeliveryFailure.Status, appErrors.ErrDeliveryFailure.Message)
	res.Error = err.Error()
	return res
}

func (e NotificationEvent) callID() string {
	if e.Call != nil && e.Call.Call != nil {
		return e.Call.Call.ID
	}
	return ""
}
