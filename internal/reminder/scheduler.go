// Package reminder scans upcoming calls on a cron tick and queues lead-time reminders.
package reminder

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-call-api/internal/models"
	"github.com/noah-isme/lms-call-api/internal/service"
	appErrors "github.com/noah-isme/lms-call-api/pkg/errors"
	"github.com/noah-isme/lms-call-api/pkg/jobs"
)

const dateLayout = "2006-01-02"

type callLister interface {
	ListActiveByDates(ctx context.Context, dates []string) ([]models.ScheduledCall, error)
}

type reminderSender interface {
	SendReminder(ctx context.Context, callID string, timing models.NotificationTiming) (*service.DispatchReport, error)
}

type claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) bool
	Invalidate(ctx context.Context, keys ...string)
}

// Config tunes the trigger.
type Config struct {
	CronSpec string
	Workers  int
	DedupTTL time.Duration
}

// Due is one reminder whose lead time is reached in the current tick.
type Due struct {
	CallID string
	Timing models.NotificationTiming
	Start  time.Time
}

// Key identifies the reminder for duplicate suppression.
func (d Due) Key() string {
	return fmt.Sprintf("reminder:%s:%s", d.CallID, d.Timing)
}

// Scheduler owns the cron engine and the reminder queue.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	tick   time.Duration
	calls  callLister
	sender reminderSender
	claims claimer
	queue  *jobs.Queue
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New validates the cron spec and builds a stopped scheduler.
func New(cfg Config, calls callLister, sender reminderSender, claims claimer, logger *zap.Logger, opts ...Option) (*Scheduler, error) {
	if cfg.CronSpec == "" {
		cfg.CronSpec = "* * * * *"
	}
	schedule, err := cron.ParseStandard(cfg.CronSpec)
	if err != nil {
		return nil, fmt.Errorf("parse reminder cron spec %q: %w", cfg.CronSpec, err)
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 26 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		spec:   cfg.CronSpec,
		tick:   tickOf(schedule),
		calls:  calls,
		sender: sender,
		claims: claims,
		ttl:    cfg.DedupTTL,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.queue = jobs.NewQueue("reminders", s.handle, jobs.Config{
		Workers:    cfg.Workers,
		MaxRetries: 2,
		Logger:     logger,
	})
	return s, nil
}

// tickOf measures the gap between two consecutive firings.
func tickOf(schedule cron.Schedule) time.Duration {
	ref := time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)
	first := schedule.Next(ref)
	tick := schedule.Next(first).Sub(first)
	if tick <= 0 {
		return time.Minute
	}
	return tick
}

// Tick is the window width each firing covers.
func (s *Scheduler) Tick() time.Duration {
	return s.tick
}

// Start launches the workers and the cron engine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.queue.Start(ctx)
	if _, err := s.cron.AddFunc(s.spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if _, err := s.Scan(runCtx); err != nil {
			s.logger.Error("reminder scan failed", zap.Error(err))
		}
	}); err != nil {
		s.queue.Stop()
		return fmt.Errorf("add reminder cron job: %w", err)
	}
	s.cron.Start()
	s.logger.Info("reminder scheduler started", zap.String("spec", s.spec), zap.Duration("tick", s.tick))
	return nil
}

// Stop waits for a running scan and drains the workers.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.queue.Stop()
	s.logger.Info("reminder scheduler stopped")
}

// Scan queues every reminder due in the tick starting now and returns how many were queued.
func (s *Scheduler) Scan(ctx context.Context) (int, error) {
	now := s.now().UTC().Truncate(s.tick)
	calls, err := s.calls.ListActiveByDates(ctx, CandidateDates(now, s.tick))
	if err != nil {
		return 0, fmt.Errorf("list upcoming calls: %w", err)
	}

	queued := 0
	for _, due := range DueReminders(calls, now, s.tick) {
		if !s.claims.Claim(ctx, due.Key(), s.ttl) {
			continue
		}
		if err := s.queue.Enqueue(jobs.Job{Key: due.Key(), Payload: due}); err != nil {
			s.logger.Warn("reminder not queued", zap.String("key", due.Key()), zap.Error(err))
			s.claims.Invalidate(ctx, due.Key())
			continue
		}
		queued++
	}
	if queued > 0 {
		s.logger.Info("reminders queued", zap.Int("count", queued), zap.Time("window_start", now))
	}
	return queued, nil
}

func (s *Scheduler) handle(ctx context.Context, job jobs.Job) error {
	due, ok := job.Payload.(Due)
	if !ok {
		s.logger.Error("unexpected reminder payload", zap.String("key", job.Key))
		return nil
	}
	report, err := s.sender.SendReminder(ctx, due.CallID, due.Timing)
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrNotFound.Code) || appErrors.HasCode(err, appErrors.ErrInvalidTransition.Code) {
			s.logger.Info("reminder dropped", zap.String("key", job.Key), zap.Error(err))
			return nil
		}
		return err
	}
	summary := report.Summary()
	s.logger.Info("reminder sent",
		zap.String("call_id", due.CallID),
		zap.String("timing", string(due.Timing)),
		zap.Int("delivered", summary.Delivered),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return nil
}

// CandidateDates lists the calendar dates a call due in this tick can carry, padded a day
// either side so calls stored in any timezone are loaded.
func CandidateDates(now time.Time, tick time.Duration) []string {
	set := map[string]struct{}{}
	for _, lead := range models.LeadTimes {
		for _, at := range []time.Time{now.Add(lead), now.Add(lead + tick)} {
			for offset := -1; offset <= 1; offset++ {
				set[at.AddDate(0, 0, offset).Format(dateLayout)] = struct{}{}
			}
		}
	}
	dates := make([]string, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// DueReminders returns the reminders whose call starts in [now+lead, now+lead+tick).
// Calls with unparseable schedules are ignored.
func DueReminders(calls []models.ScheduledCall, now time.Time, tick time.Duration) []Due {
	var due []Due
	for i := range calls {
		call := &calls[i]
		if call.Status.Terminal() {
			continue
		}
		start, _, err := service.CallBounds(call.Date, call.StartTime, call.EndTime, call.Timezone)
		if err != nil {
			continue
		}
		for timing, lead := range models.LeadTimes {
			from := now.Add(lead)
			if !start.Before(from) && start.Before(from.Add(tick)) {
				due = append(due, Due{CallID: call.ID, Timing: timing, Start: start})
			}
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].CallID != due[j].CallID {
			return due[i].CallID < due[j].CallID
		}
		return due[i].Timing < due[j].Timing
	})
	return due
}
