// Package scheduler runs report jobs on 5-field cron expressions
// (minute hour day-of-month month day-of-week), e.g. "0 * * * *" hourly or
// "0 19 * * 1-6" at 19:00 Monday to Saturday.
package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Parse validates a cron expression.
func Parse(spec string) (cron.Schedule, error) {
	return parser.Parse(strings.TrimSpace(spec))
}

// Job runs fn each time its schedule fires.
type Job struct {
	Name     string
	Schedule string
	Fn       func(ctx context.Context)
}

type entry struct {
	job   Job
	sched cron.Schedule
}

type Scheduler struct {
	loc     *time.Location
	logger  *zap.Logger
	entries []entry
	wg      sync.WaitGroup

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{loc: loc, logger: logger, now: time.Now, sleep: sleepCtx}
}

// Add registers job. A blank schedule disables it; an invalid one disables it
// with a warning. Reports whether the job was registered.
func (s *Scheduler) Add(job Job) bool {
	spec := strings.TrimSpace(job.Schedule)
	if spec == "" {
		s.logger.Info("job disabled (no schedule)", zap.String("job", job.Name))
		return false
	}
	sched, err := Parse(spec)
	if err != nil {
		s.logger.Warn("invalid schedule, job disabled", zap.String("job", job.Name), zap.String("schedule", spec), zap.Error(err))
		return false
	}
	s.entries = append(s.entries, entry{job: job, sched: sched})
	s.logger.Info("job scheduled", zap.String("job", job.Name), zap.String("schedule", spec))
	return true
}

// Len is the number of registered jobs.
func (s *Scheduler) Len() int { return len(s.entries) }

// Start launches one loop per job. Loops stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	for _, e := range s.entries {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, e)
		}()
	}
}

// Wait blocks until every loop has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, e entry) {
	for {
		now := s.now().In(s.loc)
		next := e.sched.Next(now)
		wait := next.Sub(now)
		s.logger.Info("next run",
			zap.String("job", e.job.Name),
			zap.String("at", next.Format("Mon Jan 2 15:04")),
			zap.Duration("in", wait.Round(time.Minute)),
		)
		if err := s.sleep(ctx, wait); err != nil {
			return
		}
		e.job.Fn(ctx)
		if ctx.Err() != nil {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
