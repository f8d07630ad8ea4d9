package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs housekeeping jobs on cron schedules (UTC).
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// AddJob registers fn under a standard five-field cron spec. An empty spec
// disables the job and is not an error.
func (s *Scheduler) AddJob(name, spec string, fn func(ctx context.Context) error) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		s.logger.Info("scheduled job disabled", "job", name)
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() { s.run(name, fn) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.logger.Info("scheduled job registered", "job", name, "spec", spec)
	return nil
}

func (s *Scheduler) run(name string, fn func(ctx context.Context) error) {
	start := time.Now()
	if err := fn(s.ctx); err != nil {
		s.logger.Error("scheduled job failed", "job", name, "error", err)
		return
	}
	s.logger.Debug("scheduled job finished", "job", name, "duration", time.Since(start))
}

func (s *Scheduler) Start() {
	if len(s.cron.Entries()) == 0 {
		return
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}
