package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Task is a unit of scheduled work.
type Task func(ctx context.Context) error

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	// Spec is a standard cron expression or descriptor such as "@every 10m".
	Spec string

	// Timeout bounds a single task run. Default: 5 minutes.
	Timeout time.Duration

	Logger zerolog.Logger
}

// Scheduler runs a task on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewScheduler creates a scheduler for task. It does not start it.
func NewScheduler(cfg SchedulerConfig, task Task) (*Scheduler, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	logger := cronLogger{logger: cfg.Logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    c,
		timeout: timeout,
		logger:  cfg.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	if _, err := c.AddFunc(cfg.Spec, s.wrap(task)); err != nil {
		cancel()
		return nil, fmt.Errorf("parsing schedule %q: %w", cfg.Spec, err)
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.logger.Info().Msg("scheduler started")
	s.cron.Start()
}

// Stop cancels any running task and waits for it to return or for ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	var stopped context.Context
	s.once.Do(func() {
		s.cancel()
		stopped = s.cron.Stop()
	})
	if stopped == nil {
		return nil
	}

	select {
	case <-stopped.Done():
		s.logger.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) wrap(task Task) func() {
	return func() {
		start := time.Now()

		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()

		if err := task(ctx); err != nil {
			s.logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("scheduled task failed")
			return
		}
		s.logger.Debug().Dur("duration", time.Since(start)).Msg("scheduled task completed")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
