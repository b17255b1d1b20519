package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/ndewijer/investment-ledger/internal/model"
)

// Refresher is what the scheduler runs on every tick.
type Refresher interface {
	Refresh(ctx context.Context) (*model.RefreshReport, error)
}

// Scheduler runs the portfolio refresh on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	logger  zerolog.Logger
	timeout time.Duration
}

// NewScheduler registers svc.Refresh under schedule, a robfig/cron expression such as
// "@every 1h" or "0 3 * * *". An empty schedule returns a nil Scheduler; Start and Stop on a
// nil Scheduler do nothing.
//
// Overlapping ticks are skipped and a panicking refresh is recovered and logged.
func NewScheduler(schedule string, svc Refresher, logger zerolog.Logger) (*Scheduler, error) {
	if schedule == "" {
		return nil, nil
	}

	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		timeout: 10 * time.Minute,
	}

	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		report, err := svc.Refresh(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("scheduled portfolio refresh failed")
			return
		}
		s.logger.Info().
			Int("assets", report.Assets).
			Str("duration", report.Duration).
			Msg("scheduled portfolio refresh completed")
	})
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	if s == nil {
		return
	}
	s.cron.Start()
}

// Stop stops the schedule and waits for a running refresh to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	if s == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("scheduler stopped before refresh completed")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
