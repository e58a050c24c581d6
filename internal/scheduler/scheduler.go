package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CycleFunc performs one unit of work. started is when the cycle began.
type CycleFunc func(ctx context.Context, started time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
	// Now is overridable for tests.
	Now func() time.Time
}

// Scheduler runs cycles back to back with a fixed sleep between them. A cycle always
// finishes before the sleep starts, so cycles never overlap.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking cycle and then sleeping Interval, until ctx is cancelled.
// Cycle errors are logged and the loop carries on.
func (s *Scheduler) Run(ctx context.Context, cycle CycleFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	for n := 1; ; n++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		started := s.opts.Now().UTC()
		if err := cycle(ctx, started); err != nil {
			s.logger.Error().Err(err).Int("cycle", n).Msg("cycle failed")
		} else {
			s.logger.Debug().Int("cycle", n).Dur("took", s.opts.Now().Sub(started)).Msg("cycle complete")
		}

		if err := sleep(ctx, s.opts.Interval); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
