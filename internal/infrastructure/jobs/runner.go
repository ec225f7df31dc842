package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Runner schedules the engine's periodic jobs on one cron instance.
// Jobs receive the runner's base context so shutdown cancels in-flight
// work; a job error is logged, never fatal.
type Runner struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

// NewRunner creates a job runner
func NewRunner(logger zerolog.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron:   cron.New(cron.WithSeconds()),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With().Str("component", "jobs").Logger(),
	}
}

// AddEvery schedules fn on a fixed interval
func (r *Runner) AddEvery(name string, every time.Duration, fn func(ctx context.Context) error) error {
	_, err := r.cron.AddFunc(fmt.Sprintf("@every %s", every), func() {
		if r.ctx.Err() != nil {
			return
		}
		if err := fn(r.ctx); err != nil {
			r.logger.Error().Err(err).Str("job", name).Msg("job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

// Start launches the scheduler in its own goroutine
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop cancels running jobs and waits for them to finish
func (r *Runner) Stop() {
	r.cancel()
	<-r.cron.Stop().Done()
}
