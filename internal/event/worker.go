package event

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Runner is a long-running consumer.
type Runner interface {
	Start(ctx context.Context) error
	Topic() string
}

// Worker runs the lane consumers side by side. When one stops with an
// error the others are canceled.
type Worker struct {
	runners []Runner
	logger  *slog.Logger
}

// NewWorker creates a worker over runners.
func NewWorker(logger *slog.Logger, runners ...Runner) *Worker {
	return &Worker{runners: runners, logger: logger}
}

// Run blocks until ctx is canceled or a consumer fails.
func (w *Worker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range w.runners {
		g.Go(func() error {
			w.logger.Info("starting lane consumer", slog.String("topic", r.Topic()))
			return r.Start(gctx)
		})
	}
	return g.Wait()
}
