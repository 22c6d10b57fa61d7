package worker

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// Runner is a long running loop.
type Runner interface {
	Run(ctx context.Context) error
}

// Supervise runs runner until ctx is done, restarting it after restartDelay
// whenever it returns or panics.
func Supervise(ctx context.Context, runner Runner, restartDelay time.Duration, logger *zap.Logger) {
	for {
		var (
			pc  panics.Catcher
			err error
		)

		pc.Try(func() { err = runner.Run(ctx) })

		if ctx.Err() != nil {
			return
		}

		if recovered := pc.Recovered(); recovered != nil {
			logger.Error("Worker panicked",
				zap.Any("panic", recovered.Value),
				zap.ByteString("stack", recovered.Stack))
		} else {
			logger.Error("Worker exited unexpectedly", zap.Error(err))
		}

		logger.Info("Restarting worker", zap.Duration("delay", restartDelay))

		select {
		case <-ctx.Done():
			return
		case <-time.After(restartDelay):
		}
	}
}
