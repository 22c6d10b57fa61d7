package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Status is a snapshot of the classifier pipeline.
type Status struct {
	Running     bool
	QueueLength int
	Scanned     int64
}

// Status reads the current pipeline state. Scanned stays zero without a counter.
func (w *Worker) Status(ctx context.Context) (Status, error) {
	status := Status{Running: w.Running()}

	if w.counter != nil {
		status.Scanned = w.counter.Total()
	}

	n, err := w.queue.Len(ctx)
	if err != nil {
		return status, fmt.Errorf("failed to read queue length: %w", err)
	}

	status.QueueLength = n

	return status, nil
}

// ReportStatus logs the pipeline status every interval until ctx is done.
func (w *Worker) ReportStatus(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.logStatus(ctx)
		}
	}
}

func (w *Worker) logStatus(ctx context.Context) {
	status, err := w.Status(ctx)
	if err != nil {
		w.logger.Warn("Failed to read classifier status", zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("workerID", w.workerID),
		zap.Bool("running", status.Running),
		zap.Int("queueLength", status.QueueLength),
		zap.Int64("scanned", status.Scanned),
	}

	if !status.Running {
		w.logger.Warn("Classifier worker is not running", fields...)
		return
	}

	w.logger.Info("Classifier status", fields...)
}
