package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glyphbot/glyph/internal/moderation/classifier"
	"github.com/glyphbot/glyph/internal/moderation/queue"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("glyph/moderation/worker")

// Counter counts scanned messages.
type Counter interface {
	Inc()
	Total() int64
}

// Worker pulls queued messages one per tick, scores them and reports the
// flagged ones.
type Worker struct {
	queue      queue.Queue
	scorer     classifier.Scorer
	normalizer *classifier.Normalizer
	thresholds classifier.Thresholds
	reporter   *Reporter
	counter    Counter
	interval   time.Duration
	running    atomic.Bool
	mu         sync.Mutex
	workerID   string
	logger     *zap.Logger
}

// New creates a classifier worker. counter may be nil.
func New(
	q queue.Queue, scorer classifier.Scorer, reporter *Reporter, counter Counter,
	thresholds classifier.Thresholds, interval time.Duration, logger *zap.Logger,
) *Worker {
	return &Worker{
		queue:      q,
		scorer:     scorer,
		normalizer: classifier.NewNormalizer(),
		thresholds: thresholds,
		reporter:   reporter,
		counter:    counter,
		interval:   interval,
		workerID:   uuid.New().String(),
		logger:     logger.Named("classifier_worker"),
	}
}

// Running reports whether the worker loop is active.
func (w *Worker) Running() bool {
	return w.running.Load()
}

// Run processes one item per interval until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.running.Store(true)
	defer w.running.Store(false)

	w.logger.Info("Classifier worker started",
		zap.String("workerID", w.workerID),
		zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Classifier worker stopped", zap.String("workerID", w.workerID))
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick processes at most one queued message. It returns false when nothing
// was processed because the queue was empty or could not be read.
func (w *Worker) Tick(ctx context.Context) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	msg, err := w.queue.Dequeue(ctx)
	if err != nil {
		w.logger.Error("Failed to read moderation queue", zap.Error(err))
		return false
	}

	if msg == nil {
		return false
	}

	w.process(ctx, msg)

	return true
}

// process classifies a message. Failures are logged and the message dropped.
func (w *Worker) process(ctx context.Context, msg *queue.Message) {
	if w.counter != nil {
		w.counter.Inc()
	}

	ctx, span := tracer.Start(ctx, "worker.process")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("guild_id", int64(msg.GuildID)),
		attribute.Int64("message_id", int64(msg.MessageID)))

	logger := w.logger.With(
		zap.Uint64("guildID", uint64(msg.GuildID)),
		zap.Uint64("messageID", uint64(msg.MessageID)))

	text := w.normalizer.Normalize(msg.Content)
	if text == "" {
		logger.Debug("Message empty after normalization")
		return
	}

	scores, err := w.scorer.Score(ctx, text)
	if err != nil {
		logger.Error("Failed to score message", zap.Error(err))
		span.SetStatus(codes.Error, err.Error())

		return
	}

	verdict := classifier.Decide(scores, w.thresholds)
	logger.Debug("Message scored",
		zap.Any("scores", scores),
		zap.Float64("mean", verdict.Mean),
		zap.Bool("flagged", verdict.Flagged))
	span.SetAttributes(attribute.Bool("flagged", verdict.Flagged))

	if !verdict.Flagged {
		return
	}

	reportID, err := w.reporter.Report(ctx, msg, scores)
	if err != nil {
		logger.Error("Failed to report flagged message", zap.Error(err))
		span.SetStatus(codes.Error, err.Error())

		return
	}

	logger.Info("Flagged message reported",
		zap.String("highest", verdict.Highest),
		zap.Float64("score", verdict.HighestScore),
		zap.Uint64("reportID", uint64(reportID)))
}
