package queue

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrFeedFull is returned by Push when the ingestion backlog is full.
var ErrFeedFull = errors.New("ingestion backlog is full")

// Feed ingests observed messages one at a time, so they reach the queue in
// the order they were pushed.
type Feed struct {
	ingestor *Ingestor
	inbound  chan Inbound
	timeout  time.Duration
	logger   *zap.Logger
}

// NewFeed creates a feed holding up to backlog pending messages. Each
// ingestion is bounded by timeout.
func NewFeed(ingestor *Ingestor, backlog int, timeout time.Duration, logger *zap.Logger) *Feed {
	return &Feed{
		ingestor: ingestor,
		inbound:  make(chan Inbound, backlog),
		timeout:  timeout,
		logger:   logger.Named("feed"),
	}
}

// Push hands msg to the feed without blocking. Messages the ingestor would
// skip are dropped here.
func (f *Feed) Push(msg Inbound) error {
	if skippable(msg) {
		return nil
	}

	select {
	case f.inbound <- msg:
		return nil
	default:
		return ErrFeedFull
	}
}

// Run ingests pushed messages until ctx is done.
func (f *Feed) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-f.inbound:
			f.ingest(ctx, msg)
		}
	}
}

func (f *Feed) ingest(ctx context.Context, msg Inbound) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if _, err := f.ingestor.Ingest(ctx, msg); err != nil {
		f.logger.Error("Failed to ingest message",
			zap.Uint64("guildID", uint64(msg.GuildID)),
			zap.Uint64("messageID", uint64(msg.MessageID)),
			zap.Error(err))
	}
}
