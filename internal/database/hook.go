package database

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// slowQueryThreshold is the duration above which a successful query is logged as a warning.
const slowQueryThreshold = 500 * time.Millisecond

// Hook implements bun.QueryHook and logs every query through zap.
type Hook struct {
	logger *zap.Logger
}

// NewHook creates a new Hook with zap logger.
func NewHook(logger *zap.Logger) *Hook {
	return &Hook{logger: logger.Named("query")}
}

// BeforeQuery implements bun.QueryHook.
func (h *Hook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery logs the query, its operation and how long it took.
func (h *Hook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	fields := []zap.Field{
		zap.String("operation", event.Operation()),
		zap.String("query", event.Query),
		zap.Duration("duration", elapsed),
	}

	switch {
	case event.Err != nil:
		h.logger.Error("Query failed", append(fields, zap.Error(event.Err))...)
	case elapsed > slowQueryThreshold:
		h.logger.Warn("Slow query", fields...)
	default:
		h.logger.Debug("Query executed", fields...)
	}
}
