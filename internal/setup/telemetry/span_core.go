package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"
)

// SpanCore implements zapcore.Core to record error entries as spans.
type SpanCore struct {
	zapcore.LevelEnabler
	tracer trace.Tracer
	fields []zapcore.Field
}

// NewSpanCore creates a core that records error entries as spans.
func NewSpanCore(enab zapcore.LevelEnabler) zapcore.Core {
	return &SpanCore{
		LevelEnabler: enab,
		tracer:       otel.Tracer("glyph/logs"),
	}
}

func (c *SpanCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(clone.fields[:len(clone.fields):len(clone.fields)], fields...)

	return &clone
}

func (c *SpanCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) && ent.Level >= zapcore.ErrorLevel {
		return ce.AddCore(ent, c)
	}

	return ce
}

func (c *SpanCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	_, span := c.tracer.Start(context.Background(), "error."+errorCategory(ent))
	defer span.End()

	enc := zapcore.NewMapObjectEncoder()
	for _, field := range c.fields {
		field.AddTo(enc)
	}

	for _, field := range fields {
		field.AddTo(enc)
	}

	attrs := []attribute.KeyValue{
		attribute.String("error.message", ent.Message),
		attribute.String("error.level", ent.Level.String()),
		attribute.String("error.caller", ent.Caller.String()),
		attribute.String("logger", ent.LoggerName),
	}

	for key, value := range enc.Fields {
		attrs = append(attrs, attribute.String(key, fmt.Sprint(value)))
	}

	span.SetAttributes(attrs...)

	return nil
}

func (c *SpanCore) Sync() error {
	return nil
}

// errorCategory groups entries by the package that logged them.
func errorCategory(ent zapcore.Entry) string {
	switch fn := ent.Caller.Function; {
	case strings.Contains(fn, "database"):
		return "database"
	case strings.Contains(fn, "redis"), strings.Contains(fn, "settings"):
		return "cache"
	case strings.Contains(fn, "moderation"):
		return "moderation"
	case strings.Contains(fn, "bot"):
		return "bot"
	case strings.Contains(fn, "setup"):
		return "setup"
	default:
		return "application"
	}
}
