package main

import (
	"context"
	"fmt"
	"time"

	"github.com/imeyer/tdformat/pkg/discuss"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TracedStore decorates a discuss.Store with a span and a duration
// measurement per call.
type TracedStore struct {
	wrapped   discuss.Store
	telemetry *TelemetryConfig
}

func NewTracedStore(wrapped discuss.Store, telemetry *TelemetryConfig) *TracedStore {
	return &TracedStore{
		wrapped:   wrapped,
		telemetry: telemetry,
	}
}

func (t *TracedStore) start(ctx context.Context, name string, ids int) (context.Context, trace.Span, func(error)) {
	ctx, span := t.telemetry.Tracer.Start(ctx, name+"(query)",
		trace.WithAttributes(attribute.Int("query.ids", ids)))
	start := time.Now()

	return ctx, span, func(err error) {
		duration := time.Since(start).Seconds()
		if t.telemetry.Metrics.StoreDuration != nil {
			t.telemetry.Metrics.StoreDuration.Record(ctx, duration,
				metric.WithAttributes(attribute.String("query", name)))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func (t *TracedStore) Comments(ctx context.Context, ids []int64) ([]discuss.Comment, error) {
	ctx, span, done := t.start(ctx, "Comments", len(ids))

	comments, err := t.wrapped.Comments(ctx, ids)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("query error: %w", err)
	}
	span.SetAttributes(attribute.Int("query.rows", len(comments)))
	done(nil)

	return comments, nil
}

func (t *TracedStore) MessageTexts(ctx context.Context, ids []int64) (map[int64]discuss.MessageText, error) {
	ctx, span, done := t.start(ctx, "MessageTexts", len(ids))

	texts, err := t.wrapped.MessageTexts(ctx, ids)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("query error: %w", err)
	}
	span.SetAttributes(attribute.Int("query.rows", len(texts)))
	done(nil)

	return texts, nil
}

func (t *TracedStore) TopicTitles(ctx context.Context, ids []int64) (map[int64]string, error) {
	ctx, span, done := t.start(ctx, "TopicTitles", len(ids))

	titles, err := t.wrapped.TopicTitles(ctx, ids)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("query error: %w", err)
	}
	span.SetAttributes(attribute.Int("query.rows", len(titles)))
	done(nil)

	return titles, nil
}

func (t *TracedStore) Ping(ctx context.Context) error {
	ctx, _, done := t.start(ctx, "Ping", 0)

	err := t.wrapped.Ping(ctx)
	done(err)
	return err
}
