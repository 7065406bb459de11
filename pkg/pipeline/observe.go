package pipeline

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Aleph-Alpha/screensim/pkg/apperr"
)

const (
	flowIngest = "ingest"
	flowQuery  = "query"
)

// observer wraps pipeline stages in spans and duration metrics.
type observer struct {
	metrics Recorder
	tracer  Tracer
}

func newObserver(metrics Recorder, tracer Tracer) observer {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if tracer == nil {
		tracer = nopTracer{tracer: noop.NewTracerProvider().Tracer("")}
	}
	return observer{metrics: metrics, tracer: tracer}
}

// stage runs fn inside a "<flow>.<name>" span and records its duration.
func (o observer) stage(ctx context.Context, flow, name string, fn func(context.Context) error) error {
	ctx, span := o.tracer.StartSpan(ctx, flow+"."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	o.metrics.ObserveStage(flow, name, time.Since(start))
	if err != nil {
		o.tracer.RecordErrorOnSpan(span, err)
	}
	return err
}

// finish counts one run of flow and marks span failed when err is set.
func (o observer) finish(span trace.Span, flow string, err error) {
	o.metrics.ObserveRequest(flow, outcome(err))
	if err != nil {
		o.tracer.RecordErrorOnSpan(span, err)
	}
}

// outcome is the metric label for err.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrUnsupportedMedia):
		return "unsupported_media"
	case errors.Is(err, apperr.ErrValidation):
		return "validation"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrDependencyUnavailable):
		return "dependency_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(string, string)              {}
func (nopRecorder) ObserveStage(string, string, time.Duration) {}
func (nopRecorder) AddDedupDropped(int)                        {}

type nopTracer struct {
	tracer trace.Tracer
}

func (t nopTracer) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name)
}

func (nopTracer) RecordErrorOnSpan(trace.Span, error) {}
