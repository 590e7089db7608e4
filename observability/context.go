package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RunContext holds observability context for one flow run.
type RunContext struct {
	ServiceName string
	FlowName    string
	FlowID      string
	StartTime   time.Time
	Metrics     *Metrics
}

// NewRunContext creates a run context for a flow. A nil metrics handle means
// metric recording is silently skipped.
func NewRunContext(serviceName, flowName, flowID string, metrics *Metrics) *RunContext {
	return &RunContext{
		ServiceName: serviceName,
		FlowName:    flowName,
		FlowID:      flowID,
		StartTime:   time.Now(),
		Metrics:     metrics,
	}
}

// runContextKey is the context key for RunContext.
type runContextKey struct{}

// WithRunContext stores a RunContext in the context.
func WithRunContext(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

// RunContextFromContext retrieves the RunContext from context, or nil.
func RunContextFromContext(ctx context.Context) *RunContext {
	if rc, ok := ctx.Value(runContextKey{}).(*RunContext); ok {
		return rc
	}
	return nil
}

// StartSpanForRun starts a traced span for the run and records the flow
// start metric.
func (rc *RunContext) StartSpanForRun(ctx context.Context, spanName string) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, spanName)
	span.SetAttributes(
		attribute.String(AttrFlowName, rc.FlowName),
		attribute.String(AttrFlowID, rc.FlowID),
	)
	if rc.ServiceName != "" {
		span.SetAttributes(attribute.String(AttrServiceName, rc.ServiceName))
	}

	rc.Metrics.RecordFlowStart(ctx)
	return ctx, span
}

// EndRun ends the span and records the run-end metrics.
func (rc *RunContext) EndRun(ctx context.Context, span trace.Span, status string, err error) {
	duration := time.Since(rc.StartTime)

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}

	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	span.End()

	rc.Metrics.RecordFlowEnd(ctx, rc.FlowName, status, duration)
}

// Duration returns the elapsed time since the run started.
func (rc *RunContext) Duration() time.Duration {
	return time.Since(rc.StartTime)
}
