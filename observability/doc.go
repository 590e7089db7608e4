// Package observability provides OpenTelemetry tracing and metrics
// integration for dataflow pipelines.
//
// Tracing:
//
//	cfg := observability.DefaultTracerConfig("my-service")
//	tp, err := observability.InitTracer(ctx, &cfg)
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanFlowRun)
//	defer span.End()
//
// Metrics:
//
//	mcfg := observability.DefaultMeterConfig("my-service")
//	mp, err := observability.InitMeter(ctx, &mcfg)
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("my-service"))
//	metrics.RecordItemsMoved(ctx, "orders", 1)
//
// A RunContext ties one flow run to a span and the flow lifecycle metrics:
//
//	rc := observability.NewRunContext("my-service", "orders", runID, metrics)
//	ctx, span := rc.StartSpanForRun(ctx, observability.SpanFlowRun)
//	defer rc.EndRun(ctx, span, "ok", nil)
package observability
