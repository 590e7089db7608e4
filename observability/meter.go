package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/version"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development. The
// service version comes from the build's embedded VCS info.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.GetShortVersion(),
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds OpenTelemetry metric instruments for dataflow observability.
// A nil *Metrics is valid and records nothing, so flows can run unmetered.
type Metrics struct {
	meter          metric.Meter
	itemsMoved     metric.Int64Counter
	transferErrors metric.Int64Counter
	dataLoss       metric.Int64Counter
	putRetries     metric.Int64Histogram
	reconnects     metric.Int64Counter
	flowsActive    metric.Int64UpDownCounter
	flowRuns       metric.Int64Counter
	flowDuration   metric.Float64Histogram
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	itemsMoved, err := meter.Int64Counter("pipekit.items.moved",
		metric.WithDescription("Items delivered to a destination by a flow"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipekit.items.moved counter: %w", err)
	}

	transferErrors, err := meter.Int64Counter("pipekit.transfer.errors",
		metric.WithDescription("Transfer failures by flow and error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipekit.transfer.errors counter: %w", err)
	}

	dataLoss, err := meter.Int64Counter("pipekit.data.loss",
		metric.WithDescription("Items dropped after exhausting delivery attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipekit.data.loss counter: %w", err)
	}

	putRetries, err := meter.Int64Histogram("pipekit.put.retries",
		metric.WithDescription("Put attempts needed per delivered item"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipekit.put.retries histogram: %w", err)
	}

	reconnects, err := meter.Int64Counter("pipekit.reconnects",
		metric.WithDescription("Stream reconnection attempts by flow"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipekit.reconnects counter: %w", err)
	}

	flowsActive, err := meter.Int64UpDownCounter("pipekit.flows.active",
		metric.WithDescription("Number of currently running flows"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipekit.flows.active gauge: %w", err)
	}

	flowRuns, err := meter.Int64Counter("pipekit.flow.runs",
		metric.WithDescription("Completed flow runs by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipekit.flow.runs counter: %w", err)
	}

	flowDuration, err := meter.Float64Histogram("pipekit.flow.duration",
		metric.WithDescription("Duration of flow runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipekit.flow.duration histogram: %w", err)
	}

	return &Metrics{
		meter:          meter,
		itemsMoved:     itemsMoved,
		transferErrors: transferErrors,
		dataLoss:       dataLoss,
		putRetries:     putRetries,
		reconnects:     reconnects,
		flowsActive:    flowsActive,
		flowRuns:       flowRuns,
		flowDuration:   flowDuration,
	}, nil
}

// RecordItemsMoved adds n delivered items for a flow.
func (m *Metrics) RecordItemsMoved(ctx context.Context, flow string, n int64) {
	if m == nil {
		return
	}
	m.itemsMoved.Add(ctx, n, metric.WithAttributes(
		attribute.String("flow", flow),
	))
}

// RecordTransferError counts a transfer failure by error code.
func (m *Metrics) RecordTransferError(ctx context.Context, flow, code string) {
	if m == nil {
		return
	}
	m.transferErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("code", code),
	))
}

// RecordDataLoss counts items dropped after delivery gave up.
func (m *Metrics) RecordDataLoss(ctx context.Context, flow string, n int64) {
	if m == nil {
		return
	}
	m.dataLoss.Add(ctx, n, metric.WithAttributes(
		attribute.String("flow", flow),
	))
}

// RecordPutAttempts records how many attempts one delivered item needed.
func (m *Metrics) RecordPutAttempts(ctx context.Context, flow string, attempts int64) {
	if m == nil {
		return
	}
	m.putRetries.Record(ctx, attempts, metric.WithAttributes(
		attribute.String("flow", flow),
	))
}

// RecordReconnect counts one reconnection attempt for a flow.
func (m *Metrics) RecordReconnect(ctx context.Context, flow string) {
	if m == nil {
		return
	}
	m.reconnects.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", flow),
	))
}

// RecordFlowStart increments the active flow count.
func (m *Metrics) RecordFlowStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.flowsActive.Add(ctx, 1)
}

// RecordFlowEnd decrements active flows and records the completed run.
func (m *Metrics) RecordFlowEnd(ctx context.Context, flow, status string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("status", status),
	)
	m.flowsActive.Add(ctx, -1)
	m.flowRuns.Add(ctx, 1, attrs)
	m.flowDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("flow", flow),
	))
}

// ObservePipeDepth registers an observable gauge reporting the buffered item
// count of a named pipe. The depth callback is invoked on every export.
func (m *Metrics) ObservePipeDepth(name string, depth func() int64) error {
	if m == nil {
		return nil
	}
	_, err := m.meter.Int64ObservableGauge("pipekit.pipe.depth",
		metric.WithDescription("Buffered items in a pipe"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(depth(), metric.WithAttributes(attribute.String("pipe", name)))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("creating pipekit.pipe.depth gauge: %w", err)
	}
	return nil
}
