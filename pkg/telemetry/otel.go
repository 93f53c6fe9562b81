package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/spawn-mcp/tripsynth/telemetry"

const (
	operationCountMetric    = "tripsynth.operation.count"
	operationDurationMetric = "tripsynth.operation.duration"
)

// instruments mirrors completed metrics into OpenTelemetry
type instruments struct {
	count    metric.Int64Counter
	duration metric.Float64Histogram
}

func newInstruments(mp metric.MeterProvider) *instruments {
	var meter metric.Meter
	if mp == nil {
		meter = otel.Meter(meterName)
	} else {
		meter = mp.Meter(meterName)
	}

	count, err := meter.Int64Counter(operationCountMetric,
		metric.WithDescription("Completed operations by category and outcome"))
	if err != nil {
		return nil
	}
	duration, err := meter.Float64Histogram(operationDurationMetric,
		metric.WithDescription("Operation duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil
	}
	return &instruments{count: count, duration: duration}
}

func (i *instruments) record(ctx context.Context, category Category, success bool, d time.Duration) {
	if i == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("category", string(category)),
		attribute.String("outcome", outcome),
	)
	i.count.Add(ctx, 1, attrs)
	i.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("category", string(category))))
}
