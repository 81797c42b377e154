package metrics

import (
	"context"
	"fmt"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
// A nil *AppMetrics is valid and records nothing.
type AppMetrics struct {
	SuggestRequestsTotal   metric.Int64Counter
	SuggestDurationSeconds metric.Float64Histogram
	StageDurationSeconds   metric.Float64Histogram
	FallbacksTotal         metric.Int64Counter
	DegradedTotal          metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// New creates the instruments on meter.
func New(meter metric.Meter) (*AppMetrics, error) {
	var err error
	m := &AppMetrics{}

	m.SuggestRequestsTotal, err = meter.Int64Counter(
		"suggest_requests_total",
		metric.WithDescription("Total number of suggest requests by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("suggest_requests_total: %w", err)
	}

	m.SuggestDurationSeconds, err = meter.Float64Histogram(
		"suggest_duration_seconds",
		metric.WithDescription("End-to-end latency of suggest requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("suggest_duration_seconds: %w", err)
	}

	m.StageDurationSeconds, err = meter.Float64Histogram(
		"suggest_stage_duration_seconds",
		metric.WithDescription("Duration of each orchestration stage in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("suggest_stage_duration_seconds: %w", err)
	}

	m.FallbacksTotal, err = meter.Int64Counter(
		"suggest_fallbacks_total",
		metric.WithDescription("Responses served from the template fallback, by reason"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return nil, fmt.Errorf("suggest_fallbacks_total: %w", err)
	}

	m.DegradedTotal, err = meter.Int64Counter(
		"suggest_degraded_total",
		metric.WithDescription("Responses flagged as degraded"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return nil, fmt.Errorf("suggest_degraded_total: %w", err)
	}
	return m, nil
}

// InitAppMetrics initializes the global metrics instruments ONLY ONCE from
// the global MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		m, err := New(otel.GetMeterProvider().Meter("play-plan"))
		if err != nil {
			log.Fatalf("Metrics: %v", err)
		}
		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the global instance, or nil when InitAppMetrics was never called.
func Get() *AppMetrics {
	return appMetrics
}

func (m *AppMetrics) RecordRequest(ctx context.Context, outcome string, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.SuggestRequestsTotal.Add(ctx, 1, attrs)
	m.SuggestDurationSeconds.Record(ctx, seconds, attrs)
}

func (m *AppMetrics) RecordStage(ctx context.Context, stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageDurationSeconds.Record(ctx, seconds, metric.WithAttributes(attribute.String("stage", stage)))
}

func (m *AppMetrics) RecordFallback(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.FallbacksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *AppMetrics) RecordDegraded(ctx context.Context) {
	if m == nil {
		return
	}
	m.DegradedTotal.Add(ctx, 1)
}
