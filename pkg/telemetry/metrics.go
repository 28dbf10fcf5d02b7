// pkg/telemetry/metrics.go
package telemetry

import (
	"context"
	"sync"
	"time"

	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the run's instruments. They record into whatever meter
// provider they were built from; the global provider is a noop unless the
// embedding program installs one.
type Metrics struct {
	llmRequests metric.Int64Counter
	llmDuration metric.Float64Histogram
	categories  metric.Int64Counter
	pushes      metric.Int64Counter
}

// NewMetrics creates the instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter("autocommit")

	llmRequests, err := meter.Int64Counter("autocommit_llm_requests_total",
		metric.WithDescription("Language model requests by outcome"))
	if err != nil {
		return nil, cerr.Wrap(err, "failed to create llm_requests counter")
	}

	llmDuration, err := meter.Float64Histogram("autocommit_llm_request_duration_seconds",
		metric.WithDescription("Language model request latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, cerr.Wrap(err, "failed to create llm_request_duration histogram")
	}

	categories, err := meter.Int64Counter("autocommit_categories_total",
		metric.WithDescription("Categories processed by category and outcome"))
	if err != nil {
		return nil, cerr.Wrap(err, "failed to create categories counter")
	}

	pushes, err := meter.Int64Counter("autocommit_pushes_total",
		metric.WithDescription("Push attempts by outcome"))
	if err != nil {
		return nil, cerr.Wrap(err, "failed to create pushes counter")
	}

	return &Metrics{
		llmRequests: llmRequests,
		llmDuration: llmDuration,
		categories:  categories,
		pushes:      pushes,
	}, nil
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// DefaultMetrics returns instruments bound to the global meter provider.
// The noop provider cannot fail, so neither can this.
func DefaultMetrics() *Metrics {
	defaultOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic(err)
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// RecordLLMRequest counts one request and its latency. outcome is "ok",
// "error" or "breaker_open".
func (m *Metrics) RecordLLMRequest(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.llmRequests.Add(ctx, 1, attrs)
	m.llmDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordCategory counts one processed category.
func (m *Metrics) RecordCategory(ctx context.Context, category, outcome string) {
	if m == nil {
		return
	}
	m.categories.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("outcome", outcome)))
}

// RecordPush counts one push attempt.
func (m *Metrics) RecordPush(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.pushes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
