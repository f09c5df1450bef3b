// Package observability provides a metrics extension for the stream
// ledger that records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/streamledger/batch"
	"github.com/xraph/streamledger/plugin"
	"github.com/xraph/streamledger/settlement"
	"github.com/xraph/streamledger/stream"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnStreamCreated    = (*MetricsExtension)(nil)
	_ plugin.OnStreamPaused     = (*MetricsExtension)(nil)
	_ plugin.OnStreamResumed    = (*MetricsExtension)(nil)
	_ plugin.OnStreamCancelled  = (*MetricsExtension)(nil)
	_ plugin.OnStreamSettled    = (*MetricsExtension)(nil)
	_ plugin.OnWithdrawal       = (*MetricsExtension)(nil)
	_ plugin.OnReceiptsFlushed  = (*MetricsExtension)(nil)
	_ plugin.OnOverflowDetected = (*MetricsExtension)(nil)
	_ plugin.OnBatchValidated   = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an engine plugin to automatically track settlement metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Stream metrics
	StreamsCreated   Counter
	StreamsPaused    Counter
	StreamsResumed   Counter
	StreamsCancelled Counter
	StreamsSettled   Counter

	// Settlement metrics
	Withdrawals         Counter
	ReceiptBatchSize    Histogram
	ReceiptFlushLatency Histogram

	// Batch reconciliation metrics
	BatchesValidated Counter
	BatchFailures    Counter
	BatchSize        Histogram

	// Error metrics
	OverflowsDetected Counter
	StoreErrors       Counter
	PluginErrors      Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Stream metrics
		StreamsCreated:   factory.Counter("streamledger.stream.created"),
		StreamsPaused:    factory.Counter("streamledger.stream.paused"),
		StreamsResumed:   factory.Counter("streamledger.stream.resumed"),
		StreamsCancelled: factory.Counter("streamledger.stream.cancelled"),
		StreamsSettled:   factory.Counter("streamledger.stream.settled"),

		// Settlement metrics
		Withdrawals:         factory.Counter("streamledger.settlement.withdrawals"),
		ReceiptBatchSize:    factory.Histogram("streamledger.receipt.batch.size"),
		ReceiptFlushLatency: factory.Histogram("streamledger.receipt.flush.latency_ms"),

		// Batch reconciliation metrics
		BatchesValidated: factory.Counter("streamledger.batch.validated"),
		BatchFailures:    factory.Counter("streamledger.batch.failures"),
		BatchSize:        factory.Histogram("streamledger.batch.size"),

		// Error metrics
		OverflowsDetected: factory.Counter("streamledger.overflow.detected"),
		StoreErrors:       factory.Counter("streamledger.store.errors"),
		PluginErrors:      factory.Counter("streamledger.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Stream lifecycle hooks
// ──────────────────────────────────────────────────

// OnStreamCreated implements plugin.OnStreamCreated.
func (m *MetricsExtension) OnStreamCreated(_ context.Context, _ *stream.Stream) error {
	m.StreamsCreated.Inc()
	return nil
}

// OnStreamPaused implements plugin.OnStreamPaused.
func (m *MetricsExtension) OnStreamPaused(_ context.Context, _ *stream.Stream) error {
	m.StreamsPaused.Inc()
	return nil
}

// OnStreamResumed implements plugin.OnStreamResumed.
func (m *MetricsExtension) OnStreamResumed(_ context.Context, _ *stream.Stream) error {
	m.StreamsResumed.Inc()
	return nil
}

// OnStreamCancelled implements plugin.OnStreamCancelled.
func (m *MetricsExtension) OnStreamCancelled(_ context.Context, _ *stream.Stream) error {
	m.StreamsCancelled.Inc()
	return nil
}

// OnStreamSettled implements plugin.OnStreamSettled.
func (m *MetricsExtension) OnStreamSettled(_ context.Context, _ *stream.Stream) error {
	m.StreamsSettled.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnWithdrawal implements plugin.OnWithdrawal.
func (m *MetricsExtension) OnWithdrawal(_ context.Context, _ *stream.Stream, _ *settlement.Receipt) error {
	m.Withdrawals.Inc()
	return nil
}

// OnReceiptsFlushed implements plugin.OnReceiptsFlushed.
func (m *MetricsExtension) OnReceiptsFlushed(_ context.Context, count int, elapsed time.Duration) error {
	m.ReceiptBatchSize.Observe(float64(count))
	m.ReceiptFlushLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// OnOverflowDetected implements plugin.OnOverflowDetected.
func (m *MetricsExtension) OnOverflowDetected(_ context.Context, _, _ string, _ error) error {
	m.OverflowsDetected.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Batch hooks
// ──────────────────────────────────────────────────

// OnBatchValidated implements plugin.OnBatchValidated.
func (m *MetricsExtension) OnBatchValidated(_ context.Context, size int, failures []*batch.Error) error {
	m.BatchesValidated.Inc()
	m.BatchSize.Observe(float64(size))
	if len(failures) > 0 {
		m.BatchFailures.Add(float64(len(failures)))
	}
	return nil
}
