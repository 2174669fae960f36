package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// BusinessMetrics holds the application-specific instruments
type BusinessMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	ImportRunsTotal       metric.Int64Counter
	ImportRunDuration     metric.Float64Histogram
	ImportActiveRuns      metric.Int64UpDownCounter
	ImportChunksCommitted metric.Int64Counter
	ImportRecordsWritten  metric.Int64Counter

	AnalyticsQueryDuration  metric.Float64Histogram
	AnalyticsSymbolsSkipped metric.Int64Counter

	StoreCallDuration metric.Float64Histogram
	StoreErrors       metric.Int64Counter

	WebSocketClients         metric.Int64UpDownCounter
	WebSocketMessagesSent    metric.Int64Counter
	WebSocketMessagesDropped metric.Int64Counter
}

// CreateBusinessMetrics registers every instrument on meter
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	m := &BusinessMetrics{}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests")); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter("http_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests")); err != nil {
		return nil, err
	}

	if m.ImportRunsTotal, err = meter.Int64Counter("import_runs_total",
		metric.WithDescription("Import runs by terminal status")); err != nil {
		return nil, err
	}
	if m.ImportRunDuration, err = meter.Float64Histogram("import_run_duration_seconds",
		metric.WithDescription("Import run duration in seconds"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.ImportActiveRuns, err = meter.Int64UpDownCounter("import_active_runs",
		metric.WithDescription("Number of import runs in flight")); err != nil {
		return nil, err
	}
	if m.ImportChunksCommitted, err = meter.Int64Counter("import_chunks_committed_total",
		metric.WithDescription("Chunks committed to the price store")); err != nil {
		return nil, err
	}
	if m.ImportRecordsWritten, err = meter.Int64Counter("import_records_written_total",
		metric.WithDescription("Price observations written by the importer")); err != nil {
		return nil, err
	}

	if m.AnalyticsQueryDuration, err = meter.Float64Histogram("analytics_query_duration_seconds",
		metric.WithDescription("Analytics operation duration in seconds"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.AnalyticsSymbolsSkipped, err = meter.Int64Counter("analytics_symbols_skipped_total",
		metric.WithDescription("Symbols skipped because their spread is undefined")); err != nil {
		return nil, err
	}

	if m.StoreCallDuration, err = meter.Float64Histogram("store_call_duration_seconds",
		metric.WithDescription("Price store call duration in seconds"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.StoreErrors, err = meter.Int64Counter("store_errors_total",
		metric.WithDescription("Price store calls that failed")); err != nil {
		return nil, err
	}

	if m.WebSocketClients, err = meter.Int64UpDownCounter("websocket_clients",
		metric.WithDescription("Number of connected WebSocket clients")); err != nil {
		return nil, err
	}
	if m.WebSocketMessagesSent, err = meter.Int64Counter("websocket_messages_sent_total",
		metric.WithDescription("Messages queued to WebSocket clients")); err != nil {
		return nil, err
	}
	if m.WebSocketMessagesDropped, err = meter.Int64Counter("websocket_messages_dropped_total",
		metric.WithDescription("Messages dropped because a client could not keep up")); err != nil {
		return nil, err
	}

	return m, nil
}

// NoopBusinessMetrics returns instruments that discard everything
func NoopBusinessMetrics() *BusinessMetrics {
	m, _ := CreateBusinessMetrics(noop.NewMeterProvider().Meter(MeterName))
	return m
}

// RecordImportRun records a finished run
func (m *BusinessMetrics) RecordImportRun(ctx context.Context, status string, duration time.Duration) {
	m.ImportRunsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.ImportRunDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}

// RecordChunk records one committed chunk of n records
func (m *BusinessMetrics) RecordChunk(ctx context.Context, n int) {
	m.ImportChunksCommitted.Add(ctx, 1)
	m.ImportRecordsWritten.Add(ctx, int64(n))
}

// RecordAnalytics records the duration of an analytics operation
func (m *BusinessMetrics) RecordAnalytics(ctx context.Context, operation string, duration time.Duration, err error) {
	m.AnalyticsQueryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	))
}

// RecordStoreCall records the duration and outcome of a store call
func (m *BusinessMetrics) RecordStoreCall(ctx context.Context, operation string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	m.StoreCallDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.StoreErrors.Add(ctx, 1, attrs)
	}
}
