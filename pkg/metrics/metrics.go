// Package metrics defines the service's OpenTelemetry instruments. They are
// exported through the Prometheus reader installed by pkg/otel.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/bturcanu/ingestbridge"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	syncRuns        metric.Int64Counter
	records         metric.Int64Counter
	skipped         metric.Int64Counter
	channelFailures metric.Int64Counter
	toolExecutions  metric.Int64Counter
	registeredTools metric.Int64UpDownCounter
}

// New creates the instruments on meter.
func New(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.syncRuns, err = meter.Int64Counter("ingest_sync_runs_total",
		metric.WithDescription("Sync passes by connector and result")); err != nil {
		return nil, fmt.Errorf("metrics sync_runs: %w", err)
	}
	if m.records, err = meter.Int64Counter("ingest_records_total",
		metric.WithDescription("Records handed to the sink by kind")); err != nil {
		return nil, fmt.Errorf("metrics records: %w", err)
	}
	if m.skipped, err = meter.Int64Counter("ingest_records_skipped_total",
		metric.WithDescription("Source items that produced no record, by reason")); err != nil {
		return nil, fmt.Errorf("metrics skipped: %w", err)
	}
	if m.channelFailures, err = meter.Int64Counter("ingest_group_failures_total",
		metric.WithDescription("Groups whose items could not be fetched")); err != nil {
		return nil, fmt.Errorf("metrics group_failures: %w", err)
	}
	if m.toolExecutions, err = meter.Int64Counter("tool_executions_total",
		metric.WithDescription("Remote tool executions by outcome")); err != nil {
		return nil, fmt.Errorf("metrics tool_executions: %w", err)
	}
	if m.registeredTools, err = meter.Int64UpDownCounter("tools_registered",
		metric.WithDescription("Tools currently present in the registry")); err != nil {
		return nil, fmt.Errorf("metrics tools_registered: %w", err)
	}
	return &m, nil
}

// Global creates the instruments on the global meter provider.
func Global() (*Metrics, error) {
	return New(otel.Meter(instrumentationName))
}

func (m *Metrics) SyncRun(ctx context.Context, connector, result string) {
	if m == nil {
		return
	}
	m.syncRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("connector", connector),
		attribute.String("result", result),
	))
}

func (m *Metrics) Records(ctx context.Context, connector, kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.records.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("connector", connector),
		attribute.String("kind", kind),
	))
}

func (m *Metrics) Skipped(ctx context.Context, connector, reason string) {
	if m == nil {
		return
	}
	m.skipped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("connector", connector),
		attribute.String("reason", reason),
	))
}

func (m *Metrics) GroupFailure(ctx context.Context, connector string) {
	if m == nil {
		return
	}
	m.channelFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("connector", connector)))
}

func (m *Metrics) ToolExecution(ctx context.Context, tool, outcome string) {
	if m == nil {
		return
	}
	m.toolExecutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("outcome", outcome),
	))
}

// ToolsRegistered adjusts the registry gauge by delta.
func (m *Metrics) ToolsRegistered(ctx context.Context, delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.registeredTools.Add(ctx, int64(delta))
}
