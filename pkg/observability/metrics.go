// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kadirpekel/loom/pkg/tool"
)

// OTelMetrics implements Metrics on top of OpenTelemetry instruments.
// Pair it with the Prometheus exporter to expose /metrics.
type OTelMetrics struct {
	toolDuration    metric.Float64Histogram
	toolCallsTotal  metric.Int64Counter
	toolErrorsTotal metric.Int64Counter
}

// NewOTelMetrics creates the tool execution instruments on the given meter.
func NewOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	toolDuration, err := meter.Float64Histogram(
		"loom_tool_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	toolCallsTotal, err := meter.Int64Counter(
		"loom_tool_calls_total",
		metric.WithDescription("Total tool executions"),
	)
	if err != nil {
		return nil, err
	}

	toolErrorsTotal, err := meter.Int64Counter(
		"loom_tool_errors_total",
		metric.WithDescription("Total failed tool executions"),
	)
	if err != nil {
		return nil, err
	}

	return &OTelMetrics{
		toolDuration:    toolDuration,
		toolCallsTotal:  toolCallsTotal,
		toolErrorsTotal: toolErrorsTotal,
	}, nil
}

func (m *OTelMetrics) RecordToolExecution(ctx context.Context, toolName string, result tool.ExecutionResult) {
	if m == nil || m.toolDuration == nil || m.toolCallsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool", toolName),
		attribute.String("status", string(result.Status)),
	}

	m.toolDuration.Record(ctx, result.Duration.Seconds(), metric.WithAttributes(attrs...))
	m.toolCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	if !result.OK() && m.toolErrorsTotal != nil {
		errAttrs := append(attrs, attribute.String("error_kind", string(result.ErrorKind)))
		m.toolErrorsTotal.Add(ctx, 1, metric.WithAttributes(errAttrs...))
	}
}
