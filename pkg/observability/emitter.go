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

// Package observability translates orchestrator and assembly events into
// structured logs, streaming status lines, and redacted verbose traces.
//
// The three channels are independent and independently toggled. The
// structured log channel and the status channel never carry tool output or
// raw parameters; only the verbose trace does, and every value in it passes
// through the redaction filter first.
package observability

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kadirpekel/loom/pkg/tool"
)

// StatusSink receives short human-readable progress lines, in the same order
// tools execute. Implementations must be safe for concurrent use.
type StatusSink interface {
	WriteStatus(line string)
}

// Metrics records tool execution outcomes. Implemented by OTelMetrics; a nil
// Metrics disables the channel.
type Metrics interface {
	RecordToolExecution(ctx context.Context, toolName string, result tool.ExecutionResult)
}

// TraceEntry is one tool invocation in a verbose trace. Parameters and
// Output have already been through the redaction filter.
type TraceEntry struct {
	Tool       string         `json:"tool"`
	Status     tool.Status    `json:"status"`
	ErrorKind  tool.ErrorKind `json:"error_kind,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Output     string         `json:"output,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// Trace is the request-scoped diagnostic record. It is returned with the
// response and discarded; it is never persisted.
type Trace struct {
	RequestID           string       `json:"request_id"`
	AssistantID         string       `json:"assistant_id"`
	Entries             []TraceEntry `json:"entries"`
	PlaceholdersFilled  []string     `json:"placeholders_filled,omitempty"`
	PlaceholdersRemoved []string     `json:"placeholders_removed,omitempty"`
}

// Config wires the emitter's channels. Any field may be left nil/zero to
// disable that channel.
type Config struct {
	// Logger receives structured events: tool name, status, duration and
	// output length only. Never tool content.
	Logger *slog.Logger

	// Status receives human-readable progress lines.
	Status StatusSink

	// Metrics receives per-tool execution measurements.
	Metrics Metrics
}

// Emitter is constructed once and shared across requests; per-request state
// lives in Scope. There is no ambient global emitter: components receive
// their Emitter explicitly at construction.
type Emitter struct {
	logger  *slog.Logger
	status  StatusSink
	metrics Metrics
}

// NewEmitter creates an emitter with the given channels.
func NewEmitter(cfg Config) *Emitter {
	return &Emitter{
		logger:  cfg.Logger,
		status:  cfg.Status,
		metrics: cfg.Metrics,
	}
}

// NewScope opens a request-scoped emission scope. When verbose is true the
// scope accumulates a redacted trace.
func (e *Emitter) NewScope(requestID, assistantID string, verbose bool) *Scope {
	s := &Scope{
		emitter:     e,
		requestID:   requestID,
		assistantID: assistantID,
	}
	if verbose {
		s.trace = &Trace{RequestID: requestID, AssistantID: assistantID}
	}
	return s
}

// Scope correlates one orchestration run. Its methods serialize emission so
// status lines never interleave out of the orchestrator's canonical order,
// even under bounded-parallel execution.
type Scope struct {
	emitter     *Emitter
	requestID   string
	assistantID string

	mu    sync.Mutex
	trace *Trace
}

// ToolStarted emits the start event for a tool, in configuration order.
func (s *Scope) ToolStarted(ctx context.Context, t tool.Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emitter.logger != nil {
		s.emitter.logger.InfoContext(ctx, "tool started",
			"request_id", s.requestID,
			"tool", t.Name(),
			"category", t.Category(),
		)
	}
	s.writeStatus(startStatusLine(t))
}

// ToolSkipped emits the start/finish pair for a tool that never ran
// (unknown name or invalid parameters).
func (s *Scope) ToolSkipped(ctx context.Context, name string, res tool.ExecutionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emitter.logger != nil {
		s.emitter.logger.WarnContext(ctx, "tool skipped",
			"request_id", s.requestID,
			"tool", name,
			"error_kind", string(res.ErrorKind),
		)
	}
	s.writeStatus("skipping " + name)
	s.appendTrace(res, nil)
	s.recordMetrics(ctx, name, res)
}

// ToolFinished emits the finish event for a tool. The structured log channel
// records only status, duration and output length; params and output reach
// the verbose trace only, redacted.
func (s *Scope) ToolFinished(ctx context.Context, res tool.ExecutionResult, params map[string]any, errLen int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emitter.logger != nil {
		attrs := []any{
			"request_id", s.requestID,
			"tool", res.ToolName,
			"status", string(res.Status),
			"duration_ms", res.Duration.Milliseconds(),
			"output_length", res.OutputLength,
		}
		if res.ErrorKind != tool.ErrorKindNone {
			attrs = append(attrs, "error_kind", string(res.ErrorKind), "error_length", errLen)
		}
		if res.OK() {
			s.emitter.logger.InfoContext(ctx, "tool finished", attrs...)
		} else {
			s.emitter.logger.WarnContext(ctx, "tool failed", attrs...)
		}
	}

	s.writeStatus(finishStatusLine(res))
	s.appendTrace(res, params)
	s.recordMetrics(ctx, res.ToolName, res)
}

// Merged emits the assembly event and finalizes the trace with the
// filled/removed placeholder sets.
func (s *Scope) Merged(ctx context.Context, filled, removed []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emitter.logger != nil {
		s.emitter.logger.InfoContext(ctx, "contexts merged",
			"request_id", s.requestID,
			"placeholders_filled", len(filled),
			"placeholders_removed", len(removed),
		)
	}
	s.writeStatus("merging contexts")

	if s.trace != nil {
		s.trace.PlaceholdersFilled = append([]string(nil), filled...)
		s.trace.PlaceholdersRemoved = append([]string(nil), removed...)
	}
}

// Trace returns the accumulated verbose trace, or nil when verbose tracing
// is off for this scope.
func (s *Scope) Trace() *Trace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trace
}

func (s *Scope) writeStatus(line string) {
	if s.emitter.status != nil && line != "" {
		s.emitter.status.WriteStatus(line)
	}
}

func (s *Scope) appendTrace(res tool.ExecutionResult, params map[string]any) {
	if s.trace == nil {
		return
	}
	s.trace.Entries = append(s.trace.Entries, TraceEntry{
		Tool:       res.ToolName,
		Status:     res.Status,
		ErrorKind:  res.ErrorKind,
		Parameters: RedactMap(params),
		Output:     RedactString(res.Output),
		DurationMs: res.Duration.Milliseconds(),
	})
}

func (s *Scope) recordMetrics(ctx context.Context, name string, res tool.ExecutionResult) {
	if s.emitter.metrics != nil {
		s.emitter.metrics.RecordToolExecution(ctx, name, res)
	}
}

// startStatusLine phrases a start event for streaming consumers.
func startStatusLine(t tool.Tool) string {
	switch t.Category() {
	case "retrieval":
		return "querying knowledge base"
	case "lookup":
		return "looking up " + t.Placeholder()
	case "function":
		return "calling " + t.Name()
	default:
		return "running " + t.Name()
	}
}

func finishStatusLine(res tool.ExecutionResult) string {
	switch res.Status {
	case tool.StatusOK:
		return res.ToolName + " done"
	case tool.StatusTimeout:
		return res.ToolName + " timed out"
	default:
		return res.ToolName + " failed"
	}
}

// BufferSink is a StatusSink that accumulates lines in memory. Used by tests
// and by callers that deliver status lines after the fact.
type BufferSink struct {
	mu    sync.Mutex
	lines []string
}

func (b *BufferSink) WriteStatus(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
}

// Lines returns a copy of the accumulated status lines.
func (b *BufferSink) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}
