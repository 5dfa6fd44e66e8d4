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

// Package orchestrator executes an assistant's configured tools against a
// conversation and produces one ExecutionResult per enabled tool.
//
// Tool failures are contained: an unknown name, invalid parameters, a
// returned error, a panic or a timeout all degrade to a failed result for
// that tool while the rest of the run proceeds. The only fatal condition is
// a malformed profile, which no execution can make sense of.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/kadirpekel/loom/pkg/observability"
	"github.com/kadirpekel/loom/pkg/profile"
	"github.com/kadirpekel/loom/pkg/tool"
)

const (
	DefaultToolTimeout = 10 * time.Second
	DefaultMaxParallel = 1
)

// Config holds orchestrator execution settings.
type Config struct {
	// DefaultToolTimeout bounds each tool invocation unless overridden.
	DefaultToolTimeout time.Duration `yaml:"default_tool_timeout" json:"default_tool_timeout"`

	// ToolTimeouts overrides the default per tool name.
	ToolTimeouts map[string]time.Duration `yaml:"tool_timeouts,omitempty" json:"tool_timeouts,omitempty"`

	// MaxParallel caps concurrent tool executions. 1 means sequential.
	MaxParallel int `yaml:"max_parallel" json:"max_parallel"`
}

// SetDefaults sets default values for the configuration.
func (c *Config) SetDefaults() {
	if c.DefaultToolTimeout <= 0 {
		c.DefaultToolTimeout = DefaultToolTimeout
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = DefaultMaxParallel
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for name, d := range c.ToolTimeouts {
		if d <= 0 {
			return fmt.Errorf("tool timeout for %q must be positive", name)
		}
	}
	return nil
}

// Orchestrator executes tool configurations against the registry. It is
// stateless across requests and safe for concurrent use.
type Orchestrator struct {
	registry *tool.Registry
	emitter  *observability.Emitter
	cfg      Config
	tracer   oteltrace.Tracer
}

// New creates an orchestrator. The emitter is fixed at construction; per-run
// emission state lives in the scope Execute opens.
func New(registry *tool.Registry, emitter *observability.Emitter, cfg Config) *Orchestrator {
	cfg.SetDefaults()
	return &Orchestrator{
		registry: registry,
		emitter:  emitter,
		cfg:      cfg,
		tracer:   otel.Tracer("github.com/kadirpekel/loom/pkg/orchestrator"),
	}
}

// Execute runs every enabled tool of the profile against the conversation.
//
// It returns one result per enabled tool config, in configuration order,
// regardless of execution order or outcome. Start events are emitted in
// configuration order even under parallel execution; finish events follow
// completion order.
//
// A malformed profile is the only fatal input: it yields a
// *profile.MalformedProfileError and no results. Cancellation of ctx aborts
// the run and returns ctx.Err(); partial results are discarded.
func (o *Orchestrator) Execute(ctx context.Context, requestID string, p *profile.Profile, conv *tool.ConversationContext) ([]tool.ExecutionResult, *observability.Scope, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	if p.FormatVersion != profile.FormatVersionCurrent {
		return nil, nil, &profile.MalformedProfileError{
			Reason: "profile must be normalized to the current format before execution",
		}
	}

	scope := o.emitter.NewScope(requestID, conv.AssistantID, p.Verbose)

	enabled := p.EnabledTools()
	results := make([]tool.ExecutionResult, len(enabled))

	sem := semaphore.NewWeighted(int64(o.cfg.MaxParallel))
	var wg sync.WaitGroup

	for i, tc := range enabled {
		res, t, ok := o.admit(tc)
		if !ok {
			// A rejection takes a semaphore slot like any execution, so
			// its skip event cannot overtake the finish event of a tool
			// still running ahead of it.
			if err := sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return nil, scope, ctx.Err()
			}
			scope.ToolSkipped(ctx, tc.Name, res)
			results[i] = res
			sem.Release(1)
			continue
		}

		// Acquiring before launch keeps start events in configuration
		// order and enforces the parallelism cap. With MaxParallel of 1
		// this degenerates to strictly sequential execution.
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, scope, ctx.Err()
		}

		scope.ToolStarted(ctx, t)
		wg.Add(1)
		go func(i int, t tool.Tool, tc profile.ToolConfig, placeholder string) {
			defer wg.Done()
			defer sem.Release(1)

			r, errLen := o.runTool(ctx, t, tc.Parameters, placeholder, conv)
			scope.ToolFinished(ctx, r, tc.Parameters, errLen)
			results[i] = r
		}(i, t, tc, res.Placeholder)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, scope, err
	}
	return results, scope, nil
}

// admit resolves and validates one tool config. On rejection it returns the
// failed result to record; on admission the returned result carries only the
// effective placeholder.
func (o *Orchestrator) admit(tc profile.ToolConfig) (tool.ExecutionResult, tool.Tool, bool) {
	res := tool.ExecutionResult{
		ToolName:    tc.Name,
		Placeholder: tc.Placeholder,
		Status:      tool.StatusError,
	}

	t, err := o.registry.ResolveLegacy(tc.Name)
	if err != nil {
		res.ErrorKind = tool.ErrorKindUnknownTool
		return res, nil, false
	}

	// The canonical name may differ from the configured one when a legacy
	// alias resolved. Results carry the canonical name.
	res.ToolName = t.Name()
	if res.Placeholder == "" {
		res.Placeholder = t.Placeholder()
	}

	if err := tool.ValidateArgs(t.Schema(), tc.Parameters); err != nil {
		res.ErrorKind = tool.ErrorKindInvalidParams
		return res, nil, false
	}

	return res, t, true
}

// runTool executes one admitted tool under its timeout, with panic
// isolation. The second return value is the length of the tool's error text,
// recorded for observability without exposing the text itself.
func (o *Orchestrator) runTool(ctx context.Context, t tool.Tool, args map[string]any, placeholder string, conv *tool.ConversationContext) (tool.ExecutionResult, int) {
	ctx, span := o.tracer.Start(ctx, "tool.execute",
		oteltrace.WithAttributes(attribute.String("tool.name", t.Name())))
	defer span.End()

	timeout := o.cfg.DefaultToolTimeout
	if d, ok := o.cfg.ToolTimeouts[t.Name()]; ok {
		timeout = d
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	output, err := o.invoke(tctx, t, args, conv)
	duration := time.Since(start)

	res := tool.ExecutionResult{
		ToolName:    t.Name(),
		Placeholder: placeholder,
		Duration:    duration,
	}

	errLen := 0
	switch {
	case err == nil:
		res.Status = tool.StatusOK
		res.Output = output
		res.OutputLength = len(output)
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		res.Status = tool.StatusTimeout
		res.ErrorKind = tool.ErrorKindTimeout
		errLen = len(err.Error())
	default:
		res.Status = tool.StatusError
		res.ErrorKind = tool.ErrorKindExecutionFailed
		errLen = len(err.Error())
	}

	span.SetAttributes(
		attribute.String("tool.status", string(res.Status)),
		attribute.Int("tool.output_length", res.OutputLength),
	)
	return res, errLen
}

// invoke calls the tool in its own goroutine so a panicking or
// non-cooperative implementation cannot take down or stall the run. A tool
// that ignores its context keeps its goroutine until it returns; the run
// moves on at the deadline regardless.
func (o *Orchestrator) invoke(ctx context.Context, t tool.Tool, args map[string]any, conv *tool.ConversationContext) (string, error) {
	type outcome struct {
		output string
		err    error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		out, err := t.Call(ctx, args, conv)
		ch <- outcome{output: out, err: err}
	}()

	select {
	case oc := <-ch:
		return oc.output, oc.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
