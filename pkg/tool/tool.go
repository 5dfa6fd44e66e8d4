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

// Package tool defines the tool contract and the registry that owns the
// mapping from tool names to executable code.
//
// A tool is a named, schema-described unit of work (knowledge-base retrieval,
// rubric lookup, external API call) that produces text destined for a prompt
// placeholder. Tools are registered once during process initialization; the
// orchestrator only ever reaches a tool through Registry resolution.
package tool

import (
	"context"
	"time"
)

// ConversationContext carries the request-scoped conversation state handed to
// every tool invocation. Tools must treat it as read-only.
type ConversationContext struct {
	AssistantID string
	Query       string
	History     []Message
	Metadata    map[string]string
}

// Message is a single turn of conversation history.
type Message struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Tool is the executable contract every registered tool satisfies.
//
// Placeholder names the template slot this tool's output fills by default
// (its output contract); a ToolConfig may override it per assistant.
type Tool interface {
	// Name returns the unique name of the tool.
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// Category returns a free-form grouping tag (retrieval, lookup, function).
	Category() string

	// Placeholder returns the default template slot this tool fills.
	Placeholder() string

	// Schema returns the JSON schema for the tool's parameters.
	// Returns nil if the tool takes no parameters.
	Schema() map[string]any

	// Call executes the tool. The context carries the per-tool deadline;
	// implementations must propagate it to outbound calls so a timed-out
	// tool stops consuming resources.
	Call(ctx context.Context, args map[string]any, conv *ConversationContext) (string, error)
}

// Definition is the introspection view of a registered tool, consumed by
// catalog endpoints.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    string         `json:"category,omitempty"`
	Placeholder string         `json:"placeholder"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToDefinition converts a tool to its Definition.
func ToDefinition(t Tool) Definition {
	return Definition{
		Name:        t.Name(),
		Description: t.Description(),
		Category:    t.Category(),
		Placeholder: t.Placeholder(),
		Parameters:  t.Schema(),
	}
}

// Status classifies the outcome of a single tool execution.
type Status string

const (
	StatusOK      Status = "ok"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
)

// ErrorKind categorizes tool-scoped failures. All of these are non-fatal to
// the pipeline; they degrade the corresponding placeholder to empty.
type ErrorKind string

const (
	ErrorKindNone            ErrorKind = ""
	ErrorKindUnknownTool     ErrorKind = "unknown_tool"
	ErrorKindInvalidParams   ErrorKind = "invalid_parameters"
	ErrorKindExecutionFailed ErrorKind = "execution_failed"
	ErrorKindTimeout         ErrorKind = "timeout"
)

// ExecutionResult is the per-tool outcome produced by the orchestrator.
// One exists for every enabled tool config, in configuration order, even on
// failure. OutputLength is recorded separately so observability never has to
// touch Output.
type ExecutionResult struct {
	ToolName     string        `json:"tool_name"`
	Placeholder  string        `json:"placeholder"`
	Status       Status        `json:"status"`
	Output       string        `json:"-"`
	OutputLength int           `json:"output_length"`
	Duration     time.Duration `json:"duration"`
	ErrorKind    ErrorKind     `json:"error_kind,omitempty"`
}

// OK reports whether the tool produced usable output.
func (r ExecutionResult) OK() bool {
	return r.Status == StatusOK
}
