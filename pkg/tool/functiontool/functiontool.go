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

// Package functiontool turns a plain Go function into a registered tool.
// The argument schema is generated from the function's typed argument
// struct, so external-service wrappers (weather, LMS, calendars) need no
// hand-written schemas.
package functiontool

import (
	"context"
	"fmt"

	"github.com/kadirpekel/loom/pkg/tool"
)

// Func is the typed implementation behind a function tool.
type Func[Args any] func(ctx context.Context, args Args, conv *tool.ConversationContext) (string, error)

// FunctionTool adapts a typed Go function to the tool contract.
type FunctionTool[Args any] struct {
	name        string
	description string
	placeholder string
	schema      map[string]any
	fn          Func[Args]
}

// New creates a function tool. The schema is derived from the Args struct's
// json and jsonschema tags.
func New[Args any](name, description, placeholder string, fn Func[Args]) (*FunctionTool[Args], error) {
	if name == "" {
		return nil, fmt.Errorf("function tool name cannot be empty")
	}
	if fn == nil {
		return nil, fmt.Errorf("function tool %s needs an implementation", name)
	}

	schema, err := tool.GenerateSchema[Args]()
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for %s: %w", name, err)
	}

	return &FunctionTool[Args]{
		name:        name,
		description: description,
		placeholder: placeholder,
		schema:      schema,
		fn:          fn,
	}, nil
}

func (t *FunctionTool[Args]) Name() string { return t.name }

func (t *FunctionTool[Args]) Description() string { return t.description }

func (t *FunctionTool[Args]) Category() string { return "function" }

func (t *FunctionTool[Args]) Placeholder() string { return t.placeholder }

func (t *FunctionTool[Args]) Schema() map[string]any { return t.schema }

func (t *FunctionTool[Args]) Call(ctx context.Context, args map[string]any, conv *tool.ConversationContext) (string, error) {
	var typed Args
	if err := tool.DecodeArgs(args, &typed); err != nil {
		return "", err
	}
	return t.fn(ctx, typed, conv)
}
