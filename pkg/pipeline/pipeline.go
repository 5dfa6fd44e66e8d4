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

// Package pipeline runs one assistant turn end to end: profile lookup and
// normalization, tool orchestration, prompt assembly and model invocation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kadirpekel/loom/pkg/observability"
	"github.com/kadirpekel/loom/pkg/orchestrator"
	"github.com/kadirpekel/loom/pkg/profile"
	"github.com/kadirpekel/loom/pkg/prompt"
	"github.com/kadirpekel/loom/pkg/tool"
)

// UserInputPlaceholder is the template slot the pipeline itself fills with
// the user's query. It is not tool-owned, so the assembly pass leaves it
// untouched and the pipeline substitutes it last.
const UserInputPlaceholder = "{user_input}"

// Request is one conversational turn addressed to an assistant.
type Request struct {
	AssistantID string            `json:"assistant_id"`
	Query       string            `json:"query"`
	History     []tool.Message    `json:"history,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Response is the outcome of one turn. Trace is non-nil only when the
// assistant profile enables verbose diagnostics.
type Response struct {
	RequestID           string                 `json:"request_id"`
	Reply               string                 `json:"reply"`
	Prompt              string                 `json:"-"`
	Results             []tool.ExecutionResult `json:"results"`
	PlaceholdersFilled  []string               `json:"placeholders_filled,omitempty"`
	PlaceholdersRemoved []string               `json:"placeholders_removed,omitempty"`
	Trace               *observability.Trace   `json:"trace,omitempty"`
}

// Pipeline wires the collaborators of a turn. Construct once, share across
// requests.
type Pipeline struct {
	store    profile.Store
	migrator *profile.Migrator
	orch     *orchestrator.Orchestrator
	model    ModelProvider
	logger   *slog.Logger
}

// New creates a pipeline. model may be nil, in which case the assembled
// prompt itself is returned as the reply (useful for dry runs and tests).
func New(store profile.Store, migrator *profile.Migrator, orch *orchestrator.Orchestrator, model ModelProvider, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:    store,
		migrator: migrator,
		orch:     orch,
		model:    model,
		logger:   logger,
	}
}

// Run executes one turn.
//
// Tool-level failures never fail the turn; they degrade the corresponding
// placeholders. The turn fails only on a missing assistant, a malformed
// profile, cancellation, or a model error.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Response, error) {
	requestID := uuid.NewString()

	prof, err := p.store.GetProfile(ctx, req.AssistantID)
	if err != nil {
		return nil, err
	}
	prof, err = p.migrator.Normalize(ctx, req.AssistantID, prof)
	if err != nil {
		return nil, err
	}

	conv := &tool.ConversationContext{
		AssistantID: req.AssistantID,
		Query:       req.Query,
		History:     req.History,
		Metadata:    req.Metadata,
	}

	results, scope, err := p.orch.Execute(ctx, requestID, prof, conv)
	if err != nil {
		return nil, err
	}

	asm := prompt.Assemble(prof.Template, results)
	scope.Merged(ctx, asm.PlaceholdersFilled, asm.PlaceholdersRemoved)

	text := strings.ReplaceAll(asm.Text, UserInputPlaceholder, req.Query)

	reply := text
	if p.model != nil {
		reply, err = p.model.Generate(ctx, text, req.History)
		if err != nil {
			return nil, fmt.Errorf("model invocation failed: %w", err)
		}
	}

	p.logger.InfoContext(ctx, "turn completed",
		"request_id", requestID,
		"assistant_id", req.AssistantID,
		"tools", len(results),
		"reply_length", len(reply),
	)

	return &Response{
		RequestID:           requestID,
		Reply:               reply,
		Prompt:              text,
		Results:             results,
		PlaceholdersFilled:  asm.PlaceholdersFilled,
		PlaceholdersRemoved: asm.PlaceholdersRemoved,
		Trace:               scope.Trace(),
	}, nil
}
