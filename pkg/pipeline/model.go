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

package pipeline

import (
	"context"

	"github.com/kadirpekel/loom/pkg/tool"
)

// ModelProvider generates the assistant's reply from the assembled prompt.
// Implementations wrap a concrete LLM backend.
type ModelProvider interface {
	Generate(ctx context.Context, prompt string, history []tool.Message) (string, error)
}

// EchoModel is a ModelProvider that returns the assembled prompt verbatim.
// Used for dry runs, demos without an LLM backend, and tests.
type EchoModel struct{}

func (EchoModel) Generate(ctx context.Context, prompt string, history []tool.Message) (string, error) {
	return prompt, nil
}
