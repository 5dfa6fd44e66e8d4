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

package tool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kadirpekel/loom/pkg/registry"
)

var (
	// ErrDuplicateTool is returned when registering a name that already exists.
	ErrDuplicateTool = errors.New("duplicate tool name")

	// ErrToolNotFound is returned when a name resolves to no registered tool.
	ErrToolNotFound = errors.New("tool not found")
)

// Registry owns the mapping from tool names to executable tools. It is
// append-only within a run: registration happens during process
// initialization, after which the registry is read-only and safe for
// concurrent reads from simultaneous requests.
//
// Legacy aliases let old single-purpose processor identifiers (for example a
// bespoke "simple_rag" processor name) resolve onto the same definitions used
// by the multi-tool path, so both configuration shapes share one execution
// implementation.
type Registry struct {
	base *registry.BaseRegistry[Tool]

	mu      sync.RWMutex
	aliases map[string]string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		base:    registry.NewBaseRegistry[Tool](),
		aliases: make(map[string]string),
	}
}

// Register adds a tool under its own name.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	if err := r.base.Register(t.Name(), t); err != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name())
	}
	return nil
}

// RegisterLegacyAlias maps a legacy processor name onto a registered tool.
func (r *Registry) RegisterLegacyAlias(alias, toolName string) error {
	if alias == "" {
		return fmt.Errorf("alias cannot be empty")
	}
	if _, ok := r.base.Get(toolName); !ok {
		return fmt.Errorf("%w: %s", ErrToolNotFound, toolName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.aliases[alias]; exists {
		return fmt.Errorf("%w: alias %s", ErrDuplicateTool, alias)
	}
	r.aliases[alias] = toolName
	return nil
}

// Resolve returns the tool registered under name.
func (r *Registry) Resolve(name string) (Tool, error) {
	t, ok := r.base.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// ResolveLegacy resolves a name, trying legacy aliases first and falling
// back to direct registration. Both configuration eras share this lookup.
func (r *Registry) ResolveLegacy(name string) (Tool, error) {
	r.mu.RLock()
	target, ok := r.aliases[name]
	r.mu.RUnlock()
	if ok {
		return r.Resolve(target)
	}
	return r.Resolve(name)
}

// ListAll returns every registered tool in registration order.
func (r *Registry) ListAll() []Tool {
	return r.base.List()
}

// Definitions returns the catalog view of the registry, in registration
// order. Consumed by capability-listing endpoints.
func (r *Registry) Definitions() []Definition {
	tools := r.base.List()
	defs := make([]Definition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, ToDefinition(t))
	}
	return defs
}

// Count returns the number of registered tools (aliases excluded).
func (r *Registry) Count() int {
	return r.base.Count()
}
