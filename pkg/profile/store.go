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

package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrProfileNotFound is returned when no profile exists for an assistant.
var ErrProfileNotFound = errors.New("assistant profile not found")

// Store is the assistant-store collaborator contract. GetProfile may return
// a legacy (version 1) record; PersistMigratedProfile is fire-and-forget
// from the pipeline's perspective and must never block the response path.
type Store interface {
	GetProfile(ctx context.Context, assistantID string) (*Profile, error)
	PersistMigratedProfile(ctx context.Context, assistantID string, p *Profile) error
}

// MemoryStore is an in-memory Store used by tests and demo setups.
// Migration updates are last-write-wins, which is safe because the migrated
// shape is deterministic from the same legacy input.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*Profile),
	}
}

// Put seeds a profile. Test/demo convenience, not part of the Store contract.
func (s *MemoryStore) Put(assistantID string, p *Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[assistantID] = p.Clone()
}

func (s *MemoryStore) GetProfile(ctx context.Context, assistantID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[assistantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, assistantID)
	}
	return p.Clone(), nil
}

func (s *MemoryStore) PersistMigratedProfile(ctx context.Context, assistantID string, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[assistantID] = p.Clone()
	return nil
}

// All returns a copy of every stored profile keyed by assistant ID. Used to
// seed other store backends from a file-loaded store.
func (s *MemoryStore) All() map[string]*Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*Profile, len(s.profiles))
	for id, p := range s.profiles {
		out[id] = p.Clone()
	}
	return out
}

// LoadFile seeds a MemoryStore from a YAML file mapping assistant IDs to
// profiles. Used by the CLI for local/demo deployments.
//
// Example:
//
//	grading-assistant:
//	  format_version: 2
//	  template: "Use {context} and {rubric} to answer."
//	  tools:
//	    - name: kb_lookup
//	      parameters: {top_k: 3}
func LoadFile(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read assistants file: %w", err)
	}

	var records map[string]*Profile
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse assistants file: %w", err)
	}

	store := NewMemoryStore()
	for id, p := range records {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("assistant %s: %w", id, err)
		}
		store.Put(id, p)
	}
	return store, nil
}
