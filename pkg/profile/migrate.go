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
	"log/slog"
	"time"
)

// DefaultLegacyPlaceholder is the template slot legacy single-processor
// output historically fed.
const DefaultLegacyPlaceholder = "context"

// PlaceholderResolver maps a tool name to its default placeholder (its
// output contract). Usually backed by the tool registry.
type PlaceholderResolver func(toolName string) (string, bool)

// Migrator upgrades legacy (version 1) records to the current multi-tool
// shape on read. The derivation is deterministic: migrating the same legacy
// record twice yields an identical profile, so concurrent first-reads racing
// on the persistence update are harmless (last write wins).
type Migrator struct {
	store       Store
	logger      *slog.Logger
	placeholder PlaceholderResolver

	// persistTimeout bounds the background persistence attempt.
	persistTimeout time.Duration
}

// NewMigrator creates a migrator. resolver may be nil, in which case every
// legacy processor maps to DefaultLegacyPlaceholder.
func NewMigrator(store Store, logger *slog.Logger, resolver PlaceholderResolver) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		store:          store,
		logger:         logger,
		placeholder:    resolver,
		persistTimeout: 5 * time.Second,
	}
}

// Normalize returns a profile in the current format, deriving it from the
// legacy fields when necessary. Downstream components only ever see the
// current shape.
//
// For legacy records a persistence directive is issued in the background;
// its failure is logged and never surfaces to the caller, since the
// in-memory profile is already correct and the next read will simply
// re-attempt the same deterministic migration.
func (m *Migrator) Normalize(ctx context.Context, assistantID string, p *Profile) (*Profile, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if p.FormatVersion == FormatVersionCurrent {
		return p, nil
	}

	migrated := m.derive(p)

	if m.store != nil {
		go m.persist(assistantID, migrated)
	}

	return migrated, nil
}

// derive builds the version-2 equivalent of a legacy record. The original
// legacy fields are preserved unchanged for audit.
func (m *Migrator) derive(p *Profile) *Profile {
	placeholder := DefaultLegacyPlaceholder
	if m.placeholder != nil {
		if ph, ok := m.placeholder(p.Legacy.Processor); ok {
			placeholder = ph
		}
	}

	migrated := p.Clone()
	migrated.FormatVersion = FormatVersionCurrent
	migrated.Legacy = &LegacyFields{
		Processor: p.Legacy.Processor,
		Settings:  cloneMap(p.Legacy.Settings),
	}
	migrated.Tools = []ToolConfig{
		{
			Name:        p.Legacy.Processor,
			Parameters:  cloneMap(p.Legacy.Settings),
			Placeholder: placeholder,
		},
	}

	return migrated
}

func (m *Migrator) persist(assistantID string, migrated *Profile) {
	ctx, cancel := context.WithTimeout(context.Background(), m.persistTimeout)
	defer cancel()

	if err := m.store.PersistMigratedProfile(ctx, assistantID, migrated); err != nil {
		m.logger.Warn("failed to persist migrated profile",
			"assistant_id", assistantID,
			"error", err,
		)
		return
	}

	m.logger.Info("migrated assistant profile",
		"assistant_id", assistantID,
		"from_version", FormatVersionLegacy,
		"to_version", FormatVersionCurrent,
	)
}
