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

// Package sqlstore provides a SQLite-backed assistant profile store.
//
// Profiles are stored as JSON documents keyed by assistant ID. The format
// version is duplicated into its own column so operators can query migration
// progress without parsing documents.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kadirpekel/loom/pkg/profile"
)

const schema = `
CREATE TABLE IF NOT EXISTS assistant_profiles (
	assistant_id   TEXT PRIMARY KEY,
	format_version INTEGER NOT NULL,
	document       TEXT NOT NULL,
	updated_at     TIMESTAMP NOT NULL
);
`

// Store is a profile.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (and if necessary creates) the store at path. Use ":memory:"
// for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open profile store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize profile store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetProfile returns the stored profile for an assistant. The record may
// still be in the legacy format; normalization is the caller's concern.
func (s *Store) GetProfile(ctx context.Context, assistantID string) (*profile.Profile, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM assistant_profiles WHERE assistant_id = ?`,
		assistantID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", profile.ErrProfileNotFound, assistantID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	var p profile.Profile
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, &profile.MalformedProfileError{
			Reason: fmt.Sprintf("stored document for %s is not valid JSON: %v", assistantID, err),
		}
	}
	return &p, nil
}

// PersistMigratedProfile upserts the migrated record. Migration output is
// deterministic for the same legacy input, so concurrent upserts racing here
// are harmless.
func (s *Store) PersistMigratedProfile(ctx context.Context, assistantID string, p *profile.Profile) error {
	return s.put(ctx, assistantID, p)
}

// Put creates or replaces a profile. Used for seeding and administration.
func (s *Store) Put(ctx context.Context, assistantID string, p *profile.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.put(ctx, assistantID, p)
}

func (s *Store) put(ctx context.Context, assistantID string, p *profile.Profile) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assistant_profiles (assistant_id, format_version, document, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(assistant_id) DO UPDATE SET
			format_version = excluded.format_version,
			document       = excluded.document,
			updated_at     = excluded.updated_at`,
		assistantID, p.FormatVersion, string(doc), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to persist profile: %w", err)
	}
	return nil
}

// CountByVersion reports how many profiles exist per format version. Useful
// for tracking migration progress across a fleet of assistants.
func (s *Store) CountByVersion(ctx context.Context) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT format_version, COUNT(*) FROM assistant_profiles GROUP BY format_version`)
	if err != nil {
		return nil, fmt.Errorf("failed to count profiles: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var version, n int
		if err := rows.Scan(&version, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[version] = n
	}
	return counts, rows.Err()
}
