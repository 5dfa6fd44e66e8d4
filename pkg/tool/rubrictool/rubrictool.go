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

// Package rubrictool provides the grading-rubric lookup tool. Rubrics live
// in a SQLite table and fill the {rubric} template slot.
package rubrictool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kadirpekel/loom/pkg/tool"
)

const ToolName = "rubric"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS rubrics (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	body       TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

type lookupArgs struct {
	RubricID string `json:"rubric_id,omitempty" jsonschema:"description=Rubric to fetch. Defaults to the most recently updated rubric."`
}

// RubricTool looks up grading rubrics by ID.
type RubricTool struct {
	db     *sql.DB
	schema map[string]any
}

// Open creates a rubric tool over the SQLite database at path. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*RubricTool, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open rubric store: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize rubric store: %w", err)
	}

	schema, err := tool.GenerateSchema[lookupArgs]()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}

	return &RubricTool{db: db, schema: schema}, nil
}

// Close closes the underlying database.
func (t *RubricTool) Close() error {
	return t.db.Close()
}

func (t *RubricTool) Name() string { return ToolName }

func (t *RubricTool) Description() string {
	return "Fetches the grading rubric to evaluate the student's work against"
}

func (t *RubricTool) Category() string { return "lookup" }

func (t *RubricTool) Placeholder() string { return "rubric" }

func (t *RubricTool) Schema() map[string]any { return t.schema }

// Call fetches one rubric. Without an explicit rubric_id it returns the most
// recently updated rubric. A missing rubric is an execution error; the
// orchestrator degrades it to an empty placeholder.
func (t *RubricTool) Call(ctx context.Context, args map[string]any, conv *tool.ConversationContext) (string, error) {
	var a lookupArgs
	if err := tool.DecodeArgs(args, &a); err != nil {
		return "", err
	}

	var title, body string
	var err error
	if a.RubricID != "" {
		err = t.db.QueryRowContext(ctx,
			`SELECT title, body FROM rubrics WHERE id = ?`, a.RubricID,
		).Scan(&title, &body)
	} else {
		err = t.db.QueryRowContext(ctx,
			`SELECT title, body FROM rubrics ORDER BY updated_at DESC LIMIT 1`,
		).Scan(&title, &body)
	}
	if errors.Is(err, sql.ErrNoRows) {
		if a.RubricID != "" {
			return "", fmt.Errorf("rubric %q not found", a.RubricID)
		}
		return "", errors.New("no rubrics available")
	}
	if err != nil {
		return "", fmt.Errorf("rubric lookup failed: %w", err)
	}

	return fmt.Sprintf("%s\n\n%s", title, body), nil
}

// Save creates or replaces a rubric. Used for seeding and administration.
func (t *RubricTool) Save(ctx context.Context, id, title, body string) error {
	if id == "" {
		return errors.New("rubric id cannot be empty")
	}
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO rubrics (id, title, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			body       = excluded.body,
			updated_at = excluded.updated_at`,
		id, title, body, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save rubric: %w", err)
	}
	return nil
}

var _ tool.Tool = (*RubricTool)(nil)
