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

// Package kbtool provides the knowledge-base retrieval tool. It indexes a
// directory of text documents into an embedded vector store and answers
// similarity queries against it, filling the {context} template slot.
package kbtool

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/philippgille/chromem-go"

	"github.com/kadirpekel/loom/pkg/tool"
)

const (
	ToolName = "kb_lookup"

	defaultTopK       = 3
	defaultCollection = "knowledge"
)

var indexableExtensions = map[string]bool{
	".md":  true,
	".txt": true,
}

// Config configures the knowledge-base tool.
type Config struct {
	// DocsPath is the directory of documents to index.
	DocsPath string `yaml:"docs_path" json:"docs_path"`

	// PersistPath enables on-disk persistence of the vector store.
	// Empty means memory only.
	PersistPath string `yaml:"persist_path,omitempty" json:"persist_path,omitempty"`

	// Collection names the vector collection.
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty"`

	// TopK is the default number of chunks returned per query.
	TopK int `yaml:"top_k,omitempty" json:"top_k,omitempty"`
}

// SetDefaults sets default values for the configuration.
func (c *Config) SetDefaults() {
	if c.Collection == "" {
		c.Collection = defaultCollection
	}
	if c.TopK <= 0 {
		c.TopK = defaultTopK
	}
}

type queryArgs struct {
	Query string `json:"query,omitempty" jsonschema:"description=Query text. Defaults to the user's message."`
	TopK  int    `json:"top_k,omitempty" jsonschema:"description=Number of document chunks to retrieve"`
}

// KBTool retrieves relevant document chunks for a conversation turn.
type KBTool struct {
	cfg        Config
	db         *chromem.DB
	collection *chromem.Collection
	logger     *slog.Logger
	schema     map[string]any
}

// New creates a knowledge-base tool over the configured document directory.
// Call IndexDirectory before serving queries.
func New(cfg Config, logger *slog.Logger) (*KBTool, error) {
	cfg.SetDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	var db *chromem.DB
	var err error
	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}
		db, err = chromem.NewPersistentDB(cfg.PersistPath, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector store: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	col, err := db.GetOrCreateCollection(cfg.Collection, nil, localEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %q: %w", cfg.Collection, err)
	}

	schema, err := tool.GenerateSchema[queryArgs]()
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}

	return &KBTool{
		cfg:        cfg,
		db:         db,
		collection: col,
		logger:     logger,
		schema:     schema,
	}, nil
}

func (t *KBTool) Name() string { return ToolName }

func (t *KBTool) Description() string {
	return "Retrieves relevant knowledge-base excerpts for the current query"
}

func (t *KBTool) Category() string { return "retrieval" }

func (t *KBTool) Placeholder() string { return "context" }

func (t *KBTool) Schema() map[string]any { return t.schema }

// Call runs a similarity query and returns the matching chunks joined by
// blank lines. An empty knowledge base yields empty output, not an error.
func (t *KBTool) Call(ctx context.Context, args map[string]any, conv *tool.ConversationContext) (string, error) {
	var q queryArgs
	if err := tool.DecodeArgs(args, &q); err != nil {
		return "", err
	}

	query := q.Query
	if query == "" && conv != nil {
		query = conv.Query
	}
	if query == "" {
		return "", nil
	}

	topK := q.TopK
	if topK <= 0 {
		topK = t.cfg.TopK
	}
	if n := t.collection.Count(); topK > n {
		topK = n
	}
	if topK == 0 {
		return "", nil
	}

	results, err := t.collection.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return "", fmt.Errorf("knowledge base query failed: %w", err)
	}

	chunks := make([]string, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, r.Content)
	}
	return strings.Join(chunks, "\n\n"), nil
}

// IndexDirectory indexes every supported document under the configured
// directory. Re-indexing an unchanged file is a cheap overwrite.
func (t *KBTool) IndexDirectory(ctx context.Context) error {
	if t.cfg.DocsPath == "" {
		return nil
	}

	var docs []chromem.Document
	err := filepath.WalkDir(t.cfg.DocsPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !indexableExtensions[filepath.Ext(path)] {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		docs = append(docs, chromem.Document{
			ID:       path,
			Content:  string(content),
			Metadata: map[string]string{"source": path},
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan document directory: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}

	if err := t.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to index documents: %w", err)
	}
	t.logger.Info("indexed knowledge base", "documents", len(docs), "path", t.cfg.DocsPath)
	return nil
}

// Watch re-indexes documents as they change on disk. It blocks until ctx is
// cancelled.
func (t *KBTool) Watch(ctx context.Context) error {
	if t.cfg.DocsPath == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(t.cfg.DocsPath); err != nil {
		return fmt.Errorf("failed to watch %s: %w", t.cfg.DocsPath, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 || !indexableExtensions[filepath.Ext(ev.Name)] {
				continue
			}
			if err := t.indexFile(ctx, ev.Name); err != nil {
				t.logger.Warn("failed to re-index document", "path", ev.Name, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn("document watcher error", "error", err)
		}
	}
}

func (t *KBTool) indexFile(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc := chromem.Document{
		ID:       path,
		Content:  string(content),
		Metadata: map[string]string{"source": path},
	}
	if err := t.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return err
	}
	t.logger.Debug("re-indexed document", "path", path)
	return nil
}

var _ tool.Tool = (*KBTool)(nil)
