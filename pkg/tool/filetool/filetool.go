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

// Package filetool provides a root-confined file lookup tool. It reads one
// file from a configured directory and fills the {file} template slot.
package filetool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kadirpekel/loom/pkg/tool"
)

const (
	ToolName = "file_lookup"

	// maxFileSize caps how much of a file reaches the prompt.
	maxFileSize = 256 * 1024
)

type readArgs struct {
	Path string `json:"path" jsonschema:"required,description=File path relative to the configured root"`
}

// FileTool reads files beneath a fixed root directory. Paths escaping the
// root are rejected.
type FileTool struct {
	root   string
	schema map[string]any
}

// New creates a file tool rooted at dir.
func New(dir string) (*FileTool, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", dir, err)
	}

	schema, err := tool.GenerateSchema[readArgs]()
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}

	return &FileTool{root: root, schema: schema}, nil
}

func (t *FileTool) Name() string { return ToolName }

func (t *FileTool) Description() string {
	return "Reads one file from the assistant's document root"
}

func (t *FileTool) Category() string { return "lookup" }

func (t *FileTool) Placeholder() string { return "file" }

func (t *FileTool) Schema() map[string]any { return t.schema }

func (t *FileTool) Call(ctx context.Context, args map[string]any, conv *tool.ConversationContext) (string, error) {
	var a readArgs
	if err := tool.DecodeArgs(args, &a); err != nil {
		return "", err
	}

	path, err := t.resolve(a.Path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", a.Path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", a.Path)
	}
	if info.Size() > maxFileSize {
		return "", fmt.Errorf("%s exceeds the %d byte limit", a.Path, maxFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", a.Path, err)
	}
	return string(content), nil
}

// resolve joins the requested path onto the root and rejects escapes.
func (t *FileTool) resolve(requested string) (string, error) {
	if requested == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	joined := filepath.Join(t.root, requested)
	rel, err := filepath.Rel(t.root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes the document root", requested)
	}
	return joined, nil
}

var _ tool.Tool = (*FileTool)(nil)
