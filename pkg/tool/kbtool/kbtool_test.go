package kbtool

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/loom/pkg/tool"
)

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newIndexedTool(t *testing.T, docs map[string]string) *KBTool {
	t.Helper()
	dir := t.TempDir()
	for name, content := range docs {
		writeDoc(t, dir, name, content)
	}

	kb, err := New(Config{DocsPath: dir}, nil)
	require.NoError(t, err)
	require.NoError(t, kb.IndexDirectory(context.Background()))
	return kb
}

func TestKBTool_Retrieval(t *testing.T) {
	kb := newIndexedTool(t, map[string]string{
		"grading.md": "Essays are graded on structure and argument quality.",
		"plants.md":  "Photosynthesis converts sunlight into chemical energy.",
	})

	out, err := kb.Call(context.Background(),
		map[string]any{"top_k": float64(1)},
		&tool.ConversationContext{Query: "How are essays graded on argument quality?"})
	require.NoError(t, err)
	assert.Contains(t, out, "graded")
}

func TestKBTool_ExplicitQueryOverridesConversation(t *testing.T) {
	kb := newIndexedTool(t, map[string]string{
		"plants.md": "Photosynthesis converts sunlight into chemical energy.",
	})

	out, err := kb.Call(context.Background(),
		map[string]any{"query": "photosynthesis sunlight energy", "top_k": float64(1)},
		&tool.ConversationContext{Query: "unrelated"})
	require.NoError(t, err)
	assert.Contains(t, out, "Photosynthesis")
}

func TestKBTool_EmptyIndexYieldsEmptyOutput(t *testing.T) {
	kb, err := New(Config{}, nil)
	require.NoError(t, err)

	out, err := kb.Call(context.Background(), nil, &tool.ConversationContext{Query: "anything"})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestKBTool_EmptyQueryYieldsEmptyOutput(t *testing.T) {
	kb := newIndexedTool(t, map[string]string{"a.md": "content"})

	out, err := kb.Call(context.Background(), nil, &tool.ConversationContext{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestKBTool_IgnoresUnsupportedFiles(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "notes.md", "indexable")
	writeDoc(t, dir, "binary.bin", "not indexable")

	kb, err := New(Config{DocsPath: dir}, nil)
	require.NoError(t, err)
	require.NoError(t, kb.IndexDirectory(context.Background()))

	assert.Equal(t, 1, kb.collection.Count())
}

func TestKBTool_WatchPicksUpNewDocuments(t *testing.T) {
	dir := t.TempDir()
	kb, err := New(Config{DocsPath: dir}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go kb.Watch(ctx) //nolint:errcheck

	// Give the watcher a moment to register before writing.
	time.Sleep(50 * time.Millisecond)
	writeDoc(t, dir, "late.md", "Late-breaking document about rubrics.")

	assert.Eventually(t, func() bool {
		return kb.collection.Count() == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestKBTool_ImplementsToolContract(t *testing.T) {
	kb, err := New(Config{}, nil)
	require.NoError(t, err)

	assert.Equal(t, ToolName, kb.Name())
	assert.Equal(t, "retrieval", kb.Category())
	assert.Equal(t, "context", kb.Placeholder())
	require.NotNil(t, kb.Schema())
	assert.Equal(t, "object", kb.Schema()["type"])
}
