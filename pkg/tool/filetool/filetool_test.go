package filetool

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTool(t *testing.T) (*FileTool, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "syllabus.md"), []byte("Week 1: Intro"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "notes.txt"), []byte("nested"), 0o644))

	ft, err := New(dir)
	require.NoError(t, err)
	return ft, dir
}

func TestFileTool_ReadsFile(t *testing.T) {
	ft, _ := newTestTool(t)

	out, err := ft.Call(context.Background(), map[string]any{"path": "syllabus.md"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Week 1: Intro", out)
}

func TestFileTool_ReadsNestedFile(t *testing.T) {
	ft, _ := newTestTool(t)

	out, err := ft.Call(context.Background(), map[string]any{"path": "sub/notes.txt"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "nested", out)
}

func TestFileTool_RejectsEscapes(t *testing.T) {
	ft, _ := newTestTool(t)

	for _, path := range []string{"../outside.txt", "sub/../../outside.txt", ""} {
		_, err := ft.Call(context.Background(), map[string]any{"path": path}, nil)
		assert.Error(t, err, "path %q should be rejected", path)
	}
}

func TestFileTool_MissingFile(t *testing.T) {
	ft, _ := newTestTool(t)

	_, err := ft.Call(context.Background(), map[string]any{"path": "ghost.md"}, nil)
	require.Error(t, err)
}

func TestFileTool_RejectsDirectory(t *testing.T) {
	ft, _ := newTestTool(t)

	_, err := ft.Call(context.Background(), map[string]any{"path": "sub"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}

func TestFileTool_SchemaRequiresPath(t *testing.T) {
	ft, _ := newTestTool(t)

	schema := ft.Schema()
	require.NotNil(t, schema)
	assert.Contains(t, schema["required"], "path")
	assert.Equal(t, "lookup", ft.Category())
	assert.Equal(t, "file", ft.Placeholder())
}
