package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTool is a minimal Tool implementation for registry tests.
type stubTool struct {
	name        string
	placeholder string
}

func (s *stubTool) Name() string           { return s.name }
func (s *stubTool) Description() string    { return "stub tool" }
func (s *stubTool) Category() string       { return "test" }
func (s *stubTool) Placeholder() string    { return s.placeholder }
func (s *stubTool) Schema() map[string]any { return nil }
func (s *stubTool) Call(ctx context.Context, args map[string]any, conv *ConversationContext) (string, error) {
	return "stub output", nil
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(&stubTool{name: "kb_lookup", placeholder: "context"}))

	got, err := r.Resolve("kb_lookup")
	require.NoError(t, err)
	assert.Equal(t, "kb_lookup", got.Name())

	_, err = r.Resolve("missing")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegistry_DuplicateName(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(&stubTool{name: "kb_lookup"}))
	err := r.Register(&stubTool{name: "kb_lookup"})
	assert.ErrorIs(t, err, ErrDuplicateTool)
}

func TestRegistry_LegacyAlias(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(&stubTool{name: "kb_lookup", placeholder: "context"}))
	require.NoError(t, r.RegisterLegacyAlias("simple_rag", "kb_lookup"))

	// Legacy identifier resolves onto the same definition.
	got, err := r.ResolveLegacy("simple_rag")
	require.NoError(t, err)
	assert.Equal(t, "kb_lookup", got.Name())

	// Direct names still resolve through the legacy path.
	got, err = r.ResolveLegacy("kb_lookup")
	require.NoError(t, err)
	assert.Equal(t, "kb_lookup", got.Name())

	// Alias to an unregistered tool is rejected.
	err = r.RegisterLegacyAlias("other", "missing")
	assert.ErrorIs(t, err, ErrToolNotFound)

	// Duplicate alias is rejected.
	err = r.RegisterLegacyAlias("simple_rag", "kb_lookup")
	assert.ErrorIs(t, err, ErrDuplicateTool)
}

func TestRegistry_ListAllInsertionOrder(t *testing.T) {
	r := NewRegistry()

	names := []string{"zeta", "kb_lookup", "alpha"}
	for _, name := range names {
		require.NoError(t, r.Register(&stubTool{name: name}))
	}

	defs := r.Definitions()
	require.Len(t, defs, len(names))
	for i, name := range names {
		assert.Equal(t, name, defs[i].Name)
	}
	assert.Equal(t, len(names), r.Count())
}
