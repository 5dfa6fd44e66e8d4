package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/loom/pkg/profile"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "profiles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	in := &profile.Profile{
		FormatVersion: profile.FormatVersionCurrent,
		Template:      "Use {context}.",
		Tools: []profile.ToolConfig{
			{Name: "kb_lookup", Parameters: map[string]any{"top_k": float64(3)}},
		},
	}
	require.NoError(t, s.Put(ctx, "grader", in))

	got, err := s.GetProfile(ctx, "grader")
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestStore_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetProfile(context.Background(), "ghost")
	require.ErrorIs(t, err, profile.ErrProfileNotFound)
}

func TestStore_PersistMigratedProfileUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	legacy := &profile.Profile{
		FormatVersion: profile.FormatVersionLegacy,
		Legacy:        &profile.LegacyFields{Processor: "simple_rag"},
	}
	require.NoError(t, s.Put(ctx, "old", legacy))

	migrated := &profile.Profile{
		FormatVersion: profile.FormatVersionCurrent,
		Legacy:        &profile.LegacyFields{Processor: "simple_rag"},
		Tools:         []profile.ToolConfig{{Name: "simple_rag", Placeholder: "context"}},
	}
	require.NoError(t, s.PersistMigratedProfile(ctx, "old", migrated))

	got, err := s.GetProfile(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, profile.FormatVersionCurrent, got.FormatVersion)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "simple_rag", got.Tools[0].Name)
}

func TestStore_PutRejectsMalformedProfile(t *testing.T) {
	s := openTestStore(t)

	err := s.Put(context.Background(), "bad", &profile.Profile{FormatVersion: 9})
	var malformed *profile.MalformedProfileError
	require.Error(t, err)
	assert.ErrorAs(t, err, &malformed)
}

func TestStore_CountByVersion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", &profile.Profile{
		FormatVersion: profile.FormatVersionLegacy,
		Legacy:        &profile.LegacyFields{Processor: "simple_rag"},
	}))
	require.NoError(t, s.Put(ctx, "b", &profile.Profile{FormatVersion: profile.FormatVersionCurrent}))
	require.NoError(t, s.Put(ctx, "c", &profile.Profile{FormatVersion: profile.FormatVersionCurrent}))

	counts, err := s.CountByVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{
		profile.FormatVersionLegacy:  1,
		profile.FormatVersionCurrent: 2,
	}, counts)
}
