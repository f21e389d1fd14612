package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/pyq-analyzer/internal/domain/kv"
)

func TestKVRepository(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "pyq.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Get(ctx, "t1:missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, s.Set(ctx, "t1:recentResults", `[1]`))
	require.NoError(t, s.Set(ctx, "t1:recentResults", `[1,2]`))
	v, err := s.Get(ctx, "t1:recentResults")
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, v)

	require.NoError(t, s.Delete(ctx, "t1:recentResults"))
	_, err = s.Get(ctx, "t1:recentResults")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	assert.NoError(t, s.Ping(ctx))
}

func TestKVRepositoryRejectsBadTable(t *testing.T) {
	ctx := context.Background()
	db, err := Connect(ctx, filepath.Join(t.TempDir(), "pyq.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = NewKVRepository(ctx, db, "kv; DROP TABLE x")
	assert.Error(t, err)
}

func TestDataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "pyq.db")

	s, err := Open(ctx, path, "entries")
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, "entries")
	require.NoError(t, err)
	defer s.Close()
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}
