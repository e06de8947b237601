package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawdrill/drawdrill/internal/domain/practice"
	"github.com/drawdrill/drawdrill/internal/domain/shared"
)

func openTemp(t *testing.T) (*BlobStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "drawdrill.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	return s, path
}

func TestBlobStore_LoadMissing(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	_, err := s.Load(context.Background(), practice.SessionsBlobKey)
	assert.ErrorIs(t, err, shared.ErrBlobNotFound)
}

func TestBlobStore_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	defer s.Close()

	require.NoError(t, s.Save(ctx, practice.SessionsBlobKey, []byte(`[1]`)))
	require.NoError(t, s.Save(ctx, practice.SessionsBlobKey, []byte(`[1,2]`)))

	data, err := s.Load(ctx, practice.SessionsBlobKey)
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(data))

	_, err = s.Load(ctx, practice.AchievementsBlobKey)
	assert.ErrorIs(t, err, shared.ErrBlobNotFound)
}

func TestBlobStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)
	require.NoError(t, s.Save(ctx, practice.AchievementsBlobKey, []byte(`[]`)))
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	data, err := reopened.Load(ctx, practice.AchievementsBlobKey)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}

func TestBlobStore_Closed(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Load(ctx, practice.SessionsBlobKey)
	assert.ErrorIs(t, err, shared.ErrStoreClosed)
	assert.ErrorIs(t, s.Save(ctx, practice.SessionsBlobKey, nil), shared.ErrStoreClosed)
}

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, "k", []byte("v")))
	data, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(data))
}
