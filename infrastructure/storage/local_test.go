package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStorage()
	path := filepath.Join(t.TempDir(), "exports", "track_mastered_16bit_44.1k.wav")

	ok, err := s.Exists(ctx, path)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.WriteFile(ctx, path, []byte("RIFF1234")))
	require.NoError(t, s.WriteFile(ctx, path, []byte("RIFF")))

	ok, err = s.Exists(ctx, path)
	require.NoError(t, err)
	assert.True(t, ok)

	size, err := s.Size(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)

	// no temp files are left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, s.Remove(ctx, path))
	ok, _ = s.Exists(ctx, path)
	assert.False(t, ok)
}

func TestStorageErrors(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStorage()
	missing := filepath.Join(t.TempDir(), "missing.wav")

	_, err := s.Size(ctx, missing)
	assert.Equal(t, pkgerrors.ErrCodeIO, pkgerrors.Code(err))

	err = s.Remove(ctx, missing)
	assert.Equal(t, pkgerrors.ErrCodeIO, pkgerrors.Code(err))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.WriteFile(canceled, missing, []byte("x")), context.Canceled)
}
