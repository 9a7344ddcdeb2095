package fs

import (
	"bytes"
	"context"
	"crypto/md5"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/dittostore/pkg/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), t.TempDir())
	require.NoError(t, err)
	return s
}

func readAll(t *testing.T, r io.ReadCloser) string {
	t.Helper()
	defer r.Close()
	buf, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(buf)
}

func TestNewRequiresBasePath(t *testing.T) {
	_, err := New(context.Background(), "")
	assert.Error(t, err)
}

func TestNewCreatesBaseDirectory(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "content")
	_, err := New(context.Background(), base)
	require.NoError(t, err)

	info, err := os.Stat(base)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriteAndRead(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	payload := []byte("filesystem payload")
	n, digest, err := s.Write(ctx, "c1", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	want := md5.Sum(payload)
	assert.Equal(t, want[:], digest)

	r, err := s.Read(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, string(payload), readAll(t, r))

	_, err = s.Read(ctx, "missing")
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestWriteReplacesExistingPayload(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, _, err := s.Write(ctx, "c1", bytes.NewReader([]byte("a longer first payload")))
	require.NoError(t, err)
	_, _, err = s.Write(ctx, "c1", bytes.NewReader([]byte("short")))
	require.NoError(t, err)

	r, err := s.Read(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "short", readAll(t, r))
}

func TestReadRange(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, _, err := s.Write(ctx, "c1", bytes.NewReader([]byte("0123456789")))
	require.NoError(t, err)

	r, err := s.ReadRange(ctx, "c1", 2, 4)
	require.NoError(t, err)
	assert.Equal(t, "2345", readAll(t, r))

	// a window past the end reads short rather than failing
	r, err = s.ReadRange(ctx, "c1", 8, 5)
	require.NoError(t, err)
	assert.Equal(t, "89", readAll(t, r))

	_, err = s.ReadRange(ctx, "missing", 0, 1)
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestDeleteAndListIDs(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, _, err := s.Write(ctx, "c1", bytes.NewReader([]byte("a")))
	require.NoError(t, err)
	_, _, err = s.Write(ctx, "c2", bytes.NewReader([]byte("b")))
	require.NoError(t, err)

	ids, err := s.ListIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []content.ID{"c1", "c2"}, ids)

	require.NoError(t, s.Delete(ctx, "c1"))
	require.NoError(t, s.Delete(ctx, "c1"), "deleting twice is fine")

	ids, err = s.ListIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []content.ID{"c2"}, ids)
}

func TestChunkedStaging(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.WriteChunk(ctx, "staged", 4, bytes.NewReader([]byte("4567")))
	require.NoError(t, err)
	_, err = s.WriteChunk(ctx, "staged", 0, bytes.NewReader([]byte("0123")))
	require.NoError(t, err)
	n, err := s.WriteChunk(ctx, "staged", 8, bytes.NewReader([]byte("89")))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	nbytes, digest, err := s.FinishChunked(ctx, "staged")
	require.NoError(t, err)
	assert.Equal(t, int64(10), nbytes)
	want := md5.Sum([]byte("0123456789"))
	assert.Equal(t, want[:], digest)

	r, err := s.Read(ctx, "staged")
	require.NoError(t, err)
	assert.Equal(t, "0123456789", readAll(t, r))
}
