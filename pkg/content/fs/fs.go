// Package fs implements a content store on the local filesystem. Each
// payload is one file under the base directory, named by its content ID.
package fs

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/marmos91/dittostore/pkg/content"
)

// Store stores payloads as flat files.
//
// Thread safety: filesystem operations are safe at the OS level, and the
// directory layer never issues concurrent writes to the same ID, so no
// additional locking is needed here.
type Store struct {
	basePath string
}

// New creates the base directory if needed and returns the store.
func New(ctx context.Context, basePath string) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if basePath == "" {
		return nil, fmt.Errorf("fs content store: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

func (s *Store) path(id content.ID) string {
	return filepath.Join(s.basePath, string(id))
}

func (s *Store) open(id content.ID) (*os.File, error) {
	f, err := os.Open(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("content %s: %w", id, content.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open content %s: %w", id, err)
	}
	return f, nil
}

func (s *Store) Read(ctx context.Context, id content.ID) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.open(id)
}

func (s *Store) ReadRange(ctx context.Context, id content.ID, first, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.open(id)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(first, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to seek content %s: %w", id, err)
	}
	return &sectionReadCloser{r: io.LimitReader(f, length), f: f}, nil
}

// sectionReadCloser limits reads to a byte window while closing the
// underlying file.
type sectionReadCloser struct {
	r io.Reader
	f *os.File
}

func (s *sectionReadCloser) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func (s *sectionReadCloser) Close() error {
	return s.f.Close()
}

func (s *Store) Write(ctx context.Context, id content.ID, r io.Reader) (int64, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	f, err := os.OpenFile(s.path(id), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create content %s: %w", id, err)
	}

	hash := md5.New()
	n, err := io.Copy(f, io.TeeReader(r, hash))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(s.path(id))
		return 0, nil, fmt.Errorf("failed to write content %s: %w", id, err)
	}
	return n, hash.Sum(nil), nil
}

// ListIDs enumerates the base directory. Every regular file is a payload;
// its name is the content ID.
func (s *Store) ListIDs(ctx context.Context) ([]content.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list content directory: %w", err)
	}

	ids := make([]content.ID, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ids = append(ids, content.ID(e.Name()))
	}
	return ids, nil
}

func (s *Store) Delete(ctx context.Context, id content.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete content %s: %w", id, err)
	}
	return nil
}

// WriteChunk writes one chunk at the given offset of the staging file,
// creating it on first use. Gaps left by out-of-order chunks read as zeros
// until filled.
func (s *Store) WriteChunk(ctx context.Context, id content.ID, offset int64, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, fmt.Errorf("negative chunk offset %d", offset)
	}

	f, err := os.OpenFile(s.path(id), os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to open staging content %s: %w", id, err)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("failed to seek staging content %s: %w", id, err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write chunk of %s: %w", id, err)
	}
	return n, nil
}

// FinishChunked seals a staged payload, returning its length and digest.
func (s *Store) FinishChunked(ctx context.Context, id content.ID) (int64, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	f, err := s.open(id)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	hash := md5.New()
	n, err := io.Copy(hash, f)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to digest content %s: %w", id, err)
	}
	return n, hash.Sum(nil), nil
}
