// Package memory implements an in-memory content store, used in tests and
// development setups.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"sync"

	"github.com/marmos91/dittostore/pkg/content"
)

// Store holds payloads in a map protected by an RWMutex. Readers get a
// snapshot copy so in-flight reads never observe chunk writes.
type Store struct {
	mu   sync.RWMutex
	data map[content.ID][]byte
}

// New creates an empty in-memory store.
func New(ctx context.Context) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Store{data: make(map[content.ID][]byte)}, nil
}

func (s *Store) snapshot(id content.ID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("content %s: %w", id, content.ErrNotFound)
	}
	return append([]byte(nil), buf...), nil
}

func (s *Store) Read(ctx context.Context, id content.ID) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := s.snapshot(id)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

func (s *Store) ReadRange(ctx context.Context, id content.ID, first, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := s.snapshot(id)
	if err != nil {
		return nil, err
	}
	if first < 0 || length < 0 || first+length > int64(len(buf)) {
		return nil, fmt.Errorf("range [%d,%d) outside content %s", first, first+length, id)
	}
	return io.NopCloser(bytes.NewReader(buf[first : first+length])), nil
}

func (s *Store) Write(ctx context.Context, id content.ID, r io.Reader) (int64, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	hash := md5.New()
	buf, err := io.ReadAll(io.TeeReader(r, hash))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read payload: %w", err)
	}

	s.mu.Lock()
	s.data[id] = buf
	s.mu.Unlock()

	return int64(len(buf)), hash.Sum(nil), nil
}

// ListIDs returns every stored payload ID, in no particular order.
func (s *Store) ListIDs(ctx context.Context) ([]content.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]content.ID, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) Delete(ctx context.Context, id content.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
	return nil
}

// WriteChunk stores one chunk at the given offset, growing the staged
// payload as needed.
func (s *Store) WriteChunk(ctx context.Context, id content.ID, offset int64, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, fmt.Errorf("negative chunk offset %d", offset)
	}

	chunk, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read chunk: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	buf := s.data[id]
	if need := offset + int64(len(chunk)); int64(len(buf)) < need {
		grown := make([]byte, need)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[offset:], chunk)
	s.data[id] = buf

	return int64(len(chunk)), nil
}

// FinishChunked seals a staged payload.
func (s *Store) FinishChunked(ctx context.Context, id content.ID) (int64, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	buf, err := s.snapshot(id)
	if err != nil {
		return 0, nil, err
	}
	sum := md5.Sum(buf)
	return int64(len(buf)), sum[:], nil
}
