// Package content defines payload storage for DittoStore.
//
// A content store holds the raw bytes behind object versions and upload
// staging areas, addressed by opaque content IDs. It knows nothing about
// names, versions, or ACLs; that is the directory's job. The REST front
// door streams response bodies straight from a store reader, so stores must
// never materialize whole payloads to serve a read.
package content

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// ID identifies a payload within a store. IDs are opaque to callers; the
// directory records them on version resources.
type ID string

// NewID returns a fresh random content ID.
func NewID() ID {
	return ID(uuid.NewString())
}

// Store provides streaming access to stored payloads.
//
// Thread safety: implementations must be safe for concurrent use. Reads of
// a payload may run concurrently with one another; concurrent writes to the
// same ID are undefined (the directory never issues them: version payloads
// are written once, before the version becomes resolvable).
type Store interface {
	// Read streams the whole payload. The caller closes the reader.
	Read(ctx context.Context, id ID) (io.ReadCloser, error)

	// ReadRange streams length bytes starting at first. The range must
	// lie within the payload; callers clamp before asking.
	ReadRange(ctx context.Context, id ID, first, length int64) (io.ReadCloser, error)

	// Write stores a payload, consuming r until EOF. It returns the byte
	// count and the raw MD5 digest of what was stored.
	Write(ctx context.Context, id ID, r io.Reader) (int64, []byte, error)

	// Delete removes a payload. Deleting an absent ID is not an error;
	// deletion backs version removal, which must win races with reads.
	Delete(ctx context.Context, id ID) error
}

// ListableStore is an optional capability for stores that can enumerate
// every payload they hold. The garbage collector uses it to find payloads
// no directory record references.
type ListableStore interface {
	Store

	// ListIDs returns the IDs of all stored payloads.
	ListIDs(ctx context.Context) ([]ID, error)
}

// ChunkedStore is an optional capability for stores that can assemble a
// payload from out-of-order fixed-offset chunks (the upload-job path).
// Stores without this capability reject chunked uploads and the front door
// reports the feature as not implemented.
type ChunkedStore interface {
	Store

	// WriteChunk stores one chunk at the given byte offset of the staging
	// payload, returning the chunk's length.
	WriteChunk(ctx context.Context, id ID, offset int64, r io.Reader) (int64, error)

	// FinishChunked seals a staged payload and returns its total length
	// and raw MD5 digest.
	FinishChunked(ctx context.Context, id ID) (int64, []byte, error)
}
