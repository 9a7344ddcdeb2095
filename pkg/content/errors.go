package content

import "errors"

// ErrNotFound is returned when no payload exists for a content ID.
var ErrNotFound = errors.New("content not found")

// ErrNotChunked is returned when a chunked-upload operation reaches a store
// without the ChunkedStore capability.
var ErrNotChunked = errors.New("store does not support chunked writes")
