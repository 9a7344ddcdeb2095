package directory

import "time"

// UploadSpec describes a chunked upload job at creation time.
type UploadSpec struct {
	// NBytes is the total payload length the job will receive
	NBytes int64

	// ChunkBytes is the length of every chunk except possibly the last
	ChunkBytes int64

	// ContentType is the media type to record on the final version ("" if none)
	ContentType string

	// ContentMD5 is the expected digest of the final payload (nil to skip
	// verification at finalize time)
	ContentMD5 []byte
}

// ChunkCount returns how many chunks the job needs: full chunks of
// ChunkBytes plus at most one short final chunk.
func (s UploadSpec) ChunkCount() int64 {
	if s.ChunkBytes <= 0 {
		return 0
	}
	return (s.NBytes + s.ChunkBytes - 1) / s.ChunkBytes
}

// ChunkSize returns the expected length of the given chunk index, or 0 when
// the index is outside the job.
func (s UploadSpec) ChunkSize(chunk int64) int64 {
	if chunk < 0 || chunk >= s.ChunkCount() {
		return 0
	}
	remaining := s.NBytes - chunk*s.ChunkBytes
	if remaining < s.ChunkBytes {
		return remaining
	}
	return s.ChunkBytes
}

// Upload is a resolved handle to an in-progress upload job.
type Upload struct {
	// Job is the job identifier, unique within its object
	Job string

	// Name is the canonical address of the target object
	Name string

	// Spec is the job description supplied at creation
	Spec UploadSpec

	// ContentID locates the staging payload in the content store
	ContentID string

	// BytesReceived is the total bytes of the distinct chunks recorded so
	// far; re-sent chunks do not count twice
	BytesReceived int64

	// CreatedAt is the job creation time
	CreatedAt time.Time
}

// String returns the job's address.
func (u *Upload) String() string {
	return u.Name + ";upload/" + u.Job
}
