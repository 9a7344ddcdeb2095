package rest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/content"
	"github.com/marmos91/dittostore/pkg/directory"
)

// uploadRequest is the JSON body opening a chunked upload job.
type uploadRequest struct {
	NBytes      int64  `json:"nbytes"`
	ChunkBytes  int64  `json:"chunk_bytes"`
	ContentType string `json:"content_type,omitempty"`

	// ContentMD5 is the base64 digest the finished payload must match
	ContentMD5 string `json:"content_md5,omitempty"`
}

// uploadStatus is the JSON representation of a job's progress.
type uploadStatus struct {
	URL           string `json:"url"`
	Target        string `json:"target"`
	NBytes        int64  `json:"nbytes"`
	ChunkBytes    int64  `json:"chunk_bytes"`
	ContentType   string `json:"content_type,omitempty"`
	BytesReceived int64  `json:"bytes_received"`
}

// postUpload opens a chunked upload job on the named object.
func (s *Service) postUpload(rc *requestContext, w http.ResponseWriter, r *http.Request, p params) error {
	ctx := r.Context()
	if _, ok := s.chunked(); !ok {
		return errNotImplemented("chunked upload not supported by the content store")
	}

	if mediaType(r.Header.Get("Content-Type")) != "application/json" {
		return errBadRequest("upload request must be application/json")
	}
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return errBadRequest("malformed upload request")
	}

	spec := directory.UploadSpec{
		NBytes:      req.NBytes,
		ChunkBytes:  req.ChunkBytes,
		ContentType: req.ContentType,
	}
	if req.ContentMD5 != "" {
		digest, err := base64.StdEncoding.DecodeString(req.ContentMD5)
		if err != nil {
			return errBadRequest("malformed content_md5 digest")
		}
		spec.ContentMD5 = digest
	}

	u, err := s.dir.CreateUpload(ctx, p.name, spec, rc.identity)
	if err != nil {
		return err
	}
	rc.Trace("created upload %s nbytes %d chunk_bytes %d", u.String(), spec.NBytes, spec.ChunkBytes)
	return writeCreated(rc, w, u.String())
}

// getUpload reports a job's spec and progress.
func (s *Service) getUpload(rc *requestContext, w http.ResponseWriter, r *http.Request, p params) error {
	u, err := s.dir.UploadResolve(r.Context(), p.name, p.job, rc.identity)
	if err != nil {
		return err
	}
	return writeJSON(rc, w, http.StatusOK, uploadStatus{
		URL:           u.String(),
		Target:        u.Name,
		NBytes:        u.Spec.NBytes,
		ChunkBytes:    u.Spec.ChunkBytes,
		ContentType:   u.Spec.ContentType,
		BytesReceived: u.BytesReceived,
	})
}

// putUploadChunk stages one chunk of a job at its fixed offset. Chunks may
// arrive in any order and may be re-sent; only the final chunk may be
// shorter than the declared chunk size.
func (s *Service) putUploadChunk(rc *requestContext, w http.ResponseWriter, r *http.Request, p params) error {
	ctx := r.Context()
	cs, ok := s.chunked()
	if !ok {
		return errNotImplemented("chunked upload not supported by the content store")
	}

	u, err := s.dir.UploadResolve(ctx, p.name, p.job, rc.identity)
	if err != nil {
		return err
	}

	if r.ContentLength < 0 {
		return errLengthRequired()
	}
	if r.ContentLength > u.Spec.ChunkBytes {
		return errBadRequest("chunk exceeds declared chunk size")
	}
	offset := p.chunk * u.Spec.ChunkBytes
	if offset >= u.Spec.NBytes {
		return errConflict("chunk beyond declared upload length")
	}

	n, err := cs.WriteChunk(ctx, content.ID(u.ContentID), offset, r.Body)
	if err != nil {
		return err
	}
	if n != u.Spec.ChunkBytes && offset+n != u.Spec.NBytes {
		return errBadRequest("chunk shorter than declared chunk size")
	}
	if err := s.dir.NoteChunk(ctx, p.name, p.job, p.chunk, rc.identity); err != nil {
		return err
	}

	rc.rangeNote = fmt.Sprintf("bytes=%d-%d/%d", offset, offset+n-1, u.Spec.NBytes)
	rc.Trace("upload %s chunk %d nbytes %d", u.String(), p.chunk, n)
	writeNoContent(w)
	return nil
}

// postUploadFinish seals a job's staged payload and promotes it to a new
// version of the target object.
func (s *Service) postUploadFinish(rc *requestContext, w http.ResponseWriter, r *http.Request, p params) error {
	ctx := r.Context()
	cs, ok := s.chunked()
	if !ok {
		return errNotImplemented("chunked upload not supported by the content store")
	}

	u, err := s.dir.UploadResolve(ctx, p.name, p.job, rc.identity)
	if err != nil {
		return err
	}
	nbytes, digest, err := cs.FinishChunked(ctx, content.ID(u.ContentID))
	if err != nil {
		return err
	}

	res, err := s.dir.FinishUpload(ctx, p.name, p.job, nbytes, digest, rc.identity)
	if err != nil {
		return err
	}
	rc.Trace("finished upload %s as %s", u.String(), res.String())
	return writeCreated(rc, w, res.String())
}

// deleteUpload cancels a job and discards its staged bytes.
func (s *Service) deleteUpload(rc *requestContext, w http.ResponseWriter, r *http.Request, p params) error {
	ctx := r.Context()
	u, err := s.dir.UploadResolve(ctx, p.name, p.job, rc.identity)
	if err != nil {
		return err
	}
	if err := s.dir.CancelUpload(ctx, p.name, p.job, rc.identity); err != nil {
		return err
	}
	if derr := s.store.Delete(ctx, content.ID(u.ContentID)); derr != nil {
		logger.Warn("Failed to delete staged payload %s: %v", u.ContentID, derr)
	}
	rc.Trace("cancelled upload %s", u.String())
	writeNoContent(w)
	return nil
}
