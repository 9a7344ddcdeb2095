package rest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/content"
	"github.com/marmos91/dittostore/pkg/directory"
)

// namespaceContentType marks a PUT body as a namespace-creation request
// rather than an object version.
const namespaceContentType = "application/x-hatrac-namespace"

// resolve turns bound address params into a resource handle.
func (s *Service) resolve(ctx context.Context, p params) (*directory.Resource, error) {
	if p.version != "" {
		return s.dir.VersionResolve(ctx, p.name, p.version)
	}
	return s.dir.NameResolve(ctx, p.name)
}

// mediaType extracts the bare media type from a Content-Type header,
// dropping parameters like charset.
func mediaType(header string) string {
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return mt
}

// getResource serves GET (and HEAD) on namespaces, objects, and versions.
func (s *Service) getResource(rc *requestContext, w http.ResponseWriter, r *http.Request, p params) error {
	res, err := s.resolve(r.Context(), p)
	if err != nil {
		return err
	}

	if res.Type == directory.TypeNamespace {
		if r.Header.Get("Range") != "" {
			return errNotImplemented("ranged access not supported by this resource")
		}
		names, err := s.dir.List(r.Context(), res.Name, rc.identity)
		if err != nil {
			return err
		}
		return writeJSON(rc, w, http.StatusOK, names)
	}
	return s.serveContent(rc, w, r, res)
}

// serveContent streams version payload bytes, honoring the Range header.
// Object handles resolve to their current version first so range framing
// always runs against a concrete payload length.
func (s *Service) serveContent(rc *requestContext, w http.ResponseWriter, r *http.Request, res *directory.Resource) error {
	ctx := r.Context()

	if res.IsObject() {
		current, err := s.dir.CurrentVersion(ctx, res.Name)
		if err != nil {
			return err
		}
		res = current
	}
	if err := s.dir.EnforceRead(ctx, res, rc.identity); err != nil {
		return err
	}

	span, err := parseRange(r.Header.Get("Range"), res.NBytes)
	if err != nil {
		return err
	}

	w.Header().Set("Accept-Ranges", "bytes")
	if res.ContentType != "" {
		w.Header().Set("Content-Type", res.ContentType)
		rc.typeNote = res.ContentType
	}

	status := http.StatusOK
	first, length := int64(0), res.NBytes
	if span != nil {
		status = http.StatusPartialContent
		first, length = span.first, span.length()
		w.Header().Set("Content-Range",
			fmt.Sprintf("bytes %d-%d/%d", span.first, span.last-1, res.NBytes))
		rc.rangeNote = fmt.Sprintf("bytes=%d-%d/%d", span.first, span.last-1, res.NBytes)
	} else if len(res.ContentMD5) > 0 {
		w.Header().Set("Content-MD5", base64.StdEncoding.EncodeToString(res.ContentMD5))
	}
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))

	if rc.headOnly {
		w.WriteHeader(status)
		return nil
	}

	var body io.ReadCloser
	if span != nil {
		body, err = s.store.ReadRange(ctx, content.ID(res.ContentID), first, length)
	} else {
		body, err = s.store.Read(ctx, content.ID(res.ContentID))
	}
	if err != nil {
		return err
	}
	defer body.Close()

	w.WriteHeader(status)
	_, err = io.Copy(w, body)
	return err
}

// putResource creates either a sub-namespace (namespace content type) or a
// new object version (any other body).
func (s *Service) putResource(rc *requestContext, w http.ResponseWriter, r *http.Request, p params) error {
	ctx := r.Context()
	ctype := mediaType(r.Header.Get("Content-Type"))

	if ctype == namespaceContentType {
		res, err := s.dir.CreateNamespace(ctx, p.name, rc.identity)
		if err != nil {
			return err
		}
		rc.Trace("created namespace %s", res.Name)
		return writeCreated(rc, w, res.Name)
	}

	// version payloads must declare their length up front so storage can
	// be provisioned and the audit trail records intent
	if r.ContentLength < 0 {
		return errLengthRequired()
	}

	id := content.NewID()
	nbytes, digest, err := s.store.Write(ctx, id, r.Body)
	if err != nil {
		return err
	}

	if header := r.Header.Get("Content-MD5"); header != "" {
		want, derr := base64.StdEncoding.DecodeString(header)
		if derr != nil || !bytes.Equal(want, digest) {
			_ = s.store.Delete(ctx, id)
			return errBadRequest("content digest mismatch")
		}
	}

	res, err := s.dir.CreateVersion(ctx, p.name, directory.VersionMeta{
		NBytes:      nbytes,
		ContentType: ctype,
		ContentMD5:  digest,
		ContentID:   string(id),
	}, rc.identity)
	if err != nil {
		// the payload never became resolvable; drop it
		_ = s.store.Delete(ctx, id)
		return err
	}
	rc.Trace("created version %s nbytes %d", res.String(), nbytes)
	return writeCreated(rc, w, res.String())
}

// deleteResource removes a namespace, object, or version, releasing any
// payload bytes the removal orphaned.
func (s *Service) deleteResource(rc *requestContext, w http.ResponseWriter, r *http.Request, p params) error {
	ctx := r.Context()
	res, err := s.resolve(ctx, p)
	if err != nil {
		return err
	}

	switch res.Type {
	case directory.TypeNamespace:
		if err := s.dir.DeleteNamespace(ctx, res.Name, rc.identity); err != nil {
			return err
		}

	case directory.TypeObject:
		orphaned, err := s.dir.DeleteObject(ctx, res.Name, rc.identity)
		if err != nil {
			return err
		}
		for _, id := range orphaned {
			if derr := s.store.Delete(ctx, content.ID(id)); derr != nil {
				logger.Warn("Failed to delete payload %s: %v", id, derr)
			}
		}

	case directory.TypeVersion:
		if err := s.dir.DeleteVersion(ctx, res.Name, res.Version, rc.identity); err != nil {
			return err
		}
		if derr := s.store.Delete(ctx, content.ID(res.ContentID)); derr != nil {
			logger.Warn("Failed to delete payload %s: %v", res.ContentID, derr)
		}

	default:
		return errNoMethod()
	}

	rc.Trace("deleted %s", res.String())
	writeNoContent(w)
	return nil
}

// writeJSON renders a JSON body with framing headers.
func writeJSON(rc *requestContext, w http.ResponseWriter, status int, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf = append(buf, '\n')

	rc.typeNote = "application/json"
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
	w.WriteHeader(status)
	if rc.headOnly {
		return nil
	}
	_, err = w.Write(buf)
	return err
}

// writeCreated answers a creation with 201, the new resource's address in
// the Location header, and a text/uri-list body carrying the same address.
func writeCreated(rc *requestContext, w http.ResponseWriter, location string) error {
	body := location + "\n"

	rc.typeNote = "text/uri-list"
	w.Header().Set("Location", location)
	w.Header().Set("Content-Type", "text/uri-list")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusCreated)
	if rc.headOnly {
		return nil
	}
	_, err := io.WriteString(w, body)
	return err
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
