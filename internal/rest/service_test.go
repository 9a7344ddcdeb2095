package rest

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/internal/ratelimiter"
	"github.com/marmos91/dittostore/pkg/auth"
	contentmemory "github.com/marmos91/dittostore/pkg/content/memory"
	dirmemory "github.com/marmos91/dittostore/pkg/directory/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestService builds a front door over in-memory stores with an open
// root namespace. A nil manager means anonymous auth.
func newTestService(t *testing.T, mgr auth.Manager) (*Service, *dirmemory.Directory, *contentmemory.Store) {
	t.Helper()
	ctx := context.Background()

	dir, err := dirmemory.New(ctx, dirmemory.Config{})
	require.NoError(t, err)
	store, err := contentmemory.New(ctx)
	require.NoError(t, err)

	s, err := New(Config{Directory: dir, Content: store, Auth: mgr})
	require.NoError(t, err)
	return s, dir, store
}

// do runs one request through the full lifecycle and returns the recorder.
func do(s *Service, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func putNamespace(t *testing.T, s *Service, name string) {
	t.Helper()
	w := do(s, http.MethodPut, name, nil, map[string]string{
		"Content-Type": namespaceContentType,
	})
	require.Equal(t, http.StatusCreated, w.Code, "creating namespace %s: %s", name, w.Body.String())
}

// putObject writes one version and returns its address from Location.
func putObject(t *testing.T, s *Service, name string, payload []byte) string {
	t.Helper()
	w := do(s, http.MethodPut, name, payload, map[string]string{
		"Content-Type": "application/octet-stream",
	})
	require.Equal(t, http.StatusCreated, w.Code, "creating object %s: %s", name, w.Body.String())
	return w.Header().Get("Location")
}

func TestNewRequiresStores(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	dir, err := dirmemory.New(context.Background(), dirmemory.Config{})
	require.NoError(t, err)
	_, err = New(Config{Directory: dir})
	assert.Error(t, err)
}

func TestNamespaceLifecycle(t *testing.T) {
	s, _, _ := newTestService(t, nil)

	putNamespace(t, s, "/ns")
	putNamespace(t, s, "/ns/sub")

	// listing is sorted JSON
	putNamespace(t, s, "/ns/alpha")
	w := do(s, http.MethodGet, "/ns", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var names []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &names))
	assert.Equal(t, []string{"/ns/alpha", "/ns/sub"}, names)

	// duplicate creation conflicts
	w = do(s, http.MethodPut, "/ns/sub", nil, map[string]string{"Content-Type": namespaceContentType})
	assert.Equal(t, http.StatusConflict, w.Code)

	// non-empty namespaces cannot be deleted
	w = do(s, http.MethodDelete, "/ns", nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(s, http.MethodDelete, "/ns/alpha", nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(s, http.MethodGet, "/ns/alpha", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRootNamespace(t *testing.T) {
	s, _, _ := newTestService(t, nil)

	putNamespace(t, s, "/top")
	w := do(s, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var names []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &names))
	assert.Equal(t, []string{"/top"}, names)

	// the root cannot be replaced or removed; the route table exposes GET only
	w = do(s, http.MethodPut, "/", nil, map[string]string{"Content-Type": namespaceContentType})
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	w = do(s, http.MethodDelete, "/", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestObjectVersionLifecycle(t *testing.T) {
	s, _, _ := newTestService(t, nil)
	putNamespace(t, s, "/ns")

	payload := []byte("first version")
	loc := putObject(t, s, "/ns/obj", payload)
	require.True(t, strings.HasPrefix(loc, "/ns/obj:"), "Location %q", loc)

	// bare-name GET serves the current version
	w := do(s, http.MethodGet, "/ns/obj", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, payload, w.Body.Bytes())
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))

	sum := md5.Sum(payload)
	assert.Equal(t, base64.StdEncoding.EncodeToString(sum[:]), w.Header().Get("Content-MD5"))

	// a second PUT becomes current; the first stays addressable
	second := []byte("second version")
	loc2 := putObject(t, s, "/ns/obj", second)
	require.NotEqual(t, loc, loc2)

	w = do(s, http.MethodGet, "/ns/obj", nil, nil)
	assert.Equal(t, second, w.Body.Bytes())
	w = do(s, http.MethodGet, loc, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, payload, w.Body.Bytes())

	// deleting the current version falls back to the previous one
	w = do(s, http.MethodDelete, loc2, nil, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(s, http.MethodGet, "/ns/obj", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, payload, w.Body.Bytes())
	w = do(s, http.MethodGet, loc2, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// deleting the last version leaves the object without content
	w = do(s, http.MethodDelete, loc, nil, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(s, http.MethodGet, "/ns/obj", nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteObjectReleasesPayloads(t *testing.T) {
	s, _, store := newTestService(t, nil)
	putNamespace(t, s, "/ns")
	putObject(t, s, "/ns/obj", []byte("v1"))
	putObject(t, s, "/ns/obj", []byte("v2"))

	w := do(s, http.MethodDelete, "/ns/obj", nil, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	ids, err := store.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids, "object payloads should be released on delete")

	w = do(s, http.MethodGet, "/ns/obj", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutObjectRequiresContentLength(t *testing.T) {
	s, _, _ := newTestService(t, nil)
	putNamespace(t, s, "/ns")

	req := httptest.NewRequest(http.MethodPut, "/ns/obj", strings.NewReader("data"))
	req.ContentLength = -1
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, http.StatusLengthRequired, w.Code)
}

func TestPutObjectDigestVerification(t *testing.T) {
	s, _, store := newTestService(t, nil)
	putNamespace(t, s, "/ns")

	payload := []byte("checked payload")
	sum := md5.Sum(payload)

	w := do(s, http.MethodPut, "/ns/ok", payload, map[string]string{
		"Content-MD5": base64.StdEncoding.EncodeToString(sum[:]),
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(s, http.MethodPut, "/ns/bad", payload, map[string]string{
		"Content-MD5": base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0}, 16)),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// the rejected payload must not linger in the store
	ids, err := store.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestRangeRequests(t *testing.T) {
	s, _, _ := newTestService(t, nil)
	putNamespace(t, s, "/ns")
	putObject(t, s, "/ns/obj", []byte("0123456789"))

	get := func(rangeHeader string) *httptest.ResponseRecorder {
		return do(s, http.MethodGet, "/ns/obj", nil, map[string]string{"Range": rangeHeader})
	}

	t.Run("closed interval", func(t *testing.T) {
		w := get("bytes=2-5")
		require.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, "2345", w.Body.String())
		assert.Equal(t, "bytes 2-5/10", w.Header().Get("Content-Range"))
		assert.Equal(t, "4", w.Header().Get("Content-Length"))
		assert.Empty(t, w.Header().Get("Content-MD5"), "partial responses carry no payload digest")
	})

	t.Run("open interval", func(t *testing.T) {
		w := get("bytes=7-")
		require.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, "789", w.Body.String())
		assert.Equal(t, "bytes 7-9/10", w.Header().Get("Content-Range"))
	})

	t.Run("suffix", func(t *testing.T) {
		w := get("bytes=-3")
		require.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, "789", w.Body.String())
	})

	t.Run("clamped last", func(t *testing.T) {
		w := get("bytes=8-99")
		require.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, "89", w.Body.String())
		assert.Equal(t, "bytes 8-9/10", w.Header().Get("Content-Range"))
	})

	t.Run("whole payload degrades to 200", func(t *testing.T) {
		w := get("bytes=0-9")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "0123456789", w.Body.String())
		assert.Empty(t, w.Header().Get("Content-Range"))
	})

	t.Run("malformed header is ignored", func(t *testing.T) {
		w := get("bytes=5-2")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "0123456789", w.Body.String())
	})

	t.Run("unsatisfiable", func(t *testing.T) {
		w := get("bytes=50-60")
		require.Equal(t, http.StatusRequestedRangeNotSatisfiable, w.Code)
		assert.Equal(t, "bytes */10", w.Header().Get("Content-Range"))
	})

	t.Run("multiple ranges not implemented", func(t *testing.T) {
		w := get("bytes=1-2,4-5")
		assert.Equal(t, http.StatusNotImplemented, w.Code)
	})

	t.Run("non-byte units not implemented", func(t *testing.T) {
		w := get("widgets=1-2")
		assert.Equal(t, http.StatusNotImplemented, w.Code)
	})

	t.Run("namespaces reject ranged access", func(t *testing.T) {
		w := do(s, http.MethodGet, "/ns", nil, map[string]string{"Range": "bytes=0-1"})
		assert.Equal(t, http.StatusNotImplemented, w.Code)
	})
}

func TestHeadRequests(t *testing.T) {
	s, _, _ := newTestService(t, nil)
	putNamespace(t, s, "/ns")
	putObject(t, s, "/ns/obj", []byte("0123456789"))

	t.Run("whole payload", func(t *testing.T) {
		w := do(s, http.MethodHead, "/ns/obj", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "10", w.Header().Get("Content-Length"))
		assert.Zero(t, w.Body.Len(), "HEAD must not carry a body")
	})

	t.Run("partial", func(t *testing.T) {
		w := do(s, http.MethodHead, "/ns/obj", nil, map[string]string{"Range": "bytes=2-5"})
		require.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, "4", w.Header().Get("Content-Length"))
		assert.Equal(t, "bytes 2-5/10", w.Header().Get("Content-Range"))
		assert.Zero(t, w.Body.Len())
	})

	t.Run("error responses suppress the body too", func(t *testing.T) {
		w := do(s, http.MethodHead, "/ns/missing", nil, nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Zero(t, w.Body.Len())
	})
}

func TestErrorResponses(t *testing.T) {
	s, _, _ := newTestService(t, nil)
	putNamespace(t, s, "/ns")

	t.Run("not found is a single text line", func(t *testing.T) {
		w := do(s, http.MethodGet, "/ns/missing", nil, nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
		body := w.Body.String()
		assert.True(t, strings.HasSuffix(body, "\n"), "body %q must end in newline", body)
		assert.Equal(t, 1, strings.Count(body, "\n"))
	})

	t.Run("unroutable address", func(t *testing.T) {
		w := do(s, http.MethodGet, "/ns;bogus", nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown method", func(t *testing.T) {
		w := do(s, "PATCH", "/ns", nil, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestThrottling(t *testing.T) {
	ctx := context.Background()
	dir, err := dirmemory.New(ctx, dirmemory.Config{})
	require.NoError(t, err)
	store, err := contentmemory.New(ctx)
	require.NoError(t, err)

	s, err := New(Config{
		Directory: dir,
		Content:   store,
		Limiter:   ratelimiter.New(1, 1),
	})
	require.NoError(t, err)

	w := do(s, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// the single token is spent; the next request is rejected
	w = do(s, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuthenticationLifecycle(t *testing.T) {
	mgr := auth.NewStaticTokenManager([]auth.StaticToken{
		{Token: "secret", Client: "alice"},
	})
	s, _, _ := newTestService(t, mgr)

	t.Run("bad credentials fail before dispatch", func(t *testing.T) {
		w := do(s, http.MethodGet, "/definitely/missing", nil, map[string]string{
			"Authorization": "Bearer wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token proceeds", func(t *testing.T) {
		w := do(s, http.MethodGet, "/", nil, map[string]string{
			"Authorization": "Bearer secret",
		})
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

// captureLog redirects the global logger for the duration of a test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })
	return &buf
}

func auditLines(buf *bytes.Buffer, status int) []string {
	var out []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, fmt.Sprintf("(%d)", status)) && strings.Contains(line, "req=") {
			out = append(out, line)
		}
	}
	return out
}

func TestAuditLinePerRequest(t *testing.T) {
	s, _, _ := newTestService(t, nil)
	putNamespace(t, s, "/ns")
	putObject(t, s, "/ns/obj", []byte("0123456789"))

	t.Run("success", func(t *testing.T) {
		buf := captureLog(t)
		do(s, http.MethodGet, "/ns/obj", nil, nil)
		lines := auditLines(buf, http.StatusOK)
		require.Len(t, lines, 1, "log:\n%s", buf.String())
		assert.Contains(t, lines[0], "GET http://")
		assert.Contains(t, lines[0], "user=anonymous")
		assert.Contains(t, lines[0], "application/octet-stream")
	})

	t.Run("failure", func(t *testing.T) {
		buf := captureLog(t)
		do(s, http.MethodGet, "/nope", nil, nil)
		require.Len(t, auditLines(buf, http.StatusNotFound), 1, "log:\n%s", buf.String())
	})

	t.Run("partial content records the served range", func(t *testing.T) {
		buf := captureLog(t)
		do(s, http.MethodGet, "/ns/obj", nil, map[string]string{"Range": "bytes=2-5"})
		lines := auditLines(buf, http.StatusPartialContent)
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], "bytes=2-5/10")
	})

	t.Run("request IDs differ per request", func(t *testing.T) {
		buf := captureLog(t)
		do(s, http.MethodGet, "/", nil, nil)
		do(s, http.MethodGet, "/", nil, nil)
		lines := auditLines(buf, http.StatusOK)
		require.Len(t, lines, 2)
		id := func(line string) string {
			i := strings.Index(line, "req=")
			return strings.Fields(line[i:])[0]
		}
		assert.NotEqual(t, id(lines[0]), id(lines[1]))
	})
}
