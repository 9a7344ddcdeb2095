package rest

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/auth"
)

// requestContext carries per-request audit state through the lifecycle: a
// random correlation ID, the resolved identity, and the trace annotations
// (negotiated content type, served byte range) that land on the final
// audit line.
type requestContext struct {
	id       string
	start    time.Time
	client   string
	identity *auth.Identity

	// headOnly suppresses response bodies for HEAD requests served
	// through GET handlers
	headOnly bool

	// rangeNote and typeNote default to "no range" and "unknown" and are
	// overwritten when a handler frames a partial response or negotiates
	// a content type
	rangeNote string
	typeNote  string

	method string
	scheme string
	host   string
	uri    string
}

func newRequestContext(r *http.Request) *requestContext {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	client, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		client = r.RemoteAddr
	}

	return &requestContext{
		id:        base64.RawStdEncoding.EncodeToString(buf),
		start:     time.Now(),
		client:    client,
		identity:  auth.Anonymous(),
		rangeNote: "-/-",
		typeNote:  "unknown",
		method:    r.Method,
		scheme:    scheme,
		host:      r.Host,
		uri:       r.URL.RequestURI(),
	}
}

// user renders the identity for logging. Client identifiers are URL-escaped
// so the audit line stays single-token per field.
func (rc *requestContext) user() string {
	if rc.identity.IsAnonymous() {
		return "anonymous"
	}
	return url.QueryEscape(rc.identity.Client)
}

// elapsed renders time since request start with millisecond precision.
func (rc *requestContext) elapsed() string {
	d := time.Since(rc.start)
	return fmt.Sprintf("%d.%03ds", d/time.Second, (d%time.Second)/time.Millisecond)
}

// Trace emits an intermediate audit event correlated to the request by ID.
func (rc *requestContext) Trace(format string, v ...any) {
	logger.Info("%s %s user=%s req=%s -- %s",
		rc.elapsed(), rc.client, rc.user(), rc.id, fmt.Sprintf(format, v...))
}

// audit emits the final per-request summary line. The dispatcher calls it
// exactly once, on every exit path.
func (rc *requestContext) audit(status int) {
	logger.Info("%s %s user=%s req=%s (%d) %s %s://%s%s %s %s",
		rc.elapsed(), rc.client, rc.user(), rc.id, status,
		rc.method, rc.scheme, rc.host, rc.uri, rc.rangeNote, rc.typeNote)
}
