package rest

import (
	"net/http"
	"time"

	"github.com/marmos91/dittostore/internal/logger"
)

// statusWriter records the final status code and body byte count for the
// audit line and metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

// ServeHTTP runs the uniform request lifecycle: throttle, identity
// resolution, route dispatch, error translation. The deferred block emits
// the audit line and metrics on every exit path, panics included, so a
// request can never finish unlogged.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := newRequestContext(r)
	sw := &statusWriter{ResponseWriter: w}
	s.metrics.RequestStarted()

	defer func() {
		if p := recover(); p != nil {
			logger.Error("Panic serving %s %s: %v", r.Method, r.URL.Path, p)
			if sw.status == 0 {
				writeError(sw, rc, &restError{
					status:  http.StatusInternalServerError,
					message: "internal server error",
				})
			}
		}
		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		rc.audit(status)
		s.metrics.RequestFinished(r.Method, status, time.Since(rc.start), sw.bytes)
	}()

	if !s.limiter.Allow() {
		s.metrics.RequestThrottled()
		writeError(sw, rc, errThrottled())
		return
	}

	// identity resolves before any dispatch so even 404s and 405s log who
	// asked
	identity, err := s.auth.Authenticate(r)
	if err != nil {
		writeError(sw, rc, translate(err))
		return
	}
	rc.identity = identity

	rt, p, err := s.match(r.URL.Path)
	if err != nil {
		writeError(sw, rc, translate(err))
		return
	}
	if rt == nil {
		writeError(sw, rc, errNotFound("resource not found"))
		return
	}

	h, ok := rt.methods[r.Method]
	if !ok && r.Method == http.MethodHead {
		if get, found := rt.methods[http.MethodGet]; found {
			h, ok = get, true
			rc.headOnly = true
		}
	}
	if !ok {
		writeError(sw, rc, errNoMethod())
		return
	}

	if herr := h(rc, sw, r, p); herr != nil {
		if sw.status != 0 {
			// the response already started streaming; too late for an
			// error body
			logger.Warn("Request %s failed mid-response: %v", rc.id, herr)
			return
		}
		writeError(sw, rc, translate(herr))
	}
}
