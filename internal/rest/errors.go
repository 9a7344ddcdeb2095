package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/auth"
	"github.com/marmos91/dittostore/pkg/content"
	"github.com/marmos91/dittostore/pkg/directory"
)

// restError carries the HTTP framing of a failed request: final status,
// single-line message, and any extra response headers. Handlers either
// return these directly (transport-level failures like 411 or 416) or
// return domain errors that translate maps here.
type restError struct {
	status  int
	message string
	headers map[string]string
}

func (e *restError) Error() string {
	return e.message
}

func errBadRequest(message string) *restError {
	return &restError{status: http.StatusBadRequest, message: message}
}

func errNotFound(message string) *restError {
	return &restError{status: http.StatusNotFound, message: message}
}

func errNoMethod() *restError {
	return &restError{status: http.StatusMethodNotAllowed, message: "method not allowed"}
}

func errConflict(message string) *restError {
	return &restError{status: http.StatusConflict, message: message}
}

func errLengthRequired() *restError {
	return &restError{status: http.StatusLengthRequired, message: "content length required"}
}

// errBadRange reports an unsatisfiable Range header, advertising the
// payload's actual extent so clients can retry.
func errBadRange(nbytes int64) *restError {
	return &restError{
		status:  http.StatusRequestedRangeNotSatisfiable,
		message: "requested range not satisfiable",
		headers: map[string]string{"Content-Range": fmt.Sprintf("bytes */%d", nbytes)},
	}
}

func errNotImplemented(message string) *restError {
	return &restError{status: http.StatusNotImplemented, message: message}
}

func errThrottled() *restError {
	return &restError{status: http.StatusServiceUnavailable, message: "server overloaded"}
}

// translate maps any error escaping a handler onto its HTTP framing. This
// is the only place domain errors become status codes; anything outside
// the known taxonomy is reported as a 500 and logged with its cause.
func translate(err error) *restError {
	var re *restError
	if errors.As(err, &re) {
		return re
	}

	var derr *directory.Error
	if errors.As(err, &derr) {
		switch derr.Code {
		case directory.CodeBadRequest:
			return errBadRequest(derr.Error())
		case directory.CodeUnauthenticated:
			return &restError{status: http.StatusUnauthorized, message: derr.Error()}
		case directory.CodeForbidden:
			return &restError{status: http.StatusForbidden, message: derr.Error()}
		case directory.CodeNotFound:
			return errNotFound(derr.Error())
		case directory.CodeConflict:
			return errConflict(derr.Error())
		case directory.CodeNotImplemented:
			return errNotImplemented(derr.Error())
		}
	}

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &restError{status: http.StatusUnauthorized, message: "invalid credentials"}
	case errors.Is(err, content.ErrNotFound):
		// a version resolved but its payload is gone; lost a race with
		// a concurrent delete
		return errNotFound("resource not found")
	case errors.Is(err, content.ErrNotChunked):
		return errNotImplemented("chunked upload not supported by the content store")
	}

	logger.Error("Internal error: %v", err)
	return &restError{status: http.StatusInternalServerError, message: "internal server error"}
}

// writeError renders a failure as a single-line text/plain body. HEAD
// requests get headers only.
func writeError(w http.ResponseWriter, rc *requestContext, e *restError) {
	for k, v := range e.headers {
		w.Header().Set(k, v)
	}
	body := e.message + "\n"
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(e.status)
	if !rc.headOnly {
		_, _ = io.WriteString(w, body)
	}
}
