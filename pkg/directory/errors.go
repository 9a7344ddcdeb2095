package directory

// Error represents a domain error from directory operations.
//
// These are business logic errors (name not found, access forbidden, state
// conflicts) as opposed to infrastructure errors (disk failure, encoding
// bugs). The REST layer translates Error codes to HTTP status codes; it is
// the only place that translation happens.
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Name is the resource address related to the error (if applicable)
	Name string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Name != "" {
		return e.Message + ": " + e.Name
	}
	return e.Message
}

// ErrorCode represents the category of a directory error.
//
// The set is closed: every failure a directory implementation can raise maps
// 1:1 onto a transport status, so new codes require a new row in the REST
// translation table.
type ErrorCode int

const (
	// CodeBadRequest indicates malformed input (bad names, bad ACL bodies)
	CodeBadRequest ErrorCode = iota

	// CodeUnauthenticated indicates the operation needs a non-anonymous client
	CodeUnauthenticated

	// CodeForbidden indicates the authenticated client lacks the needed role
	CodeForbidden

	// CodeNotFound indicates the name, version, category, role, or job
	// does not exist
	CodeNotFound

	// CodeConflict indicates the operation conflicts with current state
	// (deleting a non-empty namespace, finalizing an incomplete upload)
	CodeConflict

	// CodeNotImplemented indicates the resource does not support the operation
	CodeNotImplemented
)

// NewBadRequest creates a BadRequest error.
func NewBadRequest(message string) *Error {
	return &Error{Code: CodeBadRequest, Message: message}
}

// NewUnauthenticated creates an Unauthenticated error.
func NewUnauthenticated(message string) *Error {
	return &Error{Code: CodeUnauthenticated, Message: message}
}

// NewForbidden creates a Forbidden error.
func NewForbidden(message string, name string) *Error {
	return &Error{Code: CodeForbidden, Message: message, Name: name}
}

// NewNotFound creates a NotFound error for the given address.
func NewNotFound(name string) *Error {
	return &Error{Code: CodeNotFound, Message: "resource not found", Name: name}
}

// NewConflict creates a Conflict error.
func NewConflict(message string, name string) *Error {
	return &Error{Code: CodeConflict, Message: message, Name: name}
}

// NewNotImplemented creates a NotImplemented error.
func NewNotImplemented(message string) *Error {
	return &Error{Code: CodeNotImplemented, Message: message}
}
