package metrics

import "time"

// HTTPMetrics records REST front-door activity.
//
// Implementations must be safe for concurrent use; every request touches
// them from its own goroutine.
type HTTPMetrics interface {
	// RequestStarted marks a request in flight.
	RequestStarted()

	// RequestFinished records a completed request with its final status
	// code, total duration, and body bytes written.
	RequestFinished(method string, status int, duration time.Duration, bytes int64)

	// RequestThrottled counts a request rejected by the rate limiter.
	RequestThrottled()
}

// noopHTTPMetrics is the disabled implementation.
type noopHTTPMetrics struct{}

// NewNoopHTTPMetrics returns an HTTPMetrics that records nothing.
func NewNoopHTTPMetrics() HTTPMetrics {
	return noopHTTPMetrics{}
}

func (noopHTTPMetrics) RequestStarted() {}

func (noopHTTPMetrics) RequestFinished(method string, status int, duration time.Duration, bytes int64) {
}

func (noopHTTPMetrics) RequestThrottled() {}
