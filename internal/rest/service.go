// Package rest is the HTTP front door of DittoStore.
//
// It maps the address grammar onto resources (namespaces, objects,
// versions, ACL sub-resources, upload jobs), runs every request through a
// uniform lifecycle (throttle, identity, dispatch, error translation), and
// emits exactly one audit line per request no matter how the request ends.
//
// Handlers never write error responses themselves. They return errors; the
// dispatcher owns the single translation point from domain errors to HTTP
// status codes.
package rest

import (
	"fmt"

	"github.com/marmos91/dittostore/internal/ratelimiter"
	"github.com/marmos91/dittostore/pkg/auth"
	"github.com/marmos91/dittostore/pkg/content"
	"github.com/marmos91/dittostore/pkg/directory"
	"github.com/marmos91/dittostore/pkg/metrics"
)

// Config wires the service's collaborators. Directory and Content are
// required; the rest default to permissive no-op implementations.
type Config struct {
	// Directory resolves names and enforces authorization.
	Directory directory.Directory

	// Content stores payload bytes.
	Content content.Store

	// Auth resolves request credentials. Default: anonymous.
	Auth auth.Manager

	// Limiter throttles the dispatcher. Default: unlimited.
	Limiter *ratelimiter.RateLimiter

	// Metrics records request activity. Default: no-op.
	Metrics metrics.HTTPMetrics
}

// Service is the HTTP handler serving the whole DittoStore API. It is
// immutable after New and safe for concurrent use.
type Service struct {
	dir     directory.Directory
	store   content.Store
	auth    auth.Manager
	limiter *ratelimiter.RateLimiter
	metrics metrics.HTTPMetrics
	routes  []route
}

// New creates the front-door service.
func New(cfg Config) (*Service, error) {
	if cfg.Directory == nil {
		return nil, fmt.Errorf("rest service: directory is required")
	}
	if cfg.Content == nil {
		return nil, fmt.Errorf("rest service: content store is required")
	}
	if cfg.Auth == nil {
		cfg.Auth = auth.NewAnonymousManager()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimiter.New(0, 0)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoopHTTPMetrics()
	}

	s := &Service{
		dir:     cfg.Directory,
		store:   cfg.Content,
		auth:    cfg.Auth,
		limiter: cfg.Limiter,
		metrics: cfg.Metrics,
	}
	s.routes = s.buildRoutes()
	return s, nil
}

// chunked returns the content store's chunked-upload capability, if it has
// one. Stores without it make every upload-job operation report 501.
func (s *Service) chunked() (content.ChunkedStore, bool) {
	cs, ok := s.store.(content.ChunkedStore)
	return cs, ok
}
