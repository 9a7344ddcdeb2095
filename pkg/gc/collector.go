// Package gc removes orphaned payloads from the content store.
//
// A payload is orphaned when no version resource and no upload job
// references its content ID. Orphans accumulate when the server crashes
// between writing a payload and recording its version, or when a payload
// delete fails after its directory record is gone.
//
// A collection run lists the store's payloads before the directory's
// referenced IDs, so a payload written while the run is in progress is never
// a candidate, and a candidate whose version record lands during the run is
// still recognized as referenced. The remaining window is a request that
// wrote its payload before the store listing and records it only after the
// directory listing; the default daily interval makes that vanishingly rare,
// and DryRun mode lets deployments audit a run's verdict before trusting it.
package gc

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/content"
	"github.com/marmos91/dittostore/pkg/directory"
)

// Collector periodically scans the content store for orphaned payloads and
// deletes them.
//
// Thread safety: safe for concurrent use.
type Collector struct {
	dir    directory.Directory
	store  content.ListableStore
	config Config
	stopCh chan struct{}
	doneCh chan struct{}
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether garbage collection is active
	Enabled bool

	// Interval is how often to run garbage collection (default: 24h)
	Interval time.Duration

	// DryRun mode logs what would be deleted without actually deleting.
	// Useful for validating a deployment before trusting the collector.
	DryRun bool
}

// NewCollector creates a new garbage collector.
//
// The collector is initialized but not started; call Start() to begin
// background collection.
//
// Parameters:
//   - dir: Directory to enumerate referenced content IDs
//   - store: Content store to scan and delete orphaned payloads
//   - config: Garbage collection configuration
//
// Returns:
//   - *Collector: Initialized collector (not started)
//   - error: Returns error if the content store cannot enumerate payloads
func NewCollector(dir directory.Directory, store content.Store, config Config) (*Collector, error) {
	listable, ok := store.(content.ListableStore)
	if !ok {
		return nil, fmt.Errorf("content store cannot enumerate payloads for garbage collection")
	}

	if config.Interval == 0 {
		config.Interval = 24 * time.Hour
	}

	return &Collector{
		dir:    dir,
		store:  listable,
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start begins background garbage collection.
//
// A goroutine runs collection at the configured interval until Stop() is
// called. No-op when the collector is disabled.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Garbage collection disabled")
		return
	}

	logger.Info("Starting garbage collector: interval=%s dry_run=%v",
		c.config.Interval, c.config.DryRun)

	go c.worker()
}

// Stop stops the garbage collector and waits for the worker to finish any
// in-progress collection, bounded by the context.
func (c *Collector) Stop(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	logger.Info("Stopping garbage collector...")
	close(c.stopCh)

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow triggers an immediate collection run, blocking until it completes
// or the context is cancelled. Useful for tests and startup cleanup.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running garbage collection (manual trigger)...")
	return c.collect(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

// collect performs a single collection run:
//
//  1. Enumerate payloads in the content store
//  2. Enumerate content IDs referenced by versions and upload jobs
//  3. Delete every payload outside the referenced set
//
// Payloads are listed first so anything written mid-run is out of scope.
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	existing, err := c.store.ListIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to enumerate stored payloads: %w", err)
	}
	stats.ExistingCount = uint64(len(existing))

	referenced, err := c.dir.ContentIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to enumerate referenced content: %w", err)
	}
	stats.ReferencedCount = uint64(len(referenced))

	referencedSet := make(map[content.ID]struct{}, len(referenced))
	for _, id := range referenced {
		referencedSet[content.ID(id)] = struct{}{}
	}

	var orphaned []content.ID
	for _, id := range existing {
		if _, ok := referencedSet[id]; !ok {
			orphaned = append(orphaned, id)
		}
	}
	stats.OrphanedCount = uint64(len(orphaned))

	if len(orphaned) == 0 {
		stats.EndTime = time.Now()
		logger.Debug("GC: no orphaned payloads")
		return stats, nil
	}

	if c.config.DryRun {
		logger.Info("GC: dry run, would delete %d payloads:", stats.OrphanedCount)
		for i, id := range orphaned {
			if i == 10 {
				logger.Info("  ... and %d more", len(orphaned)-10)
				break
			}
			logger.Info("  - %s", id)
		}
		stats.EndTime = time.Now()
		return stats, nil
	}

	logger.Info("GC: deleting %d orphaned payloads...", stats.OrphanedCount)
	for _, id := range orphaned {
		if err := ctx.Err(); err != nil {
			stats.EndTime = time.Now()
			return stats, err
		}
		if err := c.store.Delete(ctx, id); err != nil {
			logger.Warn("GC: failed to delete payload %s: %v", id, err)
			stats.FailedCount++
			continue
		}
		stats.DeletedCount++
	}

	stats.EndTime = time.Now()
	return stats, nil
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime       time.Time
	EndTime         time.Time
	ReferencedCount uint64 // content IDs referenced by the directory
	ExistingCount   uint64 // payloads found in the content store
	OrphanedCount   uint64 // payloads with no directory reference
	DeletedCount    uint64 // orphans successfully deleted
	FailedCount     uint64 // orphans that failed to delete
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("referenced=%d existing=%d orphaned=%d deleted=%d failed=%d duration=%s",
		s.ReferencedCount, s.ExistingCount, s.OrphanedCount,
		s.DeletedCount, s.FailedCount, s.Duration())
}
