// Package janitor periodically purges expired and idle sessions so that rows
// which never receive another request do not accumulate.
package janitor

import (
	"context"
	"log/slog"
	"time"
)

// Purger deletes stale sessions and reports how many were removed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Janitor runs Purger on a fixed interval.
type Janitor struct {
	purger   Purger
	interval time.Duration
	log      *slog.Logger
}

// New returns a Janitor. A non-positive interval makes Run return immediately.
func New(purger Purger, interval time.Duration, log *slog.Logger) *Janitor {
	if log == nil {
		log = slog.Default()
	}
	return &Janitor{purger: purger, interval: interval, log: log}
}

// Run purges once per interval until ctx is done. It always returns nil so it
// can run in an errgroup without stopping its siblings.
func (j *Janitor) Run(ctx context.Context) error {
	if j.interval <= 0 {
		j.log.Info("janitor: disabled")
		return nil
	}
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single purge. Failures are logged.
func (j *Janitor) RunOnce(ctx context.Context) {
	n, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		j.log.Error("janitor: purge failed", "error", err)
		return
	}
	if n > 0 {
		j.log.Info("janitor: purged sessions", "count", n)
	} else {
		j.log.Debug("janitor: no stale sessions")
	}
}
