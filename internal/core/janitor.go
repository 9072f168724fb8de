package core

// janitor.go runs periodic session and blob cleanup.
//
// The janitor is long-running and context-aware. A sweep never fails; it
// only logs what it removed.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultCleanupInterval is how often expired sessions are swept.
const DefaultCleanupInterval = 5 * time.Minute

// blobSweeper is implemented by blob stores that can expire old files.
type blobSweeper interface {
	Sweep(maxAge time.Duration) (int, error)
}

// StartSessionJanitor sweeps expired sessions every interval until ctx is
// cancelled. Run it in its own goroutine.
func (s *Service) StartSessionJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	slog.Info("session janitor started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session janitor stopped")
			return
		case <-ticker.C:
			s.sweepSessions()
			s.sweepBlobs()
		}
	}
}

func (s *Service) sweepSessions() {
	start := time.Now()
	removed := s.sessions.Sweep()
	if removed > 0 {
		slog.Info("expired sessions removed",
			"removed", removed,
			"remaining", s.sessions.Len(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}
	slog.Debug("session sweep found nothing to remove", "remaining", s.sessions.Len())
}

func (s *Service) sweepBlobs() {
	sw, ok := s.blobs.(blobSweeper)
	if !ok || s.blobMaxAge <= 0 {
		return
	}
	removed, err := sw.Sweep(s.blobMaxAge)
	if err != nil {
		slog.Warn("blob sweep failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("expired blobs removed", "removed", removed)
	}
}
