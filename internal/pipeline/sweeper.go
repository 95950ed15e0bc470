package pipeline

import (
	"context"
	"time"

	"github.com/homesentry/frigate-bridge/internal/config"
	"github.com/homesentry/frigate-bridge/internal/frigate"
)

const sweepInterval = 10 * time.Minute

// RunSweeper periodically clears expired files from the staging directories.
// Blocks until ctx is cancelled.
func RunSweeper(ctx context.Context, cfg func() *config.Config, dirs ...string) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ttl := time.Duration(cfg().StagingTTLMinutes) * time.Minute
			for _, dir := range dirs {
				frigate.SweepStaging(dir, ttl)
			}
		}
	}
}
