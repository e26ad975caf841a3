package job

import (
	"context"
	"log/slog"

	"github.com/postpilotapp/postpilot/internal/store"
)

type CleanupJob struct {
	store *store.Store
}

func NewCleanupJob(st *store.Store) *CleanupJob {
	return &CleanupJob{store: st}
}

// Run reclaims backend space on a schedule instead of waiting for a write
// to hit the quota mid-dispatch.
func (c *CleanupJob) Run() {
	ctx := context.Background()

	cleaned, err := c.store.Cleanup(ctx)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if !cleaned {
		return
	}

	if err := c.store.Flush(ctx); err != nil {
		slog.Info(err.Error())
		return
	}
	slog.Info("scheduled cleanup reclaimed storage")
}
