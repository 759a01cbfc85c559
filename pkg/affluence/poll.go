package affluence

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Poll runs fn immediately and then once per interval until ctx is
// cancelled. The period is fixed: no jitter and no backoff. An error from fn
// is logged and polling continues. Poll returns ctx.Err().
func Poll(ctx context.Context, interval time.Duration, logger *slog.Logger, fn func(ctx context.Context) error) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "poller")
	if interval <= 0 {
		interval = 30 * time.Second
	}

	run := func() {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			logger.Error("poll error", "error", err)
		}
	}

	logger.Debug("poller started", "interval", interval)
	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("poller stopping (context cancelled)")
			return ctx.Err()
		case <-ticker.C:
			run()
		}
	}
}
