package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/affluence/pkg/affluence"
)

// addWatchFlag registers --watch on cmd.
func addWatchFlag(cmd *cobra.Command, interval *time.Duration) {
	cmd.Flags().DurationVar(interval, "watch", 0, "Refresh at this interval until interrupted (e.g. 30s)")
}

// watch runs fn once, or repeatedly every interval until SIGINT/SIGTERM
// when interval is positive. Refresh failures are reported and the loop
// keeps going.
func watch(cmd *cobra.Command, interval time.Duration, fn func(ctx context.Context) error) error {
	if interval <= 0 {
		return fn(cmd.Context())
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := affluence.Poll(ctx, interval, logger, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			if ctx.Err() == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "refresh failed: %v\n", err)
			}
			return err
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
