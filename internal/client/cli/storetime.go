package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newStoreTimeCommand() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "store-time",
		Short: "Ask the backend to persist the current time",
		Long: `store-time sends a fire-and-forget request; the backend answers with a
time-ready push event carrying the stored value. With --wait the command
stays connected until that event arrives or the wait elapses.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStoreTime(cmd, wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "how long to wait for the time-ready event; 0 sends and exits")
	return cmd
}

func runStoreTime(cmd *cobra.Command, wait time.Duration) error {
	app := newApplication(cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if wait > 0 {
		detach := app.clock.Attach(app.channel)
		defer detach()
		go app.channel.Run(ctx)
		defer app.channel.Close()
	}

	if err := app.clock.Store(ctx); err != nil {
		return fmt.Errorf("store-time request failed: %w", err)
	}
	if wait <= 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Time store requested")
		return nil
	}

	deadline := time.After(wait)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("no time-ready event within %s", wait)
		case <-tick.C:
			if stored, ok := app.clock.StoredTime(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Stored time: %s\n", stored)
				return nil
			}
		}
	}
}
