package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/medvolt/scanblur/internal/client/push"
)

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stay connected and print push events as they arrive",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}
}

var watchedEvents = []string{
	push.EventTimeReady,
	push.EventImageUploaded,
	push.EventImageBlurred,
	push.EventProcessingError,
	push.EventUploadError,
}

func runWatch(cmd *cobra.Command, args []string) error {
	app := newApplication(cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	for _, event := range watchedEvents {
		event := event
		id := app.channel.Subscribe(event, func(env push.Envelope) {
			fmt.Fprintf(out, "%s %s\n", event, string(env.Data))
		})
		defer app.channel.Unsubscribe(event, id)
	}

	stateID := app.channel.OnState(func(s push.State) {
		fmt.Fprintf(out, "connection: %s\n", s)
	})
	defer app.channel.OffState(stateID)

	go app.channel.Run(ctx)
	defer app.channel.Close()

	<-ctx.Done()
	return nil
}
