package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/medvolt/scanblur/internal/client/session"
	"github.com/medvolt/scanblur/internal/client/storage"
	"github.com/medvolt/scanblur/internal/client/ui"
)

func newUploadCommand() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "upload <file.nii.gz>",
		Short: "Upload a volume, wait for blurring and download the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, args[0], outPath)
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "where to write the blurred artifact (default: blurred key in the current directory)")
	return cmd
}

func runUpload(cmd *cobra.Command, path, outPath string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	app := newApplication(cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A handful of transitions per attempt; 64 never fills.
	states := make(chan session.State, 64)
	manager := session.NewManager(app.backend, app.provider, storage.NewClient(), app.channel, app.logger,
		session.WithStallThreshold(app.cfg.ProcessingStallAfter),
		session.WithChangeListener(func(s session.State) { states <- s }))
	detach := manager.Attach(app.channel)
	defer detach()

	go app.channel.Run(ctx)
	defer app.channel.Close()
	go manager.Run(ctx)

	manager.Upload(filepath.Base(path), "application/gzip", data)

	lastLabel := ""
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-states:
			view := ui.Project(s)
			if view.PhaseLabel != lastLabel || view.Detail != "" {
				line := view.PhaseLabel
				if view.Detail != "" {
					line += ": " + view.Detail
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
				lastLabel = view.PhaseLabel
			}

			switch s.Phase {
			case session.PhaseFailed:
				return errors.New(view.ErrorText)
			case session.PhaseReady:
				return saveArtifact(ctx, cmd, manager, s, outPath)
			}
		}
	}
}

func saveArtifact(ctx context.Context, cmd *cobra.Command, m *session.Manager, s session.State, outPath string) error {
	if outPath == "" {
		outPath = filepath.Base(s.BlurredKey)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer f.Close()

	if err := m.Download(ctx, f); err != nil {
		return fmt.Errorf("downloading %s: %w", s.BlurredKey, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to %s\n", s.BlurredKey, outPath)
	return nil
}
