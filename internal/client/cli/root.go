package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// NewRootCommand assembles the scanblur command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "scanblur",
		Short:   "Upload medical image volumes and retrieve their blurred derivatives",
		Version: version,
		Long: `scanblur uploads a .nii.gz volume straight to object storage via a
short-lived upload URL, triggers server-side blurring, waits on the push
channel for the result and downloads the blurred artifact.

Configuration comes from defaults, an optional JSON file (-config) and the
flags -b (backend URL), -d (auth domain) and -s (client secret).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Configuration flags are parsed by the config package from
		// os.Args; unknown flags must not fail cobra's own parsing.
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	}

	root.AddCommand(newUploadCommand())
	root.AddCommand(newStoreTimeCommand())
	root.AddCommand(newWatchCommand())
	for _, sub := range root.Commands() {
		sub.FParseErrWhitelist = root.FParseErrWhitelist
	}
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
