package config

import (
	"flag"
	"os"
	"time"

	"github.com/medvolt/scanblur/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-b string   backend base URL
//	-d string   auth provider domain
//	-s int      processing stall notice threshold (in seconds)
//
// Args are filtered through flagx.FilterArgs so flags owned by other
// components (e.g. cobra subcommands) are left alone.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-b", "-d", "-s"})

	fs := flag.NewFlagSet("client", flag.ContinueOnError)

	fs.StringVar(&cfg.BackendBaseURL, "b", cfg.BackendBaseURL, "backend base URL")
	fs.StringVar(&cfg.AuthDomain, "d", cfg.AuthDomain, "auth provider domain")
	stallAfter := fs.Int("s", int(cfg.ProcessingStallAfter.Seconds()), "stall notice threshold (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.ProcessingStallAfter = time.Duration(*stallAfter) * time.Second
}
