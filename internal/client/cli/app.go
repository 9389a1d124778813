// Package cli wires the client components behind a small cobra command tree:
// upload, store-time and watch. Commands build the same application bundle
// and differ only in which components they drive.
package cli

import (
	"io"

	"github.com/medvolt/scanblur/internal/client/api"
	"github.com/medvolt/scanblur/internal/client/auth"
	"github.com/medvolt/scanblur/internal/client/config"
	"github.com/medvolt/scanblur/internal/client/push"
	"github.com/medvolt/scanblur/internal/client/ui"
	"github.com/medvolt/scanblur/internal/logging"
)

// application bundles the long-lived client components a command needs.
type application struct {
	cfg      *config.Config
	logger   logging.Logger
	provider auth.Provider
	backend  *api.Client
	channel  *push.Channel
	clock    *ui.TimeClock
}

// newApplication loads the configuration and builds the component graph.
// Logs go to logOut so command output on stdout stays machine-readable.
func newApplication(logOut io.Writer) *application {
	cfg := config.LoadConfig()
	logger := logging.NewJSON(logOut)

	provider := auth.NewHTTPProvider(
		cfg.AuthDomain, cfg.AuthClientID, cfg.AuthClientSecret, cfg.AuthAudience,
		cfg.TokenRefreshMargin, logger)

	backend := api.NewClient(cfg.BackendBaseURL, provider, logger)
	channel := push.NewChannel(cfg.BackendBaseURL, provider, logger, &push.Options{
		MinDelay: cfg.ReconnectMinDelay,
		MaxDelay: cfg.ReconnectMaxDelay,
	})

	return &application{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
		backend:  backend,
		channel:  channel,
		clock:    ui.NewTimeClock(backend, logger),
	}
}
