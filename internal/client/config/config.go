// Package config handles configuration for the client: defaults, optional
// JSON overlay, and command-line flags, with later sources taking precedence.
package config

import "time"

// Config holds runtime settings for the scanblur client.
//
// Fields:
//   - BackendBaseURL: base URL of the orchestration backend (REST + /ws).
//   - AuthDomain / AuthClientID / AuthClientSecret / AuthAudience: token
//     endpoint wiring; they affect only the TokenProvider, never the state
//     machine.
//   - TokenRefreshMargin: a cached credential expiring within this margin is
//     refreshed before use.
//   - ProcessingStallAfter: how long AwaitingProcessing may sit quietly
//     before a non-fatal "taking longer than expected" notice is raised.
//   - ReconnectMinDelay / ReconnectMaxDelay: push-channel backoff bounds.
type Config struct {
	BackendBaseURL       string
	AuthDomain           string
	AuthClientID         string
	AuthClientSecret     string
	AuthAudience         string
	TokenRefreshMargin   time.Duration
	ProcessingStallAfter time.Duration
	ReconnectMinDelay    time.Duration
	ReconnectMaxDelay    time.Duration
}

// LoadDefaults populates c with development defaults.
func (c *Config) LoadDefaults() {
	c.BackendBaseURL = "http://localhost:4000"
	c.AuthDomain = "localhost:4000"
	c.AuthClientID = "scanblur-client"
	c.AuthClientSecret = ""
	c.AuthAudience = "scanblur-backend"
	c.TokenRefreshMargin = 30 * time.Second
	c.ProcessingStallAfter = 2 * time.Minute
	c.ReconnectMinDelay = time.Second
	c.ReconnectMaxDelay = 30 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
