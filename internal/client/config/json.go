package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/medvolt/scanblur/internal/flagx"
	"github.com/medvolt/scanblur/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations can
// be given as strings ("30s") or integer nanoseconds via timex.Duration.
type JsonConfig struct {
	BackendBaseURL       string         `json:"backend_base_url"`
	AuthDomain           string         `json:"auth_domain"`
	AuthClientID         string         `json:"auth_client_id"`
	AuthClientSecret     string         `json:"auth_client_secret"`
	AuthAudience         string         `json:"auth_audience"`
	TokenRefreshMargin   timex.Duration `json:"token_refresh_margin"`
	ProcessingStallAfter timex.Duration `json:"processing_stall_after"`
	ReconnectMinDelay    timex.Duration `json:"reconnect_min_delay"`
	ReconnectMaxDelay    timex.Duration `json:"reconnect_max_delay"`
}

// parseJson overlays cfg with values from the JSON file named by -c/-config.
// Zero values in the file leave the current setting untouched so a partial
// file only overrides what it mentions.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.BackendBaseURL != "" {
		cfg.BackendBaseURL = jc.BackendBaseURL
	}
	if jc.AuthDomain != "" {
		cfg.AuthDomain = jc.AuthDomain
	}
	if jc.AuthClientID != "" {
		cfg.AuthClientID = jc.AuthClientID
	}
	if jc.AuthClientSecret != "" {
		cfg.AuthClientSecret = jc.AuthClientSecret
	}
	if jc.AuthAudience != "" {
		cfg.AuthAudience = jc.AuthAudience
	}
	if jc.TokenRefreshMargin.Duration != 0 {
		cfg.TokenRefreshMargin = time.Duration(jc.TokenRefreshMargin.Duration)
	}
	if jc.ProcessingStallAfter.Duration != 0 {
		cfg.ProcessingStallAfter = time.Duration(jc.ProcessingStallAfter.Duration)
	}
	if jc.ReconnectMinDelay.Duration != 0 {
		cfg.ReconnectMinDelay = time.Duration(jc.ReconnectMinDelay.Duration)
	}
	if jc.ReconnectMaxDelay.Duration != 0 {
		cfg.ReconnectMaxDelay = time.Duration(jc.ReconnectMaxDelay.Duration)
	}
}
