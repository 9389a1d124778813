package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	require.Equal(t, "http://localhost:4000", cfg.BackendBaseURL)
	require.Equal(t, 30*time.Second, cfg.TokenRefreshMargin)
	require.Equal(t, 2*time.Minute, cfg.ProcessingStallAfter)
}

func TestParseJsonOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.json")
	body := `{
		"backend_base_url": "https://api.example.com",
		"auth_domain": "example.eu.auth0.com",
		"processing_stall_after": "5m"
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	oldArgs := os.Args
	os.Args = []string{"scanblur", "-c", path}
	t.Cleanup(func() { os.Args = oldArgs })

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	require.Equal(t, "https://api.example.com", cfg.BackendBaseURL)
	require.Equal(t, "example.eu.auth0.com", cfg.AuthDomain)
	require.Equal(t, 5*time.Minute, cfg.ProcessingStallAfter)
	// untouched by the partial file
	require.Equal(t, 30*time.Second, cfg.TokenRefreshMargin)
}

func TestParseFlags(t *testing.T) {
	oldArgs := os.Args
	os.Args = []string{"scanblur", "-b", "http://10.0.0.5:4000", "-s", "45"}
	t.Cleanup(func() { os.Args = oldArgs })

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	require.Equal(t, "http://10.0.0.5:4000", cfg.BackendBaseURL)
	require.Equal(t, 45*time.Second, cfg.ProcessingStallAfter)
}
