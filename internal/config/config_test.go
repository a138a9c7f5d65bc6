package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gradcert/console-client/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// isolate points the user config directory at a scratch dir and resets the
// global viper instance so tests cannot leak state into each other.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	viper.Reset()
	t.Cleanup(viper.Reset)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)
	config.SetDefaults()

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8000", cfg.BaseURL)
	require.Equal(t, filepath.Join(dir, "gradcert", "session"), cfg.SessionPath)
	require.Equal(t, filepath.Join(dir, "gradcert", "drafts.db"), cfg.DraftsPath)
	require.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	require.Equal(t, 5*time.Minute, cfg.CheckInterval)
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("GRADCERT_BASE_URL", "https://console.example.com")
	config.SetDefaults()

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "https://console.example.com", cfg.BaseURL)
}

func TestConfigFileIsMerged(t *testing.T) {
	dir := isolate(t)
	appDir := filepath.Join(dir, "gradcert")
	require.NoError(t, os.MkdirAll(appDir, 0o700))
	configYAML := "base_url: https://file.example.com\ncheck_interval: 1m\n"
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "config.yaml"), []byte(configYAML), 0o600))
	config.SetDefaults()

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "https://file.example.com", cfg.BaseURL)
	require.Equal(t, time.Minute, cfg.CheckInterval)
}

func TestEnvironmentWinsOverConfigFile(t *testing.T) {
	dir := isolate(t)
	appDir := filepath.Join(dir, "gradcert")
	require.NoError(t, os.MkdirAll(appDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "config.yaml"),
		[]byte("base_url: https://file.example.com\n"), 0o600))
	t.Setenv("GRADCERT_BASE_URL", "https://env.example.com")
	config.SetDefaults()

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "https://env.example.com", cfg.BaseURL)
}

func TestExplicitPathsAreKept(t *testing.T) {
	isolate(t)
	t.Setenv("GRADCERT_SESSION_PATH", "/tmp/custom-session")
	t.Setenv("GRADCERT_DRAFTS_PATH", "/tmp/custom-drafts.db")
	config.SetDefaults()

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom-session", cfg.SessionPath)
	require.Equal(t, "/tmp/custom-drafts.db", cfg.DraftsPath)
}

func TestLoadRejectsEmptyBaseURL(t *testing.T) {
	isolate(t)
	t.Setenv("GRADCERT_BASE_URL", "")
	config.SetDefaults()
	viper.Set("base_url", "")

	_, err := config.Load()
	require.Error(t, err)
}
