package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv isolates a test from the caller's environment and config dir.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"TWT_SOAP_URI", "TWT_USERNAME", "TWT_PASSWORD", "TWT_PANEL_URL", "TWT_COOKIE_FILE", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://api.twooit.com/twtApi.php", cfg.SOAP.URI)
	assert.Equal(t, "urn:xmethods", cfg.SOAP.Namespace)
	assert.Equal(t, "urn:xmethods", cfg.SOAP.SOAPAction)
	assert.Equal(t, "https://ssl.twooit.com", cfg.Panel.BaseURL)
	assert.True(t, cfg.Panel.InsecureSkipVerify)
	assert.Equal(t, 62500*time.Microsecond, cfg.Panel.PageDelay)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.SOAP.Username)
}

func TestLoad_DefaultPathDocument(t *testing.T) {
	clearEnv(t)
	dir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "twtctl")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("soap:\n  username: reseller\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "reseller", cfg.SOAP.Username)
}

func TestLoad_YAMLOverDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
soap:
  username: reseller
  password: secret
  timeout: 5s
panel:
  base_url: https://panel.example.com/
  insecure_skip_verify: false
  page_delay: 250ms
  cookie_file: /tmp/twt/cookie
log_level: debug
metrics_textfile: /var/lib/node_exporter/twtctl.prom
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "reseller", cfg.SOAP.Username)
	assert.Equal(t, "secret", cfg.SOAP.Password)
	assert.Equal(t, 5*time.Second, cfg.SOAP.Timeout)
	// Keys absent from the document keep their defaults.
	assert.Equal(t, "http://api.twooit.com/twtApi.php", cfg.SOAP.URI)
	assert.Equal(t, "https://panel.example.com", cfg.Panel.BaseURL)
	assert.False(t, cfg.Panel.InsecureSkipVerify)
	assert.Equal(t, 250*time.Millisecond, cfg.Panel.PageDelay)
	assert.Equal(t, "/tmp/twt/cookie", cfg.Panel.CookieFile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/var/lib/node_exporter/twtctl.prom", cfg.MetricsTextfile)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "soap:\n  username: from-file\n")

	t.Setenv("TWT_USERNAME", "from-env")
	t.Setenv("TWT_PASSWORD", "pw")
	t.Setenv("TWT_SOAP_URI", "https://api.example.com/rpc.php")
	t.Setenv("TWT_PANEL_URL", "https://panel.example.com/")
	t.Setenv("TWT_COOKIE_FILE", "/run/twt_cookie.txt")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.SOAP.Username)
	assert.Equal(t, "pw", cfg.SOAP.Password)
	assert.Equal(t, "https://api.example.com/rpc.php", cfg.SOAP.URI)
	assert.Equal(t, "https://panel.example.com", cfg.Panel.BaseURL)
	assert.Equal(t, "/run/twt_cookie.txt", cfg.Panel.CookieFile)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "soap: [unterminated\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestDefaultPath_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg", "twtctl", "config.yaml"), path)
}

func TestValidate_MissingUsername(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config.SOAP.Username (required)")
}

func TestValidate_BadValues(t *testing.T) {
	cfg := Default()
	cfg.SOAP.Username = "reseller"
	cfg.SOAP.URI = "not a url"
	cfg.LogLevel = "loud"
	cfg.Panel.PageDelay = -time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config.SOAP.URI (url)")
	assert.Contains(t, err.Error(), "Config.LogLevel (oneof)")
	assert.Contains(t, err.Error(), "Config.Panel.PageDelay (gte)")
}

func TestValidate_AllPresent(t *testing.T) {
	cfg := Default()
	cfg.SOAP.Username = "reseller"
	assert.NoError(t, cfg.Validate())
}
