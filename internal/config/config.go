package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configDirName  = "twtctl"
	configFileName = "config.yaml"
)

type Config struct {
	SOAP  SOAPConfig  `yaml:"soap"`
	Panel PanelConfig `yaml:"panel"`

	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	// MetricsTextfile, when set, receives the run's counters in node_exporter
	// textfile format.
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// SOAPConfig describes the RPC endpoint and the account used for both the
// RPC calls and the panel login.
type SOAPConfig struct {
	URI        string        `yaml:"uri" validate:"required,url"`
	Namespace  string        `yaml:"namespace" validate:"required"`
	SOAPAction string        `yaml:"soapaction" validate:"required"`
	Username   string        `yaml:"username" validate:"required"`
	Password   string        `yaml:"password"`
	Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`
}

// PanelConfig describes the web interface used for listings.
type PanelConfig struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`
	// InsecureSkipVerify accepts any certificate from the panel host. It
	// is on by default because the host's chain has not verified; set
	// ca_cert instead where possible.
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	CACert             string        `yaml:"ca_cert"`
	CookieFile         string        `yaml:"cookie_file"`
	PageDelay          time.Duration `yaml:"page_delay" validate:"gte=0"`
	Timeout            time.Duration `yaml:"timeout" validate:"gte=0"`
}

// Default returns the configuration used when no document overrides it.
func Default() *Config {
	return &Config{
		SOAP: SOAPConfig{
			URI:        "http://api.twooit.com/twtApi.php",
			Namespace:  "urn:xmethods",
			SOAPAction: "urn:xmethods",
			Timeout:    30 * time.Second,
		},
		Panel: PanelConfig{
			BaseURL:            "https://ssl.twooit.com",
			InsecureSkipVerify: true,
			PageDelay:          62500 * time.Microsecond,
			Timeout:            30 * time.Second,
		},
		LogLevel: "info",
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/twtctl/config.yaml, falling back to
// ~/.config.
func DefaultPath() (string, error) {
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home directory: %w", err)
		}
		xdgConfig = filepath.Join(home, ".config")
	}
	return filepath.Join(xdgConfig, configDirName, configFileName), nil
}

// Load reads the YAML document at path over the defaults and applies
// environment overrides. An empty path means DefaultPath; a missing default
// document is not an error, so the tool can run from environment alone.
// Variables from a .env file in the working directory are loaded first.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.SOAP.URI = getEnv("TWT_SOAP_URI", cfg.SOAP.URI)
	cfg.SOAP.Username = getEnv("TWT_USERNAME", cfg.SOAP.Username)
	cfg.SOAP.Password = getEnv("TWT_PASSWORD", cfg.SOAP.Password)
	cfg.Panel.BaseURL = strings.TrimRight(getEnv("TWT_PANEL_URL", cfg.Panel.BaseURL), "/")
	cfg.Panel.CookieFile = getEnv("TWT_COOKIE_FILE", cfg.Panel.CookieFile)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	return cfg, nil
}

var validate = validator.New()

// Validate checks that the document is usable, naming every offending field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	var missing []string
	for _, fe := range verrs {
		missing = append(missing, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(missing, ", "))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
