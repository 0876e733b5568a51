package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override values from config.toml.
const (
	EnvAPIBaseURL  = "BARCLIP_API_BASE_URL"
	EnvAPIScope    = "BARCLIP_API_SCOPE"
	EnvClientID    = "BARCLIP_CLIENT_ID"
	EnvAuthority   = "BARCLIP_AUTHORITY"
	EnvRedirectURI = "BARCLIP_REDIRECT_URI"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API      APIConfig      `toml:"api"`
	Identity IdentityConfig `toml:"identity"`
	Workflow WorkflowConfig `toml:"workflow"`
	Database DatabaseConfig `toml:"database"`
	Batch    BatchConfig    `toml:"batch"`
}

// APIConfig points at the trimming service.
type APIConfig struct {
	BaseURL string `toml:"base_url"`
	Scope   string `toml:"scope"`
	Hub     string `toml:"hub"`
}

// IdentityConfig contains the identity provider (OAuth2/OIDC) settings.
type IdentityConfig struct {
	ClientID      string   `toml:"client_id"`
	Authority     string   `toml:"authority"`
	RedirectURI   string   `toml:"redirect_uri"`
	SignInTimeout Duration `toml:"sign_in_timeout"`
}

// WorkflowConfig tunes the upload workflow and its real-time channel.
type WorkflowConfig struct {
	CompletionTimeout Duration   `toml:"completion_timeout"`
	ReconnectDelays   []Duration `toml:"reconnect_delays"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// BatchConfig controls directory uploads.
type BatchConfig struct {
	Interval Duration `toml:"interval"`
}

// Duration wraps [time.Duration] so it can be written as "10m" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values are layered on top of [DefaultConfig] and then overridden from the environment.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.ApplyEnv(os.Getenv)
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes the configuration back to disk as TOML.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides identity and API settings from environment variables.
//
// getenv is usually [os.Getenv]; empty values leave the file setting untouched.
func (c *Config) ApplyEnv(getenv func(string) string) {
	for env, target := range map[string]*string{
		EnvAPIBaseURL:  &c.API.BaseURL,
		EnvAPIScope:    &c.API.Scope,
		EnvClientID:    &c.Identity.ClientID,
		EnvAuthority:   &c.Identity.Authority,
		EnvRedirectURI: &c.Identity.RedirectURI,
	} {
		if v := strings.TrimSpace(getenv(env)); v != "" {
			*target = v
		}
	}
}

// Missing lists the required keys that are still empty.
//
// Missing values are not fatal: they surface later as authentication failures.
func (c *Config) Missing() []string {
	var missing []string
	for key, value := range map[string]string{
		"api.base_url":          c.API.BaseURL,
		"api.scope":             c.API.Scope,
		"identity.client_id":    c.Identity.ClientID,
		"identity.authority":    c.Identity.Authority,
		"identity.redirect_uri": c.Identity.RedirectURI,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	slices.Sort(missing)
	return missing
}

// Delays converts the configured reconnect delays to plain durations.
func (w WorkflowConfig) Delays() []time.Duration {
	delays := make([]time.Duration, 0, len(w.ReconnectDelays))
	for _, d := range w.ReconnectDelays {
		delays = append(delays, d.Duration)
	}
	return delays
}
