package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./barclip.db" {
			t.Errorf("expected database path ./barclip.db, got %s", config.Database.Path)
		}
		if config.API.Hub != "videoStatus" {
			t.Errorf("expected hub videoStatus, got %s", config.API.Hub)
		}
		if config.Workflow.CompletionTimeout.Duration != 10*time.Minute {
			t.Errorf("expected completion timeout 10m, got %v", config.Workflow.CompletionTimeout)
		}
		if got := config.Workflow.Delays(); len(got) != 4 || got[1] != 2*time.Second {
			t.Errorf("unexpected reconnect delays %v", got)
		}
		if config.Identity.SignInTimeout.Duration != 5*time.Minute {
			t.Errorf("expected sign-in timeout 5m, got %v", config.Identity.SignInTimeout)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nested", "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}
		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		testConfig := `[api]
base_url = "https://trim.example.com"
scope = "api://trim/.default"

[identity]
client_id = "test_client_id"
authority = "https://login.example.com/tenant"
redirect_uri = "http://localhost:4000/callback"

[workflow]
completion_timeout = "90s"
reconnect_delays = ["0s", "1s"]

[database]
path = "/custom/path.db"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.API.BaseURL != "https://trim.example.com" {
			t.Errorf("expected base URL override, got %s", config.API.BaseURL)
		}
		if config.API.Hub != "videoStatus" {
			t.Errorf("expected hub default to survive, got %s", config.API.Hub)
		}
		if config.Workflow.CompletionTimeout.Duration != 90*time.Second {
			t.Errorf("expected 90s timeout, got %v", config.Workflow.CompletionTimeout)
		}
		if got := config.Workflow.Delays(); len(got) != 2 {
			t.Errorf("expected 2 reconnect delays, got %v", got)
		}
		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
	})

	t.Run("LoadConfig With Invalid Duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[workflow]\ncompletion_timeout = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error for invalid duration")
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		config := DefaultConfig()
		env := map[string]string{
			EnvAPIBaseURL: "https://env.example.com",
			EnvClientID:   "  env-client  ",
			EnvAuthority:  "",
		}
		config.ApplyEnv(func(k string) string { return env[k] })

		if config.API.BaseURL != "https://env.example.com" {
			t.Errorf("expected env base URL, got %s", config.API.BaseURL)
		}
		if config.Identity.ClientID != "env-client" {
			t.Errorf("expected trimmed env client id, got %q", config.Identity.ClientID)
		}
		if config.Identity.Authority != DefaultConfig().Identity.Authority {
			t.Errorf("empty env value should not override authority")
		}
	})

	t.Run("Missing", func(t *testing.T) {
		config := &Config{}
		config.API.BaseURL = "https://trim.example.com"

		missing := config.Missing()
		want := []string{"api.scope", "identity.authority", "identity.client_id", "identity.redirect_uri"}
		if len(missing) != len(want) {
			t.Fatalf("expected %v, got %v", want, missing)
		}
		for i := range want {
			if missing[i] != want[i] {
				t.Errorf("missing[%d] = %s, want %s", i, missing[i], want[i])
			}
		}

		if got := DefaultConfig().Missing(); len(got) != 0 {
			t.Errorf("default config should not report missing keys, got %v", got)
		}
	})

	t.Run("SaveConfig Round Trip", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.API.BaseURL = "https://saved.example.com"
		config.Workflow.CompletionTimeout = Duration{3 * time.Minute}

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if loaded.API.BaseURL != "https://saved.example.com" {
			t.Errorf("expected saved base URL, got %s", loaded.API.BaseURL)
		}
		if loaded.Workflow.CompletionTimeout.Duration != 3*time.Minute {
			t.Errorf("expected saved timeout, got %v", loaded.Workflow.CompletionTimeout)
		}
	})
}
