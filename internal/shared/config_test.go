package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./pitch.db" {
			t.Errorf("expected database path ./pitch.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Limits.Hourly != 50 || config.Limits.Daily != 200 {
			t.Errorf("expected limits 50/200, got %d/%d", config.Limits.Hourly, config.Limits.Daily)
		}

		if config.Limits.MinDelay() != 30*time.Second || config.Limits.MaxDelay() != 90*time.Second {
			t.Errorf("unexpected delays %v..%v", config.Limits.MinDelay(), config.Limits.MaxDelay())
		}

		if config.Email.Mode != "draft" {
			t.Errorf("expected draft mode by default, got %s", config.Email.Mode)
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[artist]
name = "Harbor Lights"

[email]
mode = "send"
genre_keywords = ["folk", "indie"]

[limits]
hourly = 10

[database]
path = "/custom/path.db"

[credentials.gmail]
client_id = "gmail_id"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Artist.Name != "Harbor Lights" {
			t.Errorf("expected artist Harbor Lights, got %s", config.Artist.Name)
		}

		if config.Email.Mode != "send" || len(config.Email.GenreKeywords) != 2 {
			t.Errorf("unexpected email config %+v", config.Email)
		}

		if config.Limits.Hourly != 10 {
			t.Errorf("expected hourly 10, got %d", config.Limits.Hourly)
		}

		if config.Limits.Daily != 200 {
			t.Errorf("unset values should keep defaults, got daily %d", config.Limits.Daily)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
	})

	t.Run("LoadConfig Missing", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("LoadConfig Invalid", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[artist\nname ="), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Artist.Name = "Saved"

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if loaded.Artist.Name != "Saved" {
			t.Errorf("expected artist Saved, got %s", loaded.Artist.Name)
		}
	})

	t.Run("Env Overrides", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), ".env")
		env := "PITCH_GMAIL_CLIENT_ID=from-dotenv\nPITCH_CC_EMAIL=manager@example.com\n"
		if err := os.WriteFile(envPath, []byte(env), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Setenv(EnvGmailClientID, "")
		t.Setenv(EnvCCEmail, "")
		os.Unsetenv(EnvGmailClientID)
		os.Unsetenv(EnvCCEmail)
		t.Setenv(EnvSpotifyClientID, "from-process")

		if err := LoadEnv(envPath, filepath.Join(t.TempDir(), "missing.env")); err != nil {
			t.Fatalf("failed to load env: %v", err)
		}

		config := DefaultConfig()
		config.ApplyEnv()

		if config.Credentials.Gmail.ClientID != "from-dotenv" {
			t.Errorf("expected gmail client id from dotenv, got %s", config.Credentials.Gmail.ClientID)
		}
		if config.Email.CC != "manager@example.com" {
			t.Errorf("expected cc from dotenv, got %s", config.Email.CC)
		}
		if config.Credentials.Spotify.ClientID != "from-process" {
			t.Errorf("expected spotify client id from process env, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Spotify.ClientSecret != "your_spotify_client_secret" {
			t.Errorf("unset variables should not override, got %s", config.Credentials.Spotify.ClientSecret)
		}
	})
}
