package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override credentials loaded from the config file.
const (
	EnvGmailClientID       = "PITCH_GMAIL_CLIENT_ID"
	EnvGmailClientSecret   = "PITCH_GMAIL_CLIENT_SECRET"
	EnvSpotifyClientID     = "PITCH_SPOTIFY_CLIENT_ID"
	EnvSpotifyClientSecret = "PITCH_SPOTIFY_CLIENT_SECRET"
	EnvCCEmail             = "PITCH_CC_EMAIL"
	EnvDatabasePath        = "PITCH_DATABASE_PATH"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Artist      ArtistConfig      `toml:"artist"`
	Files       FilesConfig       `toml:"files"`
	Email       EmailConfig       `toml:"email"`
	Limits      LimitsConfig      `toml:"limits"`
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
}

// ArtistConfig describes the sender and fills the artist placeholders of a template.
type ArtistConfig struct {
	Name        string `toml:"name"`
	SpotifyLink string `toml:"spotify_link"`
	Instagram   string `toml:"instagram"`
	Website     string `toml:"website"`
}

// FilesConfig points at the inputs and outputs of a campaign.
type FilesConfig struct {
	Contacts      string `toml:"contacts"`
	Template      string `toml:"template"`
	ValidationCSV string `toml:"validation_csv"`
	FailuresCSV   string `toml:"failures_csv"`
}

// EmailConfig controls message content and which contacts are selected.
type EmailConfig struct {
	Mode            string   `toml:"mode"`
	CC              string   `toml:"cc"`
	Subject         string   `toml:"subject"`
	CustomMessage   string   `toml:"custom_message"`
	AdditionalInfo  string   `toml:"additional_info"`
	GenreKeywords   []string `toml:"genre_keywords"`
	ExcludeGenres   []string `toml:"exclude_genres"`
	Validate        bool     `toml:"validate"`
	CheckMX         bool     `toml:"check_mx"`
	SkipDisposable  bool     `toml:"skip_disposable"`
	SkipRoleAccount bool     `toml:"skip_role_accounts"`
}

// LimitsConfig holds the pacing applied between messages.
type LimitsConfig struct {
	MinDelaySeconds int `toml:"min_delay_seconds"`
	MaxDelaySeconds int `toml:"max_delay_seconds"`
	Hourly          int `toml:"hourly"`
	Daily           int `toml:"daily"`
}

// MinDelay returns the configured floor between sends.
func (l LimitsConfig) MinDelay() time.Duration {
	return time.Duration(l.MinDelaySeconds) * time.Second
}

// MaxDelay returns the configured ceiling between sends.
func (l LimitsConfig) MaxDelay() time.Duration {
	return time.Duration(l.MaxDelaySeconds) * time.Second
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Gmail   GmailConfig   `toml:"gmail"`
	Spotify SpotifyConfig `toml:"spotify"`
}

// GmailConfig contains Google OAuth client settings.
//
// When CredentialsFile is set and exists, the client id and secret are read from it instead.
type GmailConfig struct {
	ClientID        string `toml:"client_id"`
	ClientSecret    string `toml:"client_secret"`
	RedirectURI     string `toml:"redirect_uri"`
	CredentialsFile string `toml:"credentials_file"`
	TokenFile       string `toml:"token_file"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

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

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes c as TOML to path, replacing any existing file.
func SaveConfig(path string, c *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// LoadEnv reads dotenv files into the process environment. Missing files are ignored;
// variables already set in the environment win.
func LoadEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides credentials and paths in c with non-empty PITCH_* variables.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Credentials.Gmail.ClientID, EnvGmailClientID)
	set(&c.Credentials.Gmail.ClientSecret, EnvGmailClientSecret)
	set(&c.Credentials.Spotify.ClientID, EnvSpotifyClientID)
	set(&c.Credentials.Spotify.ClientSecret, EnvSpotifyClientSecret)
	set(&c.Email.CC, EnvCCEmail)
	set(&c.Database.Path, EnvDatabasePath)
}

// ServerAddr joins the server host and port.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
