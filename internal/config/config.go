// Package config handles Enola's configuration file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Version int `yaml:"version"`

	Model    ModelConfig    `yaml:"model"`
	Server   ServerConfig   `yaml:"server"`
	Channels ChannelsConfig `yaml:"channels"`
	Home     HomeConfig     `yaml:"home"`
	Spotify  SpotifyConfig  `yaml:"spotify"`
	Agenda   AgendaConfig   `yaml:"agenda"`
	Voice    VoiceConfig    `yaml:"voice"`
	Storage  StorageConfig  `yaml:"storage"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ModelConfig configures the language model client.
type ModelConfig struct {
	APIKey      string  `yaml:"api_key"`
	Name        string  `yaml:"name"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Temperature float64 `yaml:"temperature"`
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// ChannelsConfig groups the chat channel adapters.
type ChannelsConfig struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// DiscordConfig configures the Discord adapter.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Token      string `yaml:"token"`
	AuthUserID string `yaml:"auth_user_id"`
	// HomeChannelID receives scheduled notifications.
	HomeChannelID  string `yaml:"home_channel_id"`
	ActivitiesFile string `yaml:"activities_file"`
}

// TelegramConfig configures the Telegram adapter.
type TelegramConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Token      string `yaml:"token"`
	AuthChatID int64  `yaml:"auth_chat_id"`
}

// HomeConfig holds device endpoints for the home tools.
type HomeConfig struct {
	HueBridgeIP string `yaml:"hue_bridge_ip"`
	HueUser     string `yaml:"hue_user"`
	WizIP       string `yaml:"wiz_ip"`
	WeatherCity string `yaml:"weather_city"`
}

// SpotifyConfig holds the Web API credentials. The refresh token is
// obtained once through the authorization-code flow.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	// Device is the default playback target (speaker name).
	Device string `yaml:"device"`
}

// AgendaConfig holds the Google Calendar credentials.
type AgendaConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	CalendarID   string `yaml:"calendar_id"`
}

// VoiceConfig configures speech in and out.
type VoiceConfig struct {
	Enabled bool   `yaml:"enabled"`
	TTSURL  string `yaml:"tts_url"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// JobsConfig toggles the background schedules.
type JobsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	AnimeSpec     string `yaml:"anime_spec"`
	CodesSpec     string `yaml:"codes_spec"`
	AlarmsSpec    string `yaml:"alarms_spec"`
	RecapDisabled bool   `yaml:"recap_disabled"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version: 1,
		Model: ModelConfig{
			APIKey:      "${OPENAI_API_KEY}",
			Name:        "gpt-4o-mini",
			Temperature: 0.2,
		},
		Server: ServerConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8321,
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Token:          "${DISCORD_TOKEN}",
				ActivitiesFile: "assets/activites.json",
			},
			Telegram: TelegramConfig{
				Token: "${TELEGRAM_TOKEN}",
			},
		},
		Home: HomeConfig{
			WeatherCity: "Paris",
		},
		Agenda: AgendaConfig{
			CalendarID: "primary",
		},
		Voice: VoiceConfig{
			TTSURL: "http://127.0.0.1:5002/api/tts",
		},
		Storage: StorageConfig{
			Path: "data/enola.db",
		},
		Jobs: JobsConfig{
			Enabled:    true,
			AnimeSpec:  "@every 5m",
			CodesSpec:  "@every 4h",
			AlarmsSpec: "@every 1m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadEnv loads .env from the working directory if present. Missing
// files are not an error; real environments set variables directly.
func LoadEnv() {
	_ = godotenv.Load()
}

// Load reads a config file, expanding ${VAR} references from the
// environment. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		cfg.expand()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.expand()
	return cfg, nil
}

// Save writes the config as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// expand resolves ${VAR} placeholders in secret-bearing fields.
func (c *Config) expand() {
	c.Model.APIKey = os.ExpandEnv(c.Model.APIKey)
	c.Model.BaseURL = os.ExpandEnv(c.Model.BaseURL)
	c.Channels.Discord.Token = os.ExpandEnv(c.Channels.Discord.Token)
	c.Channels.Discord.AuthUserID = os.ExpandEnv(c.Channels.Discord.AuthUserID)
	c.Channels.Telegram.Token = os.ExpandEnv(c.Channels.Telegram.Token)
	c.Home.HueUser = os.ExpandEnv(c.Home.HueUser)
	c.Spotify.ClientID = os.ExpandEnv(c.Spotify.ClientID)
	c.Spotify.ClientSecret = os.ExpandEnv(c.Spotify.ClientSecret)
	c.Spotify.RefreshToken = os.ExpandEnv(c.Spotify.RefreshToken)
	c.Agenda.ClientID = os.ExpandEnv(c.Agenda.ClientID)
	c.Agenda.ClientSecret = os.ExpandEnv(c.Agenda.ClientSecret)
	c.Agenda.RefreshToken = os.ExpandEnv(c.Agenda.RefreshToken)
}
