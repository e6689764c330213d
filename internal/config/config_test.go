package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}
	if cfg.Version != 1 {
		t.Errorf("expected Version=1, got %d", cfg.Version)
	}
	if cfg.Model.Name != "gpt-4o-mini" {
		t.Errorf("expected Model.Name='gpt-4o-mini', got %q", cfg.Model.Name)
	}
	if cfg.Model.Temperature != 0.2 {
		t.Errorf("expected Model.Temperature=0.2, got %v", cfg.Model.Temperature)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected Server.Host='127.0.0.1', got %q", cfg.Server.Host)
	}
	if !cfg.Server.Enabled {
		t.Error("expected server enabled by default")
	}
	if cfg.Channels.Discord.Enabled {
		t.Error("expected Discord disabled by default")
	}
	if cfg.Channels.Telegram.Enabled {
		t.Error("expected Telegram disabled by default")
	}
	if cfg.Home.WeatherCity != "Paris" {
		t.Errorf("expected default city Paris, got %q", cfg.Home.WeatherCity)
	}
	if cfg.Agenda.CalendarID != "primary" {
		t.Errorf("expected primary calendar, got %q", cfg.Agenda.CalendarID)
	}
	if cfg.Jobs.AnimeSpec != "@every 5m" {
		t.Errorf("expected anime job every 5m, got %q", cfg.Jobs.AnimeSpec)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadSave(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")

	cfg := Default()
	cfg.Model.Name = "gpt-4o"
	cfg.Server.Port = 9999
	cfg.Channels.Discord.Enabled = true
	cfg.Channels.Discord.AuthUserID = "123456"
	cfg.Home.WizIP = "192.168.1.50"
	cfg.Logging.Level = "debug"

	if err := cfg.Save(cfgPath); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}

	loaded, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.Model.Name != "gpt-4o" {
		t.Errorf("expected Model.Name='gpt-4o', got %q", loaded.Model.Name)
	}
	if loaded.Server.Port != 9999 {
		t.Errorf("expected Server.Port=9999, got %d", loaded.Server.Port)
	}
	if !loaded.Channels.Discord.Enabled {
		t.Error("expected Discord enabled")
	}
	if loaded.Home.WizIP != "192.168.1.50" {
		t.Errorf("expected WizIP preserved, got %q", loaded.Home.WizIP)
	}
	if loaded.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level='debug', got %q", loaded.Logging.Level)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected defaults, got %+v", cfg.Server)
	}
}

func TestLoadExpandsEnvSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-123")
	t.Setenv("DISCORD_TOKEN", "discord-test-456")

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	if err := cfg.Save(cfgPath); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.Model.APIKey != "sk-test-123" {
		t.Errorf("api key not expanded: %q", loaded.Model.APIKey)
	}
	if loaded.Channels.Discord.Token != "discord-test-456" {
		t.Errorf("discord token not expanded: %q", loaded.Channels.Discord.Token)
	}
}
