package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const DefaultFeedName = "OnJsonApiEvent_lol-champ-select_v1_session"

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level"`
	LogToFile bool   `json:"log_to_file"`
}

// ClientConfig contains parameters for locating the game client.
type ClientConfig struct {
	// InstallDir pins the client install directory. Empty means
	// discover it from the process list.
	InstallDir string `json:"install_dir"`
	// FeedName overrides the subscribed event feed.
	FeedName string `json:"feed_name"`
}

// CaptureConfig controls feed session recording.
type CaptureConfig struct {
	// AutoRecord makes the overlay record every feed session it sees.
	AutoRecord bool `json:"auto_record"`
	// OutputDir overrides the default captures directory.
	OutputDir string `json:"output_dir"`
}

// NotificationConfig stores per-event desktop notification toggles.
type NotificationConfig struct {
	ConnectionStatus bool `json:"connection_status"`
	FeedEnded        bool `json:"feed_ended"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Client        ClientConfig       `json:"client"`
	Logging       LoggingConfig      `json:"logging"`
	Capture       CaptureConfig      `json:"capture"`
	Notifications NotificationConfig `json:"notifications"`
}

func Default() AppConfig {
	return AppConfig{
		Client: ClientConfig{
			InstallDir: "",
			FeedName:   DefaultFeedName,
		},
		Logging: LoggingConfig{
			Level:     "info",
			LogToFile: false,
		},
		Capture: CaptureConfig{
			AutoRecord: false,
			OutputDir:  "",
		},
		Notifications: NotificationConfig{
			ConnectionStatus: true,
			FeedEnded:        true,
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	if strings.TrimSpace(c.Client.FeedName) == "" {
		c.Client.FeedName = DefaultFeedName
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c AppConfig) Validate() error {
	if strings.TrimSpace(c.Client.FeedName) == "" {
		return errors.New("feed name is required")
	}
	if dir := strings.TrimSpace(c.Client.InstallDir); dir != "" {
		if !filepath.IsAbs(dir) {
			return fmt.Errorf("install dir must be absolute: %s", dir)
		}
	}

	return nil
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
