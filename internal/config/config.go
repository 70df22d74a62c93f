// Package config loads the immutable per-invocation configuration: defaults,
// then an optional JSON config file, then AKTIS_* environment overrides.
// A scan receives its Config by value at start; changes apply to subsequent
// invocations only.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Channels   ChannelsConfig
	Pipeline   PipelineConfig
	Encryption EncryptionConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type StorageConfig struct {
	DataDir string
}

type ChannelsConfig struct {
	// ArchiveDir is the read-only archive root whose immediate subdirectories
	// are 8-digit tenant codes.
	ArchiveDir string
	// IntakeDir is the manual-scan drop folder; processed files are moved out.
	IntakeDir string
	// FallbackTenant receives intake files when no tenant subfolder is present.
	FallbackTenant string
	// Mailbox names the polled mailbox whose cursor is persisted.
	Mailbox string
}

type PipelineConfig struct {
	Workers        int
	BatchSize      int
	ItemTimeoutSec int
	MaxFileSize    int64
}

type EncryptionConfig struct {
	// KeyHex is the hex-encoded 32-byte key, normally supplied via
	// AKTIS_ENCRYPTION_KEY. KeyFile is consulted when KeyHex is empty.
	KeyHex  string
	KeyFile string
}

func defaults() Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".local", "share", "aktis")
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: base,
		},
		Channels: ChannelsConfig{
			ArchiveDir:     filepath.Join(base, "archive"),
			IntakeDir:      filepath.Join(base, "intake"),
			FallbackTenant: "00000000",
			Mailbox:        "inbox",
		},
		Pipeline: PipelineConfig{
			Workers:        4,
			BatchSize:      25,
			ItemTimeoutSec: 60,
			MaxFileSize:    100 << 20,
		},
	}
}

// Load builds the configuration. The config file path is $AKTIS_CONFIG if set,
// otherwise $XDG_CONFIG_HOME/aktis/config.json; a missing file is not an error.
func Load() (Config, error) {
	path := os.Getenv("AKTIS_CONFIG")
	if path == "" {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			path = filepath.Join(xdg, "aktis", "config.json")
		} else if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".config", "aktis", "config.json")
		}
	}
	return loadFrom(path)
}

func loadFrom(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults + env only.
		case err != nil:
			return Config{}, fmt.Errorf("reading config file: %w", err)
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.Pipeline.Workers <= 0 {
		cfg.Pipeline.Workers = defaults().Pipeline.Workers
	}
	if cfg.Pipeline.BatchSize <= 0 {
		cfg.Pipeline.BatchSize = defaults().Pipeline.BatchSize
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setInt(&cfg.Server.Port, "AKTIS_PORT")
	setString(&cfg.Server.APIToken, "AKTIS_API_TOKEN")
	setString(&cfg.Storage.DataDir, "AKTIS_DATA_DIR")
	setString(&cfg.Channels.ArchiveDir, "AKTIS_ARCHIVE_DIR")
	setString(&cfg.Channels.IntakeDir, "AKTIS_INTAKE_DIR")
	setString(&cfg.Channels.FallbackTenant, "AKTIS_FALLBACK_TENANT")
	setString(&cfg.Channels.Mailbox, "AKTIS_MAILBOX")
	setInt(&cfg.Pipeline.Workers, "AKTIS_WORKERS")
	setInt(&cfg.Pipeline.BatchSize, "AKTIS_BATCH_SIZE")
	setInt(&cfg.Pipeline.ItemTimeoutSec, "AKTIS_ITEM_TIMEOUT")
	setString(&cfg.Encryption.KeyHex, "AKTIS_ENCRYPTION_KEY")
	setString(&cfg.Encryption.KeyFile, "AKTIS_ENCRYPTION_KEY_FILE")
}
