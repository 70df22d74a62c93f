package config

import "strconv"

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all non-secret config key/value pairs from the current
// config. Secrets (API token, encryption key) are never printed.
func ShowAll(cfg Config) []KeyInfo {
	return []KeyInfo{
		{Key: "server.port", EnvVar: "AKTIS_PORT", Value: strconv.Itoa(cfg.Server.Port)},
		{Key: "storage.data_dir", EnvVar: "AKTIS_DATA_DIR", Value: cfg.Storage.DataDir},
		{Key: "channels.archive_dir", EnvVar: "AKTIS_ARCHIVE_DIR", Value: cfg.Channels.ArchiveDir},
		{Key: "channels.intake_dir", EnvVar: "AKTIS_INTAKE_DIR", Value: cfg.Channels.IntakeDir},
		{Key: "channels.fallback_tenant", EnvVar: "AKTIS_FALLBACK_TENANT", Value: cfg.Channels.FallbackTenant},
		{Key: "channels.mailbox", EnvVar: "AKTIS_MAILBOX", Value: cfg.Channels.Mailbox},
		{Key: "pipeline.workers", EnvVar: "AKTIS_WORKERS", Value: strconv.Itoa(cfg.Pipeline.Workers)},
		{Key: "pipeline.batch_size", EnvVar: "AKTIS_BATCH_SIZE", Value: strconv.Itoa(cfg.Pipeline.BatchSize)},
		{Key: "pipeline.item_timeout", EnvVar: "AKTIS_ITEM_TIMEOUT", Value: strconv.Itoa(cfg.Pipeline.ItemTimeoutSec)},
		{Key: "pipeline.max_file_size", EnvVar: "", Value: strconv.FormatInt(cfg.Pipeline.MaxFileSize, 10)},
		{Key: "encryption.key_file", EnvVar: "AKTIS_ENCRYPTION_KEY_FILE", Value: cfg.Encryption.KeyFile},
	}
}
