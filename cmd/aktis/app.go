package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mboehler/aktis/internal/config"
	"github.com/mboehler/aktis/internal/match"
	"github.com/mboehler/aktis/internal/pipeline"
	"github.com/mboehler/aktis/internal/seal"
	"github.com/mboehler/aktis/internal/storage"
)

// app bundles the local service dependencies for commands that work on the
// store directly (scan, reclassify, retention, plan).
type app struct {
	cfg    config.Config
	store  *storage.Store
	sealer *seal.Service
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	sealer, err := newSealer(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{cfg: cfg, store: store, sealer: sealer}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}

// engine loads the active rule set. Call it per run; rule changes apply to
// the next invocation, never to one in flight.
func (a *app) engine() (*match.Engine, error) {
	stored, err := a.store.ListActiveRules()
	if err != nil {
		return nil, fmt.Errorf("loading matching rules: %w", err)
	}
	rules := make([]match.Rule, len(stored))
	for i, r := range stored {
		rules[i] = match.Rule{
			ID:           r.ID,
			Name:         r.Name,
			Strategy:     r.Strategy,
			Pattern:      r.Pattern,
			CategoryCode: r.CategoryCode,
			Tag:          r.Tag,
			Priority:     r.Priority,
		}
	}
	return match.New(rules), nil
}

func (a *app) pipeline(engine *match.Engine) *pipeline.Pipeline {
	return pipeline.New(a.store, engine, a.sealer, pipeline.Options{
		Workers:        a.cfg.Pipeline.Workers,
		BatchSize:      a.cfg.Pipeline.BatchSize,
		ItemTimeout:    time.Duration(a.cfg.Pipeline.ItemTimeoutSec) * time.Second,
		MaxFileSize:    a.cfg.Pipeline.MaxFileSize,
		FallbackTenant: a.cfg.Channels.FallbackTenant,
		LockDir:        a.cfg.Storage.DataDir,
	})
}

// newSealer resolves the encryption key: explicit hex, then key file, then a
// generated key persisted next to the database.
func newSealer(cfg config.Config) (*seal.Service, error) {
	var key seal.StaticKey
	var err error
	switch {
	case cfg.Encryption.KeyHex != "":
		key, err = seal.KeyFromHex(cfg.Encryption.KeyHex)
	case cfg.Encryption.KeyFile != "":
		key, err = seal.KeyFromFile(cfg.Encryption.KeyFile)
	default:
		key, err = ensureKeyFile(filepath.Join(cfg.Storage.DataDir, "seal.key"))
	}
	if err != nil {
		return nil, fmt.Errorf("loading encryption key: %w", err)
	}
	return seal.New(key, cfg.Pipeline.MaxFileSize), nil
}

// ensureKeyFile loads the generated key, creating it on first use. Losing
// this file makes every sealed document unreadable, so it is never rewritten.
func ensureKeyFile(path string) (seal.StaticKey, error) {
	if _, err := os.Stat(path); err == nil {
		return seal.KeyFromFile(path)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(raw)+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("writing key file: %w", err)
	}
	printStep("Generated encryption key at %s", path)
	return seal.StaticKey(raw), nil
}
