package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Snapshot backends a candidate client can persist its session to.
const (
	SnapshotFile   = "file"
	SnapshotRedis  = "redis"
	SnapshotMemory = "memory"
)

// ClientConfig configures the candidate terminal client and the admin CLI.
type ClientConfig struct {
	ServerURL      string         `yaml:"server_url"`
	Token          string         `yaml:"token"`
	RequestTimeout time.Duration  `yaml:"request_timeout"`
	Snapshot       SnapshotConfig `yaml:"snapshot"`
	Log            ClientLog      `yaml:"log"`
}

// SnapshotConfig selects where the session snapshot survives restarts.
type SnapshotConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	// Key scopes the snapshot inside Redis; defaults to "default".
	Key string `yaml:"key"`
}

// ClientLog routes client logs away from the terminal the client draws on.
type ClientLog struct {
	File   string `yaml:"file"`
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultClientConfig returns the values used when the YAML file omits a field.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ServerURL:      "http://localhost:8080",
		RequestTimeout: 15 * time.Second,
		Snapshot: SnapshotConfig{
			Backend: SnapshotFile,
			Path:    "sanjio-exam-storage.json",
			Key:     "default",
		},
		Log: ClientLog{
			File:   "sanjio-take.log",
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadClient reads the YAML file at path (a missing file is fine) and then applies
// SANJIO_* environment overrides.
func LoadClient(path string) (*ClientConfig, error) {
	_ = godotenv.Load()

	cfg := DefaultClientConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	overrideString(&cfg.ServerURL, "SANJIO_SERVER_URL")
	overrideString(&cfg.Token, "SANJIO_TOKEN")
	overrideString(&cfg.Snapshot.Backend, "SANJIO_SNAPSHOT")
	overrideString(&cfg.Snapshot.Path, "SANJIO_SNAPSHOT_PATH")
	overrideString(&cfg.Snapshot.RedisURL, "SANJIO_REDIS_URL")
	overrideString(&cfg.Log.File, "SANJIO_LOG_FILE")
	overrideString(&cfg.Log.Level, "SANJIO_LOG_LEVEL")

	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	if cfg.Snapshot.Key == "" {
		cfg.Snapshot.Key = "default"
	}

	switch cfg.Snapshot.Backend {
	case SnapshotFile:
		if cfg.Snapshot.Path == "" {
			return nil, errors.New("snapshot.path is required for the file backend")
		}
	case SnapshotRedis:
		if cfg.Snapshot.RedisURL == "" {
			return nil, errors.New("snapshot.redis_url is required for the redis backend")
		}
	case SnapshotMemory:
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Snapshot.Backend)
	}

	return &cfg, nil
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
