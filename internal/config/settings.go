// Package config loads service settings and pipeline definitions.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/example/reelforge/internal/core/acquisition"
)

// EnvPrefix prefixes every environment override, e.g. REELFORGE_HTTP_ADDR.
const EnvPrefix = "REELFORGE"

// Dispatcher modes.
const (
	DispatchPool  = "pool"
	DispatchAsynq = "asynq"
)

// Settings is the service configuration.
type Settings struct {
	DBPath        string `mapstructure:"db_path" validate:"required"`
	ArtifactRoot  string `mapstructure:"artifact_root" validate:"required"`
	PipelinesFile string `mapstructure:"pipelines_file"`

	HTTP     HTTPSettings     `mapstructure:"http"`
	Queue    QueueSettings    `mapstructure:"queue"`
	External ExternalSettings `mapstructure:"external"`
	Log      LogSettings      `mapstructure:"log"`
	Cache    CacheSettings    `mapstructure:"cache"`
}

// HTTPSettings configures the JSON API.
type HTTPSettings struct {
	Addr             string        `mapstructure:"addr" validate:"required"`
	Mode             string        `mapstructure:"mode" validate:"oneof=debug release test"`
	RequestSizeLimit int64         `mapstructure:"request_size_limit" validate:"gte=0"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
}

// QueueSettings configures how publish uploads are dispatched.
type QueueSettings struct {
	Dispatcher    string        `mapstructure:"dispatcher" validate:"oneof=pool asynq"`
	Concurrency   int           `mapstructure:"concurrency" validate:"gte=1"`
	RedisAddr     string        `mapstructure:"redis_addr" validate:"required_if=Dispatcher asynq"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" validate:"gte=0"`
	Name          string        `mapstructure:"name" validate:"required"`
	UploadTimeout time.Duration `mapstructure:"upload_timeout"`
}

// ExternalSettings locates the external collaborators.
type ExternalSettings struct {
	DiscoveryURL string            `mapstructure:"discovery_url"`
	UploadURL    string            `mapstructure:"upload_url"`
	Stages       map[string]string `mapstructure:"stages"`
	Timeout      time.Duration     `mapstructure:"timeout"`
	Retries      uint64            `mapstructure:"retries"`
	RetryBackoff time.Duration     `mapstructure:"retry_backoff"`
}

// LogSettings configures the service logger.
type LogSettings struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=1"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

// CacheSettings configures the idempotency check.
type CacheSettings struct {
	Policy         string                 `mapstructure:"policy" validate:"oneof=any all"`
	ForceReprocess bool                   `mapstructure:"force_reprocess"`
	Locations      []acquisition.Location `mapstructure:"locations" validate:"dive"`
}

// HomeDir returns ~/.reelforge.
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".reelforge"), nil
}

// Load reads settings from path, or from reelforge.yaml in the working
// directory or ~/.reelforge when path is empty. A missing default file is
// not an error. REELFORGE_* environment variables override file values.
func Load(path string) (*Settings, error) {
	home, err := HomeDir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, home)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("reelforge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the settings.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// UsesAsynq reports whether uploads go through the redis queue.
func (s *Settings) UsesAsynq() bool {
	return s.Queue.Dispatcher == DispatchAsynq
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("db_path", filepath.Join(home, "reelforge.db"))
	v.SetDefault("artifact_root", filepath.Join(home, "artifacts"))
	v.SetDefault("pipelines_file", "")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.mode", "release")
	v.SetDefault("http.request_size_limit", 1<<20)
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("queue.dispatcher", DispatchPool)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.redis_addr", "")
	v.SetDefault("queue.redis_password", "")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.name", "uploads")
	v.SetDefault("queue.upload_timeout", "10m")

	v.SetDefault("external.discovery_url", "")
	v.SetDefault("external.upload_url", "")
	v.SetDefault("external.timeout", "30s")
	v.SetDefault("external.retries", 3)
	v.SetDefault("external.retry_backoff", "200ms")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age_days", 7)

	v.SetDefault("cache.policy", string(acquisition.MatchAny))
	v.SetDefault("cache.force_reprocess", false)
}
