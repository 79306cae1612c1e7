// Package config loads petlog settings from a YAML file and an optional INI
// secrets file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/petlog/internal/coerce"
	"github.com/roach88/petlog/internal/reconcile"
)

// DefaultFile is read when no --config flag is given.
const DefaultFile = "petlog.yaml"

// Backends.
const (
	BackendFile   = "file"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// Config is the root configuration.
type Config struct {
	// Resource names the logbook: the workbook file or object.
	Resource string `yaml:"resource"`
	// Backend is file, s3 or memory.
	Backend   string          `yaml:"backend"`
	File      FileConfig      `yaml:"file"`
	S3        S3Config        `yaml:"s3"`
	Cache     CacheConfig     `yaml:"cache"`
	Retry     RetryConfig     `yaml:"retry"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Tokens    coerce.Tokens   `yaml:"tokens"`
	Journal   JournalConfig   `yaml:"journal"`
	// SchemasDir holds extra *.cue worksheet declarations.
	SchemasDir string `yaml:"schemas_dir,omitempty"`
	// Secrets is an INI file whose [connections.sheets] section overrides
	// the connection settings. Relative to the config file.
	Secrets string `yaml:"secrets,omitempty"`
}

// FileConfig places workbooks on local disk as <dir>/<resource>.xlsx.
type FileConfig struct {
	Dir string `yaml:"dir"`
}

// S3Config places workbooks in a bucket.
type S3Config struct {
	Bucket  string `yaml:"bucket,omitempty"`
	Key     string `yaml:"key,omitempty"`
	Prefix  string `yaml:"prefix,omitempty"`
	Region  string `yaml:"region,omitempty"`
	Profile string `yaml:"profile,omitempty"`
}

// CacheConfig bounds how long reads are reused.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// RetryConfig is the rate-limit retry policy.
type RetryConfig struct {
	Attempts  int           `yaml:"attempts"`
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

// ReconcileConfig selects how snapshot edits are applied.
type ReconcileConfig struct {
	Mode string `yaml:"mode"`
}

// JournalConfig locates the mutation journal. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Resource: "petlog",
		Backend:  BackendFile,
		File:     FileConfig{Dir: "."},
		Cache:    CacheConfig{TTL: 60 * time.Second},
		Retry: RetryConfig{
			Attempts:  3,
			BaseDelay: 500 * time.Millisecond,
			MaxDelay:  8 * time.Second,
		},
		Reconcile: ReconcileConfig{Mode: string(reconcile.ModeBatch)},
		Tokens:    coerce.DefaultTokens,
		Journal:   JournalConfig{Path: "petlog.db"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults
// unless force is set. The result is validated.
func Load(path string, force bool) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if force {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Secrets != "" {
		secrets := cfg.Secrets
		if !filepath.IsAbs(secrets) {
			secrets = filepath.Join(filepath.Dir(path), secrets)
		}
		if err := cfg.ApplySecrets(secrets); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes c as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Resource) == "" {
		errs = append(errs, errors.New("resource cannot be empty"))
	}
	switch c.Backend {
	case BackendFile:
		if c.File.Dir == "" {
			errs = append(errs, errors.New("file.dir cannot be empty for the file backend"))
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("s3.bucket cannot be empty for the s3 backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q (want %s, %s or %s)", c.Backend, BackendFile, BackendS3, BackendMemory))
	}

	if _, err := reconcile.ParseMode(c.Reconcile.Mode); err != nil {
		errs = append(errs, err)
	}
	if c.Retry.Attempts < 1 {
		errs = append(errs, fmt.Errorf("retry.attempts must be at least 1, got %d", c.Retry.Attempts))
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		errs = append(errs, errors.New("retry delays cannot be negative"))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl cannot be negative"))
	}

	yes, no := strings.TrimSpace(c.Tokens.Yes), strings.TrimSpace(c.Tokens.No)
	switch {
	case yes == "" || no == "":
		errs = append(errs, errors.New("tokens.yes and tokens.no cannot be empty"))
	case strings.EqualFold(yes, no):
		errs = append(errs, fmt.Errorf("tokens.yes and tokens.no must differ, both are %q", yes))
	}

	return errors.Join(errs...)
}
