// Package config loads the reader configuration from YAML.
//
// Unknown fields are rejected. Values missing from the file keep their
// defaults. The assist API key can be supplied through JUNIPER_ASSIST_KEY so
// it never has to be written to disk.
package config

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
	"github.com/FocuswithJustin/JuniperReader/internal/validation"
)

// AssistKeyEnv overrides Assist.APIKey when set.
const AssistKeyEnv = "JUNIPER_ASSIST_KEY"

type (
	ServerConfig struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`

		// APIKey, when set, is required on every API request.
		APIKey SecretString `yaml:"api_key"`

		// RateLimitPerMinute limits assist-backed requests per client. Zero
		// disables the limit.
		RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
		RateLimitBurst     int `yaml:"rate_limit_burst"`
	}

	CorpusConfig struct {
		// Path to a JSON (optionally xz-compressed) or OSIS corpus. Empty
		// selects the embedded sample.
		Path  string `yaml:"path"`
		Start string `yaml:"start"`
	}

	StorageConfig struct {
		// Path of the SQLite database holding notes and testimony. Empty
		// keeps everything in memory.
		Path string `yaml:"path"`
	}

	LoggingConfig struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	}

	NavigationConfig struct {
		TransitionOut  time.Duration `yaml:"transition_out"`
		RenderSettle   time.Duration `yaml:"render_settle"`
		NoticeDuration time.Duration `yaml:"notice_duration"`
	}

	AssistConfig struct {
		// BaseURL of the assistant endpoint. Empty disables search fallback
		// and illustrations.
		BaseURL   string        `yaml:"base_url"`
		APIKey    SecretString  `yaml:"api_key"`
		Timeout   time.Duration `yaml:"timeout"`
		AnswerTTL time.Duration `yaml:"answer_ttl"`
	}

	IllustrationConfig struct {
		// Square is the edge length images are cropped to. Zero keeps the
		// generator's size.
		Square int `yaml:"square"`

		// StoreDir keeps generated images between runs. Empty disables it.
		StoreDir string `yaml:"store_dir"`
	}

	NarrationConfig struct {
		Command string   `yaml:"command"`
		Args    []string `yaml:"args"`
	}

	Config struct {
		Version      int                `yaml:"version"`
		Server       ServerConfig       `yaml:"server"`
		Corpus       CorpusConfig       `yaml:"corpus"`
		Storage      StorageConfig      `yaml:"storage"`
		Logging      LoggingConfig      `yaml:"logging"`
		Navigation   NavigationConfig   `yaml:"navigation"`
		Assist       AssistConfig       `yaml:"assist"`
		Illustration IllustrationConfig `yaml:"illustration"`
		Narration    NarrationConfig    `yaml:"narration"`
	}
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Addr:               "127.0.0.1:8080",
			RateLimitPerMinute: 30,
			RateLimitBurst:     5,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Navigation: NavigationConfig{
			TransitionOut:  20 * time.Millisecond,
			RenderSettle:   800 * time.Millisecond,
			NoticeDuration: 2500 * time.Millisecond,
		},
		Assist: AssistConfig{
			Timeout:   30 * time.Second,
			AnswerTTL: time.Hour,
		},
		Illustration: IllustrationConfig{Square: 1024},
		Narration:    NarrationConfig{Command: "espeak-ng"},
	}
}

// Load reads path on top of the defaults. An empty path returns the
// defaults. Environment overrides are applied and the result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read configuration: %w", err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, &errors.ParseError{Format: "YAML", Path: path, Message: "invalid configuration", Err: err}
		}
		cfg.resolvePaths(filepath.Dir(path))
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	// Only fields we define are accepted, so yaml.Unmarshal won't do.
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// resolvePaths makes relative file paths relative to the config file.
func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{&c.Corpus.Path, &c.Storage.Path, &c.Illustration.StoreDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

func (c *Config) applyEnv() {
	if key := os.Getenv(AssistKeyEnv); key != "" {
		c.Assist.APIKey = SecretString(key)
	}
}

// Validate checks the configuration for values the reader cannot run with.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &errors.ValidationError{Field: "version", Value: fmt.Sprint(c.Version), Message: "unsupported configuration version"}
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return &errors.ValidationError{Field: "server.addr", Value: c.Server.Addr, Message: "must be host:port", Err: err}
	}
	if c.Server.RateLimitPerMinute < 0 || c.Server.RateLimitBurst < 0 {
		return errors.NewValidation("server.rate_limit", "must not be negative")
	}
	if c.Server.RateLimitPerMinute > 0 && c.Server.RateLimitBurst == 0 {
		return errors.NewValidation("server.rate_limit_burst", "must be positive when rate limiting is enabled")
	}
	if key := string(c.Server.APIKey); key != "" && len(key) < 16 {
		return errors.NewValidation("server.api_key", fmt.Sprintf("must be at least 16 characters (got %d)", len(key)))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return &errors.ValidationError{Field: "logging.level", Value: c.Logging.Level, Message: "unknown level", Err: err}
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return &errors.ValidationError{Field: "logging.format", Value: c.Logging.Format, Message: "unknown format", Err: err}
	}
	for field, p := range map[string]string{
		"corpus.path":            c.Corpus.Path,
		"storage.path":           c.Storage.Path,
		"illustration.store_dir": c.Illustration.StoreDir,
	} {
		if p == "" {
			continue
		}
		if err := validation.ValidatePath(p); err != nil {
			return &errors.ValidationError{Field: field, Value: p, Message: "invalid path", Err: err}
		}
	}
	nav := c.Navigation
	if nav.TransitionOut < 0 || nav.RenderSettle < 0 || nav.NoticeDuration < 0 {
		return errors.NewValidation("navigation", "durations must not be negative")
	}
	if c.Assist.Timeout < 0 || c.Assist.AnswerTTL < 0 {
		return errors.NewValidation("assist", "durations must not be negative")
	}
	if c.Illustration.Square < 0 || c.Illustration.Square > 4096 {
		return errors.NewValidation("illustration.square", "must be between 0 and 4096")
	}
	return nil
}

// Dump renders the effective configuration with secrets masked.
func (c *Config) Dump() ([]byte, error) {
	return yaml.Marshal(c)
}
