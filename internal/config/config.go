// Package config provides configuration for the edfparse CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the conversion settings. Precedence when assembling the
// effective configuration is defaults < config file < environment <
// command line flags.
type Config struct {
	// TrialMarker is the message prefix that starts a new trial.
	TrialMarker string `json:"trial_marker" yaml:"trial_marker"`

	// MessageFilter keeps only messages starting with one of these
	// prefixes. Empty keeps everything.
	MessageFilter []string `json:"message_filter" yaml:"message_filter"`

	// IgnoreSamples skips building the samples table.
	IgnoreSamples bool `json:"ignore_samples" yaml:"ignore_samples"`

	// Join left-joins events with trial metadata from messages before saving.
	Join bool `json:"join" yaml:"join"`

	// Raw selects the generic uncompressed container format instead of
	// the remapped, compressed default.
	Raw bool `json:"raw" yaml:"raw"`

	// Archive configuration
	Archive ArchiveConfig `json:"archive" yaml:"archive"`
}

// ArchiveConfig holds object storage settings for archiving containers.
type ArchiveConfig struct {
	// Type is the storage type: local, s3, or empty to disable archiving.
	Type string `json:"type" yaml:"type"`

	// Path is the local archive root (for local type).
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 archive configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default conversion settings.
func DefaultConfig() *Config {
	return &Config{
		TrialMarker: "TRIALID",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.TrialMarker == "" {
		return fmt.Errorf("trial_marker is required")
	}

	switch c.Archive.Type {
	case "", "local", "s3":
		// Valid types
	default:
		return fmt.Errorf("invalid archive type: %s (must be local or s3)", c.Archive.Type)
	}

	if c.Archive.Type == "local" && c.Archive.Path == "" {
		return fmt.Errorf("archive.path is required when archive type is local")
	}
	if c.Archive.Type == "s3" && c.Archive.S3.Bucket == "" {
		return fmt.Errorf("archive.s3.bucket is required when archive type is s3")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the EDFPARSE_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("EDFPARSE_TRIAL_MARKER"); v != "" {
		cfg.TrialMarker = v
	}
	if v := os.Getenv("EDFPARSE_MESSAGE_FILTER"); v != "" {
		cfg.MessageFilter = splitList(v)
	}
	if v := os.Getenv("EDFPARSE_IGNORE_SAMPLES"); v != "" {
		cfg.IgnoreSamples = v == "true" || v == "1"
	}
	if v := os.Getenv("EDFPARSE_JOIN"); v != "" {
		cfg.Join = v == "true" || v == "1"
	}
	if v := os.Getenv("EDFPARSE_RAW"); v != "" {
		cfg.Raw = v == "true" || v == "1"
	}

	// Archive configuration
	if v := os.Getenv("EDFPARSE_ARCHIVE_TYPE"); v != "" {
		cfg.Archive.Type = v
	}
	if v := os.Getenv("EDFPARSE_ARCHIVE_PATH"); v != "" {
		cfg.Archive.Path = v
	}
	if v := os.Getenv("EDFPARSE_S3_BUCKET"); v != "" {
		cfg.Archive.S3.Bucket = v
	}
	if v := os.Getenv("EDFPARSE_S3_REGION"); v != "" {
		cfg.Archive.S3.Region = v
	}
	if v := os.Getenv("EDFPARSE_S3_ENDPOINT"); v != "" {
		cfg.Archive.S3.Endpoint = v
	}
}

// splitList splits a comma-separated list, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
