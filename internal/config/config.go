// Package config provides configuration loading and structs for the Mokuji server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Uploads UploadsConfig `yaml:"uploads"`
	Enrich  EnrichConfig  `yaml:"enrich"`
	Storage StorageConfig `yaml:"storage"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// UploadsConfig holds settings for uploaded package handling.
type UploadsConfig struct {
	// Dir is where uploaded archives are spooled and extracted.
	Dir string `yaml:"dir"`
	// MaxUploadMB caps the accepted archive size (MiB).
	MaxUploadMB int64 `yaml:"max_upload_mb"`
	// Retain keeps extraction directories after the response is sent
	// (for debugging). Retained directories are swept once older than
	// RetentionMinutes.
	Retain           bool `yaml:"retain"`
	RetentionMinutes int  `yaml:"retention_minutes"`
}

// MaxUploadBytes returns the upload cap in bytes.
func (u *UploadsConfig) MaxUploadBytes() int64 {
	return u.MaxUploadMB * 1024 * 1024
}

// EnrichConfig holds settings for the external metadata-enrichment service.
type EnrichConfig struct {
	// APIKey authenticates against the generative-text API. Falls back to
	// the GEMINI_API_KEY environment variable when empty.
	APIKey         string `yaml:"api_key"`
	Endpoint       string `yaml:"endpoint"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// StorageConfig holds paths for the course catalog and keyword index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// WatchConfig holds drop-directory auto-ingest settings.
type WatchConfig struct {
	// Directories are watched for new .zip packages to ingest.
	Directories []string `yaml:"directories"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Uploads.Dir = expandPath(cfg.Uploads.Dir, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
