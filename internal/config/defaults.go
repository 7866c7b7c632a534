package config

import "os"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Uploads.Dir == "" {
		cfg.Uploads.Dir = "/usr/local/var/mokuji/uploads"
	}
	if cfg.Uploads.MaxUploadMB == 0 {
		cfg.Uploads.MaxUploadMB = 200
	}
	if cfg.Uploads.RetentionMinutes == 0 {
		cfg.Uploads.RetentionMinutes = 60
	}
	if cfg.Enrich.APIKey == "" {
		cfg.Enrich.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Enrich.Endpoint == "" {
		cfg.Enrich.Endpoint = "https://generativelanguage.googleapis.com"
	}
	if cfg.Enrich.Model == "" {
		cfg.Enrich.Model = "gemini-1.5-flash"
	}
	if cfg.Enrich.TimeoutSeconds == 0 {
		cfg.Enrich.TimeoutSeconds = 45
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/mokuji/data/courses.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/mokuji/data/indices/bleve"
	}
}
