package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rendis/stationflow/internal/backup"
)

// Config holds all stationflow configuration.
// Priority: flags > env vars > stationflow.yaml > defaults.
type Config struct {
	DataDir     string          `yaml:"data_dir"`
	Catalog     string          `yaml:"catalog"`
	LogLevel    string          `yaml:"log_level"`
	LogDir      string          `yaml:"log_dir"`
	Journal     bool            `yaml:"journal"`
	BackupDir   string          `yaml:"backup_dir"`
	OutputDir   string          `yaml:"output_dir"`
	MetricsFile string          `yaml:"metrics_file"`
	Accessible  bool            `yaml:"accessible"`
	BackupCron  string          `yaml:"backup_cron"`
	MetricsCron string          `yaml:"metrics_cron"`
	S3          backup.S3Config `yaml:"s3"`
}

const defaultSettingsFile = "stationflow.yaml"

func defaultConfig() Config {
	return Config{
		DataDir:    "data",
		LogLevel:   "info",
		LogDir:     "logs",
		Journal:    true,
		OutputDir:  ".",
		BackupCron: "@daily",
	}
}

func (c Config) stationsPath() string { return filepath.Join(c.DataDir, "stations.json") }
func (c Config) statesPath() string   { return filepath.Join(c.DataDir, "etat_station.json") }
func (c Config) journalPath() string  { return filepath.Join(c.DataDir, "journal.db") }

// catalogPath returns the configured catalog, or types.json in the data
// directory, or types.yaml when only that one exists.
func (c Config) catalogPath() string {
	if c.Catalog != "" {
		return c.Catalog
	}
	jsonPath := filepath.Join(c.DataDir, "types.json")
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath
	}
	yamlPath := filepath.Join(c.DataDir, "types.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	return jsonPath
}

func (c Config) backupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(c.DataDir, "backups")
}

// loadConfig layers the settings file and the environment over defaults.
// A missing settings file is not an error.
func loadConfig(settingsPath string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()

	// Layer 2: settings file.
	if settingsPath == "" {
		settingsPath = defaultSettingsFile
	}
	data, err := os.ReadFile(settingsPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", settingsPath, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", settingsPath, err)
	}

	// Layer 3: env vars override.
	str := func(key string, dst *string) {
		if v := getenv("STATIONFLOW_" + key); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v := getenv("STATIONFLOW_" + key); v != "" {
			*dst = parseBool(v)
		}
	}
	str("DATA_DIR", &cfg.DataDir)
	str("CATALOG", &cfg.Catalog)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_DIR", &cfg.LogDir)
	boolean("JOURNAL", &cfg.Journal)
	str("BACKUP_DIR", &cfg.BackupDir)
	str("OUTPUT_DIR", &cfg.OutputDir)
	str("METRICS_FILE", &cfg.MetricsFile)
	boolean("ACCESSIBLE", &cfg.Accessible)
	str("BACKUP_CRON", &cfg.BackupCron)
	str("METRICS_CRON", &cfg.MetricsCron)
	str("S3_BUCKET", &cfg.S3.Bucket)
	str("S3_PREFIX", &cfg.S3.Prefix)
	str("S3_REGION", &cfg.S3.Region)
	str("S3_ENDPOINT", &cfg.S3.Endpoint)
	boolean("S3_PATH_STYLE", &cfg.S3.PathStyle)

	return cfg, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on", "oui":
		return true
	}
	return false
}
