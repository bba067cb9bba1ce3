package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.Equal(t, filepath.Join("data", "stations.json"), cfg.stationsPath())
	assert.Equal(t, filepath.Join("data", "backups"), cfg.backupDir())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stationflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /srv/stations
log_level: debug
journal: false
s3:
  bucket: nightly
  region: eu-west-3
`), 0o644))

	cfg, err := loadConfig(path, envMap(map[string]string{
		"STATIONFLOW_LOG_LEVEL":   "warn",
		"STATIONFLOW_S3_PREFIX":   "stationflow",
		"STATIONFLOW_ACCESSIBLE":  "oui",
		"STATIONFLOW_OUTPUT_DIR":  "",
		"STATIONFLOW_BACKUP_CRON": "0 2 * * *",
	}))
	require.NoError(t, err)
	assert.Equal(t, "/srv/stations", cfg.DataDir)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.False(t, cfg.Journal)
	assert.True(t, cfg.Accessible)
	assert.Equal(t, "nightly", cfg.S3.Bucket)
	assert.Equal(t, "eu-west-3", cfg.S3.Region)
	assert.Equal(t, "stationflow", cfg.S3.Prefix)
	assert.Equal(t, ".", cfg.OutputDir)
	assert.Equal(t, "0 2 * * *", cfg.BackupCron)
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stationflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: [unclosed"), 0o644))
	_, err := loadConfig(path, envMap(nil))
	assert.Error(t, err)
}

func TestCatalogPath_PrefersJSONThenYAML(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{DataDir: dir}
	assert.Equal(t, filepath.Join(dir, "types.json"), cfg.catalogPath())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "types.yaml"), []byte("{}"), 0o644))
	assert.Equal(t, filepath.Join(dir, "types.yaml"), cfg.catalogPath())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "types.json"), []byte("{}"), 0o644))
	assert.Equal(t, filepath.Join(dir, "types.json"), cfg.catalogPath())

	cfg.Catalog = "/etc/types.yaml"
	assert.Equal(t, "/etc/types.yaml", cfg.catalogPath())
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "on", "oui"} {
		assert.True(t, parseBool(v), v)
	}
	for _, v := range []string{"0", "false", "non", ""} {
		assert.False(t, parseBool(v), v)
	}
}
