package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Verify defaults
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Empty(t, cfg.Catalog.Path)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LEARNXP_SERVER_ADDR", ":7070")
	t.Setenv("LEARNXP_LOG_LEVEL", "debug")
	t.Setenv("LEARNXP_SECURITY_API_KEYS", "k1, k2")
	t.Setenv("LEARNXP_SERVER_READ_TIMEOUT", "15s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Security.APIKeys)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
}

func TestLoadFromFile(t *testing.T) {
	configContent := `{
		"environment": "testing",
		"server": {
			"address": ":9090"
		},
		"storage": {
			"adapter": "memory"
		}
	}`

	tmpFile, err := os.CreateTemp("", "config_test_*.json")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	_, err = tmpFile.WriteString(configContent)
	require.NoError(t, err)
	tmpFile.Close()

	cfg, err := LoadFromFile(tmpFile.Name())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
}

func TestLoadFromFileRejectsBadPath(t *testing.T) {
	_, err := LoadFromFile("nope.yaml")
	assert.Error(t, err)

	_, err = LoadFromFile("")
	assert.Error(t, err)
}

func TestCatalogConfigDefault(t *testing.T) {
	cat, err := CatalogConfig{}.LoadCatalog()
	require.NoError(t, err)
	assert.True(t, cat.IsMilestoneLevel(5))
}

func TestCatalogConfigFromFile(t *testing.T) {
	content := `{
		"badges": [
			{"trigger_level": 3, "id": "bronze"},
			{"trigger_level": 7, "id": "silver"}
		],
		"achievements": [
			{"min_level": 1, "max_level": 6, "id": "starter"},
			{"min_level": 7, "max_level": 0, "id": "veteran"}
		]
	}`
	tmpFile, err := os.CreateTemp("", "catalog_*.json")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())
	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)
	tmpFile.Close()

	cat, err := CatalogConfig{Path: tmpFile.Name()}.LoadCatalog()
	require.NoError(t, err)
	assert.True(t, cat.IsMilestoneLevel(3))
	assert.Equal(t, 2, len(cat.Badges()))
	assert.EqualValues(t, "veteran", cat.AchievementForLevel(10))
}

func TestCatalogConfigRejectsInvalid(t *testing.T) {
	content := `{
		"badges": [{"trigger_level": 5, "id": "a"}, {"trigger_level": 5, "id": "b"}],
		"achievements": [{"min_level": 1, "max_level": 0, "id": "all"}]
	}`
	tmpFile, err := os.CreateTemp("", "catalog_*.json")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())
	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)
	tmpFile.Close()

	_, err = CatalogConfig{Path: tmpFile.Name()}.LoadCatalog()
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{name: "valid defaults", mutate: func(*Config) {}, expectError: false},
		{name: "empty environment", mutate: func(c *Config) { c.Environment = "" }, expectError: true},
		{name: "bad adapter", mutate: func(c *Config) { c.Storage.Adapter = "etcd" }, expectError: true},
		{name: "sql without dsn", mutate: func(c *Config) { c.Storage.Adapter = "sql"; c.Storage.SQL.DSN = "" }, expectError: true},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, expectError: true},
		{name: "rate limit without rpm", mutate: func(c *Config) {
			c.Security.EnableRateLimit = true
			c.Security.RateLimit.RequestsPerMinute = 0
		}, expectError: true},
		{name: "empty api key", mutate: func(c *Config) { c.Security.APIKeys = []string{" "} }, expectError: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Server.ReadTimeout = 0 }, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStringRedactsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.SQL.DSN = "postgres://user:hunter2@db/learnxp"
	cfg.Storage.Redis.Password = "hunter2"

	s := cfg.String()
	assert.NotContains(t, s, "hunter2")
	assert.Contains(t, s, "[REDACTED]")
}
