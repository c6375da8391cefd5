package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `{
	"database": {
		"host": "localhost",
		"port": 27017,
		"username": "gateway",
		"password": "secret",
		"database": "marketplace",
		"operation_timeout": "5s"
	},
	"gateway": {
		"allowed_origins": ["http://localhost:3000"],
		"readiness_interval": "2s",
		"readiness_max_attempts": 3,
		"lookup_timeout": "4s"
	},
	"debug_mode": true,
	"app_name": "chat-gateway",
	"app_port": 4001
}`

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	require.NoError(t, os.WriteFile("config.json", []byte(sampleConfig), 0644))

	cfg, err := ReadConfig()
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, uint64(27017), cfg.Database.Port)
	assert.Equal(t, "marketplace", cfg.Database.Database)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Gateway.AllowedOrigins)
	assert.Equal(t, 3, cfg.Gateway.ReadinessMaxAttempts)
	assert.Equal(t, "4s", cfg.Gateway.LookupTimeout)
	assert.True(t, cfg.DebugMode)
	assert.Equal(t, 4001, cfg.AppPort)
}

func TestReadConfigMissingFileCreatesTemplate(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err = ReadConfig()
	assert.Error(t, err)

	_, statErr := os.Stat("config.json")
	assert.NoError(t, statErr)
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	applyDefaults(&cfg)

	assert.Equal(t, 4001, cfg.AppPort)
	assert.Equal(t, 5, cfg.Gateway.ReadinessMaxAttempts)
	assert.Equal(t, "1s", cfg.Gateway.ReadinessInterval)
	assert.Equal(t, "5s", cfg.Gateway.LookupTimeout)
	assert.Equal(t, "5s", cfg.Database.OperationTimeout)
}
