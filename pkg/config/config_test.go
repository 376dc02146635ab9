package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndCredentialsFromEnv(t *testing.T) {
	t.Setenv("COUPANG_ACCESS_KEY", "ak-test")
	t.Setenv("COUPANG_SECRET_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ModeLive, cfg.Coupang.Mode)
	assert.Equal(t, 10*time.Second, cfg.Coupang.Timeout)
	assert.Equal(t, "ak-test", cfg.Coupang.AccessKey)
	assert.Equal(t, "sk-test", cfg.Coupang.SecretKey)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsLiveModeWithoutCredentials(t *testing.T) {
	t.Setenv("COUPANG_ACCESS_KEY", "ak-only")
	t.Setenv("COUPANG_SECRET_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.ErrorIs(t, cfg.Validate(), ErrMissingCredentials)
}

func TestValidateAllowsSampleModeWithoutCredentials(t *testing.T) {
	t.Setenv("COUPANG_ACCESS_KEY", "")
	t.Setenv("COUPANG_SECRET_KEY", "")
	t.Setenv("CP_COUPANG_MODE", "SAMPLE")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ModeSample, cfg.Coupang.Mode)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAMLFile(t *testing.T) {
	t.Setenv("COUPANG_ACCESS_KEY", "")
	t.Setenv("COUPANG_SECRET_KEY", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := `
server:
  port: 9000
coupang:
  mode: sample
  timeout: 3s
redis:
  enabled: true
  cacheTTL: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, ModeSample, cfg.Coupang.Mode)
	assert.Equal(t, 3*time.Second, cfg.Coupang.Timeout)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, "https://api-gateway.coupang.com", cfg.Coupang.BaseURL)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	t.Setenv("CP_COUPANG_MODE", "mock")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestTrustedProxiesFromEnv(t *testing.T) {
	t.Setenv("CP_COUPANG_MODE", "sample")
	t.Setenv("CP_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.Server.TrustedProxies)
	assert.NoError(t, cfg.Validate())

	t.Setenv("CP_TRUSTED_PROXIES", "lb.internal")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}
