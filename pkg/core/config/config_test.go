package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity_valuation/pkg/core/calc"
)

func TestLoadDefaultsInDev(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("MODEL_DEFAULTS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, devJWTSecret, cfg.JWTSecret)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, calc.DefaultModel(), cfg.Model)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("REFRESH_TOKEN_TTL", "not-a-duration")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RATE_LIMIT_BURST", "x")
	t.Setenv("MODEL_DEFAULTS_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTokenTTL, "invalid duration falls back")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 30, cfg.RateLimitBurst)
}

func TestLoadRequiresSecretOutsideDev(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("MODEL_DEFAULTS_FILE", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadModelDefaultsYAMLAndTOML(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "valuation.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("wacc: 11\ninterest_pct: 11.5\ngrowth_terminal: 4\n"), 0o644))

	d, err := LoadModelDefaults(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 11.0, d.WACC)
	assert.Equal(t, 11.5, d.InterestPct)
	assert.Equal(t, 4.0, d.GrowthTerminal)
	assert.Equal(t, calc.DefaultModel().FairValuePE, d.FairValuePE, "unset keys keep built-in values")

	tomlPath := filepath.Join(dir, "valuation.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("fairvalue_pe = 25.0\nperiod_x = 4\n"), 0o644))
	d, err = LoadModelDefaults(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, 25.0, d.FairValuePE)
	assert.Equal(t, 4, d.PeriodX)
}

func TestLoadModelDefaultsRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("interest_pct: 3\ngrowth_terminal: 5\n"), 0o644))

	_, err := LoadModelDefaults(path)
	assert.Error(t, err, "terminal growth must stay below the discount rate")

	_, err = LoadModelDefaults(filepath.Join(t.TempDir(), "x.json"))
	assert.NoError(t, err, "missing file is fine whatever the extension")

	jsonPath := filepath.Join(t.TempDir(), "x.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte("{}"), 0o644))
	_, err = LoadModelDefaults(jsonPath)
	assert.Error(t, err)
}

func TestRepoModelDefaultsFileIsValid(t *testing.T) {
	d, err := LoadModelDefaults(filepath.Join("..", "..", "..", "config", "valuation.yaml"))
	require.NoError(t, err)
	assert.Equal(t, calc.DefaultModel(), d)
}
