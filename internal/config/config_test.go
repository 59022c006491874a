package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://app.bettercontact.rocks", cfg.Provider.BaseURL)
	assert.Empty(t, cfg.Provider.APIKey)
	assert.Equal(t, 30, cfg.Provider.SubmitTimeoutSecs)
	assert.Equal(t, 10, cfg.Provider.PollTimeoutSecs)
	assert.Equal(t, 45, cfg.Poll.BudgetSecs)
	assert.Equal(t, 45*time.Second, cfg.Poll.Budget())
	assert.Equal(t, 1000, cfg.Poll.InitialWaitMs)
	assert.Equal(t, 2000, cfg.Poll.BaseDelayMs)
	assert.Equal(t, 500, cfg.Poll.DelayStepMs)
	assert.Equal(t, 5000, cfg.Poll.MaxDelayMs)
	assert.Equal(t, 2000, cfg.Poll.GraceWaitMs)
	assert.Equal(t, "StackSync Single Lead", cfg.Lists.Submit)
	assert.Equal(t, "StackSync Sync Lead", cfg.Lists.Sync)
	assert.Equal(t, 5, cfg.Resilience.BreakerThreshold)
	assert.Equal(t, 2, cfg.Resilience.FetchMaxAttempts)
	assert.Equal(t, 2003, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.HandlerTimeout())
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
provider:
  base_url: http://localhost:9999
log:
  level: debug
  format: console
server:
  port: 9090
poll:
  budget_secs: 20
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999", cfg.Provider.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Poll.BudgetSecs)
	// Defaults still apply for unset values
	assert.Equal(t, 5000, cfg.Poll.MaxDelayMs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
provider:
  api_key: from-file
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LEADENRICH_PROVIDER_API_KEY", "from-env")
	t.Setenv("LEADENRICH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "from-env", cfg.Provider.APIKey)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("LEADENRICH_SERVER_PORT", "3000")
	t.Setenv("LEADENRICH_POLL_BUDGET_SECS", "30")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Poll.BudgetSecs)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Provider.BaseURL = "https://app.bettercontact.rocks"
	cfg.Poll.BudgetSecs = 45
	cfg.Poll.BaseDelayMs = 2000
	cfg.Poll.MaxDelayMs = 5000
	cfg.Server.Port = 2003
	cfg.Server.HandlerTimeoutSecs = 60
	return cfg
}

func TestValidateServe_Valid(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_HandlerTimeoutMustExceedBudget(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.HandlerTimeoutSecs = 45

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "handler_timeout_secs (45) must exceed poll.budget_secs (45)")
}

func TestValidateCLI_RequiresAPIKey(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("cli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "provider.api_key is required")

	cfg.Provider.APIKey = "k"
	assert.NoError(t, cfg.Validate("cli"))
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validDefaults()
	cfg.Provider.BaseURL = ""
	cfg.Poll.BudgetSecs = 0
	cfg.Poll.MaxDelayMs = 1000

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider.base_url is required")
	assert.Contains(t, err.Error(), "poll.budget_secs must be > 0")
	assert.Contains(t, err.Error(), "poll.max_delay_ms must be >= poll.base_delay_ms")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
