package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Provider   ProviderConfig   `yaml:"provider" mapstructure:"provider"`
	Poll       PollConfig       `yaml:"poll" mapstructure:"poll"`
	Lists      ListConfig       `yaml:"lists" mapstructure:"lists"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ProviderConfig holds BetterContact API settings. APIKey is only used by the
// CLI commands; HTTP callers always forward their own key.
type ProviderConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey            string  `yaml:"api_key" mapstructure:"api_key"`
	SubmitTimeoutSecs int     `yaml:"submit_timeout_secs" mapstructure:"submit_timeout_secs"`
	PollTimeoutSecs   int     `yaml:"poll_timeout_secs" mapstructure:"poll_timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// PollConfig configures the submit-and-wait loop.
type PollConfig struct {
	BudgetSecs    int `yaml:"budget_secs" mapstructure:"budget_secs"`
	InitialWaitMs int `yaml:"initial_wait_ms" mapstructure:"initial_wait_ms"`
	BaseDelayMs   int `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	DelayStepMs   int `yaml:"delay_step_ms" mapstructure:"delay_step_ms"`
	MaxDelayMs    int `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
	GraceWaitMs   int `yaml:"grace_wait_ms" mapstructure:"grace_wait_ms"`
}

// ListConfig holds the list_name tags that mark which flow created a job.
type ListConfig struct {
	Submit string `yaml:"submit" mapstructure:"submit"`
	Sync   string `yaml:"sync" mapstructure:"sync"`
}

// ResilienceConfig configures the Provider circuit breaker and fetch retries.
type ResilienceConfig struct {
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs    int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
	FetchMaxAttempts    int `yaml:"fetch_max_attempts" mapstructure:"fetch_max_attempts"`
	FetchInitialBackoff int `yaml:"fetch_initial_backoff_ms" mapstructure:"fetch_initial_backoff_ms"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	HandlerTimeoutSecs int      `yaml:"handler_timeout_secs" mapstructure:"handler_timeout_secs"`
	AllowedOrigins     []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Budget returns the poll budget as a duration.
func (p PollConfig) Budget() time.Duration {
	return time.Duration(p.BudgetSecs) * time.Second
}

// HandlerTimeout returns the outer per-request deadline.
func (s ServerConfig) HandlerTimeout() time.Duration {
	return time.Duration(s.HandlerTimeoutSecs) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("provider.base_url", "https://app.bettercontact.rocks")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.submit_timeout_secs", 30)
	v.SetDefault("provider.poll_timeout_secs", 10)
	v.SetDefault("provider.requests_per_second", 5.0)
	v.SetDefault("provider.burst", 10)
	v.SetDefault("poll.budget_secs", 45)
	v.SetDefault("poll.initial_wait_ms", 1000)
	v.SetDefault("poll.base_delay_ms", 2000)
	v.SetDefault("poll.delay_step_ms", 500)
	v.SetDefault("poll.max_delay_ms", 5000)
	v.SetDefault("poll.grace_wait_ms", 2000)
	v.SetDefault("lists.submit", "StackSync Single Lead")
	v.SetDefault("lists.sync", "StackSync Sync Lead")
	v.SetDefault("resilience.breaker_threshold", 5)
	v.SetDefault("resilience.breaker_reset_secs", 30)
	v.SetDefault("resilience.fetch_max_attempts", 2)
	v.SetDefault("resilience.fetch_initial_backoff_ms", 500)
	v.SetDefault("server.port", 2003)
	v.SetDefault("server.handler_timeout_secs", 60)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings needed for the given mode ("serve" or "cli").
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Provider.BaseURL == "" {
		errs = append(errs, "provider.base_url is required")
	}
	if c.Poll.BudgetSecs <= 0 {
		errs = append(errs, "poll.budget_secs must be > 0")
	}
	if c.Poll.MaxDelayMs < c.Poll.BaseDelayMs {
		errs = append(errs, "poll.max_delay_ms must be >= poll.base_delay_ms")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.HandlerTimeoutSecs <= c.Poll.BudgetSecs {
			errs = append(errs, fmt.Sprintf("server.handler_timeout_secs (%d) must exceed poll.budget_secs (%d)",
				c.Server.HandlerTimeoutSecs, c.Poll.BudgetSecs))
		}
	case "cli":
		if c.Provider.APIKey == "" {
			errs = append(errs, "provider.api_key is required (set LEADENRICH_PROVIDER_API_KEY or --api-key)")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
