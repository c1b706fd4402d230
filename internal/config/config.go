package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"fintrack/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Rates     RatesConfig     `mapstructure:"rates"`
	Report    ReportConfig    `mapstructure:"report"`
	Refresher RefresherConfig `mapstructure:"refresher"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// ProviderConfig captures exchange-rate API connectivity.
type ProviderConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// RatesConfig governs resolution policy.
type RatesConfig struct {
	PivotCurrency string        `mapstructure:"pivot_currency"`
	MaxSampleAge  time.Duration `mapstructure:"max_sample_age"`
}

// ReportConfig sets report generation defaults.
type ReportConfig struct {
	DefaultCurrency string `mapstructure:"default_currency"`
	MaxChartPoints  int    `mapstructure:"max_chart_points"`
}

// RefresherConfig tunes the background refresh cadence.
type RefresherConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FINTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fintrack")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("provider.base_url", "https://v6.exchangerate-api.com/v6")
	v.SetDefault("provider.request_timeout", "10s")
	v.SetDefault("provider.user_agent", "fintrack/1.0")

	v.SetDefault("rates.pivot_currency", "USD")
	v.SetDefault("rates.max_sample_age", "24h")

	v.SetDefault("report.default_currency", "USD")
	v.SetDefault("report.max_chart_points", 240)

	v.SetDefault("refresher.interval", "24h")
	v.SetDefault("refresher.align_to_bucket", false)
	v.SetDefault("refresher.startup_delay", "0s")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Rates.PivotCurrency == "" {
		return fmt.Errorf("rates.pivot_currency is required")
	}
	if len(c.Rates.PivotCurrency) != 3 {
		return fmt.Errorf("rates.pivot_currency must be a 3-letter code")
	}
	if c.Rates.MaxSampleAge <= 0 {
		return fmt.Errorf("rates.max_sample_age must be greater than zero")
	}
	if c.Refresher.Interval <= 0 {
		return fmt.Errorf("refresher.interval must be greater than zero")
	}
	if c.Report.MaxChartPoints <= 0 {
		return fmt.Errorf("report.max_chart_points must be greater than zero")
	}
	if c.Report.DefaultCurrency == "" {
		return fmt.Errorf("report.default_currency is required")
	}
	return nil
}

// ResolveTargetCurrency returns the CLI override or the configured default.
func (c *Config) ResolveTargetCurrency(override string) string {
	if override != "" {
		return strings.ToUpper(override)
	}
	return strings.ToUpper(c.Report.DefaultCurrency)
}
