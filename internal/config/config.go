package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/vela-quant/backtestcore/pkg/backtest"
)

// Config holds the full configuration surface for a backtest run: ambient
// app settings plus the data/output/metrics/strategy sections that parameterize
// the engine itself.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Data     DataConfig     `mapstructure:"data"`
	Output   OutputConfig   `mapstructure:"output"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Strategy StrategyConfig `mapstructure:"strategy"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// DataConfig points at the historical candle source.
type DataConfig struct {
	CandlesPath       string `mapstructure:"candles_path"` // CSV file: bucket,open,high,low,close,volume
	ResolutionSeconds int64  `mapstructure:"resolution_seconds"`
}

// OutputConfig names where run artifacts are written; empty paths skip
// that artifact.
type OutputConfig struct {
	TextReportPath string `mapstructure:"text_report_path"`
	HTMLReportPath string `mapstructure:"html_report_path"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load reads configuration from file and environment variables and
// validates it before returning.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("backtest")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("BACKTEST")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "backtestcore")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	v.SetDefault("data.resolution_seconds", 60)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9100)

	v.SetDefault("strategy.order_type", "MARKET")
	v.SetDefault("strategy.fee_bps", 10.0)
	v.SetDefault("strategy.slippage_bps", 5.0)
	v.SetDefault("strategy.timeout.mode", string(backtest.TimeoutRegular))
	v.SetDefault("strategy.run.capital_scaler", 1.0)
}
