// Package config provides configuration management for the trading bot.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	// defaultCheckIntervalMinutes is used when schedule.check_interval_minutes is unset
	defaultCheckIntervalMinutes = 15
	// defaultMaxSlippagePct is used when risk.max_slippage_pct is unset
	defaultMaxSlippagePct = 2.0
	// defaultToleranceBandPct is used when risk.price_tolerance_band_pct is unset
	defaultToleranceBandPct = 1.0
	// defaultFeeReserve is used when risk.fee_reserve_amount is unset
	defaultFeeReserve = 0.04
	// defaultRetryAttempts is used when retry.max_attempts is unset
	defaultRetryAttempts = 3
	// defaultRetryBackoffSeconds is used when retry.backoff_seconds is unset
	defaultRetryBackoffSeconds = 10
	// defaultGatewayTimeout is used when gateway.timeout is unset
	defaultGatewayTimeout = "30s"
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Operator    OperatorConfig    `yaml:"operator"`
	Gateway     GatewayConfig     `yaml:"gateway"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	Risk        RiskConfig        `yaml:"risk"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Retry       RetryConfig       `yaml:"retry"`
	Storage     StorageConfig     `yaml:"storage"`
	Status      StatusConfig      `yaml:"status"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// OperatorConfig identifies whose state this process owns. The name
// keys the durable state file.
type OperatorConfig struct {
	Name string `yaml:"name"`
}

// GatewayConfig defines the market gateway API settings.
type GatewayConfig struct {
	Endpoint  string `yaml:"endpoint"`
	APIKey    string `yaml:"api_key"`
	Netuid    int    `yaml:"netuid"`
	Validator string `yaml:"validator"`
	Timeout   string `yaml:"timeout"`
}

// StrategyConfig defines the micro-grid strategy parameters.
type StrategyConfig struct {
	// PurchaseAmount is the fixed capital committed per position.
	PurchaseAmount float64 `yaml:"purchase_amount"`
	// PurchaseIntervalHours gates how often a new position may open.
	PurchaseIntervalHours float64 `yaml:"purchase_interval_hours"`
	// ProfitTargetFraction sets each position's sell target
	// (target = entry * (1 + fraction)).
	ProfitTargetFraction float64 `yaml:"profit_target_fraction"`
	// InvestmentCap is the ceiling on total committed capital.
	InvestmentCap float64 `yaml:"investment_cap"`
	// CapToleranceFraction sizes the hysteresis band as a fraction of
	// the cap.
	CapToleranceFraction float64 `yaml:"cap_tolerance_fraction"`
	// MaxConcurrentPositions limits simultaneously active positions.
	MaxConcurrentPositions int `yaml:"max_concurrent_positions"`
	// MaxEntryPrice skips purchases above this price. Zero disables.
	MaxEntryPrice float64 `yaml:"max_entry_price"`
	// StopLossFraction liquidates a position once price drops to
	// entry * (1 - fraction). Zero disables.
	StopLossFraction float64 `yaml:"stop_loss_fraction"`
}

// RiskConfig defines trade-gating parameters.
type RiskConfig struct {
	MaxSlippagePct        float64 `yaml:"max_slippage_pct"`
	PriceToleranceBandPct float64 `yaml:"price_tolerance_band_pct"`
	FeeReserveAmount      float64 `yaml:"fee_reserve_amount"`
}

// ScheduleConfig defines the cycle cadence.
type ScheduleConfig struct {
	CheckIntervalMinutes int `yaml:"check_interval_minutes"`
}

// RetryConfig bounds gateway call retries.
type RetryConfig struct {
	MaxAttempts    int `yaml:"max_attempts"`
	BackoffSeconds int `yaml:"backoff_seconds"`
}

// StorageConfig defines where durable state files live.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// StatusConfig defines the optional JSON status endpoint.
type StatusConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	c.normalize()

	// Operator validation
	if strings.TrimSpace(c.Operator.Name) == "" {
		return fmt.Errorf("operator.name is required")
	}

	// Gateway validation
	if c.Gateway.Endpoint == "" {
		return fmt.Errorf("gateway.endpoint is required")
	}
	if c.Gateway.Netuid <= 0 {
		return fmt.Errorf("gateway.netuid must be > 0")
	}
	if c.Gateway.Validator == "" {
		return fmt.Errorf("gateway.validator is required")
	}
	if _, err := time.ParseDuration(c.Gateway.Timeout); err != nil {
		return fmt.Errorf("gateway.timeout invalid: %w", err)
	}

	// Strategy validation
	if c.Strategy.PurchaseAmount <= 0 {
		return fmt.Errorf("strategy.purchase_amount must be > 0")
	}
	if c.Strategy.PurchaseIntervalHours <= 0 {
		return fmt.Errorf("strategy.purchase_interval_hours must be > 0")
	}
	if c.Strategy.ProfitTargetFraction <= 0 || c.Strategy.ProfitTargetFraction >= 1 {
		return fmt.Errorf("strategy.profit_target_fraction must be in (0,1)")
	}
	if c.Strategy.InvestmentCap <= 0 {
		return fmt.Errorf("strategy.investment_cap must be > 0")
	}
	if c.Strategy.InvestmentCap < c.Strategy.PurchaseAmount {
		return fmt.Errorf("strategy.investment_cap (%.4f) must be >= strategy.purchase_amount (%.4f)",
			c.Strategy.InvestmentCap, c.Strategy.PurchaseAmount)
	}
	if c.Strategy.CapToleranceFraction < 0 || c.Strategy.CapToleranceFraction >= 1 {
		return fmt.Errorf("strategy.cap_tolerance_fraction must be in [0,1)")
	}
	if c.Strategy.MaxConcurrentPositions <= 0 {
		return fmt.Errorf("strategy.max_concurrent_positions must be > 0")
	}
	if c.Strategy.MaxEntryPrice < 0 {
		return fmt.Errorf("strategy.max_entry_price must be >= 0 (0 disables)")
	}
	if c.Strategy.StopLossFraction < 0 || c.Strategy.StopLossFraction >= 1 {
		return fmt.Errorf("strategy.stop_loss_fraction must be in [0,1) (0 disables)")
	}

	// Risk validation
	if c.Risk.MaxSlippagePct <= 0 {
		return fmt.Errorf("risk.max_slippage_pct must be > 0")
	}
	if c.Risk.PriceToleranceBandPct <= 0 {
		return fmt.Errorf("risk.price_tolerance_band_pct must be > 0")
	}
	if c.Risk.FeeReserveAmount < 0 {
		return fmt.Errorf("risk.fee_reserve_amount must be >= 0")
	}

	// Schedule validation
	if c.Schedule.CheckIntervalMinutes <= 0 {
		return fmt.Errorf("schedule.check_interval_minutes must be > 0")
	}

	// Retry validation
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	if c.Retry.BackoffSeconds <= 0 {
		return fmt.Errorf("retry.backoff_seconds must be > 0")
	}

	// Storage validation
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}

	// Status validation
	if c.Status.Enabled && c.Status.ListenAddr == "" {
		return fmt.Errorf("status.listen_addr is required when status.enabled")
	}

	return nil
}

// normalize fills defaults for optional fields.
func (c *Config) normalize() {
	if c.Environment.LogLevel == "" {
		c.Environment.LogLevel = "info"
	}
	if c.Gateway.Timeout == "" {
		c.Gateway.Timeout = defaultGatewayTimeout
	}
	if c.Risk.MaxSlippagePct == 0 {
		c.Risk.MaxSlippagePct = defaultMaxSlippagePct
	}
	if c.Risk.PriceToleranceBandPct == 0 {
		c.Risk.PriceToleranceBandPct = defaultToleranceBandPct
	}
	if c.Risk.FeeReserveAmount == 0 {
		c.Risk.FeeReserveAmount = defaultFeeReserve
	}
	if c.Schedule.CheckIntervalMinutes == 0 {
		c.Schedule.CheckIntervalMinutes = defaultCheckIntervalMinutes
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = defaultRetryAttempts
	}
	if c.Retry.BackoffSeconds == 0 {
		c.Retry.BackoffSeconds = defaultRetryBackoffSeconds
	}
}

// CapTolerance returns the absolute hysteresis band around the cap.
func (c *Config) CapTolerance() float64 {
	return c.Strategy.InvestmentCap * c.Strategy.CapToleranceFraction
}

// GetCheckInterval returns the cycle cadence as a duration.
func (c *Config) GetCheckInterval() time.Duration {
	return time.Duration(c.Schedule.CheckIntervalMinutes) * time.Minute
}

// GetPurchaseInterval returns the minimum spacing between opens.
func (c *Config) GetPurchaseInterval() time.Duration {
	return time.Duration(c.Strategy.PurchaseIntervalHours * float64(time.Hour))
}

// GetRetryBackoff returns the fixed wait between retry attempts.
func (c *Config) GetRetryBackoff() time.Duration {
	return time.Duration(c.Retry.BackoffSeconds) * time.Second
}

// GetGatewayTimeout returns the per-request gateway timeout.
func (c *Config) GetGatewayTimeout() time.Duration {
	d, err := time.ParseDuration(c.Gateway.Timeout)
	if err != nil {
		return 30 * time.Second // default
	}
	return d
}
