// Package config provides configuration management for the backtest tools.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Strategy Defaults
const (
	// defaultDTETarget is used when strategy.dte_target is unset
	defaultDTETarget = 30
	// defaultProfitTakePct is used when strategy.exit.profit_take_pct is unset
	defaultProfitTakePct = 30
	// defaultStopLossPct is used when strategy.exit.stop_loss_pct is unset
	defaultStopLossPct = 100
	// defaultMaxOpenTrades is used when strategy.entry.max_open_trades is unset
	defaultMaxOpenTrades = 1
	// defaultDeltaCeiling bounds either leg's |delta| for the delta policy
	defaultDeltaCeiling = 0.5
	// defaultRegimeSymbol is the volatility index used by the regime filter
	defaultRegimeSymbol = "VIX"
	// defaultRegimeThreshold is the close level at or above which entries pause
	defaultRegimeThreshold = 25.0
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Storage     StorageConfig     `yaml:"storage"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	Regime      RegimeConfig      `yaml:"regime"`
	Notify      NotifyConfig      `yaml:"notify"`
	MarketData  MarketDataConfig  `yaml:"marketdata"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// StorageConfig defines where the ledger database lives.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// StrategyConfig defines the backtested strategy parameters.
type StrategyConfig struct {
	// DTETarget is the minimum days-to-expiry a new trade's expiration must
	// have on the open date. It also namespaces the ledger tables.
	DTETarget float64 `yaml:"dte_target"`
	// Selection picks the strike policy: "nearest" (closest to spot) or
	// "delta" (per-leg delta ceilings).
	Selection        string      `yaml:"selection"`
	CallDeltaCeiling float64     `yaml:"call_delta_ceiling"`
	PutDeltaCeiling  float64     `yaml:"put_delta_ceiling"`
	Entry            EntryConfig `yaml:"entry"`
	Exit             ExitConfig  `yaml:"exit"`
	// RecordLegs writes per-leg audit rows alongside the history table.
	RecordLegs bool `yaml:"record_legs"`
}

// EntryConfig defines entry constraints for opening new trades.
type EntryConfig struct {
	MaxOpenTrades  int `yaml:"max_open_trades"`
	TradeDelayDays int `yaml:"trade_delay_days"`
}

// ExitConfig defines exit criteria for closing trades.
type ExitConfig struct {
	ProfitTakePct float64 `yaml:"profit_take_pct"`
	StopLossPct   float64 `yaml:"stop_loss_pct"`
	// CheckAdjustments enables the leg-imbalance exit rule.
	CheckAdjustments bool `yaml:"check_adjustments"`
	// CloseAtExpiry holds every trade to its expiration date, disabling the
	// profit-take, stop-loss and adjustment rules.
	CloseAtExpiry bool `yaml:"close_at_expiry"`
}

// RegimeConfig defines the optional high-volatility entry filter.
type RegimeConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Symbol    string  `yaml:"symbol"`
	Threshold float64 `yaml:"threshold"`
}

// NotifyConfig defines optional Telegram progress notification.
type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
	// NotifyEvery sends a progress message after every N processed dates.
	// Zero sends only the completion message.
	NotifyEvery int `yaml:"notify_every"`
}

// MarketDataConfig defines the daily-bar download endpoint.
type MarketDataConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"` // e.g., "10s"
}

// DashboardConfig defines the read-only ledger API server.
type DashboardConfig struct {
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"`
}

// Default returns a configuration with every default applied. The storage
// path is deliberately left empty: the caller must supply it (flag or file)
// before Validate passes.
func Default() *Config {
	c := &Config{}
	c.normalize()
	return c
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

	config.normalize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	// Environment validation
	switch c.Environment.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("environment.log_level must be one of debug|info|warn|error")
	}

	// Storage validation
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}

	// Strategy validation
	if c.Strategy.DTETarget <= 0 {
		return fmt.Errorf("strategy.dte_target must be > 0")
	}
	if c.Strategy.Selection != "nearest" && c.Strategy.Selection != "delta" {
		return fmt.Errorf("strategy.selection must be 'nearest' or 'delta'")
	}
	if c.Strategy.CallDeltaCeiling <= 0 || c.Strategy.CallDeltaCeiling > 1 {
		return fmt.Errorf("strategy.call_delta_ceiling must be in (0,1]")
	}
	if c.Strategy.PutDeltaCeiling <= 0 || c.Strategy.PutDeltaCeiling > 1 {
		return fmt.Errorf("strategy.put_delta_ceiling must be in (0,1]")
	}
	if c.Strategy.Entry.MaxOpenTrades <= 0 {
		return fmt.Errorf("strategy.entry.max_open_trades must be > 0")
	}
	if c.Strategy.Entry.TradeDelayDays < 0 {
		return fmt.Errorf("strategy.entry.trade_delay_days must be >= 0")
	}

	// Exit configuration validation. A short straddle's premium cannot fall
	// below zero, so a profit-take target above 100% would never trigger.
	if c.Strategy.Exit.ProfitTakePct <= 0 || c.Strategy.Exit.ProfitTakePct > 100 {
		return fmt.Errorf("strategy.exit.profit_take_pct must be in (0,100]")
	}
	if c.Strategy.Exit.StopLossPct <= 0 {
		return fmt.Errorf("strategy.exit.stop_loss_pct must be > 0")
	}

	// Regime validation
	if c.Regime.Enabled {
		if c.Regime.Symbol == "" {
			return fmt.Errorf("regime.symbol is required when regime.enabled")
		}
		if c.Regime.Threshold <= 0 {
			return fmt.Errorf("regime.threshold must be > 0 when regime.enabled")
		}
	}

	// Notify validation
	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == 0 {
		return fmt.Errorf("notify.telegram_chat_id is required when notify.telegram_token is set")
	}
	if c.Notify.NotifyEvery < 0 {
		return fmt.Errorf("notify.notify_every must be >= 0")
	}

	// Market data validation
	if _, err := time.ParseDuration(c.MarketData.Timeout); err != nil {
		return fmt.Errorf("marketdata.timeout invalid: %w", err)
	}

	// Dashboard validation
	if c.Dashboard.Addr == "" {
		return fmt.Errorf("dashboard.addr is required")
	}

	return nil
}

// RequestTimeout returns the configured market data timeout duration.
func (c *Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.MarketData.Timeout)
	if err != nil {
		return 10 * time.Second // default
	}
	return d
}

// NotifyEnabled reports whether a Telegram notifier is configured.
func (c *Config) NotifyEnabled() bool {
	return c.Notify.TelegramToken != "" && c.Notify.TelegramChatID != 0
}

// normalize sets default values for unset fields
func (c *Config) normalize() {
	if c.Environment.LogLevel == "" {
		c.Environment.LogLevel = "info"
	}
	if c.Strategy.DTETarget == 0 {
		c.Strategy.DTETarget = defaultDTETarget
	}
	if c.Strategy.Selection == "" {
		c.Strategy.Selection = "nearest"
	}
	if c.Strategy.CallDeltaCeiling == 0 {
		c.Strategy.CallDeltaCeiling = defaultDeltaCeiling
	}
	if c.Strategy.PutDeltaCeiling == 0 {
		c.Strategy.PutDeltaCeiling = defaultDeltaCeiling
	}
	if c.Strategy.Entry.MaxOpenTrades == 0 {
		c.Strategy.Entry.MaxOpenTrades = defaultMaxOpenTrades
	}
	if c.Strategy.Exit.ProfitTakePct == 0 {
		c.Strategy.Exit.ProfitTakePct = defaultProfitTakePct
	}
	if c.Strategy.Exit.StopLossPct == 0 {
		c.Strategy.Exit.StopLossPct = defaultStopLossPct
	}
	if c.Regime.Symbol == "" {
		c.Regime.Symbol = defaultRegimeSymbol
	}
	if c.Regime.Threshold == 0 {
		c.Regime.Threshold = defaultRegimeThreshold
	}
	if c.MarketData.BaseURL == "" {
		c.MarketData.BaseURL = "https://stooq.com"
	}
	if c.MarketData.Timeout == "" {
		c.MarketData.Timeout = "10s"
	}
	if c.Dashboard.Addr == "" {
		c.Dashboard.Addr = ":8080"
	}
}
