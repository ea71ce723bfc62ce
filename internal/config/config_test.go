package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
environment:
  log_level: debug
storage:
  path: ledger.db
strategy:
  dte_target: 45
  selection: delta
  call_delta_ceiling: 0.35
  put_delta_ceiling: 0.35
  entry:
    max_open_trades: 3
    trade_delay_days: 5
  exit:
    profit_take_pct: 50
    stop_loss_pct: 150
    check_adjustments: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Strategy.DTETarget != 45 {
		t.Errorf("DTETarget = %v, want 45", cfg.Strategy.DTETarget)
	}
	if cfg.Strategy.Selection != "delta" {
		t.Errorf("Selection = %q, want delta", cfg.Strategy.Selection)
	}
	if cfg.Strategy.Entry.TradeDelayDays != 5 {
		t.Errorf("TradeDelayDays = %d, want 5", cfg.Strategy.Entry.TradeDelayDays)
	}
	if !cfg.Strategy.Exit.CheckAdjustments {
		t.Error("CheckAdjustments = false, want true")
	}
	// Unset sections get defaults.
	if cfg.MarketData.Timeout != "10s" {
		t.Errorf("MarketData.Timeout = %q, want default 10s", cfg.MarketData.Timeout)
	}
	if cfg.Dashboard.Addr != ":8080" {
		t.Errorf("Dashboard.Addr = %q, want default :8080", cfg.Dashboard.Addr)
	}
}

func TestLoad_InvalidPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Error("Expected error when loading nonexistent config file, got nil")
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
storage:
  path: ledger.db
strateggy:
  dte_target: 45
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "parsing config") {
		t.Errorf("Load() with unknown key: err = %v, want parse error", err)
	}
}

func TestLoad_ExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("STRADDLER_DB", "/var/lib/straddler/ledger.db")
	path := writeConfig(t, `
storage:
  path: ${STRADDLER_DB}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Storage.Path != "/var/lib/straddler/ledger.db" {
		t.Errorf("Storage.Path = %q, env var not expanded", cfg.Storage.Path)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Strategy.DTETarget != 30 {
		t.Errorf("DTETarget = %v, want 30", cfg.Strategy.DTETarget)
	}
	if cfg.Strategy.Exit.ProfitTakePct != 30 || cfg.Strategy.Exit.StopLossPct != 100 {
		t.Errorf("exit defaults = %v/%v, want 30/100",
			cfg.Strategy.Exit.ProfitTakePct, cfg.Strategy.Exit.StopLossPct)
	}
	if cfg.Strategy.Entry.MaxOpenTrades != 1 {
		t.Errorf("MaxOpenTrades = %d, want 1", cfg.Strategy.Entry.MaxOpenTrades)
	}

	// The storage path stays empty until the caller supplies one.
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() on pathless default config: want error, got nil")
	}
	cfg.Storage.Path = "ledger.db"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() after setting path: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing storage path",
			mutate:  func(c *Config) { c.Storage.Path = "" },
			wantErr: "storage.path",
		},
		{
			name:    "non-positive dte target",
			mutate:  func(c *Config) { c.Strategy.DTETarget = -1 },
			wantErr: "dte_target",
		},
		{
			name:    "unknown selection policy",
			mutate:  func(c *Config) { c.Strategy.Selection = "cheapest" },
			wantErr: "selection",
		},
		{
			name:    "call ceiling above one",
			mutate:  func(c *Config) { c.Strategy.CallDeltaCeiling = 1.5 },
			wantErr: "call_delta_ceiling",
		},
		{
			name:    "put ceiling non-positive",
			mutate:  func(c *Config) { c.Strategy.PutDeltaCeiling = -0.3 },
			wantErr: "put_delta_ceiling",
		},
		{
			name:    "zero max open trades",
			mutate:  func(c *Config) { c.Strategy.Entry.MaxOpenTrades = 0 },
			wantErr: "max_open_trades",
		},
		{
			name:    "negative trade delay",
			mutate:  func(c *Config) { c.Strategy.Entry.TradeDelayDays = -1 },
			wantErr: "trade_delay_days",
		},
		{
			name:    "profit take above 100",
			mutate:  func(c *Config) { c.Strategy.Exit.ProfitTakePct = 101 },
			wantErr: "profit_take_pct",
		},
		{
			name:    "negative stop loss",
			mutate:  func(c *Config) { c.Strategy.Exit.StopLossPct = -5 },
			wantErr: "stop_loss_pct",
		},
		{
			name: "regime enabled without threshold",
			mutate: func(c *Config) {
				c.Regime.Enabled = true
				c.Regime.Threshold = -1
			},
			wantErr: "regime.threshold",
		},
		{
			name: "telegram token without chat id",
			mutate: func(c *Config) {
				c.Notify.TelegramToken = "123:abc"
				c.Notify.TelegramChatID = 0
			},
			wantErr: "telegram_chat_id",
		},
		{
			name:    "negative notify cadence",
			mutate:  func(c *Config) { c.Notify.NotifyEvery = -2 },
			wantErr: "notify_every",
		},
		{
			name:    "unparseable marketdata timeout",
			mutate:  func(c *Config) { c.MarketData.Timeout = "soon" },
			wantErr: "marketdata.timeout",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Environment.LogLevel = "loud" },
			wantErr: "log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Storage.Path = "ledger.db"
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	cfg := Default()
	cfg.MarketData.Timeout = "3s"
	if got := cfg.RequestTimeout(); got != 3*time.Second {
		t.Errorf("RequestTimeout() = %v, want 3s", got)
	}

	cfg.MarketData.Timeout = "garbage"
	if got := cfg.RequestTimeout(); got != 10*time.Second {
		t.Errorf("RequestTimeout() fallback = %v, want 10s", got)
	}
}

func TestNotifyEnabled(t *testing.T) {
	cfg := Default()
	if cfg.NotifyEnabled() {
		t.Error("NotifyEnabled() = true on default config")
	}
	cfg.Notify.TelegramToken = "123:abc"
	cfg.Notify.TelegramChatID = 42
	if !cfg.NotifyEnabled() {
		t.Error("NotifyEnabled() = false with token and chat id set")
	}
}
