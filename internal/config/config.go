// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	App        AppConfig             `yaml:"app"`
	Exchange   ExchangeConfig        `yaml:"exchange"`
	Symbols    []SymbolConfig        `yaml:"symbols" validate:"required,min=1"`
	Governors  GovernorConfig        `yaml:"governors"`
	Ledger     LedgerConfig          `yaml:"ledger"`
	EventLog   EventLogConfig        `yaml:"event_log"`
	Snapshot   SnapshotConfig        `yaml:"snapshot"`
	Throttle   ThrottleConfig        `yaml:"throttle"`
	Desks      map[string][]string   `yaml:"desks"` // desk_id -> engine_ids
	System     SystemConfig          `yaml:"system"`
}

// AppConfig contains process-level settings.
type AppConfig struct {
	Mode       string `yaml:"mode" validate:"required,oneof=shadow live"`
	InstanceID string `yaml:"instance_id" validate:"required"`
}

// ExchangeConfig holds credentials and venue selection. TradeMode mirrors the
// <EXCHANGE>_TRADE_MODE environment convention (spot vs futures).
type ExchangeConfig struct {
	Name       string `yaml:"name" validate:"required"`
	TradeMode  string `yaml:"trade_mode" validate:"required,oneof=spot futures"`
	APIKey     Secret `yaml:"api_key" validate:"required"`
	APISecret  Secret `yaml:"api_secret" validate:"required"`
	Passphrase Secret `yaml:"passphrase"`
}

// SymbolConfig is the YAML form of core.Symbol metadata.
type SymbolConfig struct {
	Name             string  `yaml:"name" validate:"required"`
	TickSize         float64 `yaml:"tick_size" validate:"required,min=0"`
	LotSize          float64 `yaml:"lot_size" validate:"required,min=0"`
	MinNotional      float64 `yaml:"min_notional" validate:"required,min=0"`
	PriceDecimals    int32   `yaml:"price_decimals" validate:"min=0,max=8"`
	QuantityDecimals int32   `yaml:"quantity_decimals" validate:"min=0,max=8"`
	MaxPosition      float64 `yaml:"max_position" validate:"required,min=0"`
}

// GovernorConfig holds the thresholds for every layer of the safety cascade.
// app.New does not read EdgeLeakThresholdBps, LatencySensitivityThr,
// DeskPauseTrades or DeskPauseEwmaBps: the Edge and Desk governors use fixed
// thresholds (1.5 bps, 0.002, 5 trades, -5.0 bps).
type GovernorConfig struct {
	MinArmSeconds          int     `yaml:"min_arm_seconds" validate:"min=0"`
	PortfolioNotionalCap   float64 `yaml:"portfolio_notional_cap" validate:"required,min=0"`
	StrategyFloorUSD       float64 `yaml:"strategy_floor_usd"`
	PortfolioDDUSD         float64 `yaml:"portfolio_dd_usd"`
	EdgeLeakThresholdBps   float64 `yaml:"edge_leak_threshold_bps" validate:"min=0"`
	LatencySensitivityThr  float64 `yaml:"latency_sensitivity_threshold" validate:"min=0"`
	DeskPauseTrades        int64   `yaml:"desk_pause_trades" validate:"min=1"`
	DeskPauseEwmaBps       float64 `yaml:"desk_pause_ewma_bps"`
	HardTTLSeconds         float64 `yaml:"hard_ttl_seconds" validate:"min=0"`
	SoftTTLSeconds         float64 `yaml:"soft_ttl_seconds" validate:"min=0"`
	UrgencyThreshold       float64 `yaml:"urgency_threshold" validate:"min=0"`
}

// LedgerConfig configures the Profit Ledger & Cost Model.
type LedgerConfig struct {
	FeeBps                float64 `yaml:"fee_bps" validate:"min=0"`
	SafetyMultiplier       float64 `yaml:"safety_multiplier" validate:"min=1"`
	DefaultVolatilityBpsMs float64 `yaml:"default_volatility_bps_ms" validate:"min=0"`
	KillFloorBps           float64 `yaml:"kill_floor_bps"`
	KillSustainSeconds     int     `yaml:"kill_sustain_seconds" validate:"min=1"`
	KillMinFills           int64   `yaml:"kill_min_fills" validate:"min=1"`
	AutoTuneIntervalCron   string  `yaml:"auto_tune_interval_cron" validate:"required"`
}

// EventLogConfig configures the append-only forensic log.
type EventLogConfig struct {
	Path             string `yaml:"path" validate:"required"`
	MaxSizeBytes     int64  `yaml:"max_size_bytes" validate:"min=1"`
	CompressRotated  bool   `yaml:"compress_rotated"`
}

// SnapshotConfig configures restart-continuity persistence.
type SnapshotConfig struct {
	Path     string `yaml:"path" validate:"required"`
	Interval string `yaml:"interval" validate:"required"`
}

// ThrottleConfig configures the execution throttle's rolling windows.
type ThrottleConfig struct {
	GlobalPerSecond int `yaml:"global_per_second" validate:"min=1"`
	SymbolPerSecond int `yaml:"symbol_per_second" validate:"min=1"`
}

// SystemConfig contains ambient process settings.
type SystemConfig struct {
	LogLevel          string `yaml:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
	FeedCore          int    `yaml:"feed_core"`
	ExecutionCore     int    `yaml:"execution_core"`
	TruthLoopInterval string `yaml:"truth_loop_interval" validate:"required"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate performs comprehensive validation of the configuration. Hand-rolled
// rather than reflection-driven: the validate tags above document intent for
// readers but the checks themselves are explicit, matching the style this
// codebase already uses for config.
func (c *Config) Validate() error {
	var errs []string

	if err := c.validateApp(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateExchange(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateSymbols(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateGovernors(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateEventLog(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateSnapshot(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

func (c *Config) validateApp() error {
	if c.App.Mode != "shadow" && c.App.Mode != "live" {
		return ValidationError{Field: "app.mode", Value: c.App.Mode, Message: "must be 'shadow' or 'live'"}
	}
	if c.App.InstanceID == "" {
		return ValidationError{Field: "app.instance_id", Message: "instance id is required"}
	}
	return nil
}

func (c *Config) validateExchange() error {
	if c.Exchange.Name == "" {
		return ValidationError{Field: "exchange.name", Message: "exchange name is required"}
	}
	if c.App.Mode == "live" {
		if c.Exchange.APIKey == "" {
			return ValidationError{Field: "exchange.api_key", Message: "API key is required in live mode"}
		}
		if c.Exchange.APISecret == "" {
			return ValidationError{Field: "exchange.api_secret", Message: "API secret is required in live mode"}
		}
	}
	return nil
}

func (c *Config) validateSymbols() error {
	if len(c.Symbols) == 0 {
		return ValidationError{Field: "symbols", Message: "at least one symbol must be configured"}
	}
	for _, s := range c.Symbols {
		if s.Name == "" {
			return ValidationError{Field: "symbols[].name", Message: "symbol name is required"}
		}
		if s.MaxPosition <= 0 {
			return ValidationError{Field: "symbols[].max_position", Value: s.MaxPosition, Message: "must be positive"}
		}
	}
	return nil
}

func (c *Config) validateGovernors() error {
	if c.Governors.PortfolioNotionalCap <= 0 {
		return ValidationError{Field: "governors.portfolio_notional_cap", Message: "must be positive"}
	}
	return nil
}

func (c *Config) validateEventLog() error {
	if c.EventLog.Path == "" {
		return ValidationError{Field: "event_log.path", Message: "path is required"}
	}
	if c.EventLog.MaxSizeBytes <= 0 {
		return ValidationError{Field: "event_log.max_size_bytes", Message: "must be positive"}
	}
	return nil
}

func (c *Config) validateSnapshot() error {
	if c.Snapshot.Path == "" {
		return ValidationError{Field: "snapshot.path", Message: "path is required"}
	}
	return nil
}

// String returns a string representation of the configuration (with secrets
// masked automatically via config.Secret's own String()/MarshalYAML).
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}

// DefaultConfig returns a conservative default configuration, useful for tests
// and for generating a starter config file.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{Mode: "shadow", InstanceID: "chimera-dev"},
		Exchange: ExchangeConfig{
			Name:      "mock",
			TradeMode: "futures",
		},
		Symbols: []SymbolConfig{
			{Name: "BTCUSDT", TickSize: 0.01, LotSize: 0.001, MinNotional: 5, PriceDecimals: 2, QuantityDecimals: 3, MaxPosition: 0.05},
		},
		Governors: GovernorConfig{
			MinArmSeconds:         600,
			PortfolioNotionalCap:  5000,
			StrategyFloorUSD:      -10.0,
			PortfolioDDUSD:        -500.0,
			EdgeLeakThresholdBps:  1.5,
			LatencySensitivityThr: 0.002,
			DeskPauseTrades:       5,
			DeskPauseEwmaBps:      -5.0,
			HardTTLSeconds:        5,
			SoftTTLSeconds:        1,
			UrgencyThreshold:      12.0,
		},
		Ledger: LedgerConfig{
			FeeBps:                 10.0,
			SafetyMultiplier:       1.5,
			DefaultVolatilityBpsMs: 0.5,
			KillFloorBps:           -3.0,
			KillSustainSeconds:     180,
			KillMinFills:           10,
			AutoTuneIntervalCron:   "@every 5m",
		},
		EventLog: EventLogConfig{
			Path:            "data/events.bin",
			MaxSizeBytes:    1 << 30,
			CompressRotated: true,
		},
		Snapshot: SnapshotConfig{
			Path:     "data/snapshot.bin",
			Interval: "@every 30s",
		},
		Throttle: ThrottleConfig{GlobalPerSecond: 20, SymbolPerSecond: 5},
		System: SystemConfig{
			LogLevel:          "INFO",
			FeedCore:          0,
			ExecutionCore:     1,
			TruthLoopInterval: "3s",
		},
	}
}
