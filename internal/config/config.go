// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string
	Env         string
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Market describes the futures ticker feed the simulator marks prices from.
type Market struct {
	Provider string
	Symbols  []string
	Quote    string
	BaseURL  string `yaml:"base_url"`
	WSURL    string `yaml:"ws_url"`
}

// Analytics configures the derivatives sentiment feed. The API key is
// read from the environment, never from this file.
type Analytics struct {
	Provider     string
	BaseURL      string `yaml:"base_url"`
	IntervalSecs int    `yaml:"interval_secs"`
}

// Sim tunes the in-memory signal-driven simulation. Entry threshold and
// TP/SL constants differ across deployments; fields left zero fall back
// to the engine defaults.
type Sim struct {
	StartingBalance float64 `yaml:"starting_balance"`
	EntryThreshold  float64 `yaml:"entry_threshold"`
	TakeProfitPct   float64 `yaml:"take_profit_pct"`
	StopLossPct     float64 `yaml:"stop_loss_pct"`
	MaxHoldSecs     int     `yaml:"max_hold_secs"`
	MinTradeUSD     float64 `yaml:"min_trade_usd"`
	MaxTradeUSD     float64 `yaml:"max_trade_usd"`
	MaxPositions    int     `yaml:"max_positions"`
	ClosedCap       int     `yaml:"closed_cap"`
	EquityCap       int     `yaml:"equity_cap"`
	PriceSecs       int     `yaml:"price_secs"`
	EvalSecs        int     `yaml:"eval_secs"`
	TradesPath      string  `yaml:"trades_path"`
}

// Live tunes the persisted random-walk variant and its sinks.
type Live struct {
	StartingBalance float64  `yaml:"starting_balance"`
	Pairs           []string `yaml:"pairs"`
	MaxPositions    int      `yaml:"max_positions"`
	SizeMinUSD      float64  `yaml:"size_min_usd"`
	SizeMaxUSD      float64  `yaml:"size_max_usd"`
	LeverageMin     int      `yaml:"leverage_min"`
	LeverageMax     int      `yaml:"leverage_max"`
	WinRate         float64  `yaml:"win_rate"`
	MarkSecs        int      `yaml:"mark_secs"`
	TradeSecs       int      `yaml:"trade_secs"`
	RedisAddr       string   `yaml:"redis_addr"`
	RedisDB         int      `yaml:"redis_db"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App       `yaml:"app"`
	Market    Market    `yaml:"market"`
	Analytics Analytics `yaml:"analytics"`
	Sim       Sim       `yaml:"sim"`
	Live      Live      `yaml:"live"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
