// Package configs loads the YAML configuration and .env secrets the
// detector process is wired from, per spec.md §6/§9.
package configs

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/arbitragedex/arbitragedex/cost"
	"github.com/arbitragedex/arbitragedex/monitor"
	"github.com/arbitragedex/arbitragedex/opportunity"
	"github.com/arbitragedex/arbitragedex/optimizer"
	"github.com/arbitragedex/arbitragedex/pool"
)

// PoolYAML is one entry of the `pools` list in config.yml.
type PoolYAML struct {
	Label       string `yaml:"label"`
	Protocol    string `yaml:"protocol"`
	Address     string `yaml:"address"`
	Token0      string `yaml:"token0"`
	Token1      string `yaml:"token1"`
	Decimals0   int    `yaml:"decimals0"`
	Decimals1   int    `yaml:"decimals1"`
	FeeTier     *int   `yaml:"feeTier"`
	InvertPrice bool   `yaml:"invertPrice"`
}

// MonitorYAML is the `monitor` section of config.yml, per spec.md §6.
// The tunables that carry a nonzero default (DeltaThresholdPercent,
// PollIntervalMs, MaxRetries) are pointers so an omitted YAML key can
// be told apart from an explicit zero.
type MonitorYAML struct {
	DeltaThresholdPercent *float64 `yaml:"deltaThresholdPercent"`
	PollIntervalMs        *int     `yaml:"pollIntervalMs"`
	MaxRetries            *int     `yaml:"maxRetries"`
	UseMulticall          *bool    `yaml:"useMulticall"`
	MinReserveWETH        string   `yaml:"minReserveWeth"`
	WETHAddress           string   `yaml:"wethAddress"`
}

// DetectorYAML is the `detector` section of config.yml. GasPriceGwei
// and MaxSlippage are pointers for the same reason: spec.md §8
// Scenario 3 configures both to an explicit 0 to isolate gross
// profit, which a plain float64 could not distinguish from "omitted".
type DetectorYAML struct {
	MinProfitThreshold  float64            `yaml:"minProfitThreshold"`
	MaxSlippage         *float64           `yaml:"maxSlippage"`
	DefaultInputAmount  float64            `yaml:"defaultInputAmount"`
	GasPriceGwei        *float64           `yaml:"gasPriceGwei"`
	GasPerSwap          uint64             `yaml:"gasPerSwap"`
	ReserveSafetyFactor float64            `yaml:"reserveSafetyFactor"`
	FlashLoanFees       map[string]float64 `yaml:"flashLoanFees"`
}

// OptimizerYAML is the `optimizer` section of config.yml. Every field
// defaults to a nonzero value in optimizer.Params.resolve, so each is
// a pointer here too.
type OptimizerYAML struct {
	MaxIterations        *int     `yaml:"maxIterations"`
	TimeoutMs            *int64   `yaml:"timeoutMs"`
	FallbackAmount       *float64 `yaml:"fallbackAmount"`
	MinAmount            *float64 `yaml:"minAmount"`
	MaxAmount            *float64 `yaml:"maxAmount"`
	ConvergenceThreshold *float64 `yaml:"convergenceThreshold"`
}

// MetricsYAML is the `metrics` section of config.yml.
type MetricsYAML struct {
	ListenAddr string `yaml:"listenAddr"`
}

// SinkYAML is the `sink` section of config.yml.
type SinkYAML struct {
	Driver string `yaml:"driver"` // "mysql" or "" (no-op)
	DSN    string `yaml:"dsn"`
}

// Config is the root of config.yml.
type Config struct {
	RPC       string        `yaml:"rpc"`
	Pools     []PoolYAML    `yaml:"pools"`
	Monitor   MonitorYAML   `yaml:"monitor"`
	Detector  DetectorYAML  `yaml:"detector"`
	Optimizer OptimizerYAML `yaml:"optimizer"`
	Metrics   MetricsYAML   `yaml:"metrics"`
	Sink      SinkYAML      `yaml:"sink"`
}

// Load reads config.yml and, if present, a .env file of RPC/DSN
// secrets from the process's working directory (godotenv.Load's
// default; its error for a missing file is ignored).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("configs: read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("configs: parse config YAML: %w", err)
	}

	if rpc := os.Getenv("ARBITRAGEDEX_RPC_URL"); rpc != "" {
		cfg.RPC = rpc
	}
	if dsn := os.Getenv("ARBITRAGEDEX_SINK_DSN"); dsn != "" {
		cfg.Sink.DSN = dsn
	}

	return &cfg, nil
}

// ToPoolConfigs converts the YAML pool entries into validated
// pool.Config values.
func (c *Config) ToPoolConfigs() ([]pool.Config, error) {
	pools := make([]pool.Config, 0, len(c.Pools))
	for _, p := range c.Pools {
		cfg := pool.Config{
			Label:       p.Label,
			Protocol:    pool.Protocol(p.Protocol),
			Address:     common.HexToAddress(p.Address),
			Token0:      common.HexToAddress(p.Token0),
			Token1:      common.HexToAddress(p.Token1),
			Decimals0:   p.Decimals0,
			Decimals1:   p.Decimals1,
			FeeTier:     p.FeeTier,
			InvertPrice: p.InvertPrice,
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		pools = append(pools, cfg)
	}
	return pools, nil
}

// ToMonitorConfig converts the YAML monitor section into a
// monitor.Config.
func (c *Config) ToMonitorConfig() monitor.Config {
	useMulticall := true
	if c.Monitor.UseMulticall != nil {
		useMulticall = *c.Monitor.UseMulticall
	}
	var minReserve *big.Int
	if c.Monitor.MinReserveWETH != "" {
		minReserve, _ = new(big.Int).SetString(c.Monitor.MinReserveWETH, 10)
	}
	var pollInterval *time.Duration
	if c.Monitor.PollIntervalMs != nil {
		d := time.Duration(*c.Monitor.PollIntervalMs) * time.Millisecond
		pollInterval = &d
	}
	return monitor.Config{
		DeltaThresholdPercent: c.Monitor.DeltaThresholdPercent,
		PollInterval:          pollInterval,
		MaxRetries:            c.Monitor.MaxRetries,
		UseMulticall:          useMulticall,
		MinReserveWETH:        minReserve,
		WETHAddress:           common.HexToAddress(c.Monitor.WETHAddress),
	}
}

// ToOptimizerParams converts the YAML optimizer section into
// optimizer.Params.
func (c *Config) ToOptimizerParams() optimizer.Params {
	return optimizer.Params{
		MinAmount:            c.Optimizer.MinAmount,
		MaxAmount:            c.Optimizer.MaxAmount,
		MaxIterations:        c.Optimizer.MaxIterations,
		TimeoutMs:            c.Optimizer.TimeoutMs,
		FallbackAmount:       c.Optimizer.FallbackAmount,
		ConvergenceThreshold: c.Optimizer.ConvergenceThreshold,
	}
}

// ToDetectorConfig converts the YAML detector section (plus the
// already-derived optimizer params) into an opportunity.Config.
func (c *Config) ToDetectorConfig() opportunity.Config {
	providers := make([]cost.FlashLoanProvider, 0, len(c.Detector.FlashLoanFees))
	for name, rate := range c.Detector.FlashLoanFees {
		providers = append(providers, cost.FlashLoanProvider{Name: name, Rate: rate})
	}
	if len(providers) == 0 {
		providers = cost.DefaultFlashLoanProviders
	}

	return opportunity.Config{
		MinProfitThreshold:  c.Detector.MinProfitThreshold,
		DefaultInputAmount:  c.Detector.DefaultInputAmount,
		ReserveSafetyFactor: c.Detector.ReserveSafetyFactor,
		Optimizer:           c.ToOptimizerParams(),
		CostModel: cost.Model{
			FlashLoanProviders: providers,
			GasPriceGwei:       c.Detector.GasPriceGwei,
			GasPerSwap:         c.Detector.GasPerSwap,
			MaxSlippage:        c.Detector.MaxSlippage,
		},
	}
}
