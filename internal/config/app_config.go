// Package config manages application configuration loading and validation.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PoolConfig sets the limits of one named pool.
type PoolConfig struct {
	SoftLimit   uint64        `yaml:"softLimit"`
	HardLimit   uint64        `yaml:"hardLimit"`
	WaitInitial time.Duration `yaml:"waitInitial"`
	WaitMax     time.Duration `yaml:"waitMax"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// TelemetryConfig configures OTLP exporters.
type TelemetryConfig struct {
	OTLPEndpoint  string `yaml:"otlpEndpoint"`
	ServiceName   string `yaml:"serviceName"`
	OTLPInsecure  bool   `yaml:"otlpInsecure"`
	EnableMetrics bool   `yaml:"enableMetrics"`
}

// BenchConfig drives the load generator.
type BenchConfig struct {
	Workers  int     `yaml:"workers"`
	Requests int     `yaml:"requests"`
	Keys     int     `yaml:"keys"`
	Rate     float64 `yaml:"rate"`
}

// AppConfig is the unified application configuration sourced from YAML.
type AppConfig struct {
	Environment Environment           `yaml:"environment"`
	Pools       map[string]PoolConfig `yaml:"pools"`
	Logging     LoggingConfig         `yaml:"logging"`
	Telemetry   TelemetryConfig       `yaml:"telemetry"`
	Bench       BenchConfig           `yaml:"bench"`
}

// Default returns the configuration used when no file is present.
func Default() AppConfig {
	return AppConfig{
		Environment: EnvDev,
		Pools: map[string]PoolConfig{
			"buffers": {SoftLimit: 1 << 20, HardLimit: 4 << 20},
		},
		Logging: LoggingConfig{Level: "info"},
		Telemetry: TelemetryConfig{
			OTLPEndpoint:  "",
			ServiceName:   "poolbench",
			OTLPInsecure:  false,
			EnableMetrics: true,
		},
		Bench: BenchConfig{
			Workers:  8,
			Requests: 1000,
			Keys:     16,
			Rate:     0,
		},
	}
}

// Load reads defaults, then the YAML file, then environment overrides, and
// validates the result.
func Load(ctx context.Context, configPath string) (AppConfig, error) {
	cfg := Default()
	if err := cfg.loadYAML(ctx, configPath); err != nil {
		return AppConfig{}, err
	}
	cfg.loadEnv()
	cfg.normalise()

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default when the file
// does not exist.
func LoadOrDefault(ctx context.Context, configPath string) (AppConfig, error) {
	cfg, err := Load(ctx, configPath)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, err
	}

	cfg = Default()
	cfg.loadEnv()
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *AppConfig) loadYAML(ctx context.Context, path string) error {
	_ = ctx

	reader, closer, err := openConfigFile(path)
	if err != nil {
		return err
	}
	defer closer()

	bytes, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fromFile AppConfig
	if err := yaml.Unmarshal(bytes, &fromFile); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	if fromFile.Environment != "" {
		c.Environment = fromFile.Environment
	}
	if len(fromFile.Pools) > 0 {
		c.Pools = fromFile.Pools
	}
	if strings.TrimSpace(fromFile.Logging.Level) != "" {
		c.Logging = fromFile.Logging
	}
	c.Telemetry = fromFile.Telemetry
	if fromFile.Bench.Workers != 0 {
		c.Bench.Workers = fromFile.Bench.Workers
	}
	if fromFile.Bench.Requests != 0 {
		c.Bench.Requests = fromFile.Bench.Requests
	}
	if fromFile.Bench.Keys != 0 {
		c.Bench.Keys = fromFile.Bench.Keys
	}
	if fromFile.Bench.Rate != 0 {
		c.Bench.Rate = fromFile.Bench.Rate
	}
	return nil
}

func (c *AppConfig) loadEnv() {
	if env := strings.TrimSpace(os.Getenv("POOLBENCH_ENV")); env != "" {
		c.Environment = Environment(env)
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME")); v != "" {
		c.Telemetry.ServiceName = v
	}
}

func (c *AppConfig) normalise() {
	c.Environment = Environment(normalizeName(string(c.Environment)))
	c.Logging.Level = normalizeName(c.Logging.Level)
	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "poolbench"
	}

	normalised := make(map[string]PoolConfig, len(c.Pools))
	for name, pool := range c.Pools {
		normalised[strings.TrimSpace(name)] = pool
	}
	c.Pools = normalised

	if c.Bench.Workers <= 0 {
		c.Bench.Workers = 1
	}
}

// Validate performs semantic validation on the configuration.
func (c AppConfig) Validate() error {
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("environment must be one of dev, staging, prod")
	}

	if len(c.Pools) == 0 {
		return fmt.Errorf("at least one pool required")
	}
	for _, name := range c.PoolNames() {
		pool := c.Pools[name]
		if name == "" {
			return fmt.Errorf("pool names must be non-empty")
		}
		if pool.HardLimit == 0 {
			return fmt.Errorf("pool %s: hardLimit must be >0", name)
		}
		if pool.SoftLimit > pool.HardLimit {
			return fmt.Errorf("pool %s: softLimit %d exceeds hardLimit %d", name, pool.SoftLimit, pool.HardLimit)
		}
		if pool.WaitInitial < 0 || pool.WaitMax < 0 {
			return fmt.Errorf("pool %s: wait intervals must be >= 0", name)
		}
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging level %q not recognised", c.Logging.Level)
	}

	if c.Bench.Requests < 0 {
		return fmt.Errorf("bench requests must be >= 0")
	}
	if c.Bench.Keys <= 0 {
		return fmt.Errorf("bench keys must be >0")
	}
	if c.Bench.Rate < 0 {
		return fmt.Errorf("bench rate must be >= 0")
	}
	return nil
}

// PoolNames returns the configured pool names in sorted order.
func (c AppConfig) PoolNames() []string {
	names := make([]string, 0, len(c.Pools))
	for name := range c.Pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func openConfigFile(path string) (io.Reader, func(), error) {
	candidate := strings.TrimSpace(path)
	if candidate == "" {
		candidate = os.Getenv("POOLBENCH_CONFIG")
	}
	if strings.TrimSpace(candidate) == "" {
		candidate = "config/poolbench.yaml"
	}
	candidate = filepath.Clean(candidate)

	file, err := os.Open(candidate) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return nil, nil, fmt.Errorf("open app config: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}
