package config

import (
	"fmt"
	"os"
	"time"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa de rangekeeper.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Pool     PoolConfig     `yaml:"pool"`
	Signals  SignalsConfig  `yaml:"signals"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// EngineConfig controla los parámetros globales del engine.
type EngineConfig struct {
	Owner              string `yaml:"owner"`
	CooldownSeconds    *int   `yaml:"cooldown_seconds"` // nil = 3600, 0 = sin cooldown
	MinConfidence      uint8  `yaml:"min_confidence"`
	MaxOrdersPerSwap   int    `yaml:"max_orders_per_swap"`
	MaxRebalanceChecks int    `yaml:"max_rebalance_checks"`
	FeeCeiling         uint32 `yaml:"fee_ceiling"` // ppm
}

// PoolConfig describe el pool simulado que gestiona el engine.
type PoolConfig struct {
	Currency0   string `yaml:"currency0"`
	Currency1   string `yaml:"currency1"`
	Hooks       string `yaml:"hooks"` // cuenta de custodia del engine
	TickSpacing int32  `yaml:"tick_spacing"`
	InitialTick int32  `yaml:"initial_tick"`
	InitialFee  uint32 `yaml:"initial_fee"`
	DynamicFee  *bool  `yaml:"dynamic_fee"` // nil = true
}

// SignalsConfig controla el canal de señales.
type SignalsConfig struct {
	Writer     string `yaml:"writer"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// AnalyzerConfig controla el bot que propone señales.
type AnalyzerConfig struct {
	IntervalSeconds int     `yaml:"interval_seconds"`
	BaseFee         uint32  `yaml:"base_fee"`
	FeePerTick      uint32  `yaml:"fee_per_tick"`
	MaxFee          uint32  `yaml:"max_fee"`
	WidthFactor     float64 `yaml:"width_factor"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// MetricsConfig controla el endpoint de Prometheus. Addr vacío lo desactiva.
type MetricsConfig struct {
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// Parse decodifica YAML, aplica overrides de entorno y defaults, y valida.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate comprueba direcciones y el tick spacing.
func (c *Config) Validate() error {
	for field, v := range map[string]string{
		"engine.owner":   c.Engine.Owner,
		"pool.currency0": c.Pool.Currency0,
		"pool.currency1": c.Pool.Currency1,
		"pool.hooks":     c.Pool.Hooks,
		"signals.writer": c.Signals.Writer,
	} {
		if !common.IsHexAddress(v) {
			return fmt.Errorf("config: %s: invalid address %q", field, v)
		}
	}
	if common.HexToAddress(c.Pool.Currency0) == common.HexToAddress(c.Pool.Currency1) {
		return fmt.Errorf("config: pool currencies must differ")
	}
	if c.Pool.TickSpacing <= 0 {
		return fmt.Errorf("config: pool.tick_spacing must be positive, got %d", c.Pool.TickSpacing)
	}
	if c.Engine.CooldownSeconds != nil && *c.Engine.CooldownSeconds < 0 {
		return fmt.Errorf("config: engine.cooldown_seconds must not be negative")
	}
	return nil
}

// Owner devuelve la identidad del dueño del engine.
func (c *Config) Owner() common.Address { return common.HexToAddress(c.Engine.Owner) }

// SignalWriter devuelve la identidad autorizada a publicar señales.
func (c *Config) SignalWriter() common.Address { return common.HexToAddress(c.Signals.Writer) }

// Cooldown devuelve el cooldown de rebalanceo como time.Duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(*c.Engine.CooldownSeconds) * time.Second
}

// SignalTTL devuelve la ventana de vigencia de señales.
func (c *Config) SignalTTL() time.Duration {
	return time.Duration(c.Signals.TTLSeconds) * time.Second
}

// AnalyzerInterval devuelve el intervalo entre ráfagas del analyzer.
func (c *Config) AnalyzerInterval() time.Duration {
	return time.Duration(c.Analyzer.IntervalSeconds) * time.Second
}

// PoolKey construye la clave del pool; las monedas se ordenan como en el pool manager.
func (c *Config) PoolKey() domain.PoolKey {
	c0 := common.HexToAddress(c.Pool.Currency0)
	c1 := common.HexToAddress(c.Pool.Currency1)
	if c0.Cmp(c1) > 0 {
		c0, c1 = c1, c0
	}
	fee := c.Pool.InitialFee
	if *c.Pool.DynamicFee {
		fee = domain.DynamicFeeFlag
	}
	return domain.PoolKey{
		Currency0:   c0,
		Currency1:   c1,
		Fee:         fee,
		TickSpacing: c.Pool.TickSpacing,
		Hooks:       common.HexToAddress(c.Pool.Hooks),
	}
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("RANGEKEEPER_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("RANGEKEEPER_OWNER"); v != "" {
		cfg.Engine.Owner = v
	}
	if v := os.Getenv("RANGEKEEPER_SIGNAL_WRITER"); v != "" {
		cfg.Signals.Writer = v
	}
	if v := os.Getenv("RANGEKEEPER_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Engine.Owner == "" {
		cfg.Engine.Owner = "0x4000000000000000000000000000000000000001"
	}
	if cfg.Engine.CooldownSeconds == nil {
		hour := 3600
		cfg.Engine.CooldownSeconds = &hour
	}
	if cfg.Engine.MinConfidence == 0 {
		cfg.Engine.MinConfidence = 70
	}
	if cfg.Engine.MaxOrdersPerSwap <= 0 {
		cfg.Engine.MaxOrdersPerSwap = 10
	}
	if cfg.Engine.MaxRebalanceChecks <= 0 {
		cfg.Engine.MaxRebalanceChecks = 5
	}
	if cfg.Engine.FeeCeiling == 0 {
		cfg.Engine.FeeCeiling = domain.MaxLPFee
	}

	if cfg.Pool.Currency0 == "" {
		cfg.Pool.Currency0 = "0x1000000000000000000000000000000000000001"
	}
	if cfg.Pool.Currency1 == "" {
		cfg.Pool.Currency1 = "0x1000000000000000000000000000000000000002"
	}
	if cfg.Pool.Hooks == "" {
		cfg.Pool.Hooks = "0x3000000000000000000000000000000000000001"
	}
	if cfg.Pool.TickSpacing == 0 {
		cfg.Pool.TickSpacing = 60
	}
	if cfg.Pool.InitialFee == 0 {
		cfg.Pool.InitialFee = 3000
	}
	if cfg.Pool.DynamicFee == nil {
		dynamic := true
		cfg.Pool.DynamicFee = &dynamic
	}

	if cfg.Signals.Writer == "" {
		cfg.Signals.Writer = "0x4000000000000000000000000000000000000002"
	}
	if cfg.Signals.TTLSeconds <= 0 {
		cfg.Signals.TTLSeconds = 300
	}

	if cfg.Analyzer.IntervalSeconds <= 0 {
		cfg.Analyzer.IntervalSeconds = 60
	}

	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "rangekeeper.db"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "rangekeeper"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
