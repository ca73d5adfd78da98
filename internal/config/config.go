package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
)

// Environment overrides applied after the TOML file.
const (
	EnvConfigPath = "EWTRAIL_CONFIG"
	EnvDBPath     = "EWTRAIL_DB_PATH"
	EnvDBDSN      = "EWTRAIL_DB_DSN"
)

// DatabaseDriver selects the storage engine.
type DatabaseDriver string

const (
	DriverSQLite   DatabaseDriver = "sqlite"
	DriverPostgres DatabaseDriver = "postgres"
)

// DefaultWeightVarianceThresholdPct is the tolerated dispatch/receipt gap in percent.
const DefaultWeightVarianceThresholdPct = 5.0

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Custody  CustodyConfig  `toml:"custody"`
	Logging  LoggingConfig  `toml:"logging"`
	Server   ServerConfig   `toml:"server"`
}

type DatabaseConfig struct {
	Driver DatabaseDriver `toml:"driver"`
	Path   string         `toml:"path"`
	DSN    string         `toml:"dsn"`
}

type CustodyConfig struct {
	WeightVarianceThresholdPct float64 `toml:"weight_variance_threshold_pct"`
}

type LoggingConfig struct {
	Level   string `toml:"level"` // debug | info | warn | error
	DevFile string `toml:"dev_file"`
}

type ServerConfig struct {
	HTTPBind        string `toml:"http_bind"`
	APIEndpoint     string `toml:"api_endpoint"`
	MCPEndpoint     string `toml:"mcp_endpoint"`
	MetricsEndpoint string `toml:"metrics_endpoint"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   dbPath,
		},
		Custody: CustodyConfig{
			WeightVarianceThresholdPct: DefaultWeightVarianceThresholdPct,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			HTTPBind:        "127.0.0.1:8080",
			APIEndpoint:     "/api/v1",
			MCPEndpoint:     "/mcp",
			MetricsEndpoint: "/metrics",
		},
	}
}

// Load reads path over defaults. A missing or empty file yields defaults.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, cfg.Validate()
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, cfg.Validate()
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ApplyEnv overlays database settings from the environment.
func (c Config) ApplyEnv(getenv func(string) string) Config {
	if v := strings.TrimSpace(getenv(EnvDBPath)); v != "" {
		c.Database.Path = v
	}
	if v := strings.TrimSpace(getenv(EnvDBDSN)); v != "" {
		c.Database.DSN = v
		c.Database.Driver = DriverPostgres
	}
	return c
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, "":
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database.path is required for sqlite")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("invalid database.driver: %q", c.Database.Driver)
	}

	pct := c.Custody.WeightVarianceThresholdPct
	if pct <= 0 || pct >= 100 {
		return fmt.Errorf("custody.weight_variance_threshold_pct must be in (0, 100): %v", pct)
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}

	for name, endpoint := range map[string]string{
		"server.api_endpoint":     c.Server.APIEndpoint,
		"server.mcp_endpoint":     c.Server.MCPEndpoint,
		"server.metrics_endpoint": c.Server.MetricsEndpoint,
	} {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" && !strings.HasPrefix(endpoint, "/") {
			return fmt.Errorf("%s must start with /: %q", name, endpoint)
		}
	}
	return nil
}

// WeightVarianceThreshold returns the configured threshold as a fraction.
func (c Config) WeightVarianceThreshold() decimal.Decimal {
	return decimal.NewFromFloat(c.Custody.WeightVarianceThresholdPct).Div(decimal.NewFromInt(100))
}

// LogLevel parses logging.level; empty means info.
func (c Config) LogLevel() (log.Level, error) {
	raw := strings.TrimSpace(strings.ToLower(c.Logging.Level))
	if raw == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(raw)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	return level, nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
