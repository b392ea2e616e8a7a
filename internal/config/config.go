// Package config centralizes loader configuration. Every tunable is a
// command-line flag whose default is seeded from an environment variable, so
// `--help` shows all knobs and deployments can stay 12-factor.
//
// Typical usage from a cobra command:
//
//	cfg := config.Bind(cmd.PersistentFlags(), os.Getenv)
//	// cobra parses the flags; cfg is populated afterwards.
//
// For tests, prefer LoadFromArgs to keep them hermetic:
//
//	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
//	getenv := func(k string) string { return testEnv[k] }
//	cfg, err := config.LoadFromArgs(fs, getenv, []string{"--workers=4"})
package config

import (
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"compliancedb/internal/logging"
	"compliancedb/internal/storage"
)

// Default values.
const (
	DefaultDriver    = "sqlite"
	DefaultDSN       = "compliance.db"
	DefaultDataDir   = "data"
	DefaultChunkSize = 50_000
	DefaultDDAddr    = "127.0.0.1:8125"
	DefaultJob       = "loader"
)

// Config holds all process configuration derived from flags and environment
// variables. It is a plain value and safe to copy after parsing.
type Config struct {
	// DB describes the target database.
	DBDriver    string // sqlite, postgres, mysql or mssql
	DSN         string
	BulkPragmas bool // SQLite: trade durability for load speed

	// IO locations.
	DataDir    string // directory holding the source CSV files
	SkippedDir string // per-table skipped-row CSVs; empty disables them

	// Throughput.
	ChunkSize int
	Workers   int  // 0 picks a default from CPU count and driver
	Parallel  bool // split each table across worker processes

	// Load policy.
	Force    bool // reload tables that already hold rows
	Backfill bool // fill violation company, state, NAICS and year from inspections

	// Logging.
	LogLevel  string
	LogFormat string

	// Metrics.
	MetricsBackend string // none, prometheus or datadog
	MetricsJob     string
	PushgatewayURL string
	DDAgentAddr    string
}

// Bind defines every flag on fs with an environment-seeded default and
// returns the Config the flags write into. Values are final once fs has been
// parsed.
func Bind(fs *pflag.FlagSet, getenv func(string) string) *Config {
	cfg := &Config{}

	envOr := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	intEnvOr := func(k string, d int) int {
		if v := getenv(k); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
		return d
	}
	boolEnvOr := func(k string, d bool) bool {
		if v := strings.ToLower(getenv(k)); v != "" {
			switch v {
			case "1", "true", "yes", "on":
				return true
			case "0", "false", "no", "off":
				return false
			}
		}
		return d
	}

	// DB connectivity
	fs.StringVar(&cfg.DBDriver, "db-driver", envOr("DB_DRIVER", DefaultDriver), "Database driver: sqlite, postgres, mysql or mssql")
	fs.StringVar(&cfg.DSN, "dsn", envOr("DB_DSN", DefaultDSN), "Database DSN (SQLite: file path)")
	fs.BoolVar(&cfg.BulkPragmas, "bulk-pragmas", boolEnvOr("BULK_PRAGMAS", true), "SQLite only: relax durability during loads")

	// IO paths
	fs.StringVar(&cfg.DataDir, "data-dir", envOr("DATA_DIR", DefaultDataDir), "Directory containing the source CSV files")
	fs.StringVar(&cfg.SkippedDir, "skipped-dir", envOr("SKIPPED_DIR", ""), "Directory for skipped-row CSV logs (empty disables)")

	// Throughput
	fs.IntVar(&cfg.ChunkSize, "chunk-size", intEnvOr("CHUNK_SIZE", DefaultChunkSize), "Rows per processed chunk")
	fs.IntVar(&cfg.Workers, "workers", intEnvOr("WORKERS", 0), "Parallel worker processes (0 = auto)")
	fs.BoolVar(&cfg.Parallel, "parallel", boolEnvOr("PARALLEL", false), "Load each table with parallel worker processes")

	// Policy
	fs.BoolVar(&cfg.Force, "force", boolEnvOr("FORCE", false), "Reload tables that already contain rows")
	fs.BoolVar(&cfg.Backfill, "backfill-years", boolEnvOr("BACKFILL_YEARS", true), "Fill missing violation company, state, NAICS and year from inspections")

	// Logging
	fs.StringVar(&cfg.LogLevel, "log-level", envOr("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", envOr("LOG_FORMAT", "json"), "Log encoding: json or console")

	// Metrics
	fs.StringVar(&cfg.MetricsBackend, "metrics-backend", envOr("METRICS_BACKEND", "none"), "Metrics backend: none, prometheus or datadog")
	fs.StringVar(&cfg.MetricsJob, "metrics-job", envOr("METRICS_JOB", DefaultJob), "Metrics job name / namespace")
	fs.StringVar(&cfg.PushgatewayURL, "pushgateway-url", envOr("PUSHGATEWAY_URL", ""), "Prometheus Pushgateway URL")
	fs.StringVar(&cfg.DDAgentAddr, "dd-agent-addr", envOr("DD_AGENT_ADDR", DefaultDDAddr), "DogStatsD address")

	return cfg
}

// LoadFromArgs binds flags on fs and parses args.
//
// Precedence:
//  1. Environment values seed each flag's default.
//  2. Explicit flags in args override the seeded defaults.
func LoadFromArgs(fs *pflag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	cfg := Bind(fs, getenv)
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Storage returns the storage configuration.
func (c *Config) Storage() storage.Config {
	return storage.Config{Kind: c.DBDriver, DSN: c.DSN, BulkPragmas: c.BulkPragmas}
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.LogLevel, Encoding: c.LogFormat}
}

// IsSQLite reports whether the configured driver is SQLite.
func (c *Config) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(c.DBDriver), "sqlite")
}
