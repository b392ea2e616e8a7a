package config

import (
	"testing"

	"github.com/spf13/pflag"
)

func newFlags() *pflag.FlagSet { return pflag.NewFlagSet("test", pflag.ContinueOnError) }

// TestLoadFromArgs_EnvDefaultsAndFlags validates the precedence model:
// environment seeds defaults, explicit flags override env.
func TestLoadFromArgs_EnvDefaultsAndFlags(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"DB_DRIVER":       "postgres",
		"DB_DSN":          "postgresql://u:p@h:5432/d",
		"CHUNK_SIZE":      "1200",
		"PARALLEL":        "yes",
		"WORKERS":         "6",
		"METRICS_BACKEND": "datadog",
	}
	getenv := func(k string) string { return env[k] }

	cfg, err := LoadFromArgs(newFlags(), getenv, []string{"--workers=3", "--log-format=console"})
	if err != nil {
		t.Fatalf("LoadFromArgs: %v", err)
	}
	if cfg.DBDriver != "postgres" || cfg.DSN != env["DB_DSN"] {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.ChunkSize != 1200 || !cfg.Parallel {
		t.Fatalf("typed env not applied: chunk=%d parallel=%v", cfg.ChunkSize, cfg.Parallel)
	}
	if cfg.Workers != 3 || cfg.LogFormat != "console" {
		t.Fatalf("flag override not applied: workers=%d format=%s", cfg.Workers, cfg.LogFormat)
	}
	if cfg.MetricsBackend != "datadog" || cfg.DDAgentAddr != DefaultDDAddr {
		t.Fatalf("metrics = %s/%s", cfg.MetricsBackend, cfg.DDAgentAddr)
	}
}

// TestLoadFromArgs_Defaults ensures an empty environment yields a runnable
// SQLite configuration.
func TestLoadFromArgs_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromArgs(newFlags(), func(string) string { return "" }, nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBDriver != DefaultDriver || cfg.ChunkSize != DefaultChunkSize || cfg.DataDir != DefaultDataDir {
		t.Fatalf("defaults not set: %+v", cfg)
	}
	if !cfg.IsSQLite() || cfg.Storage().Kind != "sqlite" || !cfg.Storage().BulkPragmas {
		t.Fatalf("storage config = %+v", cfg.Storage())
	}
	if issues := Validate(cfg); len(issues) != 0 {
		t.Fatalf("defaults should validate cleanly: %v", issues)
	}
}

func TestLoadFromArgs_BadFlag(t *testing.T) {
	t.Parallel()

	if _, err := LoadFromArgs(newFlags(), func(string) string { return "" }, []string{"--chunk-size=abc"}); err == nil {
		t.Fatal("want parse error")
	}
}

// TestLoadFromArgs_UnparseableEnv falls back to the default, like the flag
// helpers always have.
func TestLoadFromArgs_UnparseableEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{"CHUNK_SIZE": "lots", "PARALLEL": "maybe"}
	cfg, err := LoadFromArgs(newFlags(), func(k string) string { return env[k] }, nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ChunkSize != DefaultChunkSize || cfg.Parallel {
		t.Fatalf("chunk=%d parallel=%v", cfg.ChunkSize, cfg.Parallel)
	}
}
