package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path names the flag.
type Issue struct {
	Severity IssueSeverity `json:"severity"`
	Path     string        `json:"path"`
	Message  string        `json:"message"`
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

var knownDrivers = map[string]struct{}{
	"sqlite":     {},
	"postgres":   {},
	"postgresql": {},
	"mysql":      {},
	"mssql":      {},
	"sqlserver":  {},
}

// maxChunkSize bounds how many rows one chunk may hold in memory before a
// warning is raised.
const maxChunkSize = 1_000_000

// Validate performs static checks over c. It does not mutate c.
func Validate(c *Config) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	driver := strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch _, known := knownDrivers[driver]; {
	case driver == "":
		add(SeverityError, "db-driver", "db-driver must not be empty")
	case !known:
		add(SeverityWarning, "db-driver", "unknown driver %q; ensure a matching backend is registered", c.DBDriver)
	}
	if strings.TrimSpace(c.DSN) == "" {
		add(SeverityError, "dsn", "dsn must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		add(SeverityError, "data-dir", "data-dir must not be empty")
	}

	switch {
	case c.ChunkSize <= 0:
		add(SeverityError, "chunk-size", "chunk-size must be positive, got %d", c.ChunkSize)
	case c.ChunkSize > maxChunkSize:
		add(SeverityWarning, "chunk-size", "chunk-size %d holds a large batch in memory", c.ChunkSize)
	}
	if c.Workers < 0 {
		add(SeverityError, "workers", "workers must not be negative, got %d", c.Workers)
	}
	switch {
	case c.Parallel && c.IsSQLite() && inMemorySQLite(c.DSN):
		add(SeverityError, "dsn", "parallel workers each open their own connection; an in-memory SQLite database %q would not be shared", c.DSN)
	case c.Parallel && c.IsSQLite():
		add(SeverityWarning, "parallel", "SQLite serializes writers; parallel workers are capped at 4")
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		add(SeverityError, "log-level", "invalid log level %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		add(SeverityError, "log-format", "log-format must be json or console, got %q", c.LogFormat)
	}

	switch strings.ToLower(c.MetricsBackend) {
	case "", "none":
	case "prometheus":
		if strings.TrimSpace(c.PushgatewayURL) == "" {
			add(SeverityError, "pushgateway-url", "prometheus metrics require pushgateway-url")
		}
	case "datadog":
		if strings.TrimSpace(c.DDAgentAddr) == "" {
			add(SeverityError, "dd-agent-addr", "datadog metrics require dd-agent-addr")
		}
	default:
		add(SeverityError, "metrics-backend", "unknown metrics backend %q", c.MetricsBackend)
	}
	return issues
}

// Errors filters issues down to those with SeverityError.
func Errors(issues []Issue) []Issue {
	var out []Issue
	for _, i := range issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// inMemorySQLite reports whether dsn names a private in-memory database.
func inMemorySQLite(dsn string) bool {
	dsn = strings.ToLower(dsn)
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}
