package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: REFLSCAN_[SECTION]_[KEY] (e.g., REFLSCAN_CACHE_ENABLED).
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.Input, "REFLSCAN_INPUT")
	setEnvString(&cfg.Output, "REFLSCAN_OUTPUT")
	setEnvString(&cfg.IncludeHeader, "REFLSCAN_INCLUDE_HEADER")
	setEnvString(&cfg.Format, "REFLSCAN_FORMAT")
	setEnvString(&cfg.SARIF, "REFLSCAN_SARIF")

	// Policy
	if val, ok := os.LookupEnv("REFLSCAN_POLICY_BOOL_AS_WORD"); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", "REFLSCAN_POLICY_BOOL_AS_WORD", "value", val)
			cfg.Policy.BoolAsWord = &b
		}
	}

	// Exclude
	if val, ok := os.LookupEnv("REFLSCAN_EXCLUDE_SYMBOLS"); ok {
		slog.Debug("applying env override", "key", "REFLSCAN_EXCLUDE_SYMBOLS", "value", val)
		cfg.Exclude.Symbols = splitList(val)
	}

	// Cache
	setEnvBool(&cfg.Cache.Enabled, "REFLSCAN_CACHE_ENABLED")
	setEnvString(&cfg.Cache.Path, "REFLSCAN_CACHE_PATH")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "REFLSCAN_WATCH_DEBOUNCE")
	setEnvDuration(&cfg.Watch.MinInterval, "REFLSCAN_WATCH_MIN_INTERVAL")
	if val, ok := os.LookupEnv("REFLSCAN_WATCH_INCLUDE"); ok {
		slog.Debug("applying env override", "key", "REFLSCAN_WATCH_INCLUDE", "value", val)
		cfg.Watch.Include = splitList(val)
	}
	if val, ok := os.LookupEnv("REFLSCAN_WATCH_EXCLUDE"); ok {
		slog.Debug("applying env override", "key", "REFLSCAN_WATCH_EXCLUDE", "value", val)
		cfg.Watch.Exclude = splitList(val)
	}
	setEnvInt(&cfg.Watch.Burst, "REFLSCAN_WATCH_BURST")

	// Observability
	setEnvString(&cfg.Observability.MetricsAddr, "REFLSCAN_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "REFLSCAN_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvString(&cfg.Observability.ServiceName, "REFLSCAN_OBSERVABILITY_SERVICE_NAME")
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
