// # internal/config/config.go
package config

import (
	"fmt"
	"os"
	"reflscan/internal/output"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const DefaultFile = "reflscan.toml"

// Output formats. Only FormatDescriptor feeds the registration-code generator.
const (
	FormatDescriptor = "descriptor"
	FormatTSV        = "tsv"
	FormatDOT        = "dot"
	FormatMermaid    = "mermaid"
)

var formats = []string{FormatDescriptor, FormatTSV, FormatDOT, FormatMermaid}

type Config struct {
	Input         string        `toml:"input"`
	Output        string        `toml:"output"`
	IncludeHeader string        `toml:"include_header"`
	Format        string        `toml:"format"`
	SARIF         string        `toml:"sarif"` // optional diagnostics report path
	Policy        Policy        `toml:"policy"`
	Exclude       Exclude       `toml:"exclude"`
	Cache         Cache         `toml:"cache"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type Policy struct {
	BoolAsWord *bool `toml:"bool_as_word"`
}

type Exclude struct {
	Symbols []string `toml:"symbols"` // glob patterns on qualified names, e.g. "detail::*"
}

type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Watch struct {
	Debounce    time.Duration `toml:"debounce"`
	MinInterval time.Duration `toml:"min_interval"`
	Burst       int           `toml:"burst"`
	// Include and Exclude filter the dumps found under a watched directory.
	// Patterns without a '/' match the base name.
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOptional loads path when it exists and falls back to defaults otherwise.
// An explicitly requested file that is missing is still an error.
func LoadOptional(path string, explicit bool) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			cfg := Default()
			ApplyEnvOverrides(cfg)
			return cfg, Validate(cfg)
		}
		return nil, err
	}
	return Load(path)
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.IncludeHeader) == "" {
		cfg.IncludeHeader = output.DefaultIncludeHeader
	}
	if strings.TrimSpace(cfg.Format) == "" {
		cfg.Format = FormatDescriptor
	}
	if cfg.Policy.BoolAsWord == nil {
		enabled := true
		cfg.Policy.BoolAsWord = &enabled
	}
	if strings.TrimSpace(cfg.Cache.Path) == "" {
		cfg.Cache.Path = "data/cache/reflscan.db"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.MinInterval == 0 {
		cfg.Watch.MinInterval = time.Second
	}
	if cfg.Watch.Burst == 0 {
		cfg.Watch.Burst = 1
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "reflscan"
	}
}

func Validate(cfg *Config) error {
	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	if !slices.Contains(formats, cfg.Format) {
		return fmt.Errorf("format must be one of: %s, got %q", strings.Join(formats, ", "), cfg.Format)
	}
	if strings.ContainsAny(cfg.IncludeHeader, "\"\n") {
		return fmt.Errorf("include_header must not contain quotes or newlines")
	}
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if cfg.Watch.MinInterval < 0 {
		return fmt.Errorf("watch.min_interval must not be negative")
	}
	if cfg.Watch.Burst < 1 {
		return fmt.Errorf("watch.burst must be >= 1, got %d", cfg.Watch.Burst)
	}
	for i, pattern := range cfg.Exclude.Symbols {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("exclude.symbols[%d] must not be empty", i)
		}
	}
	for i, pattern := range cfg.Watch.Include {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("watch.include[%d] must not be empty", i)
		}
	}
	if cfg.Cache.Enabled && strings.TrimSpace(cfg.Cache.Path) == "" {
		return fmt.Errorf("cache.path must not be empty when the cache is enabled")
	}
	return nil
}

// BoolAsWord reports the effective printing policy for boolean literals.
func (c *Config) BoolAsWord() bool {
	return c.Policy.BoolAsWord == nil || *c.Policy.BoolAsWord
}

// Fingerprint renders every setting that changes the generated text. Two
// configs with the same fingerprint produce the same output for the same
// input.
func (c *Config) Fingerprint() string {
	symbols := slices.Clone(c.Exclude.Symbols)
	slices.Sort(symbols)
	return fmt.Sprintf("include=%s;format=%s;bool_as_word=%t;exclude=%s",
		c.IncludeHeader, c.Format, c.BoolAsWord(), strings.Join(symbols, ","))
}
