// Package config loads gqlpager configuration from JSON5 files, a local override file
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"

	"github.com/Sternrassler/graphql-pager/pkg/logging"
	"github.com/Sternrassler/graphql-pager/pkg/pagination"
)

// StrategyAuto picks the strategy recommended by a probe.
const StrategyAuto = "auto"

// placeholder marks values copied from a template and never filled in.
const placeholder = "YOUR_"

// Duration is a time.Duration read from strings such as "30s" or "1h".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Queries holds the query documents, inline or as files relative to the config file.
type Queries struct {
	Offset     string `json:"offset"`
	Cursor     string `json:"cursor"`
	OffsetFile string `json:"offsetFile"`
	CursorFile string `json:"cursorFile"`
}

// ProbeConfig configures strategy probing.
type ProbeConfig struct {
	// PageSize of the single probe page.
	PageSize int `json:"pageSize"`

	// Pause between the offset and cursor probes.
	Pause Duration `json:"pause"`

	// CacheTTL is how long probe reports stay in Redis.
	CacheTTL Duration `json:"cacheTTL"`
}

// RedisConfig configures the probe report cache. An empty URL disables caching.
type RedisConfig struct {
	URL string `json:"url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

// Config is the complete gqlpager configuration.
type Config struct {
	Endpoint  string            `json:"endpoint"`
	Token     string            `json:"token"`
	Timeout   Duration          `json:"timeout"`
	UserAgent string            `json:"userAgent"`
	Headers   map[string]string `json:"headers"`

	// Strategy is "offset", "cursor" or "auto".
	Strategy string `json:"strategy"`
	PageSize int    `json:"pageSize"`

	Queries   Queries        `json:"queries"`
	Variables map[string]any `json:"variables"`

	// Root and Connection locate the paged field, see pagination.Locator.
	Root       []string `json:"root"`
	Connection []string `json:"connection"`

	Probe ProbeConfig `json:"probe"`
	Redis RedisConfig `json:"redis"`
	Log   LogConfig   `json:"log"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:   Duration(30 * time.Second),
		UserAgent: "graphql-pager/0.1.0",
		Strategy:  StrategyAuto,
		PageSize:  100,
		Probe: ProbeConfig{
			PageSize: 5,
			Pause:    Duration(time.Second),
			CacheTTL: Duration(24 * time.Hour),
		},
		Log: LogConfig{Level: string(logging.LevelInfo)},
	}
}

// Load reads name (e.g. "gqlpager.json5") over the defaults, then name.local.ext when
// present, applies environment overrides and reads query files. Each file sets exactly the
// fields it contains, so a file may reset a default to its zero value.
func Load(name string) (Config, error) {
	cfg := DefaultConfig()

	if err := readConfig(name, &cfg); err != nil {
		return cfg, err
	}

	if err := mergo.Merge(&cfg, envConfig(), mergo.WithOverride); err != nil {
		return cfg, fmt.Errorf("apply environment: %w", err)
	}

	if err := cfg.Queries.resolve(filepath.Dir(name)); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// readConfig decodes <name>.<ext> and then <name>.local.<ext> into cfg. It fails with
// os.ErrNotExist when neither file exists.
func readConfig(name string, cfg *Config) error {
	logger := logging.NewLogger("config")
	found := false

	for _, file := range []string{name, localName(name)} {
		data, err := os.ReadFile(file)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := json5.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", file, err)
		}
		if file != name {
			logger.Info().Str("local", file).Msg("Merged config with local overrides")
		}
		found = true
	}

	if !found {
		return fmt.Errorf("config %s: %w", name, os.ErrNotExist)
	}
	return nil
}

// localName turns "dir/name.ext" into "dir/name.local.ext".
func localName(name string) string {
	dir, base := filepath.Split(name)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+".local"+ext)
}

// envConfig holds the connection settings taken from the environment. Unset variables
// stay empty and leave the file values alone when merged.
func envConfig() Config {
	return Config{
		Endpoint: os.Getenv("GRAPHQL_ENDPOINT"),
		Token:    os.Getenv("GRAPHQL_TOKEN"),
		Redis:    RedisConfig{URL: os.Getenv("REDIS_URL")},
		Log:      LogConfig{Level: os.Getenv("LOG_LEVEL")},
	}
}

// resolve reads query files relative to dir into the inline fields.
func (q *Queries) resolve(dir string) error {
	read := func(file string, dst *string) error {
		if file == "" || *dst != "" {
			return nil
		}
		if !filepath.IsAbs(file) {
			file = filepath.Join(dir, file)
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read query: %w", err)
		}
		*dst = string(data)
		return nil
	}

	if err := read(q.OffsetFile, &q.Offset); err != nil {
		return err
	}
	return read(q.CursorFile, &q.Cursor)
}

// Locator returns the pagination locator of the configured collection.
func (c Config) Locator() pagination.Locator {
	return pagination.Locator{Root: c.Root, Connection: c.Connection}
}

// Query returns the query document for a strategy.
func (c Config) Query(kind pagination.Kind) string {
	if kind == pagination.KindCursor {
		return c.Queries.Cursor
	}
	return c.Queries.Offset
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error

	switch {
	case c.Endpoint == "":
		errs = append(errs, errors.New("endpoint is required (set it or GRAPHQL_ENDPOINT)"))
	case strings.Contains(c.Endpoint, placeholder):
		errs = append(errs, fmt.Errorf("endpoint still holds a placeholder: %s", c.Endpoint))
	}
	switch {
	case c.Token == "":
		errs = append(errs, errors.New("token is required (set it or GRAPHQL_TOKEN)"))
	case strings.Contains(c.Token, placeholder):
		errs = append(errs, errors.New("token still holds a placeholder"))
	}

	if c.Strategy != StrategyAuto {
		if kind, err := pagination.ParseKind(c.Strategy); err != nil {
			errs = append(errs, err)
		} else if c.Query(kind) == "" {
			errs = append(errs, fmt.Errorf("strategy %s needs queries.%s or queries.%sFile", kind, kind, kind))
		}
	} else if c.Queries.Offset == "" && c.Queries.Cursor == "" {
		errs = append(errs, errors.New("at least one of queries.offset and queries.cursor is required"))
	}

	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("pageSize must be > 0 (got %d)", c.PageSize))
	}
	if c.Probe.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("probe.pageSize must be > 0 (got %d)", c.Probe.PageSize))
	}
	if len(c.Connection) == 0 {
		errs = append(errs, errors.New("connection path is required"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
