package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Sternrassler/graphql-pager/pkg/pagination"
)

const baseConfig = `{
  // MAT engagements for one client
  endpoint: "https://api.example.com/graphql",
  token: "file-token",
  timeout: "10s",
  strategy: "cursor",
  pageSize: 50,
  queries: {
    cursorFile: "cursor.graphql",
    offset: "query Offset($skip: Int, $take: Int) { clients { clientId } }",
  },
  variables: { clientId: "0008005369", fiscalYear: "2025" },
  root: ["clients"],
  connection: ["clientProfiles", "engagements"],
  probe: { pause: "250ms" },
  redis: { url: "redis://localhost:6379/0" },
}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"GRAPHQL_ENDPOINT", "GRAPHQL_TOKEN", "REDIS_URL", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Strategy != StrategyAuto {
		t.Errorf("Strategy = %q, want auto", cfg.Strategy)
	}
	if cfg.PageSize != 100 || cfg.Probe.PageSize != 5 {
		t.Errorf("page sizes = %d / %d, want 100 / 5", cfg.PageSize, cfg.Probe.PageSize)
	}
	if cfg.Timeout.Std() != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout.Std())
	}
	if cfg.Probe.Pause.Std() != time.Second {
		t.Errorf("Probe.Pause = %v, want 1s", cfg.Probe.Pause.Std())
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "gqlpager.json5", baseConfig)
	writeFile(t, dir, "cursor.graphql", "query Cursor($first: Int, $after: String) { clients { clientId } }")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Endpoint != "https://api.example.com/graphql" || cfg.Token != "file-token" {
		t.Errorf("connection = %q / %q", cfg.Endpoint, cfg.Token)
	}
	if cfg.Timeout.Std() != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout.Std())
	}
	if cfg.Strategy != "cursor" || cfg.PageSize != 50 {
		t.Errorf("strategy = %q pageSize = %d", cfg.Strategy, cfg.PageSize)
	}
	if !strings.HasPrefix(cfg.Queries.Cursor, "query Cursor") {
		t.Errorf("cursor query not read from file: %q", cfg.Queries.Cursor)
	}
	if diff := cmp.Diff(map[string]any{"clientId": "0008005369", "fiscalYear": "2025"}, cfg.Variables); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}

	wantLocator := pagination.Locator{Root: []string{"clients"}, Connection: []string{"clientProfiles", "engagements"}}
	if diff := cmp.Diff(wantLocator, cfg.Locator()); diff != "" {
		t.Errorf("locator mismatch (-want +got):\n%s", diff)
	}

	// Unset fields keep their defaults.
	if cfg.UserAgent != "graphql-pager/0.1.0" || cfg.Probe.PageSize != 5 || cfg.Probe.CacheTTL.Std() != 24*time.Hour {
		t.Errorf("defaults lost: userAgent=%q probe=%+v", cfg.UserAgent, cfg.Probe)
	}
	if cfg.Probe.Pause.Std() != 250*time.Millisecond {
		t.Errorf("Probe.Pause = %v, want 250ms", cfg.Probe.Pause.Std())
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_LocalOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "gqlpager.json5", baseConfig)
	writeFile(t, dir, "cursor.graphql", "query Cursor { x }")
	writeFile(t, dir, "gqlpager.local.json5", `{token: "local-token", pageSize: 25, log: {level: "debug"}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Token != "local-token" || cfg.PageSize != 25 || cfg.Log.Level != "debug" {
		t.Errorf("local override not applied: token=%q pageSize=%d level=%q", cfg.Token, cfg.PageSize, cfg.Log.Level)
	}
	if cfg.Endpoint != "https://api.example.com/graphql" {
		t.Errorf("Endpoint = %q, want base file value", cfg.Endpoint)
	}
}

func TestLoad_ZeroValueOverrides(t *testing.T) {
	clearEnv(t)

	t.Run("file resets default", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "gqlpager.json5", `{endpoint: "http://localhost:4000/graphql", probe: {pause: "0s"}}`)

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Probe.Pause.Std() != 0 {
			t.Errorf("Probe.Pause = %v, want 0s", cfg.Probe.Pause.Std())
		}
		if cfg.Probe.PageSize != 5 || cfg.Probe.CacheTTL.Std() != 24*time.Hour {
			t.Errorf("sibling defaults lost: %+v", cfg.Probe)
		}
	})

	t.Run("local resets file", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "gqlpager.json5", strings.Replace(baseConfig, "probe:", "log: { pretty: true },\n  probe:", 1))
		writeFile(t, dir, "cursor.graphql", "query Cursor { x }")
		writeFile(t, dir, "gqlpager.local.json5", `{log: {pretty: false}, probe: {pause: "0s"}, redis: {url: ""}}`)

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Log.Pretty {
			t.Error("Log.Pretty = true, want false from local file")
		}
		if cfg.Probe.Pause.Std() != 0 {
			t.Errorf("Probe.Pause = %v, want 0s from local file", cfg.Probe.Pause.Std())
		}
		if cfg.Redis.URL != "" {
			t.Errorf("Redis.URL = %q, want empty from local file", cfg.Redis.URL)
		}
		if cfg.Token != "file-token" {
			t.Errorf("Token = %q, want base file value", cfg.Token)
		}
	})
}

func TestLoad_LocalOnly(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "gqlpager.local.json5", `{endpoint: "http://localhost:4000/graphql"}`)

	cfg, err := Load(filepath.Join(dir, "gqlpager.json5"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Endpoint != "http://localhost:4000/graphql" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "gqlpager.json5", baseConfig)
	writeFile(t, dir, "cursor.graphql", "query Cursor { x }")

	t.Setenv("GRAPHQL_ENDPOINT", "https://env.example.com/graphql")
	t.Setenv("GRAPHQL_TOKEN", "env-token")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Endpoint != "https://env.example.com/graphql" || cfg.Token != "env-token" {
		t.Errorf("env not applied: %q / %q", cfg.Endpoint, cfg.Token)
	}
	if cfg.Redis.URL != "redis://cache:6379/1" || cfg.Log.Level != "warn" {
		t.Errorf("env not applied: redis=%q level=%q", cfg.Redis.URL, cfg.Log.Level)
	}
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	t.Run("missing", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json5"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("error = %v, want os.ErrNotExist", err)
		}
	})

	t.Run("invalid json5", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "bad.json5", `{endpoint: }`)
		if _, err := Load(path); err == nil {
			t.Error("Expected parse error")
		}
	})

	t.Run("invalid duration", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "bad.json5", `{timeout: "soon"}`)
		if _, err := Load(path); err == nil {
			t.Error("Expected duration error")
		}
	})

	t.Run("missing query file", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "q.json5", `{queries: {offsetFile: "missing.graphql"}}`)
		if _, err := Load(path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("error = %v, want os.ErrNotExist", err)
		}
	})
}

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Endpoint = "https://api.example.com/graphql"
	cfg.Token = "token"
	cfg.Queries.Offset = "query Offset { x }"
	cfg.Connection = []string{"engagements"}
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, "endpoint is required"},
		{"placeholder endpoint", func(c *Config) { c.Endpoint = "YOUR_MAT_GRAPHQL_ENDPOINT_HERE" }, "placeholder"},
		{"missing token", func(c *Config) { c.Token = "" }, "token is required"},
		{"placeholder token", func(c *Config) { c.Token = "YOUR_TOKEN_HERE" }, "token still holds a placeholder"},
		{"unknown strategy", func(c *Config) { c.Strategy = "keyset" }, `unknown pagination strategy "keyset"`},
		{"cursor without query", func(c *Config) { c.Strategy = "cursor" }, "strategy cursor needs queries.cursor"},
		{"auto without queries", func(c *Config) { c.Queries = Queries{} }, "at least one of queries.offset"},
		{"zero page size", func(c *Config) { c.PageSize = 0 }, "pageSize must be > 0"},
		{"zero probe page size", func(c *Config) { c.Probe.PageSize = 0 }, "probe.pageSize must be > 0"},
		{"no connection", func(c *Config) { c.Connection = nil }, "connection path is required"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, `unknown log level "verbose"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Endpoint = ""
	cfg.Token = ""
	cfg.PageSize = -1

	err := cfg.Validate()
	for _, want := range []string{"endpoint is required", "token is required", "pageSize must be > 0"} {
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error = %v, missing %q", err, want)
		}
	}
}

func TestConfig_Query(t *testing.T) {
	cfg := validConfig()
	cfg.Queries.Cursor = "query Cursor { x }"

	if cfg.Query(pagination.KindOffset) != "query Offset { x }" {
		t.Errorf("Query(offset) = %q", cfg.Query(pagination.KindOffset))
	}
	if cfg.Query(pagination.KindCursor) != "query Cursor { x }" {
		t.Errorf("Query(cursor) = %q", cfg.Query(pagination.KindCursor))
	}
}

func TestLocalName(t *testing.T) {
	tests := map[string]string{
		"gqlpager.json5":          "gqlpager.local.json5",
		"conf/gqlpager.json":      filepath.Join("conf", "gqlpager.local.json"),
		filepath.Join("a", "cfg"): filepath.Join("a", "cfg.local"),
	}
	for in, want := range tests {
		if got := localName(in); got != want {
			t.Errorf("localName(%q) = %q, want %q", in, got, want)
		}
	}
}
