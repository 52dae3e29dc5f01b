package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seedslot.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	return path
}

func TestLoadFromPathMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
rpc:
  addr: 0.0.0.0:9000
  rateLimitRPS: 0
  requestTimeout: 3s
storage:
  driver: SQLite
  path: /tmp/ledger.db
rent:
  lamportsPerByteYear: 10
metrics:
  enabled: false
`)
	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.RPC.Addr != "0.0.0.0:9000" || cfg.RPC.RateLimitRPS != 0 || cfg.RPC.RequestTimeout != 3*time.Second {
		t.Fatalf("unexpected rpc config %+v", cfg.RPC)
	}
	if cfg.RPC.RateLimitBurst != Default().RPC.RateLimitBurst {
		t.Fatalf("omitted burst must keep default, got %d", cfg.RPC.RateLimitBurst)
	}
	if cfg.Storage.Driver != DriverSQLite || cfg.Storage.Path != "/tmp/ledger.db" {
		t.Fatalf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Rent.LamportsPerByteYear != 10 || cfg.Rent.ExemptionYears != 2 || cfg.Rent.AccountOverhead != 128 {
		t.Fatalf("unexpected rent %+v", cfg.Rent)
	}
	if cfg.Metrics.Enabled {
		t.Fatal("metrics should be disabled by file")
	}
	if cfg.JournalProgramID().String() != "FX6obMKSmgdg5FygYaVqsytTfswENphFiPJ9v5NsFa1B" {
		t.Fatalf("unexpected journal program %s", cfg.JournalProgramID())
	}
}

func TestLoadFromPathMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Storage.Driver != DriverMemory || cfg.RPC.Addr != Default().RPC.Addr {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SEEDSLOT_RPC_ADDR", "127.0.0.1:7000")
	t.Setenv("SEEDSLOT_STORAGE_DRIVER", "FILE")
	t.Setenv("SEEDSLOT_STORAGE_PATH", "/var/lib/seedslot/ledger.enc")
	t.Setenv("SEEDSLOT_RATE_LIMIT_RPS", "2.5")
	t.Setenv("SEEDSLOT_RATE_LIMIT_BURST", "-4")
	t.Setenv("SEEDSLOT_METRICS_ENABLED", "off")

	cfg, err := LoadFromPath(writeConfig(t, "rpc:\n  addr: 127.0.0.1:1\n"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.RPC.Addr != "127.0.0.1:7000" {
		t.Fatalf("env must win over file, got %q", cfg.RPC.Addr)
	}
	if cfg.Storage.Driver != DriverFile || cfg.Storage.Path != "/var/lib/seedslot/ledger.enc" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.RPC.RateLimitRPS != 2.5 || cfg.RPC.RateLimitBurst != 0 {
		t.Fatalf("unexpected limiter %+v", cfg.RPC)
	}
	if cfg.Metrics.Enabled {
		t.Fatal("metrics should be disabled by env")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "mysql" }, want: "Driver"},
		{name: "file without path", mutate: func(c *Config) { c.Storage.Driver = DriverFile }, want: "storage.path"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Driver = DriverPostgres }, want: "storage.dsn"},
		{name: "bad program id", mutate: func(c *Config) { c.Programs.Voting = "not-base58!" }, want: "Voting"},
		{name: "same program ids", mutate: func(c *Config) { c.Programs.Voting = c.Programs.Journal }, want: "distinct"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "trace" }, want: "Level"},
		{name: "bad rpc addr", mutate: func(c *Config) { c.RPC.Addr = "nowhere" }, want: "Addr"},
		{name: "zero rent", mutate: func(c *Config) { c.Rent.ExemptionYears = 0 }, want: "rent"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
	if err := Validate(Default()); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadFromPathRejectsMalformedYAML(t *testing.T) {
	if _, err := LoadFromPath(writeConfig(t, "rpc: [unterminated")); err == nil {
		t.Fatal("expected parse error")
	}
}
