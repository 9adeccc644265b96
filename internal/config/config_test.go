package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/sigsift/internal/registry"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sigsift.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFull(t *testing.T) {
	path := writeConfig(t, `
every_ticks = 4
tick_interval = "250ms"
listen = ":8080"
metrics_listen = ":9090"
base_path = "/sigsift"

[store]
path = "/var/lib/sigsift/nodes.db"

[history]
postgres_dsn = "postgres://u:p@localhost:5432/sigsift"
clickhouse_addr = "localhost:9000"

[log]
path = "/var/log/sigsift.log"
level = "debug"
max_size_mb = 5
compress = true

[defaults]
mode = "inter"
quality_sensitive = false
`)
	fc, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fc.EveryTicks != 4 {
		t.Fatalf("every_ticks = %d", fc.EveryTicks)
	}
	if fc.TickInterval != 250*time.Millisecond {
		t.Fatalf("tick_interval = %s", fc.TickInterval)
	}
	if fc.Listen != ":8080" || fc.MetricsListen != ":9090" || fc.BasePath != "/sigsift" {
		t.Fatalf("listen config mismatch: %+v", fc)
	}
	if fc.Store == nil || fc.Store.Path != "/var/lib/sigsift/nodes.db" {
		t.Fatalf("store = %+v", fc.Store)
	}
	if fc.History == nil || fc.History.ClickhouseTable != "node_history" {
		t.Fatalf("clickhouse table default not applied: %+v", fc.History)
	}
	lc := fc.LoggerConfig()
	if lc.Path != "/var/log/sigsift.log" || lc.Level != "debug" || lc.MaxSizeMB != 5 || !lc.Compress {
		t.Fatalf("logger config = %+v", lc)
	}
	p := fc.DefaultPatch()
	if p.Mode == nil || *p.Mode != registry.ModeIntersection {
		t.Fatalf("default mode patch = %+v", p.Mode)
	}
	if p.QualitySensitive == nil || *p.QualitySensitive {
		t.Fatalf("default quality patch = %+v", p.QualitySensitive)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	fc, err := LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fc.EveryTicks != 2 {
		t.Fatalf("every_ticks default = %d", fc.EveryTicks)
	}
	if fc.TickInterval != 500*time.Millisecond {
		t.Fatalf("tick_interval default = %s", fc.TickInterval)
	}
	if fc.BasePath != "/api" {
		t.Fatalf("base_path default = %q", fc.BasePath)
	}
	if p := fc.DefaultPatch(); p.Mode != nil || p.QualitySensitive != nil {
		t.Fatalf("empty defaults produced patch %+v", p)
	}
}

func TestLoadConfigRejectsUnknownMode(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "[defaults]\nmode = \"xor\"\n"))
	if err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestLoadConfigRejectsNegativeCadence(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "every_ticks = -1\n"))
	if err == nil {
		t.Fatalf("expected error for negative every_ticks")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
