// internal/config/validate_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
)

// helper to build a minimal valid config quickly
func base() *Config {
	return &Config{
		LCloud: LCloudConfig{
			Simulator: SimulatorConfig{
				Devices: []DeviceConfig{{ID: 1, Sectors: 10, Blocks: 64}},
			},
		},
	}
}

// ---- tests ----

func TestValidate_MinimalConfig(t *testing.T) {
	if err := Validate(base()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_NilConfig(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestValidate_NegativeLimits(t *testing.T) {
	cases := map[string]func(c *Config){
		"timeout":     func(c *Config) { c.LCloud.Bus.TimeoutMs = -1 },
		"cache":       func(c *Config) { c.LCloud.Cache.MaxBlocks = -1 },
		"max_handles": func(c *Config) { c.LCloud.Files.MaxHandles = -5 },
	}

	for name, mutate := range cases {
		cfg := base()
		mutate(cfg)
		if err := Validate(cfg); err == nil {
			t.Fatalf("%s: expected error, got nil", name)
		}
	}
}

func TestValidate_UnknownLogLevel(t *testing.T) {
	cfg := base()
	cfg.LCloud.Log.Level = "verbose"

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected log level error, got nil")
	}
}

func TestValidate_DuplicateDevice(t *testing.T) {
	cfg := base()
	cfg.LCloud.Simulator.Devices = append(cfg.LCloud.Simulator.Devices, DeviceConfig{ID: 1})

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected duplicate device error, got nil")
	}
}

func TestValidate_DeviceIDOutOfRange(t *testing.T) {
	cfg := base()
	cfg.LCloud.Simulator.Devices = []DeviceConfig{{ID: 16, Sectors: 1, Blocks: 1}}

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected range error, got nil")
	}
}

func TestValidate_StatusExport(t *testing.T) {
	cfg := base()
	cfg.LCloud.StatusExport = &StatusExportConfig{UnitID: 1}

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected missing endpoint error, got nil")
	}

	cfg.LCloud.StatusExport.Endpoint = "127.0.0.1:5020"
	cfg.LCloud.StatusExport.BaseSlot = 0xFFF0 // last 16 registers fit
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.LCloud.StatusExport.BaseSlot = 0xFFF1
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected base_slot overflow error, got nil")
	}
}

func TestValidate_Workload(t *testing.T) {
	cfg := base()
	cfg.LCloud.Workload.Files = []WorkloadFile{
		{Path: "a", Source: "a.bin"},
		{Path: "a", Source: "b.bin"},
	}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected duplicate path error, got nil")
	}

	cfg.LCloud.Workload.Files = []WorkloadFile{{Path: "a"}}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected missing source error, got nil")
	}
}

func TestNormalize_Defaults(t *testing.T) {
	cfg := base()
	cfg.LCloud.StatusExport = &StatusExportConfig{Endpoint: "x:1"}
	Normalize(cfg)

	lc := cfg.LCloud
	if lc.Bus.Endpoint != DefaultEndpoint {
		t.Fatalf("endpoint = %q", lc.Bus.Endpoint)
	}
	if lc.Cache.MaxBlocks != DefaultCacheBlocks || lc.Files.MaxHandles != DefaultMaxHandles {
		t.Fatalf("limits = %d, %d", lc.Cache.MaxBlocks, lc.Files.MaxHandles)
	}
	if lc.Log.Level != DefaultLogLevel {
		t.Fatalf("log level = %q", lc.Log.Level)
	}
	if lc.Simulator.Listen != DefaultEndpoint {
		t.Fatalf("simulator listen = %q", lc.Simulator.Listen)
	}
	if lc.StatusExport.IntervalMs != DefaultExportInterval || lc.StatusExport.TimeoutMs != DefaultExportTimeout {
		t.Fatalf("status export timing = %d, %d", lc.StatusExport.IntervalMs, lc.StatusExport.TimeoutMs)
	}
}

func TestNormalize_KeepsExplicitValues(t *testing.T) {
	cfg := base()
	cfg.LCloud.Bus.Endpoint = "10.0.0.1:9000"
	cfg.LCloud.Cache.MaxBlocks = 8
	Normalize(cfg)

	if cfg.LCloud.Bus.Endpoint != "10.0.0.1:9000" || cfg.LCloud.Cache.MaxBlocks != 8 {
		t.Fatalf("explicit values overwritten: %+v", cfg.LCloud)
	}
	if cfg.LCloud.Simulator.Listen != "10.0.0.1:9000" {
		t.Fatalf("simulator listen should follow bus endpoint, got %q", cfg.LCloud.Simulator.Listen)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lcloud.yaml")
	raw := `
lcloud:
  bus:
    endpoint: "127.0.0.1:16453"
    timeout_ms: 500
  cache:
    max_blocks: 32
  status_export:
    endpoint: "127.0.0.1:5020"
    unit_id: 3
    base_slot: 100
  simulator:
    devices:
      - { id: 0, sectors: 4, blocks: 16 }
      - { id: 9, sectors: 2, blocks: 8 }
  workload:
    files:
      - { path: "a", source: "./a.bin" }
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}

	lc := cfg.LCloud
	if lc.Bus.TimeoutMs != 500 || lc.Cache.MaxBlocks != 32 {
		t.Fatalf("bus/cache not decoded: %+v", lc)
	}
	if lc.StatusExport == nil || lc.StatusExport.UnitID != 3 || lc.StatusExport.BaseSlot != 100 {
		t.Fatalf("status_export not decoded: %+v", lc.StatusExport)
	}
	if len(lc.Simulator.Devices) != 2 || lc.Simulator.Devices[1].ID != 9 {
		t.Fatalf("devices not decoded: %+v", lc.Simulator.Devices)
	}
	if len(lc.Workload.Files) != 1 || lc.Workload.Files[0].Source != "./a.bin" {
		t.Fatalf("workload not decoded: %+v", lc.Workload)
	}
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte("lcloud:\n  cahce:\n    max_blocks: 1\n")); err == nil {
		t.Fatalf("expected unknown key error, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
