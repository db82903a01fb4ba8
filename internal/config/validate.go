// internal/config/validate.go
package config

import (
	"fmt"

	"github.com/tamzrod/lcloud/internal/status"
)

var logLevels = map[string]bool{
	"":      true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	lc := cfg.LCloud

	// ------------------------------------------------------------
	// BUS / CACHE / FILES / LOG
	// ------------------------------------------------------------

	if lc.Bus.TimeoutMs < 0 {
		return fmt.Errorf("bus: timeout_ms must be >= 0 (got %d)", lc.Bus.TimeoutMs)
	}
	if lc.Cache.MaxBlocks < 0 {
		return fmt.Errorf("cache: max_blocks must be >= 0 (got %d)", lc.Cache.MaxBlocks)
	}
	if lc.Files.MaxHandles < 0 {
		return fmt.Errorf("files: max_handles must be >= 0 (got %d)", lc.Files.MaxHandles)
	}
	if !logLevels[lc.Log.Level] {
		return fmt.Errorf("log: unknown level %q", lc.Log.Level)
	}

	// ------------------------------------------------------------
	// STATUS EXPORT (OPT-IN)
	// ------------------------------------------------------------

	if se := lc.StatusExport; se != nil {
		if se.Endpoint == "" {
			return fmt.Errorf("status_export: endpoint is required")
		}
		if se.IntervalMs < 0 || se.TimeoutMs < 0 {
			return fmt.Errorf(
				"status_export: interval_ms and timeout_ms must be >= 0 (got %d, %d)",
				se.IntervalMs,
				se.TimeoutMs,
			)
		}

		end := int(se.BaseSlot) + status.SlotCount
		if end > 0x10000 {
			return fmt.Errorf(
				"status_export: base_slot %d leaves no room for %d registers",
				se.BaseSlot,
				status.SlotCount,
			)
		}
	}

	// ------------------------------------------------------------
	// SIMULATOR DEVICES
	// ------------------------------------------------------------

	seen := make(map[uint8]bool)

	for _, d := range lc.Simulator.Devices {
		if d.ID >= 16 {
			return fmt.Errorf("simulator: device id %d out of range 0-15", d.ID)
		}
		if seen[d.ID] {
			return fmt.Errorf("simulator: duplicate device id %d", d.ID)
		}
		seen[d.ID] = true
	}

	// ------------------------------------------------------------
	// WORKLOAD
	// ------------------------------------------------------------

	paths := make(map[string]bool)

	for i, f := range lc.Workload.Files {
		if f.Path == "" || f.Source == "" {
			return fmt.Errorf("workload: file %d needs both path and source", i)
		}
		if paths[f.Path] {
			return fmt.Errorf("workload: duplicate path %q", f.Path)
		}
		paths[f.Path] = true
	}

	return nil
}
