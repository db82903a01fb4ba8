// internal/config/normalize.go
package config

const (
	DefaultEndpoint       = "127.0.0.1:16453"
	DefaultCacheBlocks    = 64
	DefaultMaxHandles     = 1024
	DefaultLogLevel       = "info"
	DefaultExportInterval = 1000
	DefaultExportTimeout  = 1000
)

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	lc := &cfg.LCloud

	if lc.Bus.Endpoint == "" {
		lc.Bus.Endpoint = DefaultEndpoint
	}
	if lc.Cache.MaxBlocks == 0 {
		lc.Cache.MaxBlocks = DefaultCacheBlocks
	}
	if lc.Files.MaxHandles == 0 {
		lc.Files.MaxHandles = DefaultMaxHandles
	}
	if lc.Log.Level == "" {
		lc.Log.Level = DefaultLogLevel
	}
	if lc.Simulator.Listen == "" {
		lc.Simulator.Listen = lc.Bus.Endpoint
	}

	// ------------------------------------------------------------
	// STATUS EXPORT (OPT-IN)
	// ------------------------------------------------------------

	if se := lc.StatusExport; se != nil {
		if se.IntervalMs == 0 {
			se.IntervalMs = DefaultExportInterval
		}
		if se.TimeoutMs == 0 {
			se.TimeoutMs = DefaultExportTimeout
		}
	}
}
