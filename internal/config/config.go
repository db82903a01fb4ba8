// internal/config/config.go
package config

type Config struct {
	LCloud LCloudConfig `yaml:"lcloud"`
}

type LCloudConfig struct {
	Bus          BusConfig           `yaml:"bus"`
	Cache        CacheConfig         `yaml:"cache"`
	Files        FilesConfig         `yaml:"files"`
	Log          LogConfig           `yaml:"log"`
	StatusExport *StatusExportConfig `yaml:"status_export"` // optional
	Simulator    SimulatorConfig     `yaml:"simulator"`
	Workload     WorkloadConfig      `yaml:"workload"`
}

// ---- BUS ----

type BusConfig struct {
	Endpoint  string `yaml:"endpoint"`
	TimeoutMs int    `yaml:"timeout_ms"` // 0 = no deadline
}

// ---- CACHE / FILES ----

type CacheConfig struct {
	MaxBlocks int `yaml:"max_blocks"`
}

type FilesConfig struct {
	MaxHandles int `yaml:"max_handles"`
}

// ---- LOG ----

type LogConfig struct {
	Level       string `yaml:"level"` // debug | info | warn | error
	Development bool   `yaml:"development"`
}

// ---- STATUS EXPORT ----

type StatusExportConfig struct {
	Endpoint   string `yaml:"endpoint"`
	UnitID     uint8  `yaml:"unit_id"`
	BaseSlot   uint16 `yaml:"base_slot"`
	IntervalMs int    `yaml:"interval_ms"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

// ---- SIMULATOR ----

type SimulatorConfig struct {
	Listen  string         `yaml:"listen"` // defaults to the bus endpoint
	Devices []DeviceConfig `yaml:"devices"`
}

type DeviceConfig struct {
	ID      uint8  `yaml:"id"`
	Sectors uint16 `yaml:"sectors"`
	Blocks  uint16 `yaml:"blocks"`
}

// ---- WORKLOAD ----

type WorkloadConfig struct {
	Files []WorkloadFile `yaml:"files"`
}

// WorkloadFile copies a local file into the filesystem and reads it back.
type WorkloadFile struct {
	Path   string `yaml:"path"`
	Source string `yaml:"source"`
}
