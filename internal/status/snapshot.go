// internal/status/snapshot.go
package status

import (
	"github.com/tamzrod/lcloud/internal/filesys"
)

// Snapshot represents exactly what the writer is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	State uint16

	Hits        uint64
	Misses      uint64
	BlockReads  uint64
	BlockWrites uint64
	BlocksUsed  uint64
	BlocksTotal uint64

	OpenFiles   uint16
	Devices     uint16
	DevicesFull uint16
}

// FromStats maps filesystem stats onto the exported snapshot.
func FromStats(s filesys.Stats) Snapshot {
	return Snapshot{
		State:       stateCode(s.State),
		Hits:        s.Hits,
		Misses:      s.Misses,
		BlockReads:  s.BlockReads,
		BlockWrites: s.BlockWrites,
		BlocksUsed:  uint64(s.BlocksUsed),
		BlocksTotal: uint64(s.BlocksTotal),
		OpenFiles:   clamp16(s.OpenFiles),
		Devices:     clamp16(s.Devices),
		DevicesFull: clamp16(s.DevicesFull),
	}
}

func stateCode(s filesys.State) uint16 {
	switch s {
	case filesys.StatePoweredOn:
		return StatePoweredOn
	case filesys.StateOperational:
		return StateOperational
	case filesys.StateShutDown:
		return StateShutDown
	default:
		return StateUnopened
	}
}

func clamp16(n int) uint16 {
	switch {
	case n < 0:
		return 0
	case n > 0xFFFF:
		return 0xFFFF
	default:
		return uint16(n)
	}
}
