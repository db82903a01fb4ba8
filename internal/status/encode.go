// internal/status/encode.go
package status

// Encode converts a Snapshot into a full status block.
// Counters saturate at 32 bits.
// No IO. No side effects.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, SlotCount)

	regs[SlotState] = s.State

	put32(regs, SlotHitsHi, s.Hits)
	put32(regs, SlotMissesHi, s.Misses)
	put32(regs, SlotBlockReadsHi, s.BlockReads)
	put32(regs, SlotBlockWritesHi, s.BlockWrites)
	put32(regs, SlotBlocksUsedHi, s.BlocksUsed)
	put32(regs, SlotBlocksTotalHi, s.BlocksTotal)

	regs[SlotOpenFiles] = s.OpenFiles
	regs[SlotDevices] = s.Devices
	regs[SlotDevicesFull] = s.DevicesFull

	return regs
}

func put32(regs []uint16, hi int, v uint64) {
	if v > 0xFFFFFFFF {
		v = 0xFFFFFFFF
	}
	regs[hi] = uint16(v >> 16)
	regs[hi+1] = uint16(v)
}
