// internal/status/constants.go
package status

// Filesystem status block layout constants.
// These values define the exported register map and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotCount is the fixed number of registers in the status block.
const SlotCount = 16

// ---- SLOT INDICES ----

// SlotState holds the filesystem lifecycle state.
const SlotState = 0

// 32-bit counters occupy two slots, high word first.
const (
	SlotHitsHi        = 1
	SlotHitsLo        = 2
	SlotMissesHi      = 3
	SlotMissesLo      = 4
	SlotBlockReadsHi  = 5
	SlotBlockReadsLo  = 6
	SlotBlockWritesHi = 7
	SlotBlockWritesLo = 8
	SlotBlocksUsedHi  = 9
	SlotBlocksUsedLo  = 10
	SlotBlocksTotalHi = 11
	SlotBlocksTotalLo = 12
)

// SlotOpenFiles holds the number of open handles.
const SlotOpenFiles = 13

// SlotDevices holds the number of discovered devices.
const SlotDevices = 14

// SlotDevicesFull holds the number of devices the allocator gave up on.
const SlotDevicesFull = 15

// ---- STATE CODES ----

const (
	StateUnopened    uint16 = 0
	StatePoweredOn   uint16 = 1
	StateOperational uint16 = 2
	StateShutDown    uint16 = 3
)
