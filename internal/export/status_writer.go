// internal/export/status_writer.go
package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/lcloud/internal/status"
)

// StatusWriter is the delivery-only contract for filesystem status.
// It receives a snapshot and writes it verbatim.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// registerClient is the exact contract the writer uses.
type registerClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// Plan locates the status block on the endpoint.
type Plan struct {
	Endpoint string
	UnitID   uint8
	BaseSlot uint16
}

// blockWriter writes the status block, full first and incremental after.
type blockWriter struct {
	plan Plan
	cli  registerClient

	needFull bool
	last     []uint16
}

// NewStatusWriter builds a status writer against one endpoint client.
func NewStatusWriter(plan Plan, cli registerClient) *blockWriter {
	return &blockWriter{
		plan:     plan,
		cli:      cli,
		needFull: true, // full re-assert on first successful write
		last:     make([]uint16, status.SlotCount),
	}
}

// WriteStatus delivers a snapshot into status memory.
// On any write failure, the next call re-asserts the full block.
func (w *blockWriter) WriteStatus(s status.Snapshot) error {
	if w == nil || w.cli == nil {
		return errors.New("status writer: no client")
	}

	regs := status.Encode(s)

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if w.needFull {
		if err := w.cli.WriteRegisters(w.plan.UnitID, w.plan.BaseSlot, regs); err != nil {
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}
		w.needFull = false
		copy(w.last, regs)
		return nil
	}

	// ------------------------------------------------------------
	// Incremental: one write per run of changed slots
	// ------------------------------------------------------------
	var errs []string

	for _, r := range changedRuns(w.last, regs) {
		if err := w.cli.WriteRegisters(
			w.plan.UnitID,
			w.plan.BaseSlot+uint16(r.start),
			regs[r.start:r.end],
		); err != nil {
			errs = append(errs, fmt.Sprintf("slots %d-%d write failed: %v", r.start, r.end-1, err))
			continue
		}
		copy(w.last[r.start:r.end], regs[r.start:r.end])
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt; re-assert on next call.
		w.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}

	return nil
}

type run struct{ start, end int } // [start, end)

func changedRuns(prev, next []uint16) []run {
	var out []run
	for i := 0; i < len(next); i++ {
		if prev[i] == next[i] {
			continue
		}
		j := i + 1
		for j < len(next) && prev[j] != next[j] {
			j++
		}
		out = append(out, run{start: i, end: j})
		i = j
	}
	return out
}
