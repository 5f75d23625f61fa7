package vm

import (
	"math"

	"lumen/internal/ir"
)

// bufferPool recycles keyed buffers across installs, bucketed by length.
// Field buffers churn on every program swap; reusing them keeps steady-state
// editing allocation-free.
type bufferPool struct {
	free map[int][][]float64
}

func newBufferPool() bufferPool {
	return bufferPool{free: make(map[int][][]float64)}
}

func (p *bufferPool) get(n int) []float64 {
	bucket := p.free[n]
	if len(bucket) == 0 {
		return make([]float64, n)
	}
	buf := bucket[len(bucket)-1]
	p.free[n] = bucket[:len(bucket)-1]
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

func (p *bufferPool) put(buf []float64) {
	n := len(buf)
	if n == 0 {
		return
	}
	p.free[n] = append(p.free[n], buf)
}

// slotBuf returns the committed storage for a slot: a window into the
// scalar arena, or a keyed buffer allocated on first touch. The returned
// slice always holds exactly need scalars.
func (m *Machine) slotBuf(slot ir.SlotID, need int) []float64 {
	meta := m.prog.Slots[slot]
	if meta.Class == ir.StorageScalar {
		return m.scalars[meta.Offset : int(meta.Offset)+need]
	}
	buf, ok := m.keyed[slot]
	if !ok || len(buf) != need {
		buf = m.pool.get(need)
		m.keyed[slot] = buf
	}
	return buf
}

// scratchBuf returns the frame-local staging buffer, grown as needed.
func (m *Machine) scratchBuf(need int) []float64 {
	if cap(m.scratch) < need {
		m.scratch = make([]float64, need)
	}
	return m.scratch[:need]
}

// releaseKeyed returns every keyed buffer to the pool, for reuse by the
// next installed program.
func (m *Machine) releaseKeyed(keyed map[ir.SlotID][]float64) {
	for _, buf := range keyed {
		m.pool.put(buf)
	}
}

// firstNonFinite scans a buffer for NaN or infinities and returns the
// first offender.
func firstNonFinite(buf []float64) (float64, bool) {
	for _, v := range buf {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return v, true
		}
	}
	return 0, false
}
