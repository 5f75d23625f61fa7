package vm

import (
	"fmt"

	"lumen/internal/ir"
	"lumen/internal/types"
)

// src is one child operand resolved through its slot: the committed buffer,
// its stride, and whether it broadcasts a single lane over the parent's
// lanes.
type src struct {
	buf    []float64
	stride int
	single bool
}

// comp reads one component of one lane with broadcast semantics.
func (s src) comp(lane, c int) float64 {
	if s.single {
		return s.buf[c]
	}
	return s.buf[lane*s.stride+c]
}

// lanes returns the operand's own lane count.
func (s src) lanes() int {
	if s.stride == 0 {
		return 0
	}
	return len(s.buf) / s.stride
}

// childSrc resolves a child expression to its already-committed slot
// buffer. Schedule order guarantees children are scheduled no later than
// their parents, so the buffer is current or last known good.
func (m *Machine) childSrc(id ir.ExprID) (src, error) {
	slot := m.slotOf[id]
	if slot == ir.NoSlot {
		return src{}, fmt.Errorf("expression e%d has no slot", id)
	}
	stride := int(m.prog.Slots[slot].Stride)
	lanes := m.slotLanes(slot)
	return src{
		buf:    m.slotBuf(slot, lanes*stride),
		stride: stride,
		single: lanes == 1,
	}, nil
}

// eval computes one expression into dst, which holds lanes*stride scalars.
func (m *Machine) eval(e *ir.Expr, dst []float64, lanes, stride int) error {
	switch e.Kind {
	case ir.ExprConst:
		copy(dst, e.Lit)
		return nil

	case ir.ExprInput:
		copy(dst, m.inputs[e.Ref].value)
		return nil

	case ir.ExprTime:
		switch e.Op {
		case ir.OpTimeSeconds:
			dst[0] = m.time
		case ir.OpTimeDelta:
			dst[0] = m.delta
		case ir.OpTimeFrame:
			dst[0] = float64(m.frame)
		}
		return nil

	case ir.ExprShape:
		dst[0] = float64(e.Ref)
		return nil

	case ir.ExprIntrinsic:
		return evalIntrinsic(e, dst, lanes)

	case ir.ExprStateRead:
		cells := m.states[m.prog.States[e.Ref].Identity]
		if len(cells) != len(dst) {
			return fmt.Errorf("state read of %d scalars into %d", len(cells), len(dst))
		}
		copy(dst, cells)
		return nil

	case ir.ExprSlotRead:
		buf := m.slotBuf(ir.SlotID(e.Ref), len(dst))
		copy(dst, buf)
		return nil

	case ir.ExprEvent:
		return m.evalEvent(e, dst, lanes)

	case ir.ExprEventRead:
		return m.evalEventRead(e, dst, lanes, stride)

	case ir.ExprKernel:
		return m.evalKernel(e, dst, lanes, stride)

	default:
		return fmt.Errorf("unevaluable expression kind %s", e.Kind)
	}
}

func evalIntrinsic(e *ir.Expr, dst []float64, lanes int) error {
	switch e.Op {
	case ir.OpSpread:
		if lanes <= 1 {
			for i := range dst {
				dst[i] = 0
			}
			return nil
		}
		for lane := 0; lane < lanes; lane++ {
			dst[lane] = float64(lane) / float64(lanes-1)
		}
	case ir.OpLaneIndex:
		for lane := 0; lane < lanes; lane++ {
			dst[lane] = float64(lane)
		}
	case ir.OpLaneRandom:
		seed := uint64(int64(e.Lit[0]))
		for lane := 0; lane < lanes; lane++ {
			dst[lane] = laneRandom(seed, uint64(lane))
		}
	}
	return nil
}

// laneRandom is a stable per-lane hash mapped to [0, 1). The same seed and
// lane always produce the same value, across frames and recompilations.
func laneRandom(seed, lane uint64) float64 {
	x := seed*0x9E3779B97F4A7C15 + lane*0xBF58476D1CE4E5B9 + 0x94D049BB133111EB
	x ^= x >> 30
	x *= 0xBF58476D1CE4E5B9
	x ^= x >> 27
	x *= 0x94D049BB133111EB
	x ^= x >> 31
	return float64(x>>11) / float64(uint64(1)<<53)
}

// evalEvent runs one event source. The destination holds per-lane fired
// flags; the accumulator cell lives in the state table and is updated here,
// during the event phase.
func (m *Machine) evalEvent(e *ir.Expr, dst []float64, lanes int) error {
	decl := m.prog.States[e.Ref]
	cells := m.states[decl.Identity]

	switch e.Op {
	case ir.OpPulse:
		period := e.Lit[0]
		if period <= 0 {
			return fmt.Errorf("pulse with period %v", period)
		}
		fired := 0.0
		if m.time >= cells[0]+period {
			fired = 1
			for cells[0]+period <= m.time {
				cells[0] += period
			}
		}
		dst[0] = fired
		return nil

	case ir.OpWrap:
		phase, err := m.childSrc(e.Args[0])
		if err != nil {
			return err
		}
		if len(cells) < lanes {
			return fmt.Errorf("wrap cell holds %d lanes of %d", len(cells), lanes)
		}
		for lane := 0; lane < lanes; lane++ {
			cur := phase.comp(lane, 0)
			if cur < cells[lane] {
				dst[lane] = 1
			} else {
				dst[lane] = 0
			}
			cells[lane] = cur
		}
		return nil
	}
	return fmt.Errorf("unknown event op %s", e.Op)
}

// evalEventRead reads the fired flag or payload of an event source or an
// external trigger.
func (m *Machine) evalEventRead(e *ir.Expr, dst []float64, lanes, stride int) error {
	child := m.prog.Exprs[e.Args[0]]
	if child.Kind == ir.ExprInput {
		switch e.Op {
		case ir.OpEventFired:
			v := 0.0
			if m.inputFired[child.Ref] {
				v = 1
			}
			for i := range dst {
				dst[i] = v
			}
		case ir.OpEventValue:
			copy(dst, m.inputs[child.Ref].value)
		}
		return nil
	}
	// Event sources publish per-lane fired flags as their value.
	s, err := m.childSrc(e.Args[0])
	if err != nil {
		return err
	}
	for lane := 0; lane < lanes; lane++ {
		for c := 0; c < stride; c++ {
			dst[lane*stride+c] = s.comp(lane, 0)
		}
	}
	return nil
}

func (m *Machine) slotLanes(slot ir.SlotID) int {
	meta := m.prog.Slots[slot]
	if meta.Inst == types.NoInstance {
		return 1
	}
	return m.prog.Lanes(meta.Inst)
}
