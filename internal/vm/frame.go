package vm

import (
	"fmt"

	"lumen/internal/diag"
	"lumen/internal/ir"
	"lumen/internal/remap"
	"lumen/internal/types"
)

// FrameInfo summarizes one evaluated frame.
type FrameInfo struct {
	Frame  uint64
	Time   float64
	Faults int
}

// Frame advances the machine by dt seconds: it walks the schedule in phase
// order, emits render frames to the attached sinks, records probes, and
// commits state writes last. The frame evaluates at the pre-advance clock,
// so the first frame runs at t = 0. A faulting step leaves its slot at the
// last written value and the frame continues.
func (m *Machine) Frame(dt float64) FrameInfo {
	if m.prog == nil {
		panic("vm: Frame before Install")
	}
	m.delta = dt
	before := m.rep.total()

	for i, step := range m.prog.Steps {
		switch step.Phase {
		case ir.PhaseTime, ir.PhaseScalar, ir.PhaseField, ir.PhaseEvent:
			m.evalStep(uint32(i), step)
		case ir.PhaseRemap:
			// Lane mappings are settled at install; the step marks where
			// a dynamic-shape runtime would rebuild them.
		case ir.PhaseReconcile:
			m.reconcile(step)
		case ir.PhaseRender:
			m.render(step)
		case ir.PhaseState:
			m.writeState(uint32(i), step)
		}
	}

	for i := range m.inputFired {
		m.inputFired[i] = false
	}

	info := FrameInfo{Frame: m.frame, Time: m.time, Faults: m.rep.total() - before}
	m.time += dt
	m.frame++
	return info
}

// evalStep computes one expression into scratch, validates it, and commits
// it to the slot. Committing only on success is what makes every slot hold
// its last known good value across faults.
func (m *Machine) evalStep(idx uint32, step ir.Step) {
	e := &m.prog.Exprs[step.Expr]
	stride := int(m.prog.Slots[step.Slot].Stride)
	lanes := m.slotLanes(step.Slot)
	need := lanes * stride

	scratch := m.scratchBuf(need)
	if err := m.eval(e, scratch, lanes, stride); err != nil {
		m.rep.report(diag.NewWarning(diag.RunBufferShape, diag.AtStep(idx),
			fmt.Sprintf("step %d (%s): %v; holding previous value", idx, e.Kind, err)))
		return
	}
	if bad, ok := firstNonFinite(scratch); ok {
		m.rep.report(diag.NewWarning(diag.RunNonFinite, diag.AtStep(idx),
			fmt.Sprintf("step %d (%s %s) produced %v; holding previous value", idx, e.Kind, e.Op, bad)))
		return
	}
	copy(m.slotBuf(step.Slot, need), scratch)
}

// reconcile applies continuity to one field buffer: on the first visit
// after an install it turns the staged old values into gauge offsets
// against the freshly evaluated base, then blends the gauge in per policy.
func (m *Machine) reconcile(step ir.Step) {
	stride := int(m.prog.Slots[step.Slot].Stride)
	lanes := m.slotLanes(step.Slot)
	buf := m.slotBuf(step.Slot, lanes*stride)

	if co, ok := m.pending[step.Slot]; ok {
		delete(m.pending, step.Slot)
		off := remap.Offsets(co.mapping, stride, co.old, buf)
		if g := remap.NewGauge(co.pop.Policy, co.pop.Tau, co.pop.Fade, off); g != nil {
			m.gauges[step.Slot] = g
		}
	}
	if g, ok := m.gauges[step.Slot]; ok {
		g.Apply(buf, m.delta)
		if g.Done() {
			delete(m.gauges, step.Slot)
		}
	}
}

// render emits one sink. Probe sinks record into the probe table; render
// sinks go to every attached consumer.
func (m *Machine) render(step ir.Step) {
	s := &m.prog.Sinks[step.Sink]
	if s.Kind == ir.SinkProbe {
		slot := s.Params[0].Slot
		stride := int(m.prog.Slots[slot].Stride)
		buf := m.slotBuf(slot, m.slotLanes(slot)*stride)
		m.probes[s.Name] = append(m.probes[s.Name][:0], buf...)
		return
	}
	if len(m.sinks) == 0 {
		return
	}
	lanes := 1
	if s.Inst != types.NoInstance {
		lanes = m.prog.Lanes(s.Inst)
	}
	f := RenderFrame{
		Sink:     s.Name,
		Frame:    m.frame,
		Time:     m.time,
		Topology: s.Topology,
		Blend:    s.Blend,
		Lanes:    lanes,
	}
	f.Values = make([]Value, len(s.Params))
	for i, pr := range s.Params {
		stride := int(m.prog.Slots[pr.Slot].Stride)
		f.Values[i] = Value{
			Name:   pr.Name,
			Stride: stride,
			Lanes:  m.slotLanes(pr.Slot),
			Data:   m.slotBuf(pr.Slot, m.slotLanes(pr.Slot)*stride),
		}
	}
	for _, sink := range m.sinks {
		sink.Render(f)
	}
}

// writeState commits one state cell from its evaluated write expression.
func (m *Machine) writeState(idx uint32, step ir.Step) {
	decl := m.prog.States[step.State]
	cells := m.states[decl.Identity]
	stride := int(m.prog.Slots[step.Slot].Stride)
	src := m.slotBuf(step.Slot, m.slotLanes(step.Slot)*stride)
	if len(src) != len(cells) {
		m.rep.report(diag.NewWarning(diag.RunBufferShape, diag.AtStep(idx),
			fmt.Sprintf("state %s write carries %d scalars for %d cells; holding",
				decl.Kind, len(src), len(cells))))
		return
	}
	copy(cells, src)
}
