// Package vm executes compiled programs frame by frame. The machine walks
// the program's phase-ordered schedule, resolving every value through one
// slot indirection: scalar slots live in a contiguous arena, field and wide
// slots in pooled keyed buffers. Persistent state is keyed by declaration
// identity so it survives program swaps; runtime faults never abort a
// frame, the faulting slot keeps its last written value instead.
package vm

import (
	"fmt"

	"lumen/internal/diag"
	"lumen/internal/domain"
	"lumen/internal/ir"
	"lumen/internal/remap"
	"lumen/internal/types"
)

// Machine owns the runtime storage for one program and evaluates it one
// frame at a time. It is not safe for concurrent use; the session layer
// serializes installs against frames.
type Machine struct {
	prog *ir.Program

	scalars []float64               // scalar arena
	keyed   map[ir.SlotID][]float64 // field and wide buffers
	pool    bufferPool
	scratch []float64

	slotOf []ir.SlotID // expr id -> slot, built from the schedule

	states map[uint64][]float64 // state identity -> cells

	inputs     []inputCell
	inputIDs   map[string]ir.InputID
	inputFired []bool

	pending map[ir.SlotID]*carryOver // continuity staged at install
	gauges  map[ir.SlotID]*remap.Gauge

	sinks  []RenderSink
	probes map[string][]float64

	rep *reporter

	time  float64
	delta float64
	frame uint64
}

type inputCell struct {
	value []float64
	event bool
}

// carryOver is one reconcile target's staged continuity: the old displayed
// values and the lane mapping, waiting for the first evaluation of the new
// base to turn into a gauge.
type carryOver struct {
	old     []float64
	mapping remap.Mapping
	pop     ir.PopDecl
}

// InstallReport says what happened to persistent state across an install.
type InstallReport struct {
	CarriedStates int
	ResetStates   int
	RemappedPops  int
}

// New returns an empty machine. Install must run before the first frame.
func New() *Machine {
	return &Machine{
		keyed:  make(map[ir.SlotID][]float64),
		states: make(map[uint64][]float64),
		pool:   newBufferPool(),
		gauges: make(map[ir.SlotID]*remap.Gauge),
		probes: make(map[string][]float64),
		rep:    newReporter(),
	}
}

// Program returns the currently installed program, nil before the first
// install.
func (m *Machine) Program() *ir.Program { return m.prog }

// Install swaps the machine onto a new program between frames. State cells
// whose identity survives are carried over, remapped across population
// shape changes; everything else resets to its declared initial value.
// Field continuity for policied populations is staged here and resolved on
// the first frame's reconcile steps.
func (m *Machine) Install(p *ir.Program) InstallReport {
	old := m.prog
	oldStates := m.states
	oldKeyed := m.keyed
	oldScalars := m.scalars
	oldInputs := m.inputs
	oldInputIDs := m.inputIDs

	mappings, remapped := m.popMappings(old, p)

	m.rep.reset()
	m.prog = p
	m.scalars = make([]float64, p.ScalarWords)
	m.keyed = make(map[ir.SlotID][]float64, 16)
	m.slotOf = exprSlots(p)
	m.gauges = make(map[ir.SlotID]*remap.Gauge)
	m.pending = m.stageContinuity(old, p, mappings, oldKeyed, oldScalars)
	m.releaseKeyed(oldKeyed)

	report := m.carryStates(p, oldStates, mappings)
	report.RemappedPops = remapped

	m.inputs = make([]inputCell, len(p.Inputs))
	m.inputIDs = make(map[string]ir.InputID, len(p.Inputs))
	m.inputFired = make([]bool, len(p.Inputs))
	for i, d := range p.Inputs {
		id := ir.InputID(i)
		m.inputIDs[d.Name] = id
		cell := inputCell{value: append([]float64(nil), d.Default...), event: d.Event}
		if oldID, ok := oldInputIDs[d.Name]; ok {
			prev := oldInputs[oldID]
			if len(prev.value) == len(cell.value) && prev.event == cell.event {
				copy(cell.value, prev.value)
			}
		}
		m.inputs[i] = cell
	}

	m.probes = make(map[string][]float64, len(p.Sinks))
	return report
}

// exprSlots inverts the schedule's eval steps into an expr -> slot index.
func exprSlots(p *ir.Program) []ir.SlotID {
	out := make([]ir.SlotID, len(p.Exprs))
	for i := range out {
		out[i] = ir.NoSlot
	}
	for _, s := range p.Steps {
		switch s.Phase {
		case ir.PhaseTime, ir.PhaseScalar, ir.PhaseField, ir.PhaseEvent:
			out[s.Expr] = s.Slot
		}
	}
	return out
}

// popMappings builds, per population of the new program, the lane mapping
// from the old program's same-instance population. Identity mapping when
// nothing changed, keyed or positional matching per the declared policy,
// and a prefix mapping as the fallback.
func (m *Machine) popMappings(old, p *ir.Program) (map[types.InstanceID]remap.Mapping, int) {
	out := make(map[types.InstanceID]remap.Mapping, len(p.Pops))
	remapped := 0
	for _, np := range p.Pops {
		lanes := int(np.Lanes)
		if old == nil {
			out[np.Inst] = remap.Disjoint(lanes)
			continue
		}
		op, ok := old.Pop(np.Inst)
		if !ok {
			out[np.Inst] = remap.Disjoint(lanes)
			continue
		}
		mp := laneMapping(op, np)
		out[np.Inst] = mp
		if op.Lanes != np.Lanes || mp.Mapped() != lanes {
			remapped++
		}
	}
	return out, remapped
}

func laneMapping(old, cur ir.PopDecl) remap.Mapping {
	switch {
	case cur.MapBy == domain.MapByID && old.Keys != nil && cur.Keys != nil:
		return remap.ByKeys(old.Keys, cur.Keys)
	case cur.MapBy == domain.MapByPosition && old.Rest != nil && cur.Rest != nil:
		return remap.ByRest(old.Rest, cur.Rest)
	}
	// Prefix mapping: shared lanes keep their index, grown lanes are new.
	mp := remap.Disjoint(int(cur.Lanes))
	n := int(min(old.Lanes, cur.Lanes))
	for i := 0; i < n; i++ {
		mp.From[i] = int32(i)
	}
	return mp
}

// stageContinuity captures, for each reconcile target of the new program,
// the old program's displayed values for the same sink parameter. The gauge
// is built lazily on the first reconcile step, once the new base exists.
func (m *Machine) stageContinuity(old, p *ir.Program, mappings map[types.InstanceID]remap.Mapping,
	oldKeyed map[ir.SlotID][]float64, oldScalars []float64) map[ir.SlotID]*carryOver {

	pending := make(map[ir.SlotID]*carryOver)
	if old == nil {
		return pending
	}
	for _, step := range p.Steps {
		if step.Phase != ir.PhaseReconcile {
			continue
		}
		pop, ok := p.Pop(step.Inst)
		if !ok {
			continue
		}
		sinkName, paramName, ok := slotParam(p, step.Slot)
		if !ok {
			continue
		}
		oldSlot, ok := paramSlot(old, sinkName, paramName)
		if !ok {
			continue
		}
		oldVals := slotValues(old, oldSlot, oldKeyed, oldScalars)
		if oldVals == nil {
			continue
		}
		pending[step.Slot] = &carryOver{
			old:     append([]float64(nil), oldVals...),
			mapping: mappings[step.Inst],
			pop:     pop,
		}
	}
	return pending
}

// slotParam finds the sink and parameter a slot feeds.
func slotParam(p *ir.Program, slot ir.SlotID) (sink, param string, ok bool) {
	for _, s := range p.Sinks {
		for _, pr := range s.Params {
			if pr.Slot == slot {
				return s.Name, pr.Name, true
			}
		}
	}
	return "", "", false
}

// paramSlot finds the slot feeding a named sink parameter.
func paramSlot(p *ir.Program, sink, param string) (ir.SlotID, bool) {
	for _, s := range p.Sinks {
		if s.Name != sink {
			continue
		}
		for _, pr := range s.Params {
			if pr.Name == param {
				return pr.Slot, true
			}
		}
	}
	return ir.NoSlot, false
}

func slotValues(p *ir.Program, slot ir.SlotID, keyed map[ir.SlotID][]float64, scalars []float64) []float64 {
	meta := p.Slots[slot]
	if meta.Class == ir.StorageKeyed {
		return keyed[slot]
	}
	end := meta.Offset + uint32(meta.Stride)
	if int(end) > len(scalars) {
		return nil
	}
	return scalars[meta.Offset:end]
}

// carryStates moves old cells onto the new program's declarations. Field
// states are remapped lane by lane; lanes without an old counterpart start
// from the declared init.
func (m *Machine) carryStates(p *ir.Program, old map[uint64][]float64,
	mappings map[types.InstanceID]remap.Mapping) InstallReport {

	var rep InstallReport
	m.states = make(map[uint64][]float64, len(p.States))
	for i, decl := range p.States {
		stride := decl.Type.Stride()
		lanes := 1
		if decl.Inst != types.NoInstance {
			lanes = p.Lanes(decl.Inst)
		}
		cells := make([]float64, lanes*stride)
		for lane := 0; lane < lanes; lane++ {
			copy(cells[lane*stride:], decl.Init)
		}

		prev, ok := old[decl.Identity]
		switch {
		case !ok:
			if len(old) > 0 {
				rep.ResetStates++
				m.rep.report(diag.NewInfo(diag.RunStateReset, diag.AtState(uint32(i)),
					fmt.Sprintf("state %s (%#x) starts fresh", decl.Kind, decl.Identity)))
			}
		case decl.Inst == types.NoInstance:
			if len(prev) == stride {
				copy(cells, prev)
				rep.CarriedStates++
			} else {
				rep.ResetStates++
			}
		default:
			mp := mappings[decl.Inst]
			oldLanes := len(prev) / stride
			for lane := 0; lane < lanes && lane < mp.Lanes(); lane++ {
				from := mp.From[lane]
				if from == remap.NoLane || int(from) >= oldLanes {
					continue
				}
				copy(cells[lane*stride:(lane+1)*stride], prev[int(from)*stride:])
			}
			rep.CarriedStates++
		}
		m.states[decl.Identity] = cells
	}
	return rep
}

// AttachSink registers a render consumer. Frames emitted to it reference
// machine-owned buffers that are only valid during the call.
func (m *Machine) AttachSink(s RenderSink) {
	m.sinks = append(m.sinks, s)
}

// SetInput writes a named external input, effective from the next frame.
func (m *Machine) SetInput(name string, vals ...float64) error {
	id, ok := m.inputIDs[name]
	if !ok {
		return fmt.Errorf("vm: no input %q", name)
	}
	cell := &m.inputs[id]
	if len(vals) != len(cell.value) {
		return fmt.Errorf("vm: input %q takes %d scalars, got %d", name, len(cell.value), len(vals))
	}
	copy(cell.value, vals)
	return nil
}

// Fire marks a trigger input as fired for the next frame.
func (m *Machine) Fire(name string) error {
	id, ok := m.inputIDs[name]
	if !ok {
		return fmt.Errorf("vm: no input %q", name)
	}
	if !m.inputs[id].event {
		return fmt.Errorf("vm: input %q is continuous, not a trigger", name)
	}
	m.inputFired[id] = true
	return nil
}

// Probe returns the value a named probe sink recorded during the last
// frame. The slice is owned by the machine and valid until the next frame.
func (m *Machine) Probe(name string) ([]float64, bool) {
	v, ok := m.probes[name]
	return v, ok
}

// Faults drains the runtime diagnostics collected so far. Each distinct
// fault is reported once per install.
func (m *Machine) Faults() []diag.Diagnostic { return m.rep.drain() }
