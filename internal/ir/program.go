package ir

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"

	"lumen/internal/domain"
	"lumen/internal/types"
)

// SinkKind distinguishes the two sink surfaces a program can write to.
type SinkKind uint8

const (
	SinkRender SinkKind = iota
	SinkProbe
)

func (k SinkKind) String() string {
	if k == SinkProbe {
		return "probe"
	}
	return "render"
}

// BlendMode is the render sink's compositing mode, passed through to the
// renderer untouched.
type BlendMode uint8

const (
	BlendAlpha BlendMode = iota
	BlendAdd
)

func (b BlendMode) String() string {
	if b == BlendAdd {
		return "add"
	}
	return "alpha"
}

// SinkParam names one evaluated parameter of a sink and the slot it is read
// from.
type SinkParam struct {
	Name string
	Slot SlotID
}

// SinkDecl describes one render or probe sink: where its evaluated
// parameters live and, for render sinks, the topology and instance scope of
// the emitted description.
type SinkDecl struct {
	Kind     SinkKind
	Name     string
	Blend    BlendMode
	Topology TopologyID
	Inst     types.InstanceID // population the sink instances over
	Params   []SinkParam
}

// InputDecl declares one named external input the host feeds per frame.
type InputDecl struct {
	Name    string
	Type    types.Type
	Default []float64 // stride-many scalars used until the host writes
	Event   bool      // discrete trigger rather than continuous value
}

// PopDecl is the runtime erasure of a declared population: its lane count,
// layout constants and continuity configuration. No domain registry object
// survives into the executor.
type PopDecl struct {
	Inst   types.InstanceID
	Lanes  uint32
	Keys   []uint64
	Rest   [][2]float64
	Policy domain.Policy
	MapBy  domain.MapBy
	Tau    float64
	Fade   float64
}

// Program is the compiled artifact: the hash-consed expression table, slot
// and state declarations, the phase-ordered schedule, sink and input
// surfaces, and erased population layouts. It is immutable once built; the
// executor and all inspectors consume it read-only.
type Program struct {
	Exprs  []Expr
	Slots  []SlotMeta
	States []StateDecl
	Steps  []Step
	Sinks  []SinkDecl
	Inputs []InputDecl
	Pops   []PopDecl

	// ScalarWords is the size of the contiguous scalar arena.
	ScalarWords uint32

	// Fingerprint identifies the compiled content for swap deduplication
	// and snapshot integrity.
	Fingerprint uint64

	// SlotExpr is a debug-only index from slot id to the expression whose
	// value the slot holds (NoExpr for slots without a single producer).
	// Tooling may read it; execution never does.
	SlotExpr []ExprID
}

// Pop returns the erased population for an instance id.
func (p *Program) Pop(inst types.InstanceID) (PopDecl, bool) {
	for i := range p.Pops {
		if p.Pops[i].Inst == inst {
			return p.Pops[i], true
		}
	}
	return PopDecl{}, false
}

// Lanes returns the lane count for an instance id, zero when unknown.
func (p *Program) Lanes(inst types.InstanceID) int {
	if d, ok := p.Pop(inst); ok {
		return int(d.Lanes)
	}
	return 0
}

// Input resolves a declared input by name.
func (p *Program) Input(name string) (InputID, bool) {
	for i := range p.Inputs {
		if p.Inputs[i].Name == name {
			return InputID(i), true
		}
	}
	return 0, false
}

// Validate checks cross-table invariants of a finished program. Lowering
// always produces valid programs; Validate exists for snapshot decoding and
// external tooling, so it returns errors instead of panicking.
func (p *Program) Validate() error {
	var errs []error
	for i, e := range p.Exprs {
		if i == 0 {
			continue
		}
		for _, a := range e.Args {
			if int(a) >= len(p.Exprs) || a == NoExpr {
				errs = append(errs, fmt.Errorf("e%d: child e%d out of range", i, a))
			}
		}
		if e.Kind == ExprSlotRead && int(e.Ref) >= len(p.Slots) {
			errs = append(errs, fmt.Errorf("e%d: slot s%d out of range", i, e.Ref))
		}
		if e.Kind == ExprStateRead && int(e.Ref) >= len(p.States) {
			errs = append(errs, fmt.Errorf("e%d: state st%d out of range", i, e.Ref))
		}
	}
	for i, s := range p.Slots {
		if s.Class == StorageScalar && s.Offset+uint32(s.Stride) > p.ScalarWords {
			errs = append(errs, fmt.Errorf("s%d: scalar slot past arena end", i))
		}
		if s.Class == StorageKeyed && s.Inst != types.NoInstance {
			if _, ok := p.Pop(s.Inst); !ok {
				errs = append(errs, fmt.Errorf("s%d: unknown population #%d", i, s.Inst))
			}
		}
	}
	for i, st := range p.Steps {
		switch st.Phase {
		case PhaseTime, PhaseScalar, PhaseField, PhaseEvent:
			if int(st.Expr) >= len(p.Exprs) || int(st.Slot) >= len(p.Slots) {
				errs = append(errs, fmt.Errorf("step %d: dangling expr or slot", i))
			}
		case PhaseState:
			if int(st.Expr) >= len(p.Exprs) || int(st.State) >= len(p.States) {
				errs = append(errs, fmt.Errorf("step %d: dangling expr or state", i))
			}
		case PhaseRender:
			if int(st.Sink) >= len(p.Sinks) {
				errs = append(errs, fmt.Errorf("step %d: dangling sink", i))
			}
		case PhaseReconcile:
			if int(st.Slot) >= len(p.Slots) {
				errs = append(errs, fmt.Errorf("step %d: dangling slot", i))
			}
		case PhaseRemap:
		default:
			errs = append(errs, fmt.Errorf("step %d: unknown phase %d", i, st.Phase))
		}
		if i > 0 && p.Steps[i-1].Phase > st.Phase {
			errs = append(errs, fmt.Errorf("step %d: phase %s after %s", i, st.Phase, p.Steps[i-1].Phase))
		}
	}
	if len(p.SlotExpr) != 0 && len(p.SlotExpr) != len(p.Slots) {
		errs = append(errs, fmt.Errorf("slot-expr index covers %d of %d slots", len(p.SlotExpr), len(p.Slots)))
	}
	return errors.Join(errs...)
}

// Seal computes the program fingerprint from its structural content. Called
// once at the end of lowering.
func (p *Program) Seal() {
	h := fnv.New64a()
	w32 := func(v uint32) {
		var b [4]byte
		b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
		h.Write(b[:])
	}
	w64 := func(v uint64) {
		w32(uint32(v))
		w32(uint32(v >> 32))
	}
	for _, e := range p.Exprs {
		w32(uint32(e.Kind)<<16 | uint32(e.Op))
		w32(e.Ref)
		for _, a := range e.Args {
			w32(uint32(a))
		}
		for _, l := range e.Lit {
			w64(math.Float64bits(l))
		}
	}
	for _, s := range p.Steps {
		w32(uint32(s.Phase))
		w32(uint32(s.Expr))
		w32(uint32(s.Slot))
		w32(uint32(s.State))
	}
	for _, st := range p.States {
		w64(st.Identity)
	}
	for _, d := range p.Pops {
		w32(uint32(d.Inst))
		w32(d.Lanes)
	}
	p.Fingerprint = h.Sum64()
}
