package ir

import (
	"fmt"

	"lumen/internal/types"
)

// Phase is the fixed per-frame evaluation order. The numbering is a
// correctness contract: a state read in PhaseScalar observes the previous
// frame's PhaseState write, which is what gives feedback loops well-defined
// semantics independent of graph topology.
type Phase uint8

const (
	PhaseTime      Phase = iota + 1 // update clock slots
	PhaseScalar                     // evaluate continuous per-frame expressions
	PhaseRemap                      // build continuity lane mappings
	PhaseField                      // materialize continuous fields
	PhaseReconcile                  // apply continuity blending to fields
	PhaseEvent                      // evaluate discrete events
	PhaseRender                     // emit render descriptions
	PhaseState                      // write persistent state, always last
)

func (p Phase) String() string {
	switch p {
	case PhaseTime:
		return "time"
	case PhaseScalar:
		return "scalar"
	case PhaseRemap:
		return "remap"
	case PhaseField:
		return "field"
	case PhaseReconcile:
		return "reconcile"
	case PhaseEvent:
		return "event"
	case PhaseRender:
		return "render"
	case PhaseState:
		return "state"
	default:
		return "phase?"
	}
}

// Step is one schedule instruction. The schedule is plain data: an ordered
// step list over expression ids and slots, inspectable without an
// interpreter. Fields beyond the phase are used as follows:
//
//	PhaseTime       Expr → Slot
//	PhaseScalar     Expr → Slot
//	PhaseRemap      Inst (population whose mapping to rebuild)
//	PhaseField      Expr → Slot, Inst
//	PhaseReconcile  Slot (field buffer to blend), Inst
//	PhaseEvent      Expr → Slot
//	PhaseRender     Sink
//	PhaseState      Expr → State, Slot holds the expr's evaluated value
type Step struct {
	Phase Phase
	Expr  ExprID
	Slot  SlotID
	State StateID
	Sink  uint32
	Inst  types.InstanceID
}

func (s Step) String() string {
	switch s.Phase {
	case PhaseTime, PhaseScalar, PhaseField, PhaseEvent:
		return fmt.Sprintf("%-9s e%d -> s%d", s.Phase, s.Expr, s.Slot)
	case PhaseRemap:
		return fmt.Sprintf("%-9s pop#%d", s.Phase, s.Inst)
	case PhaseReconcile:
		return fmt.Sprintf("%-9s s%d pop#%d", s.Phase, s.Slot, s.Inst)
	case PhaseRender:
		return fmt.Sprintf("%-9s sink#%d", s.Phase, s.Sink)
	case PhaseState:
		return fmt.Sprintf("%-9s e%d -> st%d", s.Phase, s.Expr, s.State)
	default:
		return "step?"
	}
}
