package ir

import (
	"lumen/internal/types"
)

// StateID indexes a persistent state declaration within one program.
type StateID uint32

// NoState marks the absence of a state cell.
const NoState StateID = ^StateID(0)

// StateKind is the stateful primitive owning a cell. These are the only
// operators permitted to break feedback cycles.
type StateKind uint8

const (
	StateDelay StateKind = iota
	StateSlew
	StatePhasor
	StateLatch
	StatePulse
	StateWrap
)

func (k StateKind) String() string {
	switch k {
	case StateDelay:
		return "delay"
	case StateSlew:
		return "slew"
	case StatePhasor:
		return "phasor"
	case StateLatch:
		return "latch"
	case StatePulse:
		return "pulse"
	case StateWrap:
		return "wrap"
	default:
		return "state?"
	}
}

// StateDecl declares one persistent state: a single cell for scalar state
// or one cell per lane when Inst names a population. Identity is stable
// across recompilations; the executor carries cells over on a swap exactly
// when the identity is unchanged, otherwise the state resets and the reset
// is reported.
type StateDecl struct {
	Kind     StateKind
	Identity uint64
	Type     types.Type       // element type of one cell
	Inst     types.InstanceID // NoInstance for scalar state
	Init     []float64        // stride-many scalars, broadcast over lanes
}
