package diag

import "fmt"

// TargetKind says which part of a patch or program a diagnostic points at.
type TargetKind uint8

const (
	TargetNone TargetKind = iota
	TargetBlock
	TargetPort
	TargetEdge
	TargetAxis
	TargetInstance
	TargetState
	TargetStep
)

// Target attributes a diagnostic to a precise location: a block, one of its
// ports, an edge, a single type axis on a port, a population, a state cell
// or a schedule step. Ids are the owning layer's plain numeric ids so this
// package stays foundational.
type Target struct {
	Kind  TargetKind
	Block uint32
	Port  uint32
	Out   bool   // the port is an output
	Axis  string // axis name, only for TargetAxis
	Index uint32 // edge id, instance id, state id or step index
}

// AtBlock points at a whole block.
func AtBlock(block uint32) Target {
	return Target{Kind: TargetBlock, Block: block}
}

// AtInput points at an input port of a block.
func AtInput(block, port uint32) Target {
	return Target{Kind: TargetPort, Block: block, Port: port}
}

// AtOutput points at an output port of a block.
func AtOutput(block, port uint32) Target {
	return Target{Kind: TargetPort, Block: block, Port: port, Out: true}
}

// AtEdge points at an edge by its index in the patch.
func AtEdge(edge uint32) Target {
	return Target{Kind: TargetEdge, Index: edge}
}

// AtAxis points at one axis of a port's type.
func AtAxis(block, port uint32, out bool, axis string) Target {
	return Target{Kind: TargetAxis, Block: block, Port: port, Out: out, Axis: axis}
}

// AtInstance points at a population declaration.
func AtInstance(instance uint32) Target {
	return Target{Kind: TargetInstance, Index: instance}
}

// AtState points at a persistent state cell.
func AtState(state uint32) Target {
	return Target{Kind: TargetState, Index: state}
}

// AtStep points at a schedule step by index.
func AtStep(step uint32) Target {
	return Target{Kind: TargetStep, Index: step}
}

func (t Target) String() string {
	switch t.Kind {
	case TargetBlock:
		return fmt.Sprintf("block#%d", t.Block)
	case TargetPort:
		side := "in"
		if t.Out {
			side = "out"
		}
		return fmt.Sprintf("block#%d.%s%d", t.Block, side, t.Port)
	case TargetEdge:
		return fmt.Sprintf("edge#%d", t.Index)
	case TargetAxis:
		side := "in"
		if t.Out {
			side = "out"
		}
		return fmt.Sprintf("block#%d.%s%d/%s", t.Block, side, t.Port, t.Axis)
	case TargetInstance:
		return fmt.Sprintf("population#%d", t.Index)
	case TargetState:
		return fmt.Sprintf("state#%d", t.Index)
	case TargetStep:
		return fmt.Sprintf("step#%d", t.Index)
	default:
		return "-"
	}
}

// less orders targets for the deterministic Bag sort.
func (t Target) less(o Target) bool {
	if t.Kind != o.Kind {
		return t.Kind < o.Kind
	}
	if t.Block != o.Block {
		return t.Block < o.Block
	}
	if t.Port != o.Port {
		return t.Port < o.Port
	}
	if t.Out != o.Out {
		return !t.Out
	}
	if t.Index != o.Index {
		return t.Index < o.Index
	}
	return t.Axis < o.Axis
}
