package ir

import (
	"lumen/internal/types"
)

// ExprID is a dense index into a program's expression table. Index 0 is the
// reserved invalid sentinel, matching NoExpr.
type ExprID uint32

// NoExpr marks the absence of an expression.
const NoExpr ExprID = 0

// ExprKind enumerates the structural kinds an expression may have. There
// are exactly ten; every compiled value is one of these and nothing else.
type ExprKind uint8

const (
	ExprInvalid ExprKind = iota

	// ExprConst is a literal value. Lit holds stride-many scalars.
	ExprConst
	// ExprInput reads an external per-frame input. Ref is the InputID.
	ExprInput
	// ExprIntrinsic is a per-lane generator over a population. Op selects
	// the generator, Ref is the InstanceID.
	ExprIntrinsic
	// ExprKernel applies a pure operator to its children.
	ExprKernel
	// ExprStateRead reads a persistent cell as of the previous frame's
	// write. Ref is the StateID.
	ExprStateRead
	// ExprTime reads the patch clock. Op selects seconds, delta or frame.
	ExprTime
	// ExprShape references a shape topology. Ref is the TopologyID.
	ExprShape
	// ExprEventRead reads the fired flag or value of an event this frame.
	// Args[0] is the event node or the event-flagged input it reads.
	ExprEventRead
	// ExprEvent is a discrete event source. Op selects pulse or wrap; Ref
	// is the StateID of its accumulator cell.
	ExprEvent
	// ExprSlotRead reads a slot written earlier in the schedule. Ref is
	// the SlotID.
	ExprSlotRead
)

func (k ExprKind) String() string {
	switch k {
	case ExprConst:
		return "const"
	case ExprInput:
		return "input"
	case ExprIntrinsic:
		return "intrinsic"
	case ExprKernel:
		return "kernel"
	case ExprStateRead:
		return "state"
	case ExprTime:
		return "time"
	case ExprShape:
		return "shape"
	case ExprEventRead:
		return "event-read"
	case ExprEvent:
		return "event"
	case ExprSlotRead:
		return "slot-read"
	default:
		return "expr?"
	}
}

// Op selects the concrete operation of a kernel, intrinsic, time, event or
// event-read expression.
type Op uint8

const (
	OpNone Op = iota

	// Kernel operators, applied pointwise per lane.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpAbs
	OpMin
	OpMax
	OpMix
	OpClamp
	OpSin
	OpCos
	OpFract
	OpSqrt
	OpPow
	OpSmoothstep
	OpGreater
	OpSelect
	OpInvert
	OpClamp01
	OpDegToRad
	OpRadToDeg
	OpPhaseToRad
	OpMsToSec
	OpSecToMs
	OpOscSine
	OpOscSaw
	OpOscSquare
	OpOscTri
	OpPack2
	OpPack3
	OpSplit // Lit[0] selects the component
	OpPolar
	OpRGBA
	OpHSV
	OpLayer // source-over blend of two colors

	// Field reductions: one child field, scalar result.
	OpReduceSum
	OpReduceAvg
	OpReduceMin
	OpReduceMax

	// Lane intrinsics.
	OpSpread
	OpLaneIndex
	OpLaneRandom // Lit[0] is the seed

	// Clock reads.
	OpTimeSeconds
	OpTimeDelta
	OpTimeFrame

	// Event sources.
	OpPulse // Lit[0] is the period in seconds
	OpWrap

	// Event reads.
	OpEventFired
	OpEventValue
)

var opNames = map[Op]string{
	OpAdd:        "add",
	OpSub:        "sub",
	OpMul:        "mul",
	OpDiv:        "div",
	OpNeg:        "neg",
	OpAbs:        "abs",
	OpMin:        "min",
	OpMax:        "max",
	OpMix:        "mix",
	OpClamp:      "clamp",
	OpSin:        "sin",
	OpCos:        "cos",
	OpFract:      "fract",
	OpSqrt:       "sqrt",
	OpPow:        "pow",
	OpSmoothstep: "smoothstep",
	OpGreater:    "greater",
	OpSelect:     "select",
	OpInvert:     "invert",
	OpClamp01:    "clamp01",
	OpDegToRad:   "deg-to-rad",
	OpRadToDeg:   "rad-to-deg",
	OpPhaseToRad: "phase-to-rad",
	OpMsToSec:    "ms-to-sec",
	OpSecToMs:    "sec-to-ms",
	OpOscSine:    "osc-sine",
	OpOscSaw:     "osc-saw",
	OpOscSquare:  "osc-square",
	OpOscTri:     "osc-tri",
	OpPack2:      "pack2",
	OpPack3:      "pack3",
	OpSplit:      "split",
	OpPolar:      "polar",
	OpRGBA:       "rgba",
	OpHSV:        "hsv",
	OpLayer:      "layer",
	OpReduceSum:  "reduce-sum",
	OpReduceAvg:  "reduce-avg",
	OpReduceMin:  "reduce-min",
	OpReduceMax:  "reduce-max",
	OpSpread:     "spread",
	OpLaneIndex:  "lane-index",
	OpLaneRandom: "lane-random",
	OpTimeSeconds: "t",
	OpTimeDelta:   "dt",
	OpTimeFrame:   "frame",
	OpPulse:       "pulse",
	OpWrap:        "wrap",
	OpEventFired:  "fired",
	OpEventValue:  "value",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return "op?"
}

// opArity maps variable-operand kernels to their expected child count.
// Kinds other than kernel have fixed arities checked in the table.
var opArity = map[Op]int{
	OpAdd:        2,
	OpSub:        2,
	OpMul:        2,
	OpDiv:        2,
	OpNeg:        1,
	OpAbs:        1,
	OpMin:        2,
	OpMax:        2,
	OpMix:        3,
	OpClamp:      3,
	OpSin:        1,
	OpCos:        1,
	OpFract:      1,
	OpSqrt:       1,
	OpPow:        2,
	OpSmoothstep: 3,
	OpGreater:    2,
	OpSelect:     3,
	OpInvert:     1,
	OpClamp01:    1,
	OpDegToRad:   1,
	OpRadToDeg:   1,
	OpPhaseToRad: 1,
	OpMsToSec:    1,
	OpSecToMs:    1,
	OpOscSine:    3, // rate, phase, t
	OpOscSaw:     3,
	OpOscSquare:  3,
	OpOscTri:     3,
	OpPack2:      2,
	OpPack3:      3,
	OpSplit:      1,
	OpPolar:      2,
	OpRGBA:       4,
	OpHSV:        3,
	OpLayer:      2,
	OpReduceSum:  1,
	OpReduceAvg:  1,
	OpReduceMin:  1,
	OpReduceMax:  1,
}

// Expr is one node of the hash-consed expression table. Nodes are immutable
// after interning; structural identity implies id identity. Ref is the
// kind-specific reference documented on each ExprKind; Lit carries literal
// scalars (const payloads, kernel immediates, seeds, periods).
type Expr struct {
	Kind ExprKind
	Op   Op
	Type types.Type
	Args []ExprID
	Lit  []float64
	Ref  uint32
}

// InputID indexes a declared external input.
type InputID = uint32

// TopologyID names a shape topology the renderer understands.
type TopologyID uint32

const (
	TopoQuad TopologyID = iota
	TopoCircle
	TopoLine
	TopoTriangle
)

func (t TopologyID) String() string {
	switch t {
	case TopoQuad:
		return "quad"
	case TopoCircle:
		return "circle"
	case TopoLine:
		return "line"
	case TopoTriangle:
		return "triangle"
	default:
		return "topology?"
	}
}

// TopologyByName resolves a topology name from patch parameters.
func TopologyByName(name string) (TopologyID, bool) {
	switch name {
	case "quad":
		return TopoQuad, true
	case "circle":
		return TopoCircle, true
	case "line":
		return TopoLine, true
	case "triangle":
		return TopoTriangle, true
	default:
		return TopoQuad, false
	}
}
