package lower

import (
	"lumen/internal/ir"
	"lumen/internal/patch"
	"lumen/internal/types"
)

// kernelOps maps the block kinds that lower to a single pointwise kernel
// node over their inputs, in port order.
var kernelOps = map[patch.Kind]ir.Op{
	patch.KindAdd:        ir.OpAdd,
	patch.KindSub:        ir.OpSub,
	patch.KindMul:        ir.OpMul,
	patch.KindDiv:        ir.OpDiv,
	patch.KindNeg:        ir.OpNeg,
	patch.KindAbs:        ir.OpAbs,
	patch.KindMin:        ir.OpMin,
	patch.KindMax:        ir.OpMax,
	patch.KindMix:        ir.OpMix,
	patch.KindClamp:      ir.OpClamp,
	patch.KindSin:        ir.OpSin,
	patch.KindCos:        ir.OpCos,
	patch.KindFract:      ir.OpFract,
	patch.KindSqrt:       ir.OpSqrt,
	patch.KindPow:        ir.OpPow,
	patch.KindSmoothstep: ir.OpSmoothstep,
	patch.KindGreater:    ir.OpGreater,
	patch.KindSelect:     ir.OpSelect,
	patch.KindInvert:     ir.OpInvert,
	patch.KindClamp01:    ir.OpClamp01,
	patch.KindDegToRad:   ir.OpDegToRad,
	patch.KindRadToDeg:   ir.OpRadToDeg,
	patch.KindPhaseToRad: ir.OpPhaseToRad,
	patch.KindMsToSec:    ir.OpMsToSec,
	patch.KindSecToMs:    ir.OpSecToMs,
	patch.KindPack2:      ir.OpPack2,
	patch.KindPack3:      ir.OpPack3,
	patch.KindPolar:      ir.OpPolar,
	patch.KindRGBA:       ir.OpRGBA,
	patch.KindHSV:        ir.OpHSV,
}

var oscOps = map[string]ir.Op{
	"sine":   ir.OpOscSine,
	"saw":    ir.OpOscSaw,
	"square": ir.OpOscSquare,
	"tri":    ir.OpOscTri,
}

var reduceOps = map[string]ir.Op{
	"sum": ir.OpReduceSum,
	"avg": ir.OpReduceAvg,
	"min": ir.OpReduceMin,
	"max": ir.OpReduceMax,
}

// buildOut constructs the expression for one block output. Port validity
// and parameter shapes were settled by normalization and solving, so every
// lookup here may assume success.
func (c *ctx) buildOut(b patch.BlockID, p patch.PortIdx) ir.ExprID {
	blk := &c.n.Graph.Blocks[b]
	out := c.ty.Outs[b][p]

	if op, ok := kernelOps[blk.Kind]; ok {
		sig := c.n.Sigs[b]
		args := make([]ir.ExprID, len(sig.Inputs))
		for i := range sig.Inputs {
			args[i] = c.inputExpr(b, patch.PortIdx(i))
		}
		return c.kernel(op, out, args...)
	}

	switch blk.Kind {
	case patch.KindConst:
		return c.tab.Intern(ir.Expr{Kind: ir.ExprConst, Type: out,
			Lit: scalarLit(blk.Params["value"], out.Stride())})

	case patch.KindTime:
		ops := [...]ir.Op{ir.OpTimeSeconds, ir.OpTimeDelta, ir.OpTimeFrame}
		return c.tab.Intern(ir.Expr{Kind: ir.ExprTime, Op: ops[p], Type: out})

	case patch.KindInput:
		return c.inputRef(blk, out, false)

	case patch.KindTrigger:
		return c.inputRef(blk, out, true)

	case patch.KindShape:
		topo, _ := ir.TopologyByName(blk.Params.StrOr("topology", "quad"))
		return c.tab.Intern(ir.Expr{Kind: ir.ExprShape, Type: out, Ref: uint32(topo)})

	case patch.KindProjection:
		return c.tab.Intern(ir.Expr{Kind: ir.ExprConst, Type: out, Lit: identity4()})

	case patch.KindOsc:
		op := oscOps[blk.Params.StrOr("shape", "sine")]
		return c.kernel(op, out, c.inputExpr(b, 0), c.inputExpr(b, 1), c.timeSeconds())

	case patch.KindWave:
		return c.waveOut(blk, out)

	case patch.KindSplit:
		comp := float64(blk.Params.IntOr("component", 0))
		return c.tab.Intern(ir.Expr{Kind: ir.ExprKernel, Op: ir.OpSplit, Type: out,
			Args: []ir.ExprID{c.inputExpr(b, 0)}, Lit: []float64{comp}})

	case patch.KindSpread:
		return c.tab.Intern(ir.Expr{Kind: ir.ExprIntrinsic, Op: ir.OpSpread, Type: out,
			Ref: uint32(blk.Instance)})

	case patch.KindLaneIndex:
		return c.tab.Intern(ir.Expr{Kind: ir.ExprIntrinsic, Op: ir.OpLaneIndex, Type: out,
			Ref: uint32(blk.Instance)})

	case patch.KindLaneRandom:
		seed := float64(blk.Params.IntOr("seed", 0))
		return c.tab.Intern(ir.Expr{Kind: ir.ExprIntrinsic, Op: ir.OpLaneRandom, Type: out,
			Ref: uint32(blk.Instance), Lit: []float64{seed}})

	case patch.KindLaneCount:
		lanes := float64(c.domains.Lanes(blk.Instance))
		return c.tab.Intern(ir.Expr{Kind: ir.ExprConst, Type: out, Lit: []float64{lanes}})

	case patch.KindReduce:
		op := reduceOps[blk.Params.StrOr("op", "sum")]
		return c.kernel(op, out, c.inputExpr(b, 0))

	case patch.KindDelay, patch.KindSlew, patch.KindPhasor, patch.KindLatch:
		return c.tab.Intern(ir.Expr{Kind: ir.ExprStateRead, Type: out,
			Ref: uint32(c.stateOf[b])})

	case patch.KindPulse:
		period := blk.Params.FloatOr("period", 1)
		return c.tab.Intern(ir.Expr{Kind: ir.ExprEvent, Op: ir.OpPulse, Type: out,
			Ref: uint32(c.stateOf[b]), Lit: []float64{period}})

	case patch.KindWrap:
		return c.tab.Intern(ir.Expr{Kind: ir.ExprEvent, Op: ir.OpWrap, Type: out,
			Ref: uint32(c.stateOf[b]), Args: []ir.ExprID{c.inputExpr(b, 0)}})

	default:
		fail("type", "block kind %s has no output lowering", blk.Kind)
		return ir.NoExpr
	}
}

// waveOut builds the animated default: a unit sine remapped to [lo, hi].
func (c *ctx) waveOut(blk *patch.Block, out types.Type) ir.ExprID {
	rate := blk.Params.FloatOr("rate", 0.1)
	lo := blk.Params.FloatOr("lo", 0)
	hi := blk.Params.FloatOr("hi", 1)
	osc := c.kernel(ir.OpOscSine, out, c.constFloat(rate), c.constPhase(0), c.timeSeconds())
	norm := c.kernel(ir.OpAdd, out,
		c.kernel(ir.OpMul, out, osc, c.constFloat(0.5)), c.constFloat(0.5))
	if lo == 0 && hi == 1 {
		return norm
	}
	return c.kernel(ir.OpAdd, out,
		c.constFloat(lo), c.kernel(ir.OpMul, out, norm, c.constFloat(hi-lo)))
}

// inputRef declares the named external input on first sight and returns a
// read of it. Redeclaring a name with a different shape was rejected in
// normalization, so later sights alias the first declaration.
func (c *ctx) inputRef(blk *patch.Block, t types.Type, event bool) ir.ExprID {
	name := blk.Params.StrOr("name", "")
	id, ok := c.inputOf[name]
	if !ok {
		id = ir.InputID(len(c.inputs))
		c.inputOf[name] = id
		c.inputs = append(c.inputs, ir.InputDecl{
			Name:    name,
			Type:    t,
			Default: defaultLit(blk.Params, t.Stride()),
			Event:   event,
		})
	}
	return c.tab.Intern(ir.Expr{Kind: ir.ExprInput, Type: t, Ref: id})
}

// scalarLit converts a const parameter into stride-many scalars.
func scalarLit(v patch.ParamValue, stride int) []float64 {
	switch v.Kind {
	case patch.ParamVec:
		if v.N != stride {
			fail("literal", "vec literal with %d components for stride %d", v.N, stride)
		}
		return append([]float64(nil), v.Vec[:v.N]...)
	case patch.ParamInt:
		return []float64{float64(v.Int)}
	case patch.ParamBool:
		if v.Bool {
			return []float64{1}
		}
		return []float64{0}
	default:
		return []float64{v.Float}
	}
}

// defaultLit reads the optional "default" parameter of an external input,
// zero-filled when absent.
func defaultLit(params patch.Params, stride int) []float64 {
	v, ok := params["default"]
	if !ok {
		return make([]float64, stride)
	}
	lit := scalarLit(v, stride)
	if len(lit) == stride {
		return lit
	}
	// Scalar default broadcast over a vector payload.
	out := make([]float64, stride)
	for i := range out {
		out[i] = lit[0]
	}
	return out
}

func identity4() []float64 {
	return []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}
