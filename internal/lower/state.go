package lower

import (
	"fmt"
	"hash/fnv"
	"math"

	"lumen/internal/ir"
	"lumen/internal/patch"
	"lumen/internal/types"
)

var stateKinds = map[patch.Kind]ir.StateKind{
	patch.KindDelay:  ir.StateDelay,
	patch.KindSlew:   ir.StateSlew,
	patch.KindPhasor: ir.StatePhasor,
	patch.KindLatch:  ir.StateLatch,
	patch.KindPulse:  ir.StatePulse,
	patch.KindWrap:   ir.StateWrap,
}

// declareStates allocates one persistent cell declaration per stateful or
// event block, in block order so ids are reproducible. Identity hashes the
// author label when present, so renaming unrelated blocks or rewiring edges
// never resets a labeled cell across a hot swap.
func (c *ctx) declareStates() {
	g := c.n.Graph
	seen := make(map[string]int)
	for id := range g.Blocks {
		blk := &g.Blocks[id]
		kind, ok := stateKinds[blk.Kind]
		if !ok {
			continue
		}
		b := patch.BlockID(id)
		elem := c.cellType(b, blk.Kind)

		key := blk.Label
		if key == "" {
			key = fmt.Sprintf("%s#%d", blk.Kind, id)
		}
		ordinal := seen[key]
		seen[key]++

		h := fnv.New64a()
		fmt.Fprintf(h, "%s|%s|%d|%d", kind, key, blk.Instance, ordinal)

		decl := ir.StateDecl{
			Kind:     kind,
			Identity: h.Sum64(),
			Type:     elem.WithCard(types.One()),
			Init:     c.cellInit(blk, elem.Stride()),
		}
		if elem.Extent.Card.Kind == types.CardMany {
			decl.Inst = elem.Extent.Card.Instance
		} else {
			decl.Inst = types.NoInstance
		}
		c.stateOf[b] = ir.StateID(len(c.states))
		c.states = append(c.states, decl)
	}
}

// cellType is the value type one cell holds. Filters store their output;
// the pulse accumulator stores the next fire time; the wrap accumulator
// stores the previous phase sample.
func (c *ctx) cellType(b patch.BlockID, kind patch.Kind) types.Type {
	switch kind {
	case patch.KindPulse:
		return types.MustNew(types.PayloadFloat, types.UnitSeconds)
	case patch.KindWrap:
		return c.ty.Ins[b][0]
	default:
		return c.ty.Outs[b][0]
	}
}

func (c *ctx) cellInit(blk *patch.Block, stride int) []float64 {
	init := make([]float64, stride)
	if v, ok := blk.Params["init"]; ok {
		lit := scalarLit(v, stride)
		if len(lit) == stride {
			copy(init, lit)
		} else {
			for i := range init {
				init[i] = lit[0]
			}
		}
	}
	return init
}

// buildStateWrites constructs the value written into each cell at the end
// of the frame. Pulse and wrap cells are owned by their event node and
// update during the event phase, so they take no write step here.
func (c *ctx) buildStateWrites() {
	g := c.n.Graph
	for id := range g.Blocks {
		blk := &g.Blocks[id]
		b := patch.BlockID(id)
		st, ok := c.stateOf[b]
		if !ok {
			continue
		}
		var w ir.ExprID
		switch blk.Kind {
		case patch.KindDelay:
			w = c.inputExpr(b, 0)
		case patch.KindSlew:
			w = c.slewWrite(b, blk)
		case patch.KindPhasor:
			w = c.phasorWrite(b)
		case patch.KindLatch:
			w = c.latchWrite(b)
		default:
			continue
		}
		c.writes = append(c.writes, stateWrite{state: st, expr: w})
	}
}

// slewWrite moves the cell toward the input with a first-order exponential
// response: y' = mix(x, y, e^(-dt/tau)). The weight hits 1 as dt goes to
// zero, so pausing the clock freezes the filter.
func (c *ctx) slewWrite(b patch.BlockID, blk *patch.Block) ir.ExprID {
	out := c.ty.Outs[b][0]
	x := c.inputExpr(b, 0)
	prev := c.exprOf(patch.PortRef{Block: b})
	tau := blk.Params.FloatOr("tau", 0.25)
	if tau <= 0 {
		return x
	}
	scalar := types.MustNew(types.PayloadFloat, types.UnitNone)
	ratio := c.kernel(ir.OpDiv, scalar,
		c.kernel(ir.OpNeg, types.MustNew(types.PayloadFloat, types.UnitSeconds), c.timeDelta()),
		c.constFloat(tau))
	decay := c.kernel(ir.OpPow, scalar, c.constFloat(math.E), ratio)
	return c.kernel(ir.OpMix, out, x, prev, decay)
}

// phasorWrite accumulates rate*dt and wraps into [0,1).
func (c *ctx) phasorWrite(b patch.BlockID) ir.ExprID {
	out := c.ty.Outs[b][0]
	rate := c.inputExpr(b, 0)
	prev := c.exprOf(patch.PortRef{Block: b})
	step := c.kernel(ir.OpMul, out, rate, c.timeDelta())
	return c.kernel(ir.OpFract, out, c.kernel(ir.OpAdd, out, prev, step))
}

// latchWrite samples the value input on any trigger firing this frame and
// holds otherwise.
func (c *ctx) latchWrite(b patch.BlockID) ir.ExprID {
	out := c.ty.Outs[b][0]
	x := c.inputExpr(b, 0)
	prev := c.exprOf(patch.PortRef{Block: b})
	return c.kernel(ir.OpSelect, out, c.firedAny(b, 1), x, prev)
}

// firedAny folds the fired flags of every trigger writer into one boolean.
func (c *ctx) firedAny(b patch.BlockID, p patch.PortIdx) ir.ExprID {
	ws := c.writerExprs(b, p)
	ft := types.MustNew(types.PayloadBool, types.UnitNone).
		WithCard(c.ty.Ins[b][p].Extent.Card)
	reads := make([]ir.ExprID, len(ws))
	for i, w := range ws {
		reads[i] = c.tab.Intern(ir.Expr{Kind: ir.ExprEventRead, Op: ir.OpEventFired,
			Type: ft, Args: []ir.ExprID{w}})
	}
	return c.foldOp(ir.OpMax, reads, ft)
}
