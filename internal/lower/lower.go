// Package lower compiles a normalized, solved patch graph into an
// executable program: a hash-consed expression table, slot and state
// declarations, sink and input surfaces, and the fixed eight-phase
// schedule. Lowering is total on well-typed graphs; any defect it meets is
// a compiler contract breach raised as an ir.InvariantError panic, never a
// user diagnostic.
package lower

import (
	"fmt"

	"lumen/internal/domain"
	"lumen/internal/ir"
	"lumen/internal/normalize"
	"lumen/internal/patch"
	"lumen/internal/solve"
	"lumen/internal/types"
)

type stateWrite struct {
	state ir.StateID
	expr  ir.ExprID
}

type sinkParam struct {
	name string
	expr ir.ExprID
}

type sinkBuild struct {
	kind   ir.SinkKind
	name   string
	blend  ir.BlendMode
	topo   ir.TopologyID
	inst   types.InstanceID
	params []sinkParam
}

type ctx struct {
	n       *normalize.Result
	ty      *solve.Result
	domains *domain.Registry

	tab     *ir.Table
	states  []ir.StateDecl
	stateOf map[patch.BlockID]ir.StateID

	inputs  []ir.InputDecl
	inputOf map[string]ir.InputID

	outMemo  map[patch.PortRef]ir.ExprID
	inMemo   map[patch.PortRef]ir.ExprID
	building map[patch.PortRef]bool

	writes []stateWrite
	sinks  []sinkBuild
}

// Run lowers the solved graph into a sealed program.
func Run(n *normalize.Result, ty *solve.Result, domains *domain.Registry) *ir.Program {
	c := &ctx{
		n:        n,
		ty:       ty,
		domains:  domains,
		tab:      ir.NewTable(),
		stateOf:  make(map[patch.BlockID]ir.StateID),
		inputOf:  make(map[string]ir.InputID),
		outMemo:  make(map[patch.PortRef]ir.ExprID),
		inMemo:   make(map[patch.PortRef]ir.ExprID),
		building: make(map[patch.PortRef]bool),
	}
	c.declareStates()
	c.buildSinks()
	c.buildStateWrites()
	return c.emit()
}

// fail raises an internal contract breach. The compile boundary recovers
// it; user-visible defects never reach lowering.
func fail(what, format string, args ...any) {
	panic(&ir.InvariantError{What: what, Msg: fmt.Sprintf(format, args...)})
}

// exprOf returns the expression producing one block output, building it on
// first use. Stateful outputs read their cell, so recursion never follows
// a feedback edge; re-entering a port under construction means a cycle
// survived validation, which is a bug.
func (c *ctx) exprOf(ref patch.PortRef) ir.ExprID {
	if id, ok := c.outMemo[ref]; ok {
		return id
	}
	if c.building[ref] {
		fail("child", "lowering re-entered output %s; a stateless cycle survived validation", ref)
	}
	c.building[ref] = true
	id := c.buildOut(ref.Block, ref.Port)
	delete(c.building, ref)
	c.outMemo[ref] = id
	return id
}

// inputExpr folds every writer of an input port into one expression in the
// port's deterministic combine order.
func (c *ctx) inputExpr(b patch.BlockID, p patch.PortIdx) ir.ExprID {
	ref := patch.PortRef{Block: b, Port: p}
	if id, ok := c.inMemo[ref]; ok {
		return id
	}
	ws := c.writerExprs(b, p)
	id := c.fold(c.n.Sigs[b].Inputs[p].Combine, ws, c.ty.Ins[b][p])
	c.inMemo[ref] = id
	return id
}

// writerExprs lowers every writer of a port, ordered.
func (c *ctx) writerExprs(b patch.BlockID, p patch.PortIdx) []ir.ExprID {
	edges := c.n.Writers[b][p]
	if len(edges) == 0 {
		fail("child", "input %d.%d has no writer after normalization", b, p)
	}
	out := make([]ir.ExprID, len(edges))
	for i, ei := range edges {
		out[i] = c.exprOf(c.n.Graph.Edges[ei].From)
	}
	return out
}

func (c *ctx) fold(k patch.CombineKind, ws []ir.ExprID, t types.Type) ir.ExprID {
	if len(ws) == 1 {
		return ws[0]
	}
	switch k {
	case patch.CombineSum:
		return c.foldOp(ir.OpAdd, ws, t)
	case patch.CombineMin:
		return c.foldOp(ir.OpMin, ws, t)
	case patch.CombineMax:
		return c.foldOp(ir.OpMax, ws, t)
	case patch.CombineLayer:
		return c.foldOp(ir.OpLayer, ws, t)
	case patch.CombineAvg:
		sum := c.foldOp(ir.OpAdd, ws, t)
		return c.kernel(ir.OpDiv, t, sum, c.constFloat(float64(len(ws))))
	case patch.CombineFirst:
		return ws[0]
	case patch.CombineLast:
		return ws[len(ws)-1]
	default:
		// CombineNone with several writers is rejected in normalization.
		fail("arity", "combine %s over %d writers", k, len(ws))
		return ir.NoExpr
	}
}

func (c *ctx) foldOp(op ir.Op, ws []ir.ExprID, t types.Type) ir.ExprID {
	acc := ws[0]
	for _, w := range ws[1:] {
		acc = c.kernel(op, t, acc, w)
	}
	return acc
}

func (c *ctx) kernel(op ir.Op, t types.Type, args ...ir.ExprID) ir.ExprID {
	return c.tab.Intern(ir.Expr{Kind: ir.ExprKernel, Op: op, Type: t, Args: args})
}

func (c *ctx) constFloat(v float64) ir.ExprID {
	t := types.MustNew(types.PayloadFloat, types.UnitNone).WithCard(types.Zero())
	return c.tab.Intern(ir.Expr{Kind: ir.ExprConst, Type: t, Lit: []float64{v}})
}

func (c *ctx) constPhase(v float64) ir.ExprID {
	t := types.MustNew(types.PayloadFloat, types.UnitPhase).WithCard(types.Zero())
	return c.tab.Intern(ir.Expr{Kind: ir.ExprConst, Type: t, Lit: []float64{v}})
}

func (c *ctx) timeSeconds() ir.ExprID {
	t := types.MustNew(types.PayloadFloat, types.UnitSeconds)
	return c.tab.Intern(ir.Expr{Kind: ir.ExprTime, Op: ir.OpTimeSeconds, Type: t})
}

func (c *ctx) timeDelta() ir.ExprID {
	t := types.MustNew(types.PayloadFloat, types.UnitSeconds)
	return c.tab.Intern(ir.Expr{Kind: ir.ExprTime, Op: ir.OpTimeDelta, Type: t})
}
