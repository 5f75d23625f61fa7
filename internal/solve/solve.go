// Package solve resolves every port of a normalized patch to a canonical
// type. Equality constraints (payload, unit, temporality, binding,
// perspective, branch) run through a union-find over inference cells;
// cardinality and population flow through a separate join lattice because
// a signal broadcasting over a field is directional, not an equality.
// Defects accumulate in the shared bag with both conflicting origins
// attached; the solver never stops at the first one.
package solve

import (
	"fmt"

	"lumen/internal/diag"
	"lumen/internal/domain"
	"lumen/internal/normalize"
	"lumen/internal/patch"
	"lumen/internal/types"
)

// Result carries the resolved type of every port, indexed by block id and
// port index. Lowering consumes it together with the normalized graph.
type Result struct {
	Ins  [][]types.Type
	Outs [][]types.Type
}

// In returns the resolved type of an input port.
func (r *Result) In(b patch.BlockID, p patch.PortIdx) types.Type { return r.Ins[b][p] }

// Out returns the resolved type of an output port.
func (r *Result) Out(b patch.BlockID, p patch.PortIdx) types.Type { return r.Outs[b][p] }

// portCells holds one inference cell per equality axis of one port.
type portCells [axCount]cell

type solver struct {
	res     *normalize.Result
	domains *domain.Registry
	bag     *diag.Bag

	cells *cells
	ins   [][]portCells
	outs  [][]portCells
	cards *cardFlow
}

// Run solves the normalized graph. On type errors it returns nil after
// filling the bag.
func Run(n *normalize.Result, domains *domain.Registry, bag *diag.Bag) *Result {
	s := &solver{
		res:     n,
		domains: domains,
		bag:     bag,
		cells:   newCells(),
	}
	s.build()
	s.unifyEdges()
	s.seedCards()
	s.flowCards()
	s.applyUnitRules()
	out := s.resolve()
	if bag.HasErrors() {
		return nil
	}
	return out
}

// rawTerm views one pattern dimension uniformly, with the value encoded.
type rawTerm struct {
	tag types.TagKind
	val uint64
	id  types.VarID
}

func rawTerms(p types.Pattern) [axCount]rawTerm {
	return [axCount]rawTerm{
		axPayload: {p.Payload.Tag, uint64(p.Payload.Val), p.Payload.Var},
		axUnit:    {p.Unit.Tag, uint64(p.Unit.Val), p.Unit.Var},
		axTime:    {p.Time.Tag, uint64(p.Time.Val), p.Time.Var},
		axBind:    {p.Bind.Tag, encodeBind(p.Bind.Val), p.Bind.Var},
		axView:    {p.View.Tag, uint64(p.View.Val), p.View.Var},
		axBranch:  {p.Branch.Tag, uint64(p.Branch.Val), p.Branch.Var},
	}
}

// build allocates cells for every port dimension. Signature-local
// variables are rebased per block: the same local id resolves to the same
// cell across that block's ports and to different cells on other blocks.
func (s *solver) build() {
	g := s.res.Graph
	s.ins = make([][]portCells, len(g.Blocks))
	s.outs = make([][]portCells, len(g.Blocks))
	for id := range g.Blocks {
		sig := s.res.Sigs[id]
		local := make([]cell, sig.Vars)
		for i := range local {
			local[i] = noCell
		}
		s.ins[id] = make([]portCells, len(sig.Inputs))
		for p := range sig.Inputs {
			s.ins[id][p] = s.portCellsFor(sig.Inputs[p].Pat,
				diag.AtInput(uint32(id), uint32(p)), local)
		}
		s.outs[id] = make([]portCells, len(sig.Outputs))
		for p := range sig.Outputs {
			s.outs[id][p] = s.portCellsFor(sig.Outputs[p].Pat,
				diag.AtOutput(uint32(id), uint32(p)), local)
		}
	}
}

func (s *solver) portCellsFor(pat types.Pattern, site diag.Target, local []cell) portCells {
	var pc portCells
	for a, t := range rawTerms(pat) {
		ax := axis(a)
		switch t.tag {
		case types.TagBound:
			pc[ax] = s.cells.freshBound(ax, t.val, site)
		case types.TagVar:
			if local[t.id] == noCell {
				local[t.id] = s.cells.fresh(ax)
			}
			pc[ax] = local[t.id]
		default:
			pc[ax] = s.cells.fresh(ax)
		}
	}
	return pc
}

// unifyEdges merges writer and reader cells across every edge. Multiple
// readers of one output end up in a single class, so one value can never
// satisfy two incompatible consumers silently.
func (s *solver) unifyEdges() {
	g := s.res.Graph
	for i := range g.Edges {
		e := &g.Edges[i]
		wc := s.outs[e.From.Block][e.From.Port]
		rc := s.ins[e.To.Block][e.To.Port]
		for a := axis(0); a < axCount; a++ {
			if cf := s.cells.union(wc[a], rc[a]); cf != nil {
				s.reportEdge(i, e, cf)
			}
		}
	}
}

func (s *solver) reportEdge(idx int, e *patch.Edge, cf *conflict) {
	g := s.res.Graph
	s.bag.Add(diag.NewError(cf.ax.code(), diag.AtEdge(uint32(idx)),
		fmt.Sprintf("%s mismatch connecting %s to %s: %s does not unify with %s",
			cf.ax, g.BlockName(e.From.Block), g.BlockName(e.To.Block),
			cf.ax.describe(cf.a), cf.ax.describe(cf.b))).
		WithNote(cf.siteA, fmt.Sprintf("%s pinned here", cf.ax.describe(cf.a))).
		WithNote(cf.siteB, fmt.Sprintf("%s pinned here", cf.ax.describe(cf.b))))
}

// resolve reads every cell back into a canonical type, applying the
// canonical defaults for dimensions nothing constrained: float payload,
// plain unit, one value per frame, continuous, unbound, world view, main
// branch.
func (s *solver) resolve() *Result {
	g := s.res.Graph
	out := &Result{
		Ins:  make([][]types.Type, len(g.Blocks)),
		Outs: make([][]types.Type, len(g.Blocks)),
	}
	for id := range g.Blocks {
		sig := s.res.Sigs[id]
		out.Ins[id] = make([]types.Type, len(sig.Inputs))
		for p := range sig.Inputs {
			out.Ins[id][p] = s.resolvePort(id, p, false,
				s.ins[id][p], &sig.Inputs[p], s.cards.ins[id][p])
		}
		out.Outs[id] = make([]types.Type, len(sig.Outputs))
		for p := range sig.Outputs {
			out.Outs[id][p] = s.resolvePort(id, p, true,
				s.outs[id][p], &sig.Outputs[p], s.cards.outs[id][p])
		}
	}
	return out
}

func (s *solver) resolvePort(id, port int, isOut bool, pc portCells, ps *patch.PortSig, card cardState) types.Type {
	target := diag.AtInput(uint32(id), uint32(port))
	if isOut {
		target = diag.AtOutput(uint32(id), uint32(port))
	}
	name := fmt.Sprintf("%s.%s", s.res.Graph.BlockName(patch.BlockID(id)), ps.Name)

	payload := types.PayloadFloat
	if v, ok := s.cells.value(pc[axPayload]); ok {
		payload = types.Payload(v)
	}
	if err := ps.CheckPayload(payload); err != nil {
		s.bag.Add(diag.NewError(diag.TypPayloadMismatch, target, err.Error()))
	}

	unit := types.UnitNone
	if v, ok := s.cells.value(pc[axUnit]); ok {
		unit = types.Unit(v)
	}
	if !types.UnitFitsPayload(unit, payload) {
		s.bag.Add(diag.NewError(diag.TypUnitPayload, target,
			fmt.Sprintf("%s resolved to unit %s, which cannot annotate payload %s",
				name, unit, payload)))
		unit = types.UnitNone
	}

	ext := types.SignalExtent()
	if card.known && !card.failed {
		switch card.kind {
		case types.CardZero:
			ext.Card = types.Zero()
		case types.CardMany:
			if card.inst == types.NoInstance {
				s.bag.Add(diag.NewError(diag.TypNoPopulation, target,
					fmt.Sprintf("%s is a field, but no writer determines its population", name)))
			} else {
				ext.Card = types.Many(card.inst)
			}
		}
	}
	if v, ok := s.cells.value(pc[axTime]); ok {
		ext.Time = types.Temporality(v)
	}
	if v, ok := s.cells.value(pc[axBind]); ok {
		ext.Bind = decodeBind(v)
	}
	if v, ok := s.cells.value(pc[axView]); ok {
		ext.View = types.Perspective(v)
	}
	if v, ok := s.cells.value(pc[axBranch]); ok {
		ext.Branch = types.Branch(v)
	}

	return types.Type{Payload: payload, Unit: unit, Extent: ext}
}
