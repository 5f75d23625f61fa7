package lower

import (
	"fortio.org/safecast"

	"lumen/internal/domain"
	"lumen/internal/ir"
	"lumen/internal/types"
)

// emit assembles the program: expression phases, slot layout, the
// phase-ordered step list, sink and population surfaces, and the content
// fingerprint.
func (c *ctx) emit() *ir.Program {
	exprs := c.tab.Exprs()
	n := len(exprs)

	// Child ids are always smaller than parent ids, so one forward sweep
	// settles every phase.
	phase := make([]ir.Phase, n)
	for id := 1; id < n; id++ {
		e := &exprs[id]
		p := c.basePhase(e)
		for _, a := range e.Args {
			if phase[a] > p {
				p = phase[a]
			}
		}
		phase[id] = p
	}

	// One slot per expression, in expression order. Interning already
	// merged structural duplicates, so slots are the evaluation memo.
	slots := make([]ir.SlotMeta, 0, n-1)
	slotExpr := make([]ir.ExprID, 0, n-1)
	slotOf := make([]ir.SlotID, n)
	slotOf[0] = ir.NoSlot
	var words uint32
	for id := 1; id < n; id++ {
		t := exprs[id].Type
		stride, err := safecast.Conv[uint16](t.Stride())
		if err != nil {
			fail("literal", "slot stride overflow: %v", err)
		}
		m := ir.SlotMeta{Stride: stride, Inst: types.NoInstance}
		switch {
		case t.Extent.Card.Kind == types.CardMany:
			m.Class = ir.StorageKeyed
			m.Inst = t.Extent.Card.Instance
		case t.Stride() > 4:
			m.Class = ir.StorageKeyed
		default:
			m.Class = ir.StorageScalar
			m.Offset = words
			words += uint32(t.Stride())
		}
		slotOf[id] = ir.SlotID(len(slots))
		slots = append(slots, m)
		slotExpr = append(slotExpr, ir.ExprID(id))
	}

	recon := c.reconcileTargets(exprs, phase, slotOf)

	var steps []ir.Step
	evalPhase := func(ph ir.Phase) {
		for id := 1; id < n; id++ {
			if phase[id] != ph {
				continue
			}
			st := ir.Step{Phase: ph, Expr: ir.ExprID(id), Slot: slotOf[id],
				State: ir.NoState, Inst: types.NoInstance}
			if card := exprs[id].Type.Extent.Card; card.Kind == types.CardMany {
				st.Inst = card.Instance
			}
			steps = append(steps, st)
		}
	}

	evalPhase(ir.PhaseTime)
	evalPhase(ir.PhaseScalar)
	for _, inst := range remapPops(recon) {
		steps = append(steps, ir.Step{Phase: ir.PhaseRemap, Expr: ir.NoExpr,
			Slot: ir.NoSlot, State: ir.NoState, Inst: inst})
	}
	evalPhase(ir.PhaseField)
	for _, rt := range recon {
		steps = append(steps, ir.Step{Phase: ir.PhaseReconcile, Expr: ir.NoExpr,
			Slot: rt.slot, State: ir.NoState, Inst: rt.inst})
	}
	evalPhase(ir.PhaseEvent)
	for i := range c.sinks {
		steps = append(steps, ir.Step{Phase: ir.PhaseRender, Expr: ir.NoExpr,
			Slot: ir.NoSlot, State: ir.NoState, Sink: uint32(i),
			Inst: types.NoInstance})
	}
	for _, w := range c.writes {
		st := ir.Step{Phase: ir.PhaseState, Expr: w.expr, Slot: slotOf[w.expr],
			State: w.state, Inst: types.NoInstance}
		if card := exprs[w.expr].Type.Extent.Card; card.Kind == types.CardMany {
			st.Inst = card.Instance
		}
		steps = append(steps, st)
	}

	prog := &ir.Program{
		Exprs:       exprs,
		Slots:       slots,
		States:      c.states,
		Steps:       steps,
		Sinks:       c.emitSinks(slotOf),
		Inputs:      c.inputs,
		Pops:        c.emitPops(),
		ScalarWords: words,
		SlotExpr:    slotExpr,
	}
	prog.Seal()
	return prog
}

// basePhase classifies an expression before child phases are folded in.
func (c *ctx) basePhase(e *ir.Expr) ir.Phase {
	switch e.Kind {
	case ir.ExprTime:
		return ir.PhaseTime
	case ir.ExprEvent, ir.ExprEventRead:
		return ir.PhaseEvent
	case ir.ExprInput:
		if c.inputs[e.Ref].Event {
			return ir.PhaseEvent
		}
	}
	if e.Type.Extent.Card.Kind == types.CardMany {
		return ir.PhaseField
	}
	return ir.PhaseScalar
}

type reconTarget struct {
	slot ir.SlotID
	inst types.InstanceID
}

// reconcileTargets collects the render parameter slots that continuity
// blending applies to: field-backed parameters over populations with a
// non-trivial policy. A target past the field phase would read a stale
// buffer, which the type system rules out; the check below guards the
// compiler, not the author.
func (c *ctx) reconcileTargets(exprs []ir.Expr, phase []ir.Phase, slotOf []ir.SlotID) []reconTarget {
	var out []reconTarget
	seen := make(map[ir.SlotID]bool)
	for _, sb := range c.sinks {
		if sb.kind != ir.SinkRender {
			continue
		}
		for _, pr := range sb.params {
			t := exprs[pr.expr].Type
			if t.Extent.Card.Kind != types.CardMany {
				continue
			}
			pop, ok := c.domains.Lookup(t.Extent.Card.Instance)
			if !ok || pop.Policy == domain.PolicyNone {
				continue
			}
			if phase[pr.expr] > ir.PhaseField {
				fail("child", "reconcile target e%d settles in phase %s", pr.expr, phase[pr.expr])
			}
			s := slotOf[pr.expr]
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, reconTarget{slot: s, inst: t.Extent.Card.Instance})
		}
	}
	return out
}

// remapPops returns the distinct populations the reconcile targets range
// over, in first-seen order.
func remapPops(recon []reconTarget) []types.InstanceID {
	var out []types.InstanceID
	seen := make(map[types.InstanceID]bool)
	for _, rt := range recon {
		if seen[rt.inst] {
			continue
		}
		seen[rt.inst] = true
		out = append(out, rt.inst)
	}
	return out
}

func (c *ctx) emitSinks(slotOf []ir.SlotID) []ir.SinkDecl {
	out := make([]ir.SinkDecl, 0, len(c.sinks))
	for _, sb := range c.sinks {
		d := ir.SinkDecl{
			Kind:     sb.kind,
			Name:     sb.name,
			Blend:    sb.blend,
			Topology: sb.topo,
			Inst:     sb.inst,
		}
		for _, pr := range sb.params {
			d.Params = append(d.Params, ir.SinkParam{Name: pr.name, Slot: slotOf[pr.expr]})
		}
		out = append(out, d)
	}
	return out
}

// emitPops erases the population registry into the program.
func (c *ctx) emitPops() []ir.PopDecl {
	pops := c.domains.All()
	out := make([]ir.PopDecl, 0, len(pops))
	for _, p := range pops {
		lanes, err := safecast.Conv[uint32](p.Lanes)
		if err != nil {
			fail("instance", "population #%d lane count overflow: %v", p.Instance, err)
		}
		out = append(out, ir.PopDecl{
			Inst:   p.Instance,
			Lanes:  lanes,
			Keys:   p.Keys,
			Rest:   p.Rest,
			Policy: p.Policy,
			MapBy:  p.MapBy,
			Tau:    p.Tau,
			Fade:   p.Fade,
		})
	}
	return out
}
