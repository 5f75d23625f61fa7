package solve

import (
	"fmt"

	"lumen/internal/diag"
	"lumen/internal/patch"
	"lumen/internal/types"
)

// cardState is the join-lattice value of one port's cardinality: unknown,
// then zero ⊑ one ⊑ many(pop). Signature-bound cards act as caps: joins
// may fill a cap in (a constant feeding a signal port) but never raise it
// (a field cannot silently collapse into a signal).
type cardState struct {
	known  bool
	kind   types.CardKind
	inst   types.InstanceID
	cap    bool
	failed bool // a conflict was already reported; absorb silently
}

// cardConflict is a failed join.
type cardConflict struct {
	raised bool // the join tried to raise a capped kind
	dst    cardState
	src    cardState
}

func maxCard(a, b types.CardKind) types.CardKind {
	if a > b {
		return a
	}
	return b
}

// joinInto folds src into dst. It reports whether dst changed; a non-nil
// conflict means the join is impossible and dst has been poisoned so the
// fixpoint cannot re-raise the same defect every round.
func joinInto(dst *cardState, src cardState) (bool, *cardConflict) {
	if src.failed && !dst.failed {
		dst.failed = true
		return true, nil
	}
	if dst.failed || !src.known {
		return false, nil
	}
	if !dst.known {
		dst.known = true
		dst.kind = src.kind
		dst.inst = src.inst
		return true, nil
	}

	if dst.kind == types.CardMany && src.kind == types.CardMany &&
		dst.inst != types.NoInstance && src.inst != types.NoInstance &&
		dst.inst != src.inst {
		dst.failed = true
		return true, &cardConflict{dst: *dst, src: src}
	}

	k := maxCard(dst.kind, src.kind)
	inst := dst.inst
	if k == types.CardMany && inst == types.NoInstance {
		inst = src.inst
	}
	if dst.cap && k != dst.kind {
		dst.failed = true
		return true, &cardConflict{raised: true, dst: *dst, src: src}
	}
	changed := k != dst.kind || inst != dst.inst
	dst.kind = k
	dst.inst = inst
	return changed, nil
}

// cardFlow holds the per-port lattice states during the fixpoint.
type cardFlow struct {
	ins  [][]cardState
	outs [][]cardState
}

func (s *solver) seedCards() {
	g := s.res.Graph
	s.cards = &cardFlow{
		ins:  make([][]cardState, len(g.Blocks)),
		outs: make([][]cardState, len(g.Blocks)),
	}
	for id := range g.Blocks {
		sig := s.res.Sigs[id]
		s.cards.ins[id] = make([]cardState, len(sig.Inputs))
		s.cards.outs[id] = make([]cardState, len(sig.Outputs))
		for p := range sig.Inputs {
			s.cards.ins[id][p] = seedState(sig.Inputs[p].Pat)
		}
		for p := range sig.Outputs {
			s.cards.outs[id][p] = seedState(sig.Outputs[p].Pat)
		}

		// A stateful or clock-reading block produces at least one value
		// per frame even when every input is a compile-time constant.
		if sig.Stateful || sig.NeedsTime {
			for p := range s.cards.outs[id] {
				joinInto(&s.cards.outs[id][p], cardState{known: true, kind: types.CardOne})
			}
		}
	}
}

func seedState(pat types.Pattern) cardState {
	var st cardState
	if pat.Card.Tag == types.TagBound {
		st.known = true
		st.cap = true
		st.kind = pat.Card.Val
	}
	if pat.Inst.Tag == types.TagBound {
		st.inst = pat.Inst.Val
	}
	return st
}

// flowCards runs the join fixpoint: writer states flow along edges into
// reader states, and lifted kernels fold their input states into their
// outputs. The lattice is finite and joins only climb, so the sweep count
// is bounded by the longest dependency chain.
func (s *solver) flowCards() {
	g := s.res.Graph
	limit := len(g.Blocks) + len(g.Edges) + 4
	for round := 0; ; round++ {
		if round > limit {
			panic("solve: cardinality fixpoint did not settle")
		}
		changed := false
		for i := range g.Edges {
			e := &g.Edges[i]
			src := s.cards.outs[e.From.Block][e.From.Port]
			dst := &s.cards.ins[e.To.Block][e.To.Port]
			ch, cf := joinInto(dst, src)
			changed = changed || ch
			if cf != nil {
				s.reportCardEdge(i, e, cf)
			}
		}
		for id := range g.Blocks {
			sig := s.res.Sigs[id]
			if !sig.Lift {
				continue
			}
			for op := range s.cards.outs[id] {
				out := &s.cards.outs[id][op]
				for ip := range s.cards.ins[id] {
					ch, cf := joinInto(out, s.cards.ins[id][ip])
					changed = changed || ch
					if cf != nil {
						s.reportCardLift(id, ip, cf)
					}
				}
			}
		}
		if !changed {
			return
		}
	}
}

func (s *solver) reportCardEdge(idx int, e *patch.Edge, cf *cardConflict) {
	g := s.res.Graph
	if cf.raised {
		s.bag.Add(diag.NewError(diag.TypCardMismatch, diag.AtEdge(uint32(idx)),
			fmt.Sprintf("%s output of %s cannot feed the %s input of %s; reduce it first",
				describeCard(cf.src), g.BlockName(e.From.Block),
				describeCard(cf.dst), g.BlockName(e.To.Block))).
			WithNote(diag.AtInput(uint32(e.To.Block), uint32(e.To.Port)), "cardinality pinned here"))
		return
	}
	s.bag.Add(diag.NewError(diag.TypInstanceMismatch, diag.AtEdge(uint32(idx)),
		fmt.Sprintf("%s from %s and %s at %s range over different populations",
			describeCard(cf.src), g.BlockName(e.From.Block),
			describeCard(cf.dst), g.BlockName(e.To.Block))))
}

func (s *solver) reportCardLift(id, port int, cf *cardConflict) {
	g := s.res.Graph
	sig := s.res.Sigs[id]
	s.bag.Add(diag.NewError(diag.TypInstanceMismatch, diag.AtBlock(uint32(id)),
		fmt.Sprintf("%s combines %s with %s; fields must share one population",
			g.BlockName(patch.BlockID(id)), describeCard(cf.dst), describeCard(cf.src))).
		WithNote(diag.AtInput(uint32(id), uint32(port)),
			fmt.Sprintf("input %s is here", sig.Inputs[port].Name)))
}

func describeCard(st cardState) string {
	if !st.known {
		return "an unresolved value"
	}
	switch st.kind {
	case types.CardZero:
		return "a constant"
	case types.CardOne:
		return "a signal"
	case types.CardMany:
		if st.inst == types.NoInstance {
			return "a field"
		}
		return fmt.Sprintf("a field over population #%d", st.inst)
	default:
		return "an unresolved value"
	}
}
