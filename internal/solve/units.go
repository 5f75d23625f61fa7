package solve

import (
	"fmt"

	"lumen/internal/diag"
	"lumen/internal/patch"
	"lumen/internal/types"
)

// applyUnitRules runs the UnitScale post-pass for multiplicative kernels,
// whose output unit is not expressible as a shared pattern variable: it is
// the sole annotated input unit, or plain when neither or both inputs
// carry one. Wrapped phase is rejected outright; scaling a phase without
// unwrapping it never means what the author hoped.
//
// Chained products feed each other's unit cells, so the pass iterates:
// a block decides as soon as every input unit is pinned. When the sweep
// stalls, a block whose undecided inputs cannot be fed by any other
// pending product reads them as plain; that is the closure of "no more
// information will ever arrive", not a guess.
func (s *solver) applyUnitRules() {
	var pending []int
	for id := range s.res.Graph.Blocks {
		if s.res.Sigs[id].Units == patch.UnitScale {
			pending = append(pending, id)
		}
	}

	for len(pending) > 0 {
		for {
			var next []int
			for _, id := range pending {
				if !s.decideScale(id, false) {
					next = append(next, id)
				}
			}
			settled := len(next) < len(pending)
			pending = next
			if !settled {
				break
			}
		}
		if len(pending) == 0 {
			break
		}
		forced := pickForced(s, pending)
		s.decideScale(forced, true)
		for i, id := range pending {
			if id == forced {
				pending = append(pending[:i], pending[i+1:]...)
				break
			}
		}
	}
}

// pickForced chooses the pending block to resolve with unresolved inputs
// read as plain: one whose undecided input cells no other pending product
// can still pin. Products tied in a loop have no such block; any member
// breaks the tie then.
func pickForced(s *solver, pending []int) int {
	fed := make(map[cell]bool, len(pending))
	for _, id := range pending {
		for p := range s.res.Sigs[id].Outputs {
			fed[s.cells.find(s.outs[id][p][axUnit])] = true
		}
	}
	for _, id := range pending {
		free := true
		for p := range s.res.Sigs[id].Inputs {
			c := s.cells.find(s.ins[id][p][axUnit])
			if _, bound := s.cells.value(c); bound {
				continue
			}
			if fed[c] {
				free = false
				break
			}
		}
		if free {
			return id
		}
	}
	return pending[0]
}

// decideScale resolves one multiplicative block's output unit. It reports
// whether the block was decided; with final set, undecided inputs read as
// plain scalars.
func (s *solver) decideScale(id int, final bool) bool {
	g := s.res.Graph
	sig := s.res.Sigs[id]

	units := make([]types.Unit, len(sig.Inputs))
	for p := range sig.Inputs {
		v, ok := s.cells.value(s.ins[id][p][axUnit])
		if !ok && !final {
			return false
		}
		if ok {
			units[p] = types.Unit(v)
		}
	}

	for p, u := range units {
		if u == types.UnitPhase {
			s.bag.Add(diag.NewError(diag.TypPhaseArithmetic, diag.AtInput(uint32(id), uint32(p)),
				fmt.Sprintf("%s scales a wrapped phase; convert it with phase-to-rad first",
					g.BlockName(patch.BlockID(id)))))
			return true
		}
	}

	out := types.UnitNone
	annotated := 0
	for _, u := range units {
		if u != types.UnitNone {
			annotated++
			out = u
		}
	}
	if annotated != 1 {
		out = types.UnitNone
	}

	for p := range sig.Outputs {
		target := diag.AtOutput(uint32(id), uint32(p))
		if cf := s.cells.bind(s.outs[id][p][axUnit], uint64(out), target); cf != nil {
			s.bag.Add(diag.NewError(diag.TypUnitMismatch, target,
				fmt.Sprintf("%s produces %s here, but the result is pinned to %s",
					g.BlockName(patch.BlockID(id)), out, axUnit.describe(cf.a))).
				WithNote(cf.siteA, "pinned here"))
		}
	}
	return true
}
