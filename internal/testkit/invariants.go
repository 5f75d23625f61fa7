// Package testkit holds cross-cutting audits shared by tests. The checks
// here are stronger than ir.Program.Validate: Validate guards referential
// integrity, these guard the dataflow meaning of a schedule.
package testkit

import (
	"fmt"

	"lumen/internal/ir"
)

// CheckProgramInvariants audits a sealed program:
//
//  1. expression children precede their parents in the table
//  2. scalar slots occupy disjoint arena ranges
//  3. every slot is written by an earlier step than any step reading it,
//     and reconcile steps only blend slots that already hold a value
//  4. every sink parameter slot is written during the frame, and every
//     sink is emitted by exactly one render step
//  5. each state cell is written at most once per frame
func CheckProgramInvariants(p *ir.Program) error {
	if p == nil {
		return fmt.Errorf("nil program")
	}
	if err := checkExprOrder(p); err != nil {
		return err
	}
	if err := checkScalarLayout(p); err != nil {
		return err
	}
	if err := checkScheduleFlow(p); err != nil {
		return err
	}
	if err := checkSinkCoverage(p); err != nil {
		return err
	}
	return checkStateWrites(p)
}

// checkExprOrder verifies the hash-consing build order: a node's children
// always carry smaller ids.
func checkExprOrder(p *ir.Program) error {
	for i, e := range p.Exprs {
		if i == 0 {
			continue
		}
		for _, a := range e.Args {
			if int(a) >= i {
				return fmt.Errorf("e%d: child e%d does not precede its parent", i, a)
			}
		}
	}
	return nil
}

// checkScalarLayout verifies scalar slots never alias arena words.
func checkScalarLayout(p *ir.Program) error {
	type span struct {
		slot       int
		start, end uint32
	}
	var spans []span
	for i, s := range p.Slots {
		if s.Class != ir.StorageScalar {
			continue
		}
		spans = append(spans, span{slot: i, start: s.Offset, end: s.Offset + uint32(s.Stride)})
	}
	for i, a := range spans {
		for _, b := range spans[i+1:] {
			if a.start < b.end && b.start < a.end {
				return fmt.Errorf("s%d and s%d overlap in the scalar arena", a.slot, b.slot)
			}
		}
	}
	return nil
}

// checkScheduleFlow walks the schedule in order and verifies no step reads
// a slot that has not been written yet this frame.
func checkScheduleFlow(p *ir.Program) error {
	written := make(map[ir.SlotID]bool, len(p.Slots))
	for i, st := range p.Steps {
		switch st.Phase {
		case ir.PhaseTime, ir.PhaseScalar, ir.PhaseField, ir.PhaseEvent:
			if err := checkReads(p, st.Expr, written); err != nil {
				return fmt.Errorf("step %d (%s): %w", i, st.Phase, err)
			}
			written[st.Slot] = true
		case ir.PhaseReconcile:
			if !written[st.Slot] {
				return fmt.Errorf("step %d: reconcile blends s%d before any write", i, st.Slot)
			}
		case ir.PhaseRender:
			for _, param := range p.Sinks[st.Sink].Params {
				if !written[param.Slot] {
					return fmt.Errorf("step %d: sink %q param %q reads unwritten s%d",
						i, p.Sinks[st.Sink].Name, param.Name, param.Slot)
				}
			}
		case ir.PhaseState:
			if err := checkReads(p, st.Expr, written); err != nil {
				return fmt.Errorf("step %d (%s): %w", i, st.Phase, err)
			}
			written[st.Slot] = true
		}
	}
	return nil
}

// checkReads walks one expression tree and verifies its slot reads hit
// already-written slots. State reads are exempt: they observe the previous
// frame by design of the phase order.
func checkReads(p *ir.Program, root ir.ExprID, written map[ir.SlotID]bool) error {
	if root == ir.NoExpr {
		return nil
	}
	stack := []ir.ExprID{root}
	seen := make(map[ir.ExprID]bool)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		e := &p.Exprs[id]
		if e.Kind == ir.ExprSlotRead && !written[ir.SlotID(e.Ref)] {
			return fmt.Errorf("e%d reads unwritten s%d", id, e.Ref)
		}
		stack = append(stack, e.Args...)
	}
	return nil
}

// checkSinkCoverage verifies the schedule emits every sink exactly once.
func checkSinkCoverage(p *ir.Program) error {
	emitted := make([]int, len(p.Sinks))
	for _, st := range p.Steps {
		if st.Phase == ir.PhaseRender {
			emitted[st.Sink]++
		}
	}
	for i, n := range emitted {
		if n != 1 {
			return fmt.Errorf("sink%d %q emitted %d times, want 1", i, p.Sinks[i].Name, n)
		}
	}
	return nil
}

// checkStateWrites verifies each persistent cell commits once per frame.
func checkStateWrites(p *ir.Program) error {
	writes := make([]int, len(p.States))
	for i, st := range p.Steps {
		if st.Phase != ir.PhaseState {
			continue
		}
		if int(st.State) >= len(writes) {
			return fmt.Errorf("step %d: state st%d out of range", i, st.State)
		}
		writes[st.State]++
	}
	for i, n := range writes {
		if n > 1 {
			return fmt.Errorf("st%d written %d times in one frame", i, n)
		}
	}
	return nil
}
