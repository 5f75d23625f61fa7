package testkit

import (
	"context"
	"strings"
	"testing"

	"lumen/internal/compile"
	"lumen/internal/domain"
	"lumen/internal/ir"
	"lumen/internal/patch"
)

// fullProgram compiles a patch that exercises every schedule phase: a
// policied population (remap + reconcile), per-lane fields, a feedback
// delay, a pulse-driven latch and both sink kinds.
func fullProgram(t *testing.T) *ir.Program {
	t.Helper()
	domains := domain.NewRegistry()
	inst, err := domains.DeclareWith(domain.Population{
		Kind:   1,
		Lanes:  6,
		Keys:   []uint64{0, 1, 2, 3, 4, 5},
		Policy: domain.PolicySlew,
		Tau:    0.2,
	})
	if err != nil {
		t.Fatalf("DeclareWith: %v", err)
	}

	g := &patch.Graph{}
	g.Add(patch.KindTime, nil)
	x := g.AddBlock(patch.Block{Kind: patch.KindSpread, Instance: inst, Label: "x"})
	gain := g.Add(patch.KindConst, patch.Params{"value": patch.Float(0.5)})
	scaled := g.Add(patch.KindMul, nil)
	render := g.AddBlock(patch.Block{Kind: patch.KindRender, Instance: inst, Label: "view"})
	avg := g.Add(patch.KindReduce, patch.Params{"op": patch.Str("avg")})
	del := g.Add(patch.KindDelay, nil)
	pulse := g.Add(patch.KindPulse, patch.Params{"period": patch.Float(0.25)})
	latch := g.Add(patch.KindLatch, nil)
	probe := g.Add(patch.KindProbe, patch.Params{"name": patch.Str("held")})

	g.Connect(x, 0, scaled, 0)
	g.Connect(gain, 0, scaled, 1)
	g.Connect(scaled, 0, render, 2)
	g.Connect(scaled, 0, avg, 0)
	g.Connect(avg, 0, del, 0)
	g.Connect(del, 0, latch, 0)
	g.Connect(pulse, 0, latch, 1)
	g.Connect(latch, 0, probe, 0)

	res, err := compile.Compile(context.Background(), &compile.Request{
		Graph:   g,
		Domains: domains,
	})
	if err != nil {
		t.Fatalf("Compile: %v (%v)", err, res.Bag.Items())
	}
	return res.Program
}

func wantAuditError(t *testing.T, p *ir.Program, substr string) {
	t.Helper()
	err := CheckProgramInvariants(p)
	if err == nil {
		t.Fatalf("audit passed, want error containing %q", substr)
	}
	if !strings.Contains(err.Error(), substr) {
		t.Fatalf("audit error = %v, want substring %q", err, substr)
	}
}

func TestAuditAcceptsCompiledProgram(t *testing.T) {
	p := fullProgram(t)
	if err := CheckProgramInvariants(p); err != nil {
		t.Fatalf("audit failed on a freshly compiled program: %v", err)
	}
}

func TestAuditRejectsNil(t *testing.T) {
	if err := CheckProgramInvariants(nil); err == nil {
		t.Fatalf("expected error for nil program")
	}
}

func TestAuditFlagsChildAfterParent(t *testing.T) {
	p := fullProgram(t)
	mutated := false
	for i := 1; i < len(p.Exprs) && !mutated; i++ {
		if len(p.Exprs[i].Args) > 0 {
			// Point the child at the table's last node; at or past the
			// parent either way.
			p.Exprs[i].Args[0] = ir.ExprID(len(p.Exprs) - 1)
			mutated = true
		}
	}
	if !mutated {
		t.Fatalf("no expression with children")
	}
	wantAuditError(t, p, "precede its parent")
}

func TestAuditFlagsOverlappingScalars(t *testing.T) {
	p := fullProgram(t)
	var scalars []int
	for i, s := range p.Slots {
		if s.Class == ir.StorageScalar {
			scalars = append(scalars, i)
		}
	}
	if len(scalars) < 2 {
		t.Skipf("program has %d scalar slots, need 2", len(scalars))
	}
	p.Slots[scalars[1]].Offset = p.Slots[scalars[0]].Offset
	wantAuditError(t, p, "overlap")
}

func TestAuditFlagsUnwrittenSinkParam(t *testing.T) {
	p := fullProgram(t)
	// Drop the step that writes the probe's slot; the render step that
	// reads it must now fail the audit.
	var probeSlot ir.SlotID
	found := false
	for _, s := range p.Sinks {
		if s.Kind == ir.SinkProbe {
			probeSlot = s.Params[0].Slot
			found = true
		}
	}
	if !found {
		t.Fatalf("no probe sink in program")
	}
	steps := p.Steps[:0]
	removed := false
	for _, st := range p.Steps {
		if !removed && st.Phase != ir.PhaseRender && st.Phase != ir.PhaseReconcile && st.Slot == probeSlot {
			removed = true
			continue
		}
		steps = append(steps, st)
	}
	if !removed {
		t.Fatalf("no step writes the probe slot")
	}
	p.Steps = steps
	wantAuditError(t, p, "unwritten")
}

func TestAuditFlagsDuplicateRender(t *testing.T) {
	p := fullProgram(t)
	for i, st := range p.Steps {
		if st.Phase == ir.PhaseRender {
			dup := st
			p.Steps = append(p.Steps[:i+1], append([]ir.Step{dup}, p.Steps[i+1:]...)...)
			break
		}
	}
	wantAuditError(t, p, "emitted 2 times")
}

func TestAuditFlagsDoubleStateWrite(t *testing.T) {
	p := fullProgram(t)
	var dup *ir.Step
	for i := range p.Steps {
		if p.Steps[i].Phase == ir.PhaseState {
			dup = &p.Steps[i]
			break
		}
	}
	if dup == nil {
		t.Fatalf("no state step in program")
	}
	p.Steps = append(p.Steps, *dup)
	wantAuditError(t, p, "written 2 times")
}
