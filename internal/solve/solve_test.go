package solve

import (
	"testing"

	"lumen/internal/diag"
	"lumen/internal/domain"
	"lumen/internal/normalize"
	"lumen/internal/patch"
	"lumen/internal/types"
)

func solvePatch(t *testing.T, domains *domain.Registry, g *patch.Graph) (*Result, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag(64)
	n := normalize.Run(g, patch.Builtins(), domains, bag)
	if n == nil {
		t.Fatalf("normalize failed: %v", bag.Items())
	}
	return Run(n, domains, bag), bag
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}

func declarePop(t *testing.T, domains *domain.Registry, lanes int) types.InstanceID {
	t.Helper()
	inst, err := domains.Declare(1, lanes)
	if err != nil {
		t.Fatalf("declare population: %v", err)
	}
	return inst
}

func probeBlock(g *patch.Graph) patch.BlockID {
	return g.Add(patch.KindProbe, patch.Params{"name": patch.Str("probe")})
}

func TestSignalChainResolves(t *testing.T) {
	g := &patch.Graph{}
	g.Add(patch.KindTime, nil)
	rate := g.Add(patch.KindConst, patch.Params{"value": patch.Float(0.25)})
	osc := g.Add(patch.KindOsc, nil)
	render := g.Add(patch.KindRender, nil)
	g.Connect(rate, 0, osc, 0)
	g.Connect(osc, 0, render, 2)

	res, bag := solvePatch(t, domain.NewRegistry(), g)
	if res == nil {
		t.Fatalf("solve failed: %v", bag.Items())
	}

	if got := res.Out(rate, 0).Extent.Card.Kind; got != types.CardZero {
		t.Errorf("const cardinality = %s, want zero", got)
	}
	want := types.MustNew(types.PayloadFloat, types.UnitNone)
	if got := res.Out(osc, 0); got != want {
		t.Errorf("osc out = %s, want %s", got, want)
	}
	if got := res.In(render, 2).Extent.Card.Kind; got != types.CardOne {
		t.Errorf("render size cardinality = %s, want one", got)
	}
}

func TestUnitFlowsBackIntoWriter(t *testing.T) {
	g := &patch.Graph{}
	c := g.Add(patch.KindConst, patch.Params{"value": patch.Float(1.57)})
	render := g.Add(patch.KindRender, nil)
	g.Connect(c, 0, render, 3)

	res, bag := solvePatch(t, domain.NewRegistry(), g)
	if res == nil {
		t.Fatalf("solve failed: %v", bag.Items())
	}
	if got := res.Out(c, 0).Unit; got != types.UnitRadians {
		t.Errorf("const unit = %s, want rad", got)
	}
}

func TestUnitConflictNamesBothOrigins(t *testing.T) {
	g := &patch.Graph{}
	c := g.Add(patch.KindConst, patch.Params{
		"value": patch.Float(90),
		"unit":  patch.Str("deg"),
	})
	render := g.Add(patch.KindRender, nil)
	g.Connect(c, 0, render, 3)

	res, bag := solvePatch(t, domain.NewRegistry(), g)
	if res != nil {
		t.Fatalf("solve accepted degrees on a radian port")
	}
	found := false
	for _, d := range bag.Items() {
		if d.Code != diag.TypUnitMismatch {
			continue
		}
		found = true
		if len(d.Notes) < 2 {
			t.Errorf("unit conflict carries %d notes, want both origins", len(d.Notes))
		}
	}
	if !found {
		t.Fatalf("missing TypUnitMismatch, got %v", bag.Items())
	}
}

func TestSharedPayloadVarConflict(t *testing.T) {
	g := &patch.Graph{}
	x := g.Add(patch.KindConst, patch.Params{"value": patch.Float(1)})
	y := g.Add(patch.KindConst, patch.Params{"value": patch.Float(2)})
	pack := g.Add(patch.KindPack2, nil)
	scalar := g.Add(patch.KindConst, patch.Params{"value": patch.Float(3)})
	add := g.Add(patch.KindAdd, nil)
	probe := probeBlock(g)
	g.Connect(x, 0, pack, 0)
	g.Connect(y, 0, pack, 1)
	g.Connect(pack, 0, add, 0)
	g.Connect(scalar, 0, add, 1)
	g.Connect(add, 0, probe, 0)

	res, bag := solvePatch(t, domain.NewRegistry(), g)
	if res != nil {
		t.Fatalf("solve accepted vec2 + float")
	}
	if !hasCode(bag, diag.TypPayloadMismatch) {
		t.Fatalf("missing TypPayloadMismatch, got %v", bag.Items())
	}
}

func TestBroadcastLiftsToField(t *testing.T) {
	domains := domain.NewRegistry()
	inst := declarePop(t, domains, 8)

	g := &patch.Graph{}
	spread := g.AddBlock(patch.Block{Kind: patch.KindSpread, Instance: inst})
	c := g.Add(patch.KindConst, patch.Params{"value": patch.Float(1)})
	add := g.Add(patch.KindAdd, nil)
	probe := probeBlock(g)
	g.Connect(spread, 0, add, 0)
	g.Connect(c, 0, add, 1)
	g.Connect(add, 0, probe, 0)

	res, bag := solvePatch(t, domains, g)
	if res == nil {
		t.Fatalf("solve failed: %v", bag.Items())
	}
	if got := res.Out(add, 0).Extent.Card; got != types.Many(inst) {
		t.Errorf("add out cardinality = %s, want many(#%d)", got, inst)
	}
	if got := res.In(probe, 0).Extent.Card; got != types.Many(inst) {
		t.Errorf("probe in cardinality = %s, want many(#%d)", got, inst)
	}
}

func TestPopulationMismatchRejected(t *testing.T) {
	domains := domain.NewRegistry()
	p := declarePop(t, domains, 8)
	q := declarePop(t, domains, 16)

	g := &patch.Graph{}
	sp := g.AddBlock(patch.Block{Kind: patch.KindSpread, Instance: p})
	sq := g.AddBlock(patch.Block{Kind: patch.KindSpread, Instance: q})
	add := g.Add(patch.KindAdd, nil)
	probe := probeBlock(g)
	g.Connect(sp, 0, add, 0)
	g.Connect(sq, 0, add, 1)
	g.Connect(add, 0, probe, 0)

	res, bag := solvePatch(t, domains, g)
	if res != nil {
		t.Fatalf("solve accepted two populations in one kernel")
	}
	if !hasCode(bag, diag.TypInstanceMismatch) {
		t.Fatalf("missing TypInstanceMismatch, got %v", bag.Items())
	}
}

func TestFieldCannotFeedSignalPort(t *testing.T) {
	domains := domain.NewRegistry()
	inst := declarePop(t, domains, 8)

	g := &patch.Graph{}
	spread := g.AddBlock(patch.Block{Kind: patch.KindSpread, Instance: inst})
	render := g.Add(patch.KindRender, nil)
	g.Connect(spread, 0, render, 5)

	res, bag := solvePatch(t, domains, g)
	if res != nil {
		t.Fatalf("solve accepted a field on a one-per-frame port")
	}
	if !hasCode(bag, diag.TypCardMismatch) {
		t.Fatalf("missing TypCardMismatch, got %v", bag.Items())
	}
}

func TestReduceWithoutPopulationRejected(t *testing.T) {
	g := &patch.Graph{}
	c := g.Add(patch.KindConst, patch.Params{"value": patch.Float(1)})
	red := g.Add(patch.KindReduce, nil)
	probe := probeBlock(g)
	g.Connect(c, 0, red, 0)
	g.Connect(red, 0, probe, 0)

	res, bag := solvePatch(t, domain.NewRegistry(), g)
	if res != nil {
		t.Fatalf("solve accepted a reduce with no population in sight")
	}
	if !hasCode(bag, diag.TypNoPopulation) {
		t.Fatalf("missing TypNoPopulation, got %v", bag.Items())
	}
}

func TestReduceCollapsesField(t *testing.T) {
	domains := domain.NewRegistry()
	inst := declarePop(t, domains, 8)

	g := &patch.Graph{}
	spread := g.AddBlock(patch.Block{Kind: patch.KindSpread, Instance: inst})
	red := g.Add(patch.KindReduce, patch.Params{"op": patch.Str("avg")})
	probe := probeBlock(g)
	g.Connect(spread, 0, red, 0)
	g.Connect(red, 0, probe, 0)

	res, bag := solvePatch(t, domains, g)
	if res == nil {
		t.Fatalf("solve failed: %v", bag.Items())
	}
	if got := res.In(red, 0).Extent.Card; got != types.Many(inst) {
		t.Errorf("reduce in = %s, want many(#%d)", got, inst)
	}
	if got := res.Out(red, 0).Extent.Card.Kind; got != types.CardOne {
		t.Errorf("reduce out = %s, want one", got)
	}
}

func TestPhaseScalingRejected(t *testing.T) {
	g := &patch.Graph{}
	g.Add(patch.KindTime, nil)
	phasor := g.Add(patch.KindPhasor, nil)
	c := g.Add(patch.KindConst, patch.Params{"value": patch.Float(2)})
	mul := g.Add(patch.KindMul, nil)
	probe := probeBlock(g)
	g.Connect(phasor, 0, mul, 0)
	g.Connect(c, 0, mul, 1)
	g.Connect(mul, 0, probe, 0)

	res, bag := solvePatch(t, domain.NewRegistry(), g)
	if res != nil {
		t.Fatalf("solve accepted a scaled phase")
	}
	if !hasCode(bag, diag.TypPhaseArithmetic) {
		t.Fatalf("missing TypPhaseArithmetic, got %v", bag.Items())
	}
}

func TestScaleRuleCarriesSoleUnit(t *testing.T) {
	g := &patch.Graph{}
	a := g.Add(patch.KindConst, patch.Params{
		"value": patch.Float(2),
		"unit":  patch.Str("s"),
	})
	b := g.Add(patch.KindConst, patch.Params{"value": patch.Float(3)})
	mul := g.Add(patch.KindMul, nil)
	probe := probeBlock(g)
	g.Connect(a, 0, mul, 0)
	g.Connect(b, 0, mul, 1)
	g.Connect(mul, 0, probe, 0)

	res, bag := solvePatch(t, domain.NewRegistry(), g)
	if res == nil {
		t.Fatalf("solve failed: %v", bag.Items())
	}
	if got := res.Out(mul, 0).Unit; got != types.UnitSeconds {
		t.Errorf("mul out unit = %s, want sec", got)
	}
}

func TestScaleRuleWithTwoUnitsReadsPlain(t *testing.T) {
	g := &patch.Graph{}
	a := g.Add(patch.KindConst, patch.Params{
		"value": patch.Float(2),
		"unit":  patch.Str("s"),
	})
	b := g.Add(patch.KindConst, patch.Params{
		"value": patch.Float(3),
		"unit":  patch.Str("norm"),
	})
	mul := g.Add(patch.KindMul, nil)
	probe := probeBlock(g)
	g.Connect(a, 0, mul, 0)
	g.Connect(b, 0, mul, 1)
	g.Connect(mul, 0, probe, 0)

	res, bag := solvePatch(t, domain.NewRegistry(), g)
	if res == nil {
		t.Fatalf("solve failed: %v", bag.Items())
	}
	if got := res.Out(mul, 0).Unit; got != types.UnitNone {
		t.Errorf("mul out unit = %s, want scalar", got)
	}
}

func TestChainedScaleRule(t *testing.T) {
	g := &patch.Graph{}
	// The downstream product is authored first so the pass cannot settle
	// blocks in id order; the sole annotated unit must still ride through
	// both products.
	mul2 := g.Add(patch.KindMul, nil)
	mul1 := g.Add(patch.KindMul, nil)
	a := g.Add(patch.KindConst, patch.Params{
		"value": patch.Float(2),
		"unit":  patch.Str("s"),
	})
	b := g.Add(patch.KindConst, patch.Params{"value": patch.Float(3)})
	c := g.Add(patch.KindConst, patch.Params{"value": patch.Float(4)})
	probe := probeBlock(g)
	g.Connect(a, 0, mul1, 0)
	g.Connect(b, 0, mul1, 1)
	g.Connect(mul1, 0, mul2, 0)
	g.Connect(c, 0, mul2, 1)
	g.Connect(mul2, 0, probe, 0)

	res, bag := solvePatch(t, domain.NewRegistry(), g)
	if res == nil {
		t.Fatalf("solve failed: %v", bag.Items())
	}
	if got := res.Out(mul1, 0).Unit; got != types.UnitSeconds {
		t.Errorf("mul1 out unit = %s, want sec", got)
	}
	if got := res.Out(mul2, 0).Unit; got != types.UnitSeconds {
		t.Errorf("mul2 out unit = %s, want sec", got)
	}
}

func TestDiscreteCannotFeedContinuousPort(t *testing.T) {
	g := &patch.Graph{}
	trig := g.Add(patch.KindTrigger, patch.Params{"name": patch.Str("hit")})
	add := g.Add(patch.KindAdd, nil)
	probe := probeBlock(g)
	g.Connect(trig, 0, add, 0)
	g.Connect(add, 0, probe, 0)

	res, bag := solvePatch(t, domain.NewRegistry(), g)
	if res != nil {
		t.Fatalf("solve accepted an event on a continuous port")
	}
	if !hasCode(bag, diag.TypTimeMismatch) {
		t.Fatalf("missing TypTimeMismatch, got %v", bag.Items())
	}
}

func TestLatchBridgesEventIntoSignal(t *testing.T) {
	g := &patch.Graph{}
	c := g.Add(patch.KindConst, patch.Params{"value": patch.Float(5)})
	trig := g.Add(patch.KindTrigger, patch.Params{"name": patch.Str("hit")})
	latch := g.Add(patch.KindLatch, nil)
	probe := probeBlock(g)
	g.Connect(c, 0, latch, 0)
	g.Connect(trig, 0, latch, 1)
	g.Connect(latch, 0, probe, 0)

	res, bag := solvePatch(t, domain.NewRegistry(), g)
	if res == nil {
		t.Fatalf("solve failed: %v", bag.Items())
	}
	out := res.Out(latch, 0)
	if out.Extent.Time != types.Continuous {
		t.Errorf("latch out temporality = %s, want continuous", out.Extent.Time)
	}
	if out.Extent.Card.Kind != types.CardOne {
		t.Errorf("latch out cardinality = %s, want one", out.Extent.Card)
	}
	if out.Payload != types.PayloadFloat {
		t.Errorf("latch out payload = %s, want float", out.Payload)
	}
}
