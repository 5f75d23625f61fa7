package normalize

import (
	"strings"
	"testing"

	"lumen/internal/diag"
	"lumen/internal/domain"
	"lumen/internal/patch"
	"lumen/internal/types"
)

func runPatch(t *testing.T, g *patch.Graph) (*Result, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag(64)
	res := Run(g, patch.Builtins(), domain.NewRegistry(), bag)
	return res, bag
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}

func findKind(g *patch.Graph, kind patch.Kind) []patch.BlockID {
	var ids []patch.BlockID
	for i := range g.Blocks {
		if g.Blocks[i].Kind == kind {
			ids = append(ids, patch.BlockID(i))
		}
	}
	return ids
}

func renderBlock(g *patch.Graph) patch.BlockID {
	return g.Add(patch.KindRender, nil)
}

func probeBlock(g *patch.Graph) patch.BlockID {
	return g.Add(patch.KindProbe, patch.Params{"name": patch.Str("probe")})
}

func TestRunFillsDefaultsWithTime(t *testing.T) {
	g := &patch.Graph{}
	g.Add(patch.KindTime, nil)
	render := renderBlock(g)

	res, bag := runPatch(t, g)
	if res == nil {
		t.Fatalf("normalize failed: %v", bag.Items())
	}
	if res.AuthorBlocks != 2 {
		t.Fatalf("AuthorBlocks = %d, want 2", res.AuthorBlocks)
	}
	if !res.HasTime() {
		t.Fatalf("time authority not found")
	}

	// Every render input must now have exactly one writer.
	for port, edges := range res.Writers[render] {
		if len(edges) != 1 {
			t.Errorf("render input %d has %d writers, want 1", port, len(edges))
		}
	}

	// Float inputs animate when the patch has a clock.
	if len(findKind(res.Graph, patch.KindWave)) == 0 {
		t.Errorf("no animated default materialized despite time authority")
	}
	if len(findKind(res.Graph, patch.KindShape)) == 0 {
		t.Errorf("no default topology materialized")
	}
	if len(findKind(res.Graph, patch.KindProjection)) == 0 {
		t.Errorf("no default view materialized")
	}
}

func TestRunWithoutTimeUsesConstantDefaults(t *testing.T) {
	g := &patch.Graph{}
	renderBlock(g)

	res, bag := runPatch(t, g)
	if res == nil {
		t.Fatalf("normalize failed: %v", bag.Items())
	}
	if res.HasTime() {
		t.Fatalf("found a time authority in a clockless patch")
	}
	if ids := findKind(res.Graph, patch.KindWave); len(ids) != 0 {
		t.Fatalf("animated defaults %v materialized without a time authority", ids)
	}
	if len(findKind(res.Graph, patch.KindConst)) == 0 {
		t.Fatalf("no constant defaults materialized")
	}
}

func TestMissingTimeAuthorityReported(t *testing.T) {
	g := &patch.Graph{}
	osc := g.Add(patch.KindOsc, nil)
	render := renderBlock(g)
	g.Connect(osc, 0, render, 2)

	res, bag := runPatch(t, g)
	if res != nil {
		t.Fatalf("normalize accepted a clock reader without a time authority")
	}
	if !hasCode(bag, diag.StrMissingTime) {
		t.Fatalf("missing StrMissingTime, got %v", bag.Items())
	}
}

func TestConflictingTimeAuthoritiesReported(t *testing.T) {
	g := &patch.Graph{}
	g.Add(patch.KindTime, nil)
	g.Add(patch.KindTime, nil)
	renderBlock(g)

	res, bag := runPatch(t, g)
	if res != nil {
		t.Fatalf("normalize accepted two time authorities")
	}
	if !hasCode(bag, diag.StrTimeConflict) {
		t.Fatalf("missing StrTimeConflict, got %v", bag.Items())
	}
}

func TestAdapterExpansion(t *testing.T) {
	g := &patch.Graph{}
	c := g.Add(patch.KindConst, patch.Params{
		"value": patch.Float(90),
		"unit":  patch.Str("deg"),
	})
	render := renderBlock(g)
	idx := g.ConnectVia(c, 0, render, 3, patch.TransformDegToRad)
	g.Edges[idx].Order = 3

	res, bag := runPatch(t, g)
	if res == nil {
		t.Fatalf("normalize failed: %v", bag.Items())
	}

	adapters := findKind(res.Graph, patch.KindDegToRad)
	if len(adapters) != 1 {
		t.Fatalf("expected 1 adapter block, found %d", len(adapters))
	}
	ad := adapters[0]

	// The author's edge now targets the adapter, and a new edge carries the
	// original ordering key to the original target.
	rewired := res.Graph.Edges[idx]
	if rewired.To.Block != ad || rewired.Transform != patch.TransformNone {
		t.Fatalf("author edge not rewired through adapter: %+v", rewired)
	}
	var forwarded *patch.Edge
	for i := range res.Graph.Edges {
		e := &res.Graph.Edges[i]
		if e.From.Block == ad && e.To.Block == render && e.To.Port == 3 {
			forwarded = e
		}
	}
	if forwarded == nil {
		t.Fatalf("no adapter->target edge found")
	}
	if forwarded.Order != 3 {
		t.Fatalf("adapter edge Order = %d, want 3", forwarded.Order)
	}
}

func TestDuplicateWriterOnNonCombiningInput(t *testing.T) {
	g := &patch.Graph{}
	s1 := g.Add(patch.KindShape, nil)
	s2 := g.Add(patch.KindShape, nil)
	render := renderBlock(g)
	g.Connect(s1, 0, render, 0)
	g.Connect(s2, 0, render, 0)

	res, bag := runPatch(t, g)
	if res != nil {
		t.Fatalf("normalize accepted two writers on a non-combining input")
	}
	if !hasCode(bag, diag.StrDuplicateWriter) {
		t.Fatalf("missing StrDuplicateWriter, got %v", bag.Items())
	}
}

func TestWriterOrderFollowsExplicitKeys(t *testing.T) {
	g := &patch.Graph{}
	c1 := g.Add(patch.KindConst, patch.Params{"value": patch.Float(1)})
	c2 := g.Add(patch.KindConst, patch.Params{"value": patch.Float(2)})
	add := g.Add(patch.KindAdd, nil)
	probe := probeBlock(g)
	e0 := g.Connect(c1, 0, add, 0)
	e1 := g.Connect(c2, 0, add, 0)
	g.Edges[e0].Order = 5
	g.Edges[e1].Order = 1
	g.Connect(add, 0, probe, 0)

	res, bag := runPatch(t, g)
	if res == nil {
		t.Fatalf("normalize failed: %v", bag.Items())
	}

	w := res.Writers[add][0]
	if len(w) != 2 {
		t.Fatalf("add.a has %d writers, want 2", len(w))
	}
	if w[0] != e1 || w[1] != e0 {
		t.Fatalf("writer order = %v, want [%d %d]", w, e1, e0)
	}
	if res.Graph.Edges[e1].Order != 0 || res.Graph.Edges[e0].Order != 1 {
		t.Fatalf("ranks not rewritten: %d, %d",
			res.Graph.Edges[e1].Order, res.Graph.Edges[e0].Order)
	}
}

func TestCycleWithoutStateRejected(t *testing.T) {
	g := &patch.Graph{}
	a := g.AddBlock(patch.Block{Kind: patch.KindAdd, Label: "alpha"})
	b := g.AddBlock(patch.Block{Kind: patch.KindAdd, Label: "beta"})
	g.Connect(a, 0, b, 0)
	g.Connect(b, 0, a, 0)

	res, bag := runPatch(t, g)
	if res != nil {
		t.Fatalf("normalize accepted a stateless cycle")
	}
	found := false
	for _, d := range bag.Items() {
		if d.Code != diag.StrInvalidCycle {
			continue
		}
		found = true
		if !strings.Contains(d.Message, "alpha") || !strings.Contains(d.Message, "beta") {
			t.Fatalf("cycle message does not name every member: %q", d.Message)
		}
		if len(d.Notes) == 0 {
			t.Fatalf("cycle diagnostic carries no member notes")
		}
	}
	if !found {
		t.Fatalf("missing StrInvalidCycle, got %v", bag.Items())
	}
}

func TestSelfLoopRejected(t *testing.T) {
	g := &patch.Graph{}
	a := g.Add(patch.KindAdd, nil)
	g.Connect(a, 0, a, 0)

	res, bag := runPatch(t, g)
	if res != nil {
		t.Fatalf("normalize accepted a stateless self-loop")
	}
	if !hasCode(bag, diag.StrInvalidCycle) {
		t.Fatalf("missing StrInvalidCycle, got %v", bag.Items())
	}
}

func TestCycleThroughDelayAccepted(t *testing.T) {
	g := &patch.Graph{}
	add := g.Add(patch.KindAdd, nil)
	delay := g.Add(patch.KindDelay, nil)
	probe := probeBlock(g)
	g.Connect(add, 0, delay, 0)
	g.Connect(delay, 0, add, 0)
	g.Connect(delay, 0, probe, 0)

	res, bag := runPatch(t, g)
	if res == nil {
		t.Fatalf("normalize rejected a delayed feedback loop: %v", bag.Items())
	}
	if hasCode(bag, diag.StrInvalidCycle) {
		t.Fatalf("StrInvalidCycle raised for a cycle through a delay")
	}
}

func TestDiscreteInputDefaultsToTrigger(t *testing.T) {
	g := &patch.Graph{}
	c := g.Add(patch.KindConst, patch.Params{"value": patch.Float(1)})
	latch := g.Add(patch.KindLatch, nil)
	probe := probeBlock(g)
	g.Connect(c, 0, latch, 0)
	g.Connect(latch, 0, probe, 0)

	res, bag := runPatch(t, g)
	if res == nil {
		t.Fatalf("normalize failed: %v", bag.Items())
	}
	triggers := findKind(res.Graph, patch.KindTrigger)
	if len(triggers) != 1 {
		t.Fatalf("expected 1 materialized trigger, found %d", len(triggers))
	}
	if label := res.Graph.Blocks[triggers[0]].Label; !strings.HasPrefix(label, "default@") {
		t.Fatalf("trigger label %q does not mark a default", label)
	}
}

func TestManyCardinalityInputIsUnfillable(t *testing.T) {
	g := &patch.Graph{}
	red := g.Add(patch.KindReduce, nil)
	probe := probeBlock(g)
	g.Connect(red, 0, probe, 0)

	res, bag := runPatch(t, g)
	if res != nil {
		t.Fatalf("normalize defaulted a field input")
	}
	if !hasCode(bag, diag.StrUnfillableInput) {
		t.Fatalf("missing StrUnfillableInput, got %v", bag.Items())
	}
}

func TestUnknownBlockKindReported(t *testing.T) {
	g := &patch.Graph{}
	g.Add(patch.KindInvalid, nil)

	res, bag := runPatch(t, g)
	if res != nil {
		t.Fatalf("normalize accepted an unknown kind")
	}
	if !hasCode(bag, diag.StrUnknownBlockKind) {
		t.Fatalf("missing StrUnknownBlockKind, got %v", bag.Items())
	}
}

func TestBadPortReported(t *testing.T) {
	g := &patch.Graph{}
	c := g.Add(patch.KindConst, patch.Params{"value": patch.Float(1)})
	probe := probeBlock(g)
	g.Connect(c, 7, probe, 0)

	res, bag := runPatch(t, g)
	if res != nil {
		t.Fatalf("normalize accepted an out-of-range output port")
	}
	if !hasCode(bag, diag.StrBadPort) {
		t.Fatalf("missing StrBadPort, got %v", bag.Items())
	}
}

func TestUndeclaredPopulationReported(t *testing.T) {
	g := &patch.Graph{}
	g.AddBlock(patch.Block{Kind: patch.KindSpread, Instance: types.InstanceID(42)})
	renderBlock(g)

	res, bag := runPatch(t, g)
	if res != nil {
		t.Fatalf("normalize accepted an undeclared population")
	}
	if !hasCode(bag, diag.StrUnknownInstance) {
		t.Fatalf("missing StrUnknownInstance, got %v", bag.Items())
	}
}

func TestNoSinkWarns(t *testing.T) {
	g := &patch.Graph{}
	g.Add(patch.KindConst, patch.Params{"value": patch.Float(1)})

	res, bag := runPatch(t, g)
	if res == nil {
		t.Fatalf("normalize failed: %v", bag.Items())
	}
	if !hasCode(bag, diag.StrNoRenderSink) {
		t.Fatalf("missing StrNoRenderSink warning")
	}
	if bag.HasErrors() {
		t.Fatalf("sink warning escalated to error: %v", bag.Items())
	}
}

func TestAuthorGraphNotMutated(t *testing.T) {
	g := &patch.Graph{}
	g.Add(patch.KindTime, nil)
	render := renderBlock(g)
	c := g.Add(patch.KindConst, patch.Params{"value": patch.Float(0.5)})
	g.ConnectVia(c, 0, render, 2, patch.TransformClamp01)

	blocks, edges := len(g.Blocks), len(g.Edges)
	origEdge := g.Edges[0]

	res, bag := runPatch(t, g)
	if res == nil {
		t.Fatalf("normalize failed: %v", bag.Items())
	}
	if len(g.Blocks) != blocks || len(g.Edges) != edges {
		t.Fatalf("author graph grew: %d blocks %d edges", len(g.Blocks), len(g.Edges))
	}
	if g.Edges[0] != origEdge {
		t.Fatalf("author edge rewritten: %+v", g.Edges[0])
	}
	if len(res.Graph.Blocks) <= blocks {
		t.Fatalf("normalized graph gained no blocks")
	}
}
