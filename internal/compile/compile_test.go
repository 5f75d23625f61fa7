package compile

import (
	"context"
	"testing"

	"lumen/internal/diag"
	"lumen/internal/domain"
	"lumen/internal/patch"
	"lumen/internal/testkit"
)

func validGraph() *patch.Graph {
	g := &patch.Graph{}
	a := g.Add(patch.KindConst, patch.Params{"value": patch.Float(2)})
	b := g.Add(patch.KindConst, patch.Params{"value": patch.Float(3)})
	add := g.Add(patch.KindAdd, nil)
	probe := g.Add(patch.KindProbe, patch.Params{"name": patch.Str("sum")})
	g.Connect(a, 0, add, 0)
	g.Connect(b, 0, add, 1)
	g.Connect(add, 0, probe, 0)
	return g
}

func TestCompileProducesSealedProgram(t *testing.T) {
	res, err := Compile(context.Background(), &Request{Graph: validGraph()})
	if err != nil {
		t.Fatalf("compile: %v (%v)", err, res.Bag.Items())
	}
	if res.Program == nil {
		t.Fatalf("no program")
	}
	if res.Program.Fingerprint == 0 {
		t.Errorf("program is not sealed")
	}
	if err := res.Program.Validate(); err != nil {
		t.Errorf("program does not validate: %v", err)
	}

	var names []string
	for _, p := range res.Timings.Phases {
		names = append(names, p.Name)
	}
	want := []string{"normalize", "solve", "lower"}
	if len(names) != len(want) {
		t.Fatalf("timed phases = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("phase %d = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestCompileStopsOnTypeError(t *testing.T) {
	g := &patch.Graph{}
	x := g.Add(patch.KindConst, patch.Params{"value": patch.Float(1)})
	y := g.Add(patch.KindConst, patch.Params{"value": patch.Float(2)})
	pack := g.Add(patch.KindPack2, nil)
	scalar := g.Add(patch.KindConst, patch.Params{"value": patch.Float(3)})
	add := g.Add(patch.KindAdd, nil)
	probe := g.Add(patch.KindProbe, patch.Params{"name": patch.Str("bad")})
	g.Connect(x, 0, pack, 0)
	g.Connect(y, 0, pack, 1)
	g.Connect(pack, 0, add, 0)
	g.Connect(scalar, 0, add, 1)
	g.Connect(add, 0, probe, 0)

	res, err := Compile(context.Background(), &Request{Graph: g})
	if err != ErrDiagnostics {
		t.Fatalf("err = %v, want ErrDiagnostics", err)
	}
	if res.Program != nil {
		t.Fatalf("type error still produced a program")
	}
	if !res.Bag.HasErrors() {
		t.Fatalf("no errors in bag: %v", res.Bag.Items())
	}
	found := false
	for _, d := range res.Bag.Items() {
		if d.Code == diag.TypPayloadMismatch {
			found = true
		}
	}
	if !found {
		t.Errorf("missing payload mismatch, got %v", res.Bag.Items())
	}
}

func TestCompileHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Compile(ctx, &Request{Graph: validGraph()})
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Program != nil {
		t.Errorf("canceled compile produced a program")
	}
}

func TestCompileRejectsMissingGraph(t *testing.T) {
	if _, err := Compile(context.Background(), &Request{}); err == nil {
		t.Errorf("accepted a request without a graph")
	}
	if _, err := Compile(context.Background(), nil); err == nil {
		t.Errorf("accepted a nil request")
	}
}

func TestCompileFingerprintIsDeterministic(t *testing.T) {
	a, err := Compile(context.Background(), &Request{Graph: validGraph()})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	b, err := Compile(context.Background(), &Request{Graph: validGraph()})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if a.Program.Fingerprint != b.Program.Fingerprint {
		t.Errorf("same graph, different fingerprints: %#x vs %#x",
			a.Program.Fingerprint, b.Program.Fingerprint)
	}
}

func TestCompileUpholdsScheduleInvariants(t *testing.T) {
	domains := domain.NewRegistry()
	inst, err := domains.DeclareWith(domain.Population{
		Kind:   1,
		Lanes:  4,
		Keys:   []uint64{0, 1, 2, 3},
		Policy: domain.PolicyPreserve,
	})
	if err != nil {
		t.Fatalf("DeclareWith: %v", err)
	}

	cases := []struct {
		name string
		g    *patch.Graph
	}{
		{name: "scalar pipeline", g: validGraph()},
		{name: "feedback delay", g: func() *patch.Graph {
			g := &patch.Graph{}
			one := g.Add(patch.KindConst, patch.Params{"value": patch.Float(1)})
			sum := g.Add(patch.KindAdd, nil)
			del := g.Add(patch.KindDelay, nil)
			probe := g.Add(patch.KindProbe, patch.Params{"name": patch.Str("acc")})
			g.Connect(one, 0, sum, 0)
			g.Connect(del, 0, sum, 1)
			g.Connect(sum, 0, del, 0)
			g.Connect(sum, 0, probe, 0)
			return g
		}()},
		{name: "field with continuity", g: func() *patch.Graph {
			g := &patch.Graph{}
			x := g.AddBlock(patch.Block{Kind: patch.KindSpread, Instance: inst})
			r := g.AddBlock(patch.Block{Kind: patch.KindRender, Instance: inst})
			g.Connect(x, 0, r, 2)
			return g
		}()},
		{name: "event latch", g: func() *patch.Graph {
			g := &patch.Graph{}
			g.Add(patch.KindTime, nil)
			v := g.Add(patch.KindConst, patch.Params{"value": patch.Float(3)})
			pulse := g.Add(patch.KindPulse, patch.Params{"period": patch.Float(0.5)})
			latch := g.Add(patch.KindLatch, nil)
			probe := g.Add(patch.KindProbe, patch.Params{"name": patch.Str("held")})
			g.Connect(v, 0, latch, 0)
			g.Connect(pulse, 0, latch, 1)
			g.Connect(latch, 0, probe, 0)
			return g
		}()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Compile(context.Background(), &Request{Graph: tc.g, Domains: domains})
			if err != nil {
				t.Fatalf("compile: %v (%v)", err, res.Bag.Items())
			}
			if err := testkit.CheckProgramInvariants(res.Program); err != nil {
				t.Errorf("schedule audit: %v", err)
			}
		})
	}
}
