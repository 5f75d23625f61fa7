package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lumen/internal/compile"
	"lumen/internal/domain"
	"lumen/internal/patch"
)

func writePatch(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patch.toml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write patch.toml: %v", err)
	}
	return path
}

const orbitPatch = `# test patch
name = "orbit"

[[population]]
name = "dots"
lanes = 8
policy = "slew"
tau = 0.25

[[block]]
id = "rate"
kind = "const"
params = { value = 0.2 }

[[block]]
id = "x"
kind = "spread"
population = "dots"

[[block]]
id = "scaled"
kind = "mul"

[[block]]
id = "view"
kind = "render"
population = "dots"

[[block]]
id = "out"
kind = "probe"
params = { name = "x" }

[[edge]]
from = "x"
to = "scaled.a"

[[edge]]
from = "rate"
to = "scaled.b"

[[edge]]
from = "scaled"
to = "view.size"

[[edge]]
from = "scaled"
to = "out"

[player]
fps = 30
budget_ms = 8.0
`

func TestLoadPatchBuildsGraph(t *testing.T) {
	pd, err := loadPatch(writePatch(t, orbitPatch))
	if err != nil {
		t.Fatalf("loadPatch: %v", err)
	}
	if pd.Name != "orbit" {
		t.Fatalf("name = %q, want orbit", pd.Name)
	}
	if got := len(pd.Graph.Blocks); got != 5 {
		t.Fatalf("blocks = %d, want 5", got)
	}
	if got := len(pd.Graph.Edges); got != 4 {
		t.Fatalf("edges = %d, want 4", got)
	}
	if pd.Domains.Len() != 1 {
		t.Fatalf("populations = %d, want 1", pd.Domains.Len())
	}
	pop := pd.Domains.All()[0]
	if pop.Lanes != 8 || pop.Policy != domain.PolicySlew {
		t.Fatalf("population = %+v, want 8 slew lanes", pop)
	}
	if len(pop.Keys) != 8 || pop.Keys[3] != 3 {
		t.Fatalf("expected sequential auto keys, got %v", pop.Keys)
	}
	if pd.Player.FPS != 30 || pd.Player.BudgetMS != 8.0 {
		t.Fatalf("player = %+v, want fps=30 budget=8", pd.Player)
	}
}

func TestLoadPatchCompiles(t *testing.T) {
	pd, err := loadPatch(writePatch(t, orbitPatch))
	if err != nil {
		t.Fatalf("loadPatch: %v", err)
	}
	res, err := compile.Compile(context.Background(), &compile.Request{
		Graph:   pd.Graph,
		Domains: pd.Domains,
	})
	if err != nil {
		t.Fatalf("Compile: %v\n%v", err, res.Bag.Items())
	}
	if res.Program == nil {
		t.Fatalf("expected a program")
	}
}

func TestLoadPatchResolvesNamedPorts(t *testing.T) {
	pd, err := loadPatch(writePatch(t, orbitPatch))
	if err != nil {
		t.Fatalf("loadPatch: %v", err)
	}
	// scaled.a carries the spread, scaled.b the constant.
	var mulID patch.BlockID
	for id, b := range pd.Graph.Blocks {
		if b.Label == "scaled" {
			mulID = patch.BlockID(id)
		}
	}
	var gotA, gotB bool
	for _, e := range pd.Graph.Edges {
		if e.To.Block != mulID {
			continue
		}
		from := pd.Graph.Blocks[e.From.Block].Label
		switch e.To.Port {
		case 0:
			gotA = from == "x"
		case 1:
			gotB = from == "rate"
		}
	}
	if !gotA || !gotB {
		t.Fatalf("named ports resolved wrong: a<-x=%v b<-rate=%v", gotA, gotB)
	}
}

func TestLoadPatchVectorParams(t *testing.T) {
	pd, err := loadPatch(writePatch(t, `
[[block]]
id = "tint"
kind = "const"
params = { value = [1.0, 0.5, 0.25, 1.0] }
`))
	if err != nil {
		t.Fatalf("loadPatch: %v", err)
	}
	v, ok := pd.Graph.Blocks[0].Params["value"]
	if !ok {
		t.Fatalf("missing value param")
	}
	if v.Kind != patch.ParamVec || v.N != 4 {
		t.Fatalf("param kind = %v n=%d, want a four component vec", v.Kind, v.N)
	}
	if v.Vec != [4]float64{1, 0.5, 0.25, 1} {
		t.Fatalf("param vec = %v", v.Vec)
	}
}

func TestLoadPatchErrors(t *testing.T) {
	cases := []struct {
		name string
		toml string
		want string
	}{
		{
			name: "unknown kind",
			toml: "[[block]]\nid = \"a\"\nkind = \"warp\"\n",
			want: "unknown kind",
		},
		{
			name: "duplicate block",
			toml: "[[block]]\nid = \"a\"\nkind = \"const\"\n\n[[block]]\nid = \"a\"\nkind = \"const\"\n",
			want: "duplicate block",
		},
		{
			name: "unknown edge target",
			toml: "[[block]]\nid = \"a\"\nkind = \"const\"\nparams = { value = 1.0 }\n\n[[edge]]\nfrom = \"a\"\nto = \"b\"\n",
			want: "unknown block",
		},
		{
			name: "unknown port",
			toml: "[[block]]\nid = \"a\"\nkind = \"const\"\nparams = { value = 1.0 }\n\n[[block]]\nid = \"m\"\nkind = \"mul\"\n\n[[edge]]\nfrom = \"a\"\nto = \"m.q\"\n",
			want: "expected one of a|b",
		},
		{
			name: "ambiguous bare input",
			toml: "[[block]]\nid = \"a\"\nkind = \"const\"\nparams = { value = 1.0 }\n\n[[block]]\nid = \"m\"\nkind = \"mul\"\n\n[[edge]]\nfrom = \"a\"\nto = \"m\"\n",
			want: "name one of",
		},
		{
			name: "const without value",
			toml: "[[block]]\nid = \"a\"\nkind = \"const\"\n\n[[edge]]\nfrom = \"a\"\nto = \"a\"\n",
			want: "missing value param",
		},
		{
			name: "bad policy",
			toml: "[[population]]\nname = \"p\"\nlanes = 4\npolicy = \"teleport\"\n",
			want: "unknown policy",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadPatch(writePatch(t, tc.toml))
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want substring %q", err, tc.want)
			}
		})
	}
}

func TestParseInputSpec(t *testing.T) {
	name, vals, err := parseInputSpec("gain=2")
	if err != nil || name != "gain" || len(vals) != 1 || vals[0] != 2 {
		t.Fatalf("parseInputSpec(gain=2) = %q %v %v", name, vals, err)
	}
	name, vals, err = parseInputSpec("pos=0.5, 1.5")
	if err != nil || name != "pos" || len(vals) != 2 || vals[1] != 1.5 {
		t.Fatalf("parseInputSpec(pos=0.5, 1.5) = %q %v %v", name, vals, err)
	}
	if _, _, err := parseInputSpec("nope"); err == nil {
		t.Fatalf("expected error for missing =")
	}
	if _, _, err := parseInputSpec("x=abc"); err == nil {
		t.Fatalf("expected error for bad number")
	}
}

func TestReadUIMode(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want uiMode
	}{
		{"", uiModeAuto},
		{"auto", uiModeAuto},
		{"ON", uiModeOn},
		{" off ", uiModeOff},
	} {
		got, err := readUIMode(tc.in)
		if err != nil {
			t.Fatalf("readUIMode(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("readUIMode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if _, err := readUIMode("fancy"); err == nil {
		t.Fatalf("expected error for invalid mode")
	}
}
