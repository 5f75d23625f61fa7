package patch

import (
	"strings"
	"testing"

	"lumen/internal/types"
)

func TestGraphCloneIsolation(t *testing.T) {
	g := &Graph{}
	a := g.Add(KindConst, Params{"value": Float(1)})
	b := g.Add(KindProbe, Params{"name": Str("out")})
	g.Connect(a, 0, b, 0)

	c := g.Clone()
	c.Blocks[0].Params["value"] = Float(99)
	c.Edges[0].Transform = TransformNegate

	if got := g.Blocks[0].Params["value"].Float; got != 1 {
		t.Fatalf("clone mutation leaked into source params: %g", got)
	}
	if g.Edges[0].Transform != TransformNone {
		t.Fatalf("clone mutation leaked into source edges")
	}
}

func TestBlockName(t *testing.T) {
	g := &Graph{}
	labeled := g.AddBlock(Block{Kind: KindMul, Label: "scaled"})
	bare := g.Add(KindOsc, nil)

	if got := g.BlockName(labeled); got != "scaled" {
		t.Fatalf("labeled block name = %q", got)
	}
	if got := g.BlockName(bare); got != "osc" {
		t.Fatalf("unlabeled block must fall back to its kind, got %q", got)
	}
	if got := g.BlockName(BlockID(7)); got != "block#7" {
		t.Fatalf("out-of-range block name = %q", got)
	}
}

func TestConnectViaRecordsTransform(t *testing.T) {
	g := &Graph{}
	a := g.Add(KindConst, Params{"value": Float(90)})
	b := g.Add(KindSin, nil)
	idx := g.ConnectVia(a, 0, b, 0, TransformDegToRad)

	e := g.Edges[idx]
	if e.From != (PortRef{Block: a, Port: 0}) || e.To != (PortRef{Block: b, Port: 0}) {
		t.Fatalf("edge endpoints wrong: %+v", e)
	}
	if e.Transform != TransformDegToRad {
		t.Fatalf("edge transform = %s", e.Transform)
	}
}

func TestBuiltinSignatureLookup(t *testing.T) {
	r := Builtins()
	sig, err := r.Signature(&Block{Kind: KindMul})
	if err != nil {
		t.Fatalf("mul signature: %v", err)
	}
	a, ok := sig.Input("a")
	if !ok || a != 0 {
		t.Fatalf("input a = %d ok=%v", a, ok)
	}
	b, ok := sig.Input("b")
	if !ok || b != 1 {
		t.Fatalf("input b = %d ok=%v", b, ok)
	}
	if _, ok := sig.Input("c"); ok {
		t.Fatalf("mul has no input c")
	}
	out, ok := sig.Output("out")
	if !ok || out != 0 {
		t.Fatalf("output out = %d ok=%v", out, ok)
	}
	if sig.In(PortIdx(9)) != nil || sig.Out(PortIdx(9)) != nil {
		t.Fatalf("out-of-range ports must resolve to nil")
	}
	if got := sig.String(); got != "mul(a, b) -> out" {
		t.Fatalf("signature string = %q", got)
	}
}

func TestRegistryRejectsUnknownKind(t *testing.T) {
	r := Builtins()
	if r.Known(KindInvalid) {
		t.Fatalf("invalid kind must not be known")
	}
	_, err := r.Signature(&Block{Kind: KindInvalid})
	if err == nil || !strings.Contains(err.Error(), "unknown block kind") {
		t.Fatalf("unknown kind error = %v", err)
	}
}

func TestLaneCountRequiresPopulation(t *testing.T) {
	r := Builtins()
	_, err := r.Signature(&Block{Kind: KindLaneCount, Instance: types.NoInstance})
	if err == nil {
		t.Fatalf("lane-count without a population must fail")
	}
	sig, err := r.Signature(&Block{Kind: KindLaneCount, Instance: types.InstanceID(3)})
	if err != nil {
		t.Fatalf("lane-count with population: %v", err)
	}
	if len(sig.Outputs) != 1 || sig.Outputs[0].Name != "n" {
		t.Fatalf("lane-count outputs: %+v", sig.Outputs)
	}
}

func TestCombineByName(t *testing.T) {
	cases := []struct {
		name string
		want CombineKind
		ok   bool
	}{
		{"sum", CombineSum, true},
		{"avg", CombineAvg, true},
		{"min", CombineMin, true},
		{"max", CombineMax, true},
		{"first", CombineFirst, true},
		{"last", CombineLast, true},
		{"layer", CombineLayer, true},
		{"median", CombineNone, false},
		{"", CombineNone, false},
	}
	for _, tc := range cases {
		got, ok := CombineByName(tc.name)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("CombineByName(%q) = %s, %v; want %s, %v", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestKindByNameRoundTrip(t *testing.T) {
	for k := KindConst; k < kindCount; k++ {
		got, ok := KindByName(k.String())
		if !ok || got != k {
			t.Fatalf("KindByName(%q) = %s, %v", k.String(), got, ok)
		}
	}
	if _, ok := KindByName("invalid"); ok {
		t.Fatalf("the invalid kind must not resolve by name")
	}
	if _, ok := KindByName("warp"); ok {
		t.Fatalf("unknown names must not resolve")
	}
}

func TestCheckPayloadRestrictions(t *testing.T) {
	numeric := PortSig{Name: "x", Numeric: true}
	if err := numeric.CheckPayload(types.PayloadFloat); err != nil {
		t.Fatalf("float on numeric port: %v", err)
	}
	if err := numeric.CheckPayload(types.PayloadBool); err == nil {
		t.Fatalf("bool must not satisfy a numeric port")
	}

	listed := PortSig{Name: "c", Payloads: []types.Payload{types.PayloadVec2, types.PayloadColor}}
	if err := listed.CheckPayload(types.PayloadColor); err != nil {
		t.Fatalf("listed payload rejected: %v", err)
	}
	if err := listed.CheckPayload(types.PayloadFloat); err == nil {
		t.Fatalf("unlisted payload must be rejected")
	}
}

func TestParamAccessors(t *testing.T) {
	p := Params{
		"tau":   Float(0.25),
		"seed":  Int(7),
		"name":  Str("held"),
		"loop":  Bool(true),
		"tint":  Color(1, 0.5, 0.25, 1),
		"pos":   Vec2(3, 4),
		"axis":  Vec3(0, 1, 0),
		"count": Int(12),
	}
	if got := p.FloatOr("tau", 1); got != 0.25 {
		t.Fatalf("FloatOr tau = %g", got)
	}
	if got := p.FloatOr("count", 1); got != 12 {
		t.Fatalf("FloatOr must coerce int params, got %g", got)
	}
	if got := p.FloatOr("missing", 1.5); got != 1.5 {
		t.Fatalf("FloatOr fallback = %g", got)
	}
	if got := p.IntOr("seed", 0); got != 7 {
		t.Fatalf("IntOr seed = %d", got)
	}
	if got := p.StrOr("name", ""); got != "held" {
		t.Fatalf("StrOr name = %q", got)
	}
	if got := p.BoolOr("loop", false); !got {
		t.Fatalf("BoolOr loop = %v", got)
	}
	if got := p.BoolOr("name", true); !got {
		t.Fatalf("BoolOr must ignore mismatched kinds")
	}

	if v := p["tint"]; v.Kind != ParamVec || v.N != 4 {
		t.Fatalf("color param shape: %+v", v)
	}
	if v := p["pos"]; v.N != 2 || v.Vec[1] != 4 {
		t.Fatalf("vec2 param shape: %+v", v)
	}
	if v := p["axis"]; v.N != 3 || v.Vec[1] != 1 {
		t.Fatalf("vec3 param shape: %+v", v)
	}
}
