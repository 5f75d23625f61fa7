package patch

import (
	"fmt"

	"lumen/internal/types"
)

// Registry resolves block kinds to signatures. Some signatures depend on
// block parameters (const payloads, input declarations, population
// bindings), so resolution takes the whole block.
type Registry struct {
	build map[Kind]func(*Block) (*Signature, error)
}

// Signature returns the concrete signature for a block, or an error when
// the kind is unknown or its parameters are malformed.
func (r *Registry) Signature(b *Block) (*Signature, error) {
	f, ok := r.build[b.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown block kind %q", b.Kind)
	}
	return f(b)
}

// Known reports whether the registry can resolve the kind at all.
func (r *Registry) Known(k Kind) bool {
	_, ok := r.build[k]
	return ok
}

// Local variable ids shared across the ports of one signature. The solver
// rebases these into its global variable space per block instance.
const (
	varP types.VarID = iota // payload carried through the block
	varU                    // unit carried through the block
	sigVars
)

// contVar returns the pattern of a continuous port whose payload and unit
// flow through the block.
func contVar() types.Pattern {
	return types.Pattern{
		Payload: types.VarTerm[types.Payload](varP),
		Unit:    types.VarTerm[types.Unit](varU),
		Time:    types.BoundTerm(types.Continuous),
	}
}

// contPayload returns the pattern of a continuous port with a fixed
// payload and a free unit.
func contPayload(p types.Payload) types.Pattern {
	return types.Pattern{
		Payload: types.BoundTerm(p),
		Time:    types.BoundTerm(types.Continuous),
	}
}

// contExact returns the pattern of a continuous port with fixed payload
// and unit. Unlike a free unit, a bound plain unit refuses to pick one up
// from the far side of an edge.
func contExact(p types.Payload, u types.Unit) types.Pattern {
	pt := contPayload(p)
	pt.Unit = types.BoundTerm(u)
	return pt
}

func withCardOne(pt types.Pattern) types.Pattern {
	pt.Card = types.BoundTerm(types.CardOne)
	return pt
}

func withCardZero(pt types.Pattern) types.Pattern {
	pt.Card = types.BoundTerm(types.CardZero)
	return pt
}

func withMany(pt types.Pattern, inst types.InstanceID) types.Pattern {
	pt.Card = types.BoundTerm(types.CardMany)
	pt.Inst = types.BoundTerm(inst)
	return pt
}

func discrete(pt types.Pattern) types.Pattern {
	pt.Time = types.BoundTerm(types.Discrete)
	return pt
}

func in(name string, pt types.Pattern, c CombineKind) PortSig {
	return PortSig{Name: name, Pat: pt, Combine: c}
}

func numIn(name string, pt types.Pattern, c CombineKind) PortSig {
	return PortSig{Name: name, Pat: pt, Combine: c, Numeric: true}
}

func out(name string, pt types.Pattern) PortSig {
	return PortSig{Name: name, Pat: pt}
}

func numOut(name string, pt types.Pattern) PortSig {
	return PortSig{Name: name, Pat: pt, Numeric: true}
}

// liftVar builds the shared-payload pointwise kernel signature: every
// named input and the output carry the same payload and unit; cardinality
// joins across inputs.
func liftVar(kind Kind, names ...string) *Signature {
	s := &Signature{Kind: kind, Vars: sigVars, Lift: true}
	for _, n := range names {
		s.Inputs = append(s.Inputs, numIn(n, contVar(), CombineSum))
	}
	s.Outputs = []PortSig{numOut("out", contVar())}
	return s
}

// liftFloat builds a pointwise float kernel with explicit per-port units.
func liftFloat(kind Kind, inUnits map[string]types.Unit, outUnit types.Unit, names ...string) *Signature {
	s := &Signature{Kind: kind, Lift: true}
	for _, n := range names {
		pt := contPayload(types.PayloadFloat)
		if u, ok := inUnits[n]; ok {
			pt.Unit = types.BoundTerm(u)
		}
		s.Inputs = append(s.Inputs, numIn(n, pt, CombineSum))
	}
	op := contPayload(types.PayloadFloat)
	if outUnit != types.UnitNone {
		op.Unit = types.BoundTerm(outUnit)
	}
	s.Outputs = []PortSig{numOut("out", op)}
	return s
}

func static(s *Signature) func(*Block) (*Signature, error) {
	return func(*Block) (*Signature, error) { return s, nil }
}

// Builtins returns the registry of every block kind the compiler knows.
func Builtins() *Registry {
	r := &Registry{build: make(map[Kind]func(*Block) (*Signature, error), 64)}
	reg := func(k Kind, f func(*Block) (*Signature, error)) { r.build[k] = f }

	// Sources.
	reg(KindConst, constSig)
	reg(KindTime, static(&Signature{
		Kind: KindTime,
		Outputs: []PortSig{
			out("t", withCardOne(contExact(types.PayloadFloat, types.UnitSeconds))),
			out("dt", withCardOne(contExact(types.PayloadFloat, types.UnitSeconds))),
			out("frame", withCardOne(contExact(types.PayloadInt, types.UnitCount))),
		},
	}))
	reg(KindInput, inputSig)
	reg(KindTrigger, triggerSig)
	reg(KindShape, shapeSig)
	reg(KindProjection, static(&Signature{
		Kind: KindProjection,
		Outputs: []PortSig{
			out("out", withCardOne(contPayload(types.PayloadProjection))),
		},
	}))

	// Shared-payload pointwise kernels. Units ride the shared variable so
	// adding seconds to radians fails where the author wired it.
	reg(KindAdd, static(liftVar(KindAdd, "a", "b")))
	reg(KindSub, static(liftVar(KindSub, "a", "b")))
	reg(KindNeg, static(liftVar(KindNeg, "x")))
	reg(KindAbs, static(liftVar(KindAbs, "x")))
	reg(KindMin, static(liftVar(KindMin, "a", "b")))
	reg(KindMax, static(liftVar(KindMax, "a", "b")))
	reg(KindClamp, static(liftVar(KindClamp, "x", "lo", "hi")))

	// Multiplicative kernels untie units; see UnitScale.
	mul := liftVar(KindMul, "a", "b")
	mul.Units = UnitScale
	mulUnits(mul)
	reg(KindMul, static(mul))
	div := liftVar(KindDiv, "a", "b")
	div.Units = UnitScale
	mulUnits(div)
	reg(KindDiv, static(div))

	mix := liftVar(KindMix, "a", "b")
	mix.Inputs = append(mix.Inputs, numIn("t", contPayload(types.PayloadFloat), CombineSum))
	reg(KindMix, static(mix))

	sel := &Signature{Kind: KindSelect, Vars: sigVars, Lift: true,
		Inputs: []PortSig{
			in("cond", contPayload(types.PayloadBool), CombineNone),
			numIn("a", contVar(), CombineSum),
			numIn("b", contVar(), CombineSum),
		},
		Outputs: []PortSig{numOut("out", contVar())},
	}
	reg(KindSelect, static(sel))

	greater := &Signature{Kind: KindGreater, Vars: sigVars, Lift: true,
		Inputs: []PortSig{
			numIn("a", contVar(), CombineSum),
			numIn("b", contVar(), CombineSum),
		},
		Outputs: []PortSig{out("out", contPayload(types.PayloadBool))},
	}
	reg(KindGreater, static(greater))

	reg(KindSin, static(liftFloat(KindSin,
		map[string]types.Unit{"x": types.UnitRadians}, types.UnitNone, "x")))
	reg(KindCos, static(liftFloat(KindCos,
		map[string]types.Unit{"x": types.UnitRadians}, types.UnitNone, "x")))
	reg(KindSqrt, static(liftFloat(KindSqrt, nil, types.UnitNone, "x")))
	reg(KindPow, static(liftFloat(KindPow, nil, types.UnitNone, "x", "e")))

	fract := liftVar(KindFract, "x")
	fract.Inputs[0].Pat.Payload = types.BoundTerm(types.PayloadFloat)
	fract.Outputs[0].Pat.Payload = types.BoundTerm(types.PayloadFloat)
	reg(KindFract, static(fract))

	smooth := liftVar(KindSmoothstep, "e0", "e1", "x")
	smooth.Outputs[0].Pat.Unit = types.BoundTerm(types.UnitNorm)
	reg(KindSmoothstep, static(smooth))

	// Unit adapters. These are what edge transforms expand into.
	invert := liftVar(KindInvert, "x")
	invert.Inputs[0].Pat.Payload = types.BoundTerm(types.PayloadFloat)
	invert.Outputs[0].Pat.Payload = types.BoundTerm(types.PayloadFloat)
	reg(KindInvert, static(invert))
	clamp01 := liftVar(KindClamp01, "x")
	clamp01.Inputs[0].Pat.Payload = types.BoundTerm(types.PayloadFloat)
	clamp01.Outputs[0].Pat.Payload = types.BoundTerm(types.PayloadFloat)
	reg(KindClamp01, static(clamp01))
	reg(KindDegToRad, static(adapterSig(KindDegToRad, types.UnitDegrees, types.UnitRadians)))
	reg(KindRadToDeg, static(adapterSig(KindRadToDeg, types.UnitRadians, types.UnitDegrees)))
	reg(KindPhaseToRad, static(adapterSig(KindPhaseToRad, types.UnitPhase, types.UnitRadians)))
	reg(KindMsToSec, static(adapterSig(KindMsToSec, types.UnitMilliseconds, types.UnitSeconds)))
	reg(KindSecToMs, static(adapterSig(KindSecToMs, types.UnitSeconds, types.UnitMilliseconds)))

	// Oscillator: pure wave of the patch clock. Rate in cycles per
	// second; phase offsets in wrapped phase. Per-lane rates lift the
	// output to a field.
	reg(KindOsc, oscSig)
	reg(KindWave, waveSig)

	// Vector and color construction.
	reg(KindPack2, static(packSig(KindPack2, types.PayloadVec2, "x", "y")))
	reg(KindPack3, static(packSig(KindPack3, types.PayloadVec3, "x", "y", "z")))
	reg(KindSplit, splitSig)
	polar := &Signature{Kind: KindPolar, Lift: true,
		Inputs: []PortSig{
			numIn("angle", contExact(types.PayloadFloat, types.UnitRadians), CombineSum),
			numIn("radius", contPayload(types.PayloadFloat), CombineSum),
		},
		Outputs: []PortSig{numOut("out", contExact(types.PayloadVec2, types.UnitSpace2))},
	}
	reg(KindPolar, static(polar))
	reg(KindRGBA, static(colorSig(KindRGBA, "r", "g", "b", "a")))
	reg(KindHSV, static(colorSig(KindHSV, "h", "s", "v")))

	// Population-scoped intrinsics.
	reg(KindSpread, instanceSource(KindSpread, types.PayloadFloat, types.UnitNorm))
	reg(KindLaneIndex, instanceSource(KindLaneIndex, types.PayloadInt, types.UnitCount))
	reg(KindLaneRandom, instanceSource(KindLaneRandom, types.PayloadFloat, types.UnitNorm))
	reg(KindLaneCount, func(b *Block) (*Signature, error) {
		if b.Instance == types.NoInstance {
			return nil, fmt.Errorf("lane-count: no population bound")
		}
		return &Signature{Kind: KindLaneCount,
			Outputs: []PortSig{
				out("n", withCardZero(contExact(types.PayloadInt, types.UnitCount))),
			},
		}, nil
	})
	reg(KindReduce, reduceSig)

	// Stateful primitives.
	delay := liftVar(KindDelay, "x")
	delay.Stateful = true
	reg(KindDelay, static(delay))

	slew := liftVar(KindSlew, "x")
	slew.Stateful = true
	slew.NeedsTime = true
	reg(KindSlew, static(slew))

	phasor := &Signature{Kind: KindPhasor, Lift: true, Stateful: true, NeedsTime: true,
		Inputs: []PortSig{
			numIn("rate", contPayload(types.PayloadFloat), CombineSum),
		},
		Outputs: []PortSig{numOut("out", contExact(types.PayloadFloat, types.UnitPhase))},
	}
	reg(KindPhasor, static(phasor))

	latch := &Signature{Kind: KindLatch, Vars: sigVars, Lift: true, Stateful: true,
		Inputs: []PortSig{
			numIn("x", contVar(), CombineSum),
			in("trig", discrete(types.Pattern{}), CombineFirst),
		},
		Outputs: []PortSig{numOut("out", contVar())},
	}
	reg(KindLatch, static(latch))

	// Discrete event blocks.
	reg(KindPulse, pulseSig)
	wrap := &Signature{Kind: KindWrap, Lift: true, Stateful: true,
		Inputs: []PortSig{
			numIn("phase", contExact(types.PayloadFloat, types.UnitPhase), CombineSum),
		},
		Outputs: []PortSig{out("out", discrete(contPayload(types.PayloadFloat)))},
	}
	reg(KindWrap, static(wrap))

	// Sinks.
	reg(KindRender, renderSig)
	reg(KindProbe, probeSig)

	return r
}

// mulUnits clears the shared unit variable on a multiplicative kernel; the
// UnitScale rule computes the output unit after solving instead.
func mulUnits(s *Signature) {
	for i := range s.Inputs {
		s.Inputs[i].Pat.Unit = types.DefaultTerm[types.Unit]()
	}
	for i := range s.Outputs {
		s.Outputs[i].Pat.Unit = types.DefaultTerm[types.Unit]()
	}
}

func adapterSig(kind Kind, from, to types.Unit) *Signature {
	return &Signature{Kind: kind, Lift: true,
		Inputs:  []PortSig{numIn("x", contExact(types.PayloadFloat, from), CombineSum)},
		Outputs: []PortSig{numOut("out", contExact(types.PayloadFloat, to))},
	}
}

func packSig(kind Kind, outPayload types.Payload, comps ...string) *Signature {
	s := &Signature{Kind: kind, Lift: true}
	for _, c := range comps {
		s.Inputs = append(s.Inputs, numIn(c, contPayload(types.PayloadFloat), CombineSum))
	}
	s.Outputs = []PortSig{numOut("out", contPayload(outPayload))}
	return s
}

func colorSig(kind Kind, comps ...string) *Signature {
	s := &Signature{Kind: kind, Lift: true}
	for _, c := range comps {
		s.Inputs = append(s.Inputs, numIn(c, contExact(types.PayloadFloat, types.UnitNorm), CombineSum))
	}
	s.Outputs = []PortSig{numOut("out", contPayload(types.PayloadColor))}
	return s
}

// paramPayload reads a payload kind from a param value.
func paramPayload(v ParamValue) (types.Payload, error) {
	switch v.Kind {
	case ParamFloat:
		return types.PayloadFloat, nil
	case ParamInt:
		return types.PayloadInt, nil
	case ParamBool:
		return types.PayloadBool, nil
	case ParamVec:
		switch v.N {
		case 2:
			return types.PayloadVec2, nil
		case 3:
			return types.PayloadVec3, nil
		case 4:
			return types.PayloadColor, nil
		}
		return types.PayloadInvalid, fmt.Errorf("vec param with %d components", v.N)
	default:
		return types.PayloadInvalid, fmt.Errorf("param kind %s has no payload", v.Kind)
	}
}

// PayloadByName resolves a payload name used by input declarations.
func PayloadByName(name string) (types.Payload, bool) {
	switch name {
	case "float":
		return types.PayloadFloat, true
	case "int":
		return types.PayloadInt, true
	case "bool":
		return types.PayloadBool, true
	case "vec2":
		return types.PayloadVec2, true
	case "vec3":
		return types.PayloadVec3, true
	case "color":
		return types.PayloadColor, true
	default:
		return types.PayloadInvalid, false
	}
}

// UnitByName resolves a unit name used by const and input declarations.
func UnitByName(name string) (types.Unit, bool) {
	switch name {
	case "", "none":
		return types.UnitNone, true
	case "norm":
		return types.UnitNorm, true
	case "rad":
		return types.UnitRadians, true
	case "deg":
		return types.UnitDegrees, true
	case "phase":
		return types.UnitPhase, true
	case "ms":
		return types.UnitMilliseconds, true
	case "s", "sec":
		return types.UnitSeconds, true
	case "space1":
		return types.UnitSpace1, true
	case "space2":
		return types.UnitSpace2, true
	case "space3":
		return types.UnitSpace3, true
	case "count":
		return types.UnitCount, true
	case "channel":
		return types.UnitChannel, true
	default:
		return types.UnitNone, false
	}
}

func constSig(b *Block) (*Signature, error) {
	v, ok := b.Params["value"]
	if !ok {
		return nil, fmt.Errorf("const: missing value param")
	}
	p, err := paramPayload(v)
	if err != nil {
		return nil, fmt.Errorf("const: %w", err)
	}
	// Constants are compile-time values: zero cardinality folds through
	// pure kernels, so an all-constant subtree costs nothing per frame.
	pt := withCardZero(contPayload(p))
	if name := b.Params.StrOr("unit", ""); name != "" {
		u, ok := UnitByName(name)
		if !ok {
			return nil, fmt.Errorf("const: unknown unit %q", name)
		}
		if !types.UnitFitsPayload(u, p) {
			return nil, fmt.Errorf("const: unit %s does not pair with payload %s", u, p)
		}
		pt.Unit = types.BoundTerm(u)
	}
	return &Signature{Kind: KindConst, Outputs: []PortSig{out("out", pt)}}, nil
}

func inputSig(b *Block) (*Signature, error) {
	if b.Params.StrOr("name", "") == "" {
		return nil, fmt.Errorf("input: missing name param")
	}
	p := types.PayloadFloat
	if name := b.Params.StrOr("payload", ""); name != "" {
		pl, ok := PayloadByName(name)
		if !ok {
			return nil, fmt.Errorf("input: unknown payload %q", name)
		}
		p = pl
	}
	pt := withCardOne(contPayload(p))
	if name := b.Params.StrOr("unit", ""); name != "" {
		u, ok := UnitByName(name)
		if !ok {
			return nil, fmt.Errorf("input: unknown unit %q", name)
		}
		if !types.UnitFitsPayload(u, p) {
			return nil, fmt.Errorf("input: unit %s does not pair with payload %s", u, p)
		}
		pt.Unit = types.BoundTerm(u)
	}
	return &Signature{Kind: KindInput, Outputs: []PortSig{out("out", pt)}}, nil
}

func triggerSig(b *Block) (*Signature, error) {
	if b.Params.StrOr("name", "") == "" {
		return nil, fmt.Errorf("trigger: missing name param")
	}
	pt := discrete(withCardOne(contPayload(types.PayloadFloat)))
	return &Signature{Kind: KindTrigger, Outputs: []PortSig{out("out", pt)}}, nil
}

var shapeTopologies = map[string]struct{}{
	"quad": {}, "circle": {}, "line": {}, "triangle": {},
}

func shapeSig(b *Block) (*Signature, error) {
	topo := b.Params.StrOr("topology", "quad")
	if _, ok := shapeTopologies[topo]; !ok {
		return nil, fmt.Errorf("shape: unknown topology %q", topo)
	}
	return &Signature{Kind: KindShape,
		Outputs: []PortSig{out("out", withCardZero(contPayload(types.PayloadShape)))},
	}, nil
}

var oscShapes = map[string]struct{}{
	"sine": {}, "saw": {}, "square": {}, "tri": {},
}

func oscSig(b *Block) (*Signature, error) {
	shape := b.Params.StrOr("shape", "sine")
	if _, ok := oscShapes[shape]; !ok {
		return nil, fmt.Errorf("osc: unknown shape %q", shape)
	}
	return &Signature{Kind: KindOsc, Lift: true, NeedsTime: true,
		Inputs: []PortSig{
			numIn("rate", contPayload(types.PayloadFloat), CombineSum),
			numIn("phase", contExact(types.PayloadFloat, types.UnitPhase), CombineSum),
		},
		Outputs: []PortSig{numOut("out", contExact(types.PayloadFloat, types.UnitNone))},
	}, nil
}

func waveSig(b *Block) (*Signature, error) {
	lo := b.Params.FloatOr("lo", 0)
	hi := b.Params.FloatOr("hi", 1)
	if hi < lo {
		return nil, fmt.Errorf("wave: hi %g below lo %g", hi, lo)
	}
	return &Signature{Kind: KindWave, NeedsTime: true,
		Outputs: []PortSig{numOut("out", withCardOne(contPayload(types.PayloadFloat)))},
	}, nil
}

var splitPayloads = map[string]types.Payload{
	"vec2": types.PayloadVec2, "vec3": types.PayloadVec3, "color": types.PayloadColor,
}

func splitSig(b *Block) (*Signature, error) {
	name := b.Params.StrOr("payload", "vec2")
	p, ok := splitPayloads[name]
	if !ok {
		return nil, fmt.Errorf("split: cannot split payload %q", name)
	}
	comp := int(b.Params.IntOr("component", 0))
	if comp < 0 || comp >= p.Stride() {
		return nil, fmt.Errorf("split: component %d out of range for %s", comp, p)
	}
	return &Signature{Kind: KindSplit, Lift: true,
		Inputs:  []PortSig{numIn("v", contPayload(p), CombineNone)},
		Outputs: []PortSig{numOut("out", contPayload(types.PayloadFloat))},
	}, nil
}

func instanceSource(kind Kind, p types.Payload, u types.Unit) func(*Block) (*Signature, error) {
	return func(b *Block) (*Signature, error) {
		if b.Instance == types.NoInstance {
			return nil, fmt.Errorf("%s: no population bound", kind)
		}
		return &Signature{Kind: kind,
			Outputs: []PortSig{out("out", withMany(contExact(p, u), b.Instance))},
		}, nil
	}
}

var reduceOps = map[string]struct{}{
	"sum": {}, "avg": {}, "min": {}, "max": {},
}

func reduceSig(b *Block) (*Signature, error) {
	op := b.Params.StrOr("op", "sum")
	if _, ok := reduceOps[op]; !ok {
		return nil, fmt.Errorf("reduce: unknown op %q", op)
	}
	inPat := contVar()
	inPat.Card = types.BoundTerm(types.CardMany)
	outPat := contVar()
	outPat.Card = types.BoundTerm(types.CardOne)
	return &Signature{Kind: KindReduce, Vars: sigVars,
		Inputs:  []PortSig{numIn("x", inPat, CombineSum)},
		Outputs: []PortSig{numOut("out", outPat)},
	}, nil
}

func pulseSig(b *Block) (*Signature, error) {
	period := b.Params.FloatOr("period", 1)
	if period <= 0 {
		return nil, fmt.Errorf("pulse: period must be positive, got %g", period)
	}
	pt := discrete(withCardOne(contPayload(types.PayloadFloat)))
	return &Signature{Kind: KindPulse, Stateful: true, NeedsTime: true,
		Outputs: []PortSig{out("out", pt)},
	}, nil
}

var renderBlends = map[string]struct{}{
	"alpha": {}, "add": {},
}

func renderSig(b *Block) (*Signature, error) {
	blend := b.Params.StrOr("blend", "alpha")
	if _, ok := renderBlends[blend]; !ok {
		return nil, fmt.Errorf("render: unknown blend %q", blend)
	}
	return &Signature{Kind: KindRender, Lift: true, Sink: true,
		Inputs: []PortSig{
			in("topology", contPayload(types.PayloadShape), CombineNone),
			numIn("position", contPayload(types.PayloadVec2), CombineSum),
			numIn("size", contPayload(types.PayloadFloat), CombineSum),
			numIn("rotation", contExact(types.PayloadFloat, types.UnitRadians), CombineSum),
			numIn("color", contPayload(types.PayloadColor), CombineLayer),
			in("view", withCardOne(contPayload(types.PayloadProjection)), CombineNone),
		},
	}, nil
}

func probeSig(b *Block) (*Signature, error) {
	if b.Params.StrOr("name", "") == "" {
		return nil, fmt.Errorf("probe: missing name param")
	}
	return &Signature{Kind: KindProbe, Lift: true, Sink: true,
		Inputs: []PortSig{in("x", types.Pattern{}, CombineLast)},
	}, nil
}
