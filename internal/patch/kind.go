package patch

// Kind enumerates the block operators a patch may use.
type Kind uint8

const (
	KindInvalid Kind = iota

	// Sources.
	KindConst      // literal value; payload taken from the "value" param
	KindTime       // the patch's time authority: seconds since start
	KindInput      // named external scalar input, fed by the host per frame
	KindTrigger    // named external event input
	KindShape      // shape topology reference
	KindProjection // camera projection constant

	// Pure kernels, lifted pointwise over lanes.
	KindAdd
	KindSub
	KindMul
	KindDiv
	KindNeg
	KindAbs
	KindMin
	KindMax
	KindMix   // mix(a, b, t)
	KindClamp // clamp(x, lo, hi)
	KindSin
	KindCos
	KindFract
	KindSqrt
	KindPow
	KindSmoothstep // smoothstep(e0, e1, x)
	KindGreater    // a > b, boolean payload out
	KindSelect     // select(cond, a, b)

	// Unit adapters. The normalizer inserts these for edge transforms.
	KindInvert // 1 - x
	KindClamp01
	KindDegToRad
	KindRadToDeg
	KindPhaseToRad
	KindMsToSec
	KindSecToMs

	// Oscillator: pure function of the clock.
	KindOsc // params: shape (sine|saw|square|tri); inputs: rate, phase

	// Self-contained slow sine of the clock, params only. The normalizer
	// materializes these as animated defaults for unfilled float inputs.
	KindWave // params: rate, lo, hi

	// Vector and color construction.
	KindPack2
	KindPack3
	KindSplit // param: component; extracts one lane of a vector payload
	KindPolar // (angle, radius) -> vec2
	KindRGBA
	KindHSV

	// Population-scoped blocks.
	KindSpread     // per-lane ramp 0..1 over the bound population
	KindLaneIndex  // per-lane integer index
	KindLaneRandom // per-lane stable random, param: seed
	KindLaneCount  // population lane count, compile-time constant
	KindReduce     // field -> signal; param op: sum|avg|min|max

	// Stateful primitives: the only blocks allowed to break feedback
	// cycles.
	KindDelay  // one-frame delay, param: init
	KindSlew   // first-order smoothing toward the input, param: tau
	KindPhasor // wrapping phase accumulator; input: rate
	KindLatch  // sample and hold; inputs: value, trigger

	// Discrete event blocks.
	KindPulse // fires every period seconds, param: period
	KindWrap  // fires when a phase input wraps

	// Sinks.
	KindRender // render description sink
	KindProbe  // named debug sink recording one value per frame

	kindCount // keep last
)

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "kind?"
}

var kindNames = [...]string{
	KindInvalid:    "invalid",
	KindConst:      "const",
	KindTime:       "time",
	KindInput:      "input",
	KindTrigger:    "trigger",
	KindShape:      "shape",
	KindProjection: "projection",
	KindAdd:        "add",
	KindSub:        "sub",
	KindMul:        "mul",
	KindDiv:        "div",
	KindNeg:        "neg",
	KindAbs:        "abs",
	KindMin:        "min",
	KindMax:        "max",
	KindMix:        "mix",
	KindClamp:      "clamp",
	KindSin:        "sin",
	KindCos:        "cos",
	KindFract:      "fract",
	KindSqrt:       "sqrt",
	KindPow:        "pow",
	KindSmoothstep: "smoothstep",
	KindGreater:    "greater",
	KindSelect:     "select",
	KindInvert:     "invert",
	KindClamp01:    "clamp01",
	KindDegToRad:   "deg-to-rad",
	KindRadToDeg:   "rad-to-deg",
	KindPhaseToRad: "phase-to-rad",
	KindMsToSec:    "ms-to-sec",
	KindSecToMs:    "sec-to-ms",
	KindOsc:        "osc",
	KindWave:       "wave",
	KindPack2:      "pack2",
	KindPack3:      "pack3",
	KindSplit:      "split",
	KindPolar:      "polar",
	KindRGBA:       "rgba",
	KindHSV:        "hsv",
	KindSpread:     "spread",
	KindLaneIndex:  "lane-index",
	KindLaneRandom: "lane-random",
	KindLaneCount:  "lane-count",
	KindReduce:     "reduce",
	KindDelay:      "delay",
	KindSlew:       "slew",
	KindPhasor:     "phasor",
	KindLatch:      "latch",
	KindPulse:      "pulse",
	KindWrap:       "wrap",
	KindRender:     "render",
	KindProbe:      "probe",
}

// KindByName resolves an operator name as used by patch descriptions.
func KindByName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name && Kind(k) != KindInvalid {
			return Kind(k), true
		}
	}
	return KindInvalid, false
}
