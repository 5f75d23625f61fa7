package vm

import (
	"fmt"
	"math"

	"lumen/internal/ir"
)

// evalKernel applies one pure operator. Operands are read through their
// slots with lane broadcast; the destination is lane-major.
func (m *Machine) evalKernel(e *ir.Expr, dst []float64, lanes, stride int) error {
	var args [4]src
	for i, id := range e.Args {
		s, err := m.childSrc(id)
		if err != nil {
			return err
		}
		args[i] = s
	}

	switch e.Op {
	case ir.OpAdd:
		return binaryOp(dst, lanes, stride, args[0], args[1],
			func(a, b float64) float64 { return a + b })
	case ir.OpSub:
		return binaryOp(dst, lanes, stride, args[0], args[1],
			func(a, b float64) float64 { return a - b })
	case ir.OpMul:
		return binaryOp(dst, lanes, stride, args[0], args[1],
			func(a, b float64) float64 { return a * b })
	case ir.OpDiv:
		return binaryOp(dst, lanes, stride, args[0], args[1],
			func(a, b float64) float64 { return a / b })
	case ir.OpMin:
		return binaryOp(dst, lanes, stride, args[0], args[1], math.Min)
	case ir.OpMax:
		return binaryOp(dst, lanes, stride, args[0], args[1], math.Max)

	case ir.OpNeg:
		return unaryOp(dst, lanes, stride, args[0], func(x float64) float64 { return -x })
	case ir.OpAbs:
		return unaryOp(dst, lanes, stride, args[0], math.Abs)
	case ir.OpSin:
		return unaryOp(dst, lanes, stride, args[0], math.Sin)
	case ir.OpCos:
		return unaryOp(dst, lanes, stride, args[0], math.Cos)
	case ir.OpFract:
		return unaryOp(dst, lanes, stride, args[0], fract)
	case ir.OpSqrt:
		return unaryOp(dst, lanes, stride, args[0], math.Sqrt)
	case ir.OpInvert:
		return unaryOp(dst, lanes, stride, args[0], func(x float64) float64 { return 1 - x })
	case ir.OpClamp01:
		return unaryOp(dst, lanes, stride, args[0], clamp01)
	case ir.OpDegToRad:
		return unaryOp(dst, lanes, stride, args[0], func(x float64) float64 { return x * math.Pi / 180 })
	case ir.OpRadToDeg:
		return unaryOp(dst, lanes, stride, args[0], func(x float64) float64 { return x * 180 / math.Pi })
	case ir.OpPhaseToRad:
		return unaryOp(dst, lanes, stride, args[0], func(x float64) float64 { return x * 2 * math.Pi })
	case ir.OpMsToSec:
		return unaryOp(dst, lanes, stride, args[0], func(x float64) float64 { return x / 1000 })
	case ir.OpSecToMs:
		return unaryOp(dst, lanes, stride, args[0], func(x float64) float64 { return x * 1000 })

	case ir.OpPow:
		return binaryOp(dst, lanes, stride, args[0], args[1], math.Pow)

	case ir.OpMix:
		for lane := 0; lane < lanes; lane++ {
			t := args[2].comp(lane, 0)
			for c := 0; c < stride; c++ {
				a := args[0].comp(lane, c)
				dst[lane*stride+c] = a + (args[1].comp(lane, c)-a)*t
			}
		}
		return nil

	case ir.OpClamp:
		for lane := 0; lane < lanes; lane++ {
			for c := 0; c < stride; c++ {
				lo := args[1].comp(lane, c)
				hi := args[2].comp(lane, c)
				dst[lane*stride+c] = math.Min(math.Max(args[0].comp(lane, c), lo), hi)
			}
		}
		return nil

	case ir.OpSmoothstep:
		for lane := 0; lane < lanes; lane++ {
			for c := 0; c < stride; c++ {
				e0 := args[0].comp(lane, c)
				e1 := args[1].comp(lane, c)
				x := args[2].comp(lane, c)
				dst[lane*stride+c] = smoothstep(e0, e1, x)
			}
		}
		return nil

	case ir.OpGreater:
		for lane := 0; lane < lanes; lane++ {
			if args[0].comp(lane, 0) > args[1].comp(lane, 0) {
				dst[lane] = 1
			} else {
				dst[lane] = 0
			}
		}
		return nil

	case ir.OpSelect:
		for lane := 0; lane < lanes; lane++ {
			pick := args[1]
			if args[0].comp(lane, 0) == 0 {
				pick = args[2]
			}
			for c := 0; c < stride; c++ {
				dst[lane*stride+c] = pick.comp(lane, c)
			}
		}
		return nil

	case ir.OpOscSine, ir.OpOscSaw, ir.OpOscSquare, ir.OpOscTri:
		t := args[2].comp(0, 0)
		for lane := 0; lane < lanes; lane++ {
			x := args[0].comp(lane, 0)*t + args[1].comp(lane, 0)
			dst[lane] = oscWave(e.Op, x)
		}
		return nil

	case ir.OpPack2:
		for lane := 0; lane < lanes; lane++ {
			dst[lane*2] = args[0].comp(lane, 0)
			dst[lane*2+1] = args[1].comp(lane, 0)
		}
		return nil

	case ir.OpPack3:
		for lane := 0; lane < lanes; lane++ {
			dst[lane*3] = args[0].comp(lane, 0)
			dst[lane*3+1] = args[1].comp(lane, 0)
			dst[lane*3+2] = args[2].comp(lane, 0)
		}
		return nil

	case ir.OpSplit:
		c := int(e.Lit[0])
		if c < 0 || c >= args[0].stride {
			return fmt.Errorf("split component %d of stride %d", c, args[0].stride)
		}
		for lane := 0; lane < lanes; lane++ {
			dst[lane] = args[0].comp(lane, c)
		}
		return nil

	case ir.OpPolar:
		for lane := 0; lane < lanes; lane++ {
			a := args[0].comp(lane, 0)
			r := args[1].comp(lane, 0)
			dst[lane*2] = r * math.Cos(a)
			dst[lane*2+1] = r * math.Sin(a)
		}
		return nil

	case ir.OpRGBA:
		for lane := 0; lane < lanes; lane++ {
			for c := 0; c < 4; c++ {
				dst[lane*4+c] = args[c].comp(lane, 0)
			}
		}
		return nil

	case ir.OpHSV:
		for lane := 0; lane < lanes; lane++ {
			r, g, b := hsvToRGB(args[0].comp(lane, 0), args[1].comp(lane, 0), args[2].comp(lane, 0))
			dst[lane*4] = r
			dst[lane*4+1] = g
			dst[lane*4+2] = b
			dst[lane*4+3] = 1
		}
		return nil

	case ir.OpLayer:
		for lane := 0; lane < lanes; lane++ {
			layerOver(dst[lane*4:lane*4+4], args[0], args[1], lane)
		}
		return nil

	case ir.OpReduceSum, ir.OpReduceAvg, ir.OpReduceMin, ir.OpReduceMax:
		return reduceOp(e.Op, dst, stride, args[0])

	default:
		return fmt.Errorf("unknown kernel op %s", e.Op)
	}
}

func binaryOp(dst []float64, lanes, stride int, a, b src, f func(x, y float64) float64) error {
	if a.stride != stride || b.stride != stride {
		return fmt.Errorf("operand strides %d,%d for result stride %d", a.stride, b.stride, stride)
	}
	for lane := 0; lane < lanes; lane++ {
		for c := 0; c < stride; c++ {
			dst[lane*stride+c] = f(a.comp(lane, c), b.comp(lane, c))
		}
	}
	return nil
}

func unaryOp(dst []float64, lanes, stride int, a src, f func(x float64) float64) error {
	if a.stride != stride {
		return fmt.Errorf("operand stride %d for result stride %d", a.stride, stride)
	}
	for lane := 0; lane < lanes; lane++ {
		for c := 0; c < stride; c++ {
			dst[lane*stride+c] = f(a.comp(lane, c))
		}
	}
	return nil
}

func reduceOp(op ir.Op, dst []float64, stride int, a src) error {
	n := a.lanes()
	if n == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return nil
	}
	for c := 0; c < stride; c++ {
		acc := a.comp(0, c)
		for lane := 1; lane < n; lane++ {
			v := a.comp(lane, c)
			switch op {
			case ir.OpReduceSum, ir.OpReduceAvg:
				acc += v
			case ir.OpReduceMin:
				acc = math.Min(acc, v)
			case ir.OpReduceMax:
				acc = math.Max(acc, v)
			}
		}
		if op == ir.OpReduceAvg {
			acc /= float64(n)
		}
		dst[c] = acc
	}
	return nil
}

func fract(x float64) float64 { return x - math.Floor(x) }

func clamp01(x float64) float64 { return math.Min(math.Max(x, 0), 1) }

func smoothstep(e0, e1, x float64) float64 {
	d := e1 - e0
	if d == 0 {
		if x >= e1 {
			return 1
		}
		return 0
	}
	t := clamp01((x - e0) / d)
	return t * t * (3 - 2*t)
}

func oscWave(op ir.Op, x float64) float64 {
	switch op {
	case ir.OpOscSine:
		return math.Sin(2 * math.Pi * x)
	case ir.OpOscSaw:
		return 2*fract(x) - 1
	case ir.OpOscSquare:
		if fract(x) < 0.5 {
			return 1
		}
		return -1
	default: // triangle
		return 1 - 4*math.Abs(fract(x)-0.5)
	}
}

func hsvToRGB(h, s, v float64) (r, g, b float64) {
	h = fract(h) * 6
	i := int(h)
	f := h - float64(i)
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)
	switch i % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}

// layerOver composites top over bottom with straight alpha.
func layerOver(out []float64, bottom, top src, lane int) {
	aT := top.comp(lane, 3)
	aB := bottom.comp(lane, 3)
	outA := aT + aB*(1-aT)
	if outA < 1e-12 {
		out[0], out[1], out[2], out[3] = 0, 0, 0, 0
		return
	}
	for c := 0; c < 3; c++ {
		out[c] = (top.comp(lane, c)*aT + bottom.comp(lane, c)*aB*(1-aT)) / outA
	}
	out[3] = outA
}
