package patch

import "fmt"

// ParamKind is the shape of a block parameter value.
type ParamKind uint8

const (
	ParamFloat ParamKind = iota
	ParamInt
	ParamBool
	ParamString
	ParamVec // up to four components; color and vec literals share this
)

func (k ParamKind) String() string {
	switch k {
	case ParamFloat:
		return "float"
	case ParamInt:
		return "int"
	case ParamBool:
		return "bool"
	case ParamString:
		return "string"
	case ParamVec:
		return "vec"
	default:
		return "param?"
	}
}

// ParamValue is one block parameter. Only the field matching Kind is
// meaningful.
type ParamValue struct {
	Kind  ParamKind
	Float float64
	Int   int64
	Bool  bool
	Str   string
	Vec   [4]float64
	N     int // used components of Vec
}

func Float(v float64) ParamValue { return ParamValue{Kind: ParamFloat, Float: v} }
func Int(v int64) ParamValue     { return ParamValue{Kind: ParamInt, Int: v} }
func Bool(v bool) ParamValue     { return ParamValue{Kind: ParamBool, Bool: v} }
func Str(v string) ParamValue    { return ParamValue{Kind: ParamString, Str: v} }

func Vec2(x, y float64) ParamValue {
	return ParamValue{Kind: ParamVec, Vec: [4]float64{x, y}, N: 2}
}

func Vec3(x, y, z float64) ParamValue {
	return ParamValue{Kind: ParamVec, Vec: [4]float64{x, y, z}, N: 3}
}

func Color(r, g, b, a float64) ParamValue {
	return ParamValue{Kind: ParamVec, Vec: [4]float64{r, g, b, a}, N: 4}
}

func (v ParamValue) String() string {
	switch v.Kind {
	case ParamFloat:
		return fmt.Sprintf("%g", v.Float)
	case ParamInt:
		return fmt.Sprintf("%d", v.Int)
	case ParamBool:
		return fmt.Sprintf("%t", v.Bool)
	case ParamString:
		return fmt.Sprintf("%q", v.Str)
	case ParamVec:
		return fmt.Sprintf("%v", v.Vec[:v.N])
	default:
		return "?"
	}
}

// Params maps parameter names to values.
type Params map[string]ParamValue

// FloatOr reads a float parameter with a fallback.
func (p Params) FloatOr(name string, def float64) float64 {
	if v, ok := p[name]; ok && v.Kind == ParamFloat {
		return v.Float
	}
	if v, ok := p[name]; ok && v.Kind == ParamInt {
		return float64(v.Int)
	}
	return def
}

// IntOr reads an int parameter with a fallback.
func (p Params) IntOr(name string, def int64) int64 {
	if v, ok := p[name]; ok && v.Kind == ParamInt {
		return v.Int
	}
	return def
}

// StrOr reads a string parameter with a fallback.
func (p Params) StrOr(name, def string) string {
	if v, ok := p[name]; ok && v.Kind == ParamString {
		return v.Str
	}
	return def
}

// BoolOr reads a bool parameter with a fallback.
func (p Params) BoolOr(name string, def bool) bool {
	if v, ok := p[name]; ok && v.Kind == ParamBool {
		return v.Bool
	}
	return def
}
