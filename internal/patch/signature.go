package patch

import (
	"fmt"
	"strings"

	"lumen/internal/types"
)

// CombineKind folds multiple writers landing on one input port. The
// normalizer assigns every writer a deterministic ordering key (edge Order,
// then edge index); lowering folds writers left to right in that order.
type CombineKind uint8

const (
	CombineNone  CombineKind = iota // a second writer is a structural error
	CombineSum
	CombineAvg
	CombineMin
	CombineMax
	CombineFirst // first writer that produced a value this frame
	CombineLast
	CombineLayer // source-over blend, color ports only
)

func (c CombineKind) String() string {
	switch c {
	case CombineNone:
		return "none"
	case CombineSum:
		return "sum"
	case CombineAvg:
		return "avg"
	case CombineMin:
		return "min"
	case CombineMax:
		return "max"
	case CombineFirst:
		return "first"
	case CombineLast:
		return "last"
	case CombineLayer:
		return "layer"
	default:
		return "combine?"
	}
}

// CombineByName resolves a combine rule name from a block parameter.
func CombineByName(name string) (CombineKind, bool) {
	switch name {
	case "sum":
		return CombineSum, true
	case "avg":
		return CombineAvg, true
	case "min":
		return CombineMin, true
	case "max":
		return CombineMax, true
	case "first":
		return CombineFirst, true
	case "last":
		return CombineLast, true
	case "layer":
		return CombineLayer, true
	default:
		return CombineNone, false
	}
}

// UnitRule selects how a lifted kernel's output unit is found when it is
// not expressible as a shared pattern variable.
type UnitRule uint8

const (
	// UnitKeep: units flow entirely through the port patterns.
	UnitKeep UnitRule = iota
	// UnitScale: multiplicative kernels. The output unit is the sole
	// non-plain input unit, or plain when none or several inputs carry
	// one. Wrapped-phase operands are rejected: scaling a phase is
	// meaningless without unwrapping it first.
	UnitScale
)

// PortSig describes one port of a block signature. The pattern's local
// variables are scoped to the signature; the solver rebases them per block.
type PortSig struct {
	Name    string
	Pat     types.Pattern
	Combine CombineKind

	// Numeric restricts the resolved payload to the numeric kinds.
	Numeric bool

	// Payloads, when non-empty, is an explicit allowlist checked after
	// solving. Used by ports that accept several concrete payloads but
	// not a free variable.
	Payloads []types.Payload
}

// Signature is the typed shape of a block kind: named input and output
// ports with inference patterns plus the solver- and scheduler-facing
// behavior flags.
type Signature struct {
	Kind    Kind
	Inputs  []PortSig
	Outputs []PortSig

	// Vars is the number of block-local inference variables the port
	// patterns reference.
	Vars types.VarID

	// Lift marks pointwise kernels: the output cardinality/population is
	// the join of the input cardinalities (a lone signal broadcasts over
	// a field; two fields must share a population).
	Lift bool

	// Units selects the output-unit rule for lifted kernels.
	Units UnitRule

	// Stateful blocks own persistent cells and may break feedback
	// cycles; their writes land in the final schedule phase.
	Stateful bool

	// NeedsTime blocks read the patch clock implicitly.
	NeedsTime bool

	// Sink blocks terminate dataflow; they never have outputs.
	Sink bool
}

// Input resolves an input port by name.
func (s *Signature) Input(name string) (PortIdx, bool) {
	for i := range s.Inputs {
		if s.Inputs[i].Name == name {
			return PortIdx(i), true
		}
	}
	return 0, false
}

// Output resolves an output port by name.
func (s *Signature) Output(name string) (PortIdx, bool) {
	for i := range s.Outputs {
		if s.Outputs[i].Name == name {
			return PortIdx(i), true
		}
	}
	return 0, false
}

// In returns the input port signature, or nil when out of range.
func (s *Signature) In(i PortIdx) *PortSig {
	if int(i) >= len(s.Inputs) {
		return nil
	}
	return &s.Inputs[i]
}

// Out returns the output port signature, or nil when out of range.
func (s *Signature) Out(i PortIdx) *PortSig {
	if int(i) >= len(s.Outputs) {
		return nil
	}
	return &s.Outputs[i]
}

func (s *Signature) String() string {
	var b strings.Builder
	b.WriteString(s.Kind.String())
	b.WriteByte('(')
	for i := range s.Inputs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(s.Inputs[i].Name)
	}
	b.WriteByte(')')
	if len(s.Outputs) > 0 {
		b.WriteString(" -> ")
		for i := range s.Outputs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(s.Outputs[i].Name)
		}
	}
	return b.String()
}

// CheckPayload reports whether a resolved payload satisfies the port's
// payload restrictions.
func (p *PortSig) CheckPayload(pl types.Payload) error {
	if p.Numeric && !pl.Numeric() {
		return fmt.Errorf("port %s needs a numeric payload, got %s", p.Name, pl)
	}
	if len(p.Payloads) > 0 {
		for _, allowed := range p.Payloads {
			if allowed == pl {
				return nil
			}
		}
		return fmt.Errorf("port %s does not accept payload %s", p.Name, pl)
	}
	return nil
}
