package types

import "fmt"

// Type is the canonical, fully-instantiated description of a value:
// payload shape, unit refinement, and five-axis extent. It is an immutable
// value type compared structurally; once constructed it is never rewritten.
type Type struct {
	Payload Payload
	Unit    Unit
	Extent  Extent
}

// New builds a canonical type from a payload and an optional unit, with the
// default signal extent. Passing UnitNone picks the plain scalar reading;
// that defaulting is deliberate caller-visible ergonomics, not error
// recovery. Unit/payload pairs outside the validation table are rejected.
func New(payload Payload, unit Unit) (Type, error) {
	if !payload.Valid() {
		return Type{}, fmt.Errorf("types: invalid payload")
	}
	if !UnitFitsPayload(unit, payload) {
		return Type{}, fmt.Errorf("types: unit %s does not fit payload %s", unit, payload)
	}
	return Type{Payload: payload, Unit: unit, Extent: SignalExtent()}, nil
}

// MustNew is New for statically known pairs; it panics on invalid input.
func MustNew(payload Payload, unit Unit) Type {
	t, err := New(payload, unit)
	if err != nil {
		panic(err)
	}
	return t
}

// WithExtent returns a copy of t with the given extent.
func (t Type) WithExtent(e Extent) Type {
	t.Extent = e
	return t
}

// WithCard returns a copy of t with the cardinality replaced.
func (t Type) WithCard(c Cardinality) Type {
	t.Extent.Card = c
	return t
}

// WithTime returns a copy of t with the temporality replaced.
func (t Type) WithTime(tt Temporality) Type {
	t.Extent.Time = tt
	return t
}

// Stride returns the scalar lane width of the payload. The payload table is
// the only stride authority in the system.
func (t Type) Stride() int { return t.Payload.Stride() }

// Valid reports whether the type holds a concrete payload and an allowed
// unit pairing.
func (t Type) Valid() bool {
	return t.Payload.Valid() && UnitFitsPayload(t.Unit, t.Payload)
}

func (t Type) String() string {
	if t.Unit == UnitNone {
		return fmt.Sprintf("%s[%s]", t.Payload, t.Extent)
	}
	return fmt.Sprintf("%s:%s[%s]", t.Payload, t.Unit, t.Extent)
}

// Class is the behavioural category of a resolved type. It is always
// rederived from cardinality and temporality; storing it beside a type
// would let the two drift apart.
type Class uint8

const (
	ClassSignal    Class = iota // one value per frame, continuous
	ClassField                  // one value per lane, continuous
	ClassTrigger                // one event per frame, discrete
	ClassLaneEvent              // one event per lane, discrete
)

func (c Class) String() string {
	switch c {
	case ClassSignal:
		return "signal"
	case ClassField:
		return "field"
	case ClassTrigger:
		return "trigger"
	case ClassLaneEvent:
		return "lane-event"
	default:
		return "class?"
	}
}

// Classify derives the category of a fully-instantiated type from
// cardinality × temporality. It is total: zero cardinality behaves as a
// degenerate per-frame value, so a constant classifies like a signal (or a
// trigger when discrete).
func Classify(t Type) Class {
	many := t.Extent.Card.Kind == CardMany
	discrete := t.Extent.Time == Discrete
	switch {
	case many && discrete:
		return ClassLaneEvent
	case many:
		return ClassField
	case discrete:
		return ClassTrigger
	default:
		return ClassSignal
	}
}
