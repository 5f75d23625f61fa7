package types

// Unit refines the range or meaning of a numeric payload. UnitNone is the
// plain scalar.
type Unit uint8

const (
	UnitNone Unit = iota
	UnitNorm // normalized 0..1
	UnitRadians
	UnitDegrees
	UnitPhase // wrapped phase, 0..1 with 1 ≡ 0
	UnitMilliseconds
	UnitSeconds
	UnitSpace1 // spatial coordinate, 1 dimension
	UnitSpace2
	UnitSpace3
	UnitCount
	UnitChannel // color channel range
)

func (u Unit) String() string {
	switch u {
	case UnitNone:
		return "scalar"
	case UnitNorm:
		return "norm"
	case UnitRadians:
		return "rad"
	case UnitDegrees:
		return "deg"
	case UnitPhase:
		return "phase"
	case UnitMilliseconds:
		return "ms"
	case UnitSeconds:
		return "sec"
	case UnitSpace1:
		return "space1"
	case UnitSpace2:
		return "space2"
	case UnitSpace3:
		return "space3"
	case UnitCount:
		return "count"
	case UnitChannel:
		return "channel"
	default:
		return "unit?"
	}
}

// unitPayloads lists which payload kinds each unit may annotate. A unit is
// never attached to non-numeric payloads; UnitNone pairs with everything.
var unitPayloads = map[Unit][]Payload{
	UnitNorm:         {PayloadFloat, PayloadVec2, PayloadVec3, PayloadColor},
	UnitRadians:      {PayloadFloat},
	UnitDegrees:      {PayloadFloat},
	UnitPhase:        {PayloadFloat},
	UnitMilliseconds: {PayloadFloat, PayloadInt},
	UnitSeconds:      {PayloadFloat},
	UnitSpace1:       {PayloadFloat},
	UnitSpace2:       {PayloadVec2},
	UnitSpace3:       {PayloadVec3},
	UnitCount:        {PayloadInt, PayloadFloat},
	UnitChannel:      {PayloadFloat, PayloadColor},
}

// UnitFitsPayload reports whether the unit may annotate the payload.
func UnitFitsPayload(u Unit, p Payload) bool {
	if u == UnitNone {
		return p.Valid()
	}
	if !p.Numeric() {
		return false
	}
	for _, allowed := range unitPayloads[u] {
		if allowed == p {
			return true
		}
	}
	return false
}

// Angular reports whether the unit measures an angle or wrapped phase.
func (u Unit) Angular() bool {
	return u == UnitRadians || u == UnitDegrees || u == UnitPhase
}
