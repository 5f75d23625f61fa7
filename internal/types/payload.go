package types

// Payload identifies the intrinsic data shape of a value.
type Payload uint8

const (
	PayloadInvalid Payload = iota
	PayloadFloat
	PayloadInt
	PayloadBool
	PayloadVec2
	PayloadVec3
	PayloadColor
	PayloadProjection
	PayloadShape
)

// payloadStride is the single authority for buffer layout. Every consumer
// of per-lane storage must go through Payload.Stride; nothing may derive a
// width from the payload name or the slot shape.
var payloadStride = [...]int{
	PayloadInvalid:    0,
	PayloadFloat:      1,
	PayloadInt:        1,
	PayloadBool:       1,
	PayloadVec2:       2,
	PayloadVec3:       3,
	PayloadColor:      4,
	PayloadProjection: 16,
	PayloadShape:      1,
}

// Stride returns the number of scalar lanes the payload occupies in a
// buffer. Zero means the payload is invalid.
func (p Payload) Stride() int {
	if int(p) >= len(payloadStride) {
		return 0
	}
	return payloadStride[p]
}

// Valid reports whether p is a concrete payload kind.
func (p Payload) Valid() bool {
	return p > PayloadInvalid && int(p) < len(payloadStride)
}

// Numeric reports whether unit annotations apply to the payload.
func (p Payload) Numeric() bool {
	switch p {
	case PayloadFloat, PayloadInt, PayloadVec2, PayloadVec3, PayloadColor:
		return true
	default:
		return false
	}
}

func (p Payload) String() string {
	switch p {
	case PayloadInvalid:
		return "invalid"
	case PayloadFloat:
		return "float"
	case PayloadInt:
		return "int"
	case PayloadBool:
		return "bool"
	case PayloadVec2:
		return "vec2"
	case PayloadVec3:
		return "vec3"
	case PayloadColor:
		return "color"
	case PayloadProjection:
		return "projection"
	case PayloadShape:
		return "shape"
	default:
		return "payload?"
	}
}
