package vm

import "lumen/internal/ir"

// RenderSink consumes render frames. Implementations must not retain the
// frame's buffers past the call; the machine reuses them next frame.
type RenderSink interface {
	Render(f RenderFrame)
}

// RenderFrame is everything a renderer needs to draw one sink for one
// frame: the shape topology, the compositing mode, the lane count and the
// per-parameter value buffers.
type RenderFrame struct {
	Sink     string
	Frame    uint64
	Time     float64
	Topology ir.TopologyID
	Blend    ir.BlendMode
	Lanes    int
	Values   []Value
}

// Value is one named render parameter, lane-major.
type Value struct {
	Name   string
	Stride int
	Lanes  int
	Data   []float64
}

// At reads one component of one lane, broadcasting single-lane values.
func (v Value) At(lane, c int) float64 {
	if v.Lanes == 1 {
		return v.Data[c]
	}
	return v.Data[lane*v.Stride+c]
}
