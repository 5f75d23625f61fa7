// Package remap builds lane mappings between two shapes of the same
// population and the gauge offsets that keep field values continuous across
// a hot swap. A mapping answers one question per new lane: which old lane,
// if any, carries its history.
package remap

import "math"

// NoLane marks a new lane with no old counterpart.
const NoLane int32 = -1

// Mapping relates the lanes of a new population shape to an old one.
type Mapping struct {
	// From holds, per new lane, the old lane index or NoLane.
	From []int32
}

// Identity maps every lane to itself. Used when the shape is unchanged.
func Identity(lanes int) Mapping {
	m := Mapping{From: make([]int32, lanes)}
	for i := range m.From {
		m.From[i] = int32(i)
	}
	return m
}

// Disjoint maps no lane. Used when the old program had no matching
// population.
func Disjoint(lanes int) Mapping {
	m := Mapping{From: make([]int32, lanes)}
	for i := range m.From {
		m.From[i] = NoLane
	}
	return m
}

// Lanes returns the new-shape lane count.
func (m Mapping) Lanes() int { return len(m.From) }

// Mapped returns how many new lanes found an old counterpart.
func (m Mapping) Mapped() int {
	n := 0
	for _, f := range m.From {
		if f != NoLane {
			n++
		}
	}
	return n
}

// ByKeys matches lanes sharing a stable key. When a key appears more than
// once on the old side the first occurrence wins, so the result is
// deterministic regardless of how the keys were produced.
func ByKeys(oldKeys, newKeys []uint64) Mapping {
	idx := make(map[uint64]int32, len(oldKeys))
	for i, k := range oldKeys {
		if _, ok := idx[k]; !ok {
			idx[k] = int32(i)
		}
	}
	m := Mapping{From: make([]int32, len(newKeys))}
	for i, k := range newKeys {
		from, ok := idx[k]
		if !ok {
			from = NoLane
		}
		m.From[i] = from
	}
	return m
}

// ByRest matches each new lane to the nearest old rest position. Several
// new lanes may inherit from the same old lane; ties resolve to the lowest
// old index.
func ByRest(oldRest, newRest [][2]float64) Mapping {
	m := Mapping{From: make([]int32, len(newRest))}
	for i, np := range newRest {
		best := NoLane
		bestD := math.Inf(1)
		for j, op := range oldRest {
			dx, dy := np[0]-op[0], np[1]-op[1]
			if d := dx*dx + dy*dy; d < bestD {
				bestD = d
				best = int32(j)
			}
		}
		m.From[i] = best
	}
	return m
}

// Offsets computes per-lane gauge offsets for one field buffer: mapped
// lanes carry old-minus-base so the displayed value starts exactly where
// the old program left it, unmatched lanes start on the new base directly.
// Buffers are lane-major with stride scalars per lane; old may be shorter
// than the mapping requires, in which case out-of-range lanes count as
// unmatched.
func Offsets(m Mapping, stride int, old, base []float64) []float64 {
	off := make([]float64, m.Lanes()*stride)
	oldLanes := len(old) / stride
	for lane, from := range m.From {
		if from == NoLane || int(from) >= oldLanes {
			continue
		}
		for s := 0; s < stride; s++ {
			off[lane*stride+s] = old[int(from)*stride+s] - base[lane*stride+s]
		}
	}
	return off
}
