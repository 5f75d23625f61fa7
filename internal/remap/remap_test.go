package remap

import (
	"math"
	"testing"

	"lumen/internal/domain"
)

func TestByKeysMatchesStableIdentities(t *testing.T) {
	old := []uint64{10, 20, 30, 40}
	cur := []uint64{40, 99, 20}

	m := ByKeys(old, cur)

	want := []int32{3, NoLane, 1}
	if len(m.From) != len(want) {
		t.Fatalf("mapping covers %d lanes, want %d", len(m.From), len(want))
	}
	for i, w := range want {
		if m.From[i] != w {
			t.Errorf("lane %d maps from %d, want %d", i, m.From[i], w)
		}
	}
	if m.Mapped() != 2 {
		t.Errorf("mapped = %d, want 2", m.Mapped())
	}
}

func TestByKeysDuplicateOldKeyPicksFirst(t *testing.T) {
	m := ByKeys([]uint64{7, 7, 7}, []uint64{7})
	if m.From[0] != 0 {
		t.Errorf("duplicate key maps from %d, want 0", m.From[0])
	}
}

func TestByRestPicksNearest(t *testing.T) {
	old := [][2]float64{{0, 0}, {10, 0}, {0, 10}}
	cur := [][2]float64{{9, 1}, {-50, -50}, {1, 9}}

	m := ByRest(old, cur)

	want := []int32{1, 0, 2}
	for i, w := range want {
		if m.From[i] != w {
			t.Errorf("lane %d maps from %d, want %d", i, m.From[i], w)
		}
	}
}

func TestByRestTieResolvesToLowestIndex(t *testing.T) {
	old := [][2]float64{{1, 0}, {-1, 0}}
	m := ByRest(old, [][2]float64{{0, 0}})
	if m.From[0] != 0 {
		t.Errorf("tie maps from %d, want 0", m.From[0])
	}
}

func TestOffsetsKeepDisplayContinuous(t *testing.T) {
	// Old program showed [5, 7]; the new base evaluates to [2, 2, 2].
	// Lane 0 keeps old lane 1, lane 1 keeps old lane 0, lane 2 is new.
	m := Mapping{From: []int32{1, 0, NoLane}}
	old := []float64{5, 7}
	base := []float64{2, 2, 2}

	off := Offsets(m, 1, old, base)

	shown := make([]float64, len(base))
	for i := range base {
		shown[i] = base[i] + off[i]
	}
	want := []float64{7, 5, 2}
	for i, w := range want {
		if shown[i] != w {
			t.Errorf("lane %d shows %g at swap, want %g", i, shown[i], w)
		}
	}
}

func TestOffsetsStride(t *testing.T) {
	m := Mapping{From: []int32{0}}
	old := []float64{3, 4}
	base := []float64{1, 1}

	off := Offsets(m, 2, old, base)

	if off[0] != 2 || off[1] != 3 {
		t.Errorf("offsets = %v, want [2 3]", off)
	}
}

func TestOffsetsOutOfRangeOldLane(t *testing.T) {
	m := Mapping{From: []int32{5}}
	off := Offsets(m, 1, []float64{1}, []float64{9})
	if off[0] != 0 {
		t.Errorf("out-of-range lane got offset %g, want 0", off[0])
	}
}

func TestPreserveGaugeHoldsForever(t *testing.T) {
	g := NewGauge(domain.PolicyPreserve, 0, 0, []float64{3})
	buf := []float64{1}
	for i := 0; i < 100; i++ {
		buf[0] = 1
		g.Apply(buf, 0.1)
	}
	if buf[0] != 4 {
		t.Errorf("preserved value = %g, want 4", buf[0])
	}
	if g.Done() {
		t.Errorf("preserve gauge reported done")
	}
}

func TestSlewGaugeDecaysToBase(t *testing.T) {
	g := NewGauge(domain.PolicySlew, 0.1, 0, []float64{10})
	first := []float64{0}
	g.Apply(first, 1.0 / 60)
	if first[0] >= 10 || first[0] <= 0 {
		t.Fatalf("first frame shows %g, want a decayed positive offset", first[0])
	}
	last := first[0]
	for i := 0; i < 600; i++ {
		buf := []float64{0}
		g.Apply(buf, 1.0/60)
		if buf[0] > last {
			t.Fatalf("slew offset grew from %g to %g", last, buf[0])
		}
		last = buf[0]
	}
	if !g.Done() {
		t.Errorf("slew gauge still active after ten seconds at tau=0.1")
	}
	if math.Abs(last) > 1e-6 {
		t.Errorf("slew offset settled at %g, want ~0", last)
	}
}

func TestCrossfadeGaugeRunsItsCourse(t *testing.T) {
	g := NewGauge(domain.PolicyCrossfade, 0, 0.5, []float64{8})

	buf := []float64{0}
	g.Apply(buf, 0) // age 0: full weight
	if buf[0] != 8 {
		t.Fatalf("crossfade at age 0 shows %g, want 8", buf[0])
	}
	mid := []float64{0}
	g.Apply(mid, 0.25) // age 0.25 of 0.5: half way, smoothstep(0.5) = 0.5
	if math.Abs(mid[0]-4) > 1e-9 {
		t.Errorf("crossfade midpoint shows %g, want 4", mid[0])
	}
	end := []float64{0}
	g.Apply(end, 10)
	if end[0] != 0 {
		t.Errorf("crossfade after fade shows %g, want 0", end[0])
	}
	if !g.Done() {
		t.Errorf("crossfade gauge not done after its duration")
	}
}

func TestGaugeSkipsTrivialCases(t *testing.T) {
	if g := NewGauge(domain.PolicyProject, 0, 0, []float64{5}); g != nil {
		t.Errorf("project policy built a gauge")
	}
	if g := NewGauge(domain.PolicyNone, 0, 0, []float64{5}); g != nil {
		t.Errorf("none policy built a gauge")
	}
	if g := NewGauge(domain.PolicyPreserve, 0, 0, []float64{0, 0}); g != nil {
		t.Errorf("all-zero offsets built a gauge")
	}
	var g *Gauge
	g.Apply([]float64{1}, 0.1) // nil gauge is a no-op
	if !g.Done() {
		t.Errorf("nil gauge not done")
	}
}

func TestIdentityAndDisjoint(t *testing.T) {
	id := Identity(3)
	for i, f := range id.From {
		if int(f) != i {
			t.Errorf("identity lane %d maps from %d", i, f)
		}
	}
	dj := Disjoint(3)
	if dj.Mapped() != 0 {
		t.Errorf("disjoint mapping matched %d lanes", dj.Mapped())
	}
}
