package types

import "testing"

func TestNewRejectsBadUnitPairing(t *testing.T) {
	if _, err := New(PayloadBool, UnitRadians); err == nil {
		t.Fatalf("bool payload must not accept an angle unit")
	}
	if _, err := New(PayloadShape, UnitNorm); err == nil {
		t.Fatalf("shape payload must not accept a numeric unit")
	}
	if _, err := New(PayloadFloat, UnitPhase); err != nil {
		t.Fatalf("float/phase should be valid: %v", err)
	}
}

func TestStrideAuthority(t *testing.T) {
	want := map[Payload]int{
		PayloadFloat:      1,
		PayloadInt:        1,
		PayloadBool:       1,
		PayloadVec2:       2,
		PayloadVec3:       3,
		PayloadColor:      4,
		PayloadProjection: 16,
		PayloadShape:      1,
	}
	for p, n := range want {
		if got := p.Stride(); got != n {
			t.Errorf("%s stride = %d, want %d", p, got, n)
		}
	}
	if PayloadInvalid.Stride() != 0 {
		t.Errorf("invalid payload must have zero stride")
	}
}

func TestClassifyTotalAndSingleValued(t *testing.T) {
	cards := []Cardinality{Zero(), One(), Many(7)}
	times := []Temporality{Continuous, Discrete}
	seen := map[Class]bool{}
	for _, c := range cards {
		for _, tt := range times {
			ty := MustNew(PayloadFloat, UnitNone).WithCard(c).WithTime(tt)
			cls := Classify(ty)
			if cls > ClassLaneEvent {
				t.Fatalf("classify(%s) out of range: %v", ty, cls)
			}
			seen[cls] = true
		}
	}
	for _, cls := range []Class{ClassSignal, ClassField, ClassTrigger, ClassLaneEvent} {
		if !seen[cls] {
			t.Errorf("class %s never produced", cls)
		}
	}
}

func TestClassifyDerivation(t *testing.T) {
	base := MustNew(PayloadFloat, UnitNone)
	cases := []struct {
		card Cardinality
		time Temporality
		want Class
	}{
		{One(), Continuous, ClassSignal},
		{Many(3), Continuous, ClassField},
		{One(), Discrete, ClassTrigger},
		{Many(3), Discrete, ClassLaneEvent},
		{Zero(), Continuous, ClassSignal},
		{Zero(), Discrete, ClassTrigger},
	}
	for _, c := range cases {
		got := Classify(base.WithCard(c.card).WithTime(c.time))
		if got != c.want {
			t.Errorf("classify(%s,%s) = %s, want %s", c.card, c.time, got, c.want)
		}
	}
}

func TestTypeIsValueComparable(t *testing.T) {
	a := MustNew(PayloadVec2, UnitSpace2).WithCard(Many(2))
	b := MustNew(PayloadVec2, UnitSpace2).WithCard(Many(2))
	if a != b {
		t.Fatalf("structurally equal types must compare equal")
	}
	if a == b.WithCard(Many(3)) {
		t.Fatalf("different populations must not compare equal")
	}
}
