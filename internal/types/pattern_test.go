package types

import "testing"

func TestMergeTable(t *testing.T) {
	def := DefaultTerm[Payload]()
	f := BoundTerm(PayloadFloat)
	v2 := BoundTerm(PayloadVec2)

	if got, ok := Merge(def, def); !ok || got.Tag != TagDefault {
		t.Fatalf("default⊔default should stay default")
	}
	if got, ok := Merge(def, f); !ok || got != f {
		t.Fatalf("default⊔bound should bind")
	}
	if got, ok := Merge(f, f); !ok || got != f {
		t.Fatalf("bound⊔bound with equal values should hold")
	}
	if _, ok := Merge(f, v2); ok {
		t.Fatalf("bound⊔bound with different values must fail")
	}
}

func TestMergeCommutative(t *testing.T) {
	terms := []Term[CardKind]{
		DefaultTerm[CardKind](),
		BoundTerm(CardOne),
		BoundTerm(CardMany),
	}
	for _, a := range terms {
		for _, b := range terms {
			ab, okAB := Merge(a, b)
			ba, okBA := Merge(b, a)
			if okAB != okBA || ab != ba {
				t.Fatalf("merge not commutative for %v, %v", a, b)
			}
		}
	}
}

func TestMergeAssociative(t *testing.T) {
	terms := []Term[Unit]{
		DefaultTerm[Unit](),
		BoundTerm(UnitPhase),
		BoundTerm(UnitSeconds),
	}
	for _, a := range terms {
		for _, b := range terms {
			for _, c := range terms {
				left, okL := merge3(a, b, c)
				right, okR := merge3Right(a, b, c)
				if okL != okR || (okL && left != right) {
					t.Fatalf("merge not associative for %v, %v, %v", a, b, c)
				}
			}
		}
	}
}

func merge3(a, b, c Term[Unit]) (Term[Unit], bool) {
	ab, ok := Merge(a, b)
	if !ok {
		return Term[Unit]{}, false
	}
	return Merge(ab, c)
}

func merge3Right(a, b, c Term[Unit]) (Term[Unit], bool) {
	bc, ok := Merge(b, c)
	if !ok {
		return Term[Unit]{}, false
	}
	return Merge(a, bc)
}

func TestMergePanicsOnVariable(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("merge must reject unsubstituted variables")
		}
	}()
	Merge(VarTerm[Payload](1), BoundTerm(PayloadFloat))
}

func TestResolveAppliesCanonicalDefaults(t *testing.T) {
	got, err := Pattern{}.Resolve()
	if err != nil {
		t.Fatalf("resolve empty pattern: %v", err)
	}
	want := MustNew(PayloadFloat, UnitNone)
	if got != want {
		t.Fatalf("resolve defaults = %s, want %s", got, want)
	}
}

func TestResolveManyRequiresPopulation(t *testing.T) {
	p := Pattern{Card: BoundTerm(CardMany)}
	if _, err := p.Resolve(); err == nil {
		t.Fatalf("many with no population must not resolve")
	}
	p.Inst = BoundTerm(InstanceID(4))
	ty, err := p.Resolve()
	if err != nil {
		t.Fatalf("resolve many: %v", err)
	}
	if ty.Extent.Card != Many(4) {
		t.Fatalf("resolved cardinality = %s", ty.Extent.Card)
	}
}

func TestExactRoundTrips(t *testing.T) {
	ty := MustNew(PayloadColor, UnitNorm).WithCard(Many(9)).WithTime(Discrete)
	back, err := Exact(ty).Resolve()
	if err != nil {
		t.Fatalf("resolve exact pattern: %v", err)
	}
	if back != ty {
		t.Fatalf("exact pattern did not round trip: %s vs %s", back, ty)
	}
}
