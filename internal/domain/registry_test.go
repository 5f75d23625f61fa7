package domain

import (
	"testing"

	"lumen/internal/types"
)

func TestDeclareAssignsDistinctIDs(t *testing.T) {
	r := NewRegistry()
	a, err := r.Declare(1, 10)
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	b, err := r.Declare(1, 20)
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if a == b || a == types.NoInstance || b == types.NoInstance {
		t.Fatalf("ids must be distinct and non-zero: %d %d", a, b)
	}
	if r.Lanes(a) != 10 || r.Lanes(b) != 20 {
		t.Fatalf("lane counts lost: %d %d", r.Lanes(a), r.Lanes(b))
	}
}

func TestDeclareWithValidatesShapes(t *testing.T) {
	r := NewRegistry()
	_, err := r.DeclareWith(Population{Kind: 2, Lanes: 3, Keys: []uint64{1, 2}})
	if err == nil {
		t.Fatalf("mismatched key count must be rejected")
	}
	_, err = r.DeclareWith(Population{Kind: 2, Lanes: 2, Rest: [][2]float64{{0, 0}}})
	if err == nil {
		t.Fatalf("mismatched rest count must be rejected")
	}
	id, err := r.DeclareWith(Population{Kind: 2, Lanes: 2, Keys: []uint64{5, 6}})
	if err != nil {
		t.Fatalf("declare with keys: %v", err)
	}
	p, ok := r.Lookup(id)
	if !ok || p.Keys[1] != 6 {
		t.Fatalf("lookup lost keys: %+v ok=%v", p, ok)
	}
}

func TestLookupUnknownInstance(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Lookup(types.InstanceID(42)); ok {
		t.Fatalf("unknown instance must not resolve")
	}
	if r.Lanes(types.NoInstance) != 0 {
		t.Fatalf("no-instance lane count must be zero")
	}
}
