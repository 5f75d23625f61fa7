package ir

import (
	"testing"

	"lumen/internal/types"
)

func scalarFloat() types.Type {
	return types.MustNew(types.PayloadFloat, types.UnitNone)
}

func TestInternDeduplicatesStructure(t *testing.T) {
	tab := NewTable()
	c1 := tab.Intern(Expr{Kind: ExprConst, Type: scalarFloat(), Lit: []float64{5}})
	c2 := tab.Intern(Expr{Kind: ExprConst, Type: scalarFloat(), Lit: []float64{5}})
	if c1 != c2 {
		t.Fatalf("identical constants interned to %d and %d", c1, c2)
	}
	one := tab.Intern(Expr{Kind: ExprConst, Type: scalarFloat(), Lit: []float64{1}})
	a1 := tab.Intern(Expr{Kind: ExprKernel, Op: OpAdd, Type: scalarFloat(), Args: []ExprID{c1, one}})
	a2 := tab.Intern(Expr{Kind: ExprKernel, Op: OpAdd, Type: scalarFloat(), Args: []ExprID{c2, one}})
	if a1 != a2 {
		t.Fatalf("identical kernels interned to %d and %d", a1, a2)
	}
	if n := tab.Len(); n != 4 {
		t.Fatalf("table has %d nodes, want sentinel + 3", n)
	}
}

func TestInternDistinguishesLiteralAndOp(t *testing.T) {
	tab := NewTable()
	five := tab.Intern(Expr{Kind: ExprConst, Type: scalarFloat(), Lit: []float64{5}})
	six := tab.Intern(Expr{Kind: ExprConst, Type: scalarFloat(), Lit: []float64{6}})
	if five == six {
		t.Fatalf("different literals must not share an id")
	}
	add := tab.Intern(Expr{Kind: ExprKernel, Op: OpAdd, Type: scalarFloat(), Args: []ExprID{five, six}})
	sub := tab.Intern(Expr{Kind: ExprKernel, Op: OpSub, Type: scalarFloat(), Args: []ExprID{five, six}})
	if add == sub {
		t.Fatalf("different ops must not share an id")
	}
}

func TestInternDistinguishesUnits(t *testing.T) {
	tab := NewTable()
	sec := tab.Intern(Expr{Kind: ExprConst, Type: types.MustNew(types.PayloadFloat, types.UnitSeconds), Lit: []float64{1}})
	ms := tab.Intern(Expr{Kind: ExprConst, Type: types.MustNew(types.PayloadFloat, types.UnitMilliseconds), Lit: []float64{1}})
	if sec == ms {
		t.Fatalf("same bits under different units must stay distinct nodes")
	}
}

func TestChildIdsPrecedeParents(t *testing.T) {
	tab := NewTable()
	a := tab.Intern(Expr{Kind: ExprConst, Type: scalarFloat(), Lit: []float64{1}})
	b := tab.Intern(Expr{Kind: ExprConst, Type: scalarFloat(), Lit: []float64{2}})
	sum := tab.Intern(Expr{Kind: ExprKernel, Op: OpAdd, Type: scalarFloat(), Args: []ExprID{a, b}})
	if !(a < sum && b < sum) {
		t.Fatalf("append-only arena must give children smaller ids: %d %d %d", a, b, sum)
	}
}

func mustPanicInvariant(t *testing.T, what string, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected an invariant panic")
		}
		ie, ok := r.(*InvariantError)
		if !ok {
			t.Fatalf("panic value %T is not an InvariantError", r)
		}
		if ie.What != what {
			t.Fatalf("invariant class = %q, want %q", ie.What, what)
		}
	}()
	f()
}

func TestInternRejectsMalformedNodes(t *testing.T) {
	tab := NewTable()
	five := tab.Intern(Expr{Kind: ExprConst, Type: scalarFloat(), Lit: []float64{5}})

	mustPanicInvariant(t, "type", func() {
		tab.Intern(Expr{Kind: ExprConst, Lit: []float64{0}})
	})
	mustPanicInvariant(t, "instance", func() {
		ty := scalarFloat().WithCard(types.Cardinality{Kind: types.CardMany})
		tab.Intern(Expr{Kind: ExprIntrinsic, Op: OpSpread, Type: ty})
	})
	mustPanicInvariant(t, "arity", func() {
		tab.Intern(Expr{Kind: ExprKernel, Op: OpAdd, Type: scalarFloat(), Args: []ExprID{five}})
	})
	mustPanicInvariant(t, "child", func() {
		tab.Intern(Expr{Kind: ExprKernel, Op: OpNeg, Type: scalarFloat(), Args: []ExprID{99}})
	})
	mustPanicInvariant(t, "literal", func() {
		tab.Intern(Expr{Kind: ExprConst, Type: types.MustNew(types.PayloadVec2, types.UnitNone), Lit: []float64{1}})
	})
}

func TestProgramValidateCatchesDanglingReferences(t *testing.T) {
	tab := NewTable()
	five := tab.Intern(Expr{Kind: ExprConst, Type: scalarFloat(), Lit: []float64{5}})
	p := &Program{
		Exprs:       tab.Exprs(),
		Slots:       []SlotMeta{{Class: StorageScalar, Offset: 0, Stride: 1}},
		ScalarWords: 1,
		Steps: []Step{
			{Phase: PhaseScalar, Expr: five, Slot: 0},
			{Phase: PhaseScalar, Expr: five, Slot: 7},
		},
	}
	if err := p.Validate(); err == nil {
		t.Fatalf("dangling slot must fail validation")
	}
	p.Steps = p.Steps[:1]
	if err := p.Validate(); err != nil {
		t.Fatalf("valid program rejected: %v", err)
	}
}

func TestSealIsContentStable(t *testing.T) {
	build := func() *Program {
		tab := NewTable()
		five := tab.Intern(Expr{Kind: ExprConst, Type: scalarFloat(), Lit: []float64{5}})
		p := &Program{
			Exprs:       tab.Exprs(),
			Slots:       []SlotMeta{{Class: StorageScalar, Stride: 1}},
			ScalarWords: 1,
			Steps:       []Step{{Phase: PhaseScalar, Expr: five, Slot: 0}},
		}
		p.Seal()
		return p
	}
	a, b := build(), build()
	if a.Fingerprint != b.Fingerprint || a.Fingerprint == 0 {
		t.Fatalf("fingerprints differ for identical content: %x %x", a.Fingerprint, b.Fingerprint)
	}
}
