package types

import "fmt"

// TagKind states how far a single type dimension has been pinned down
// during inference. Tags exist only in patterns; a Type never carries one.
type TagKind uint8

const (
	TagDefault TagKind = iota // nothing constrains the dimension yet
	TagBound                  // the dimension has a concrete value
	TagVar                    // the dimension is an inference variable
)

func (k TagKind) String() string {
	switch k {
	case TagDefault:
		return "default"
	case TagBound:
		return "bound"
	case TagVar:
		return "var"
	default:
		return "tag?"
	}
}

// VarID identifies an inference variable. Block signatures use small local
// ids which the solver rebases into a global space per block instance.
type VarID uint32

// Term is one dimension of an inference-time type: a tag plus either a
// concrete value or a variable. Terms never survive solving; lowering only
// accepts the resolved Type.
type Term[T comparable] struct {
	Tag TagKind
	Val T
	Var VarID
}

// DefaultTerm returns the unconstrained term.
func DefaultTerm[T comparable]() Term[T] { return Term[T]{} }

// BoundTerm returns a term pinned to a concrete value.
func BoundTerm[T comparable](v T) Term[T] { return Term[T]{Tag: TagBound, Val: v} }

// VarTerm returns a term referencing an inference variable.
func VarTerm[T comparable](id VarID) Term[T] { return Term[T]{Tag: TagVar, Var: id} }

// Merge combines two var-free terms for the same dimension:
//
//	default ⊔ default  = default
//	default ⊔ bound(x) = bound(x)
//	bound(x) ⊔ bound(x) = bound(x)
//	bound(x) ⊔ bound(y) = error when x ≠ y (never coerced)
//
// The operation is commutative and associative. Variables must be
// substituted away before merging; a TagVar operand is a solver bug.
func Merge[T comparable](a, b Term[T]) (Term[T], bool) {
	if a.Tag == TagVar || b.Tag == TagVar {
		panic("types: Merge on unsubstituted variable")
	}
	if a.Tag == TagDefault {
		return b, true
	}
	if b.Tag == TagDefault {
		return a, true
	}
	if a.Val != b.Val {
		return Term[T]{}, false
	}
	return a, true
}

// Pattern is the inference-time shape of a port: every dimension of a
// canonical type as a separately-taggable term. The cardinality kind and
// the population it may reference are distinct dimensions so that instance
// identity unifies exactly like any other equality variable.
type Pattern struct {
	Payload Term[Payload]
	Unit    Term[Unit]
	Card    Term[CardKind]
	Inst    Term[InstanceID]
	Time    Term[Temporality]
	Bind    Term[Binding]
	View    Term[Perspective]
	Branch  Term[Branch]
}

// Exact returns the pattern every dimension of which is bound to t.
func Exact(t Type) Pattern {
	p := Pattern{
		Payload: BoundTerm(t.Payload),
		Unit:    BoundTerm(t.Unit),
		Card:    BoundTerm(t.Extent.Card.Kind),
		Time:    BoundTerm(t.Extent.Time),
		Bind:    BoundTerm(t.Extent.Bind),
		View:    BoundTerm(t.Extent.View),
		Branch:  BoundTerm(t.Extent.Branch),
	}
	if t.Extent.Card.Kind == CardMany {
		p.Inst = BoundTerm(t.Extent.Card.Instance)
	}
	return p
}

// Resolve turns a var-free pattern into a canonical type, applying the
// canonical defaults for dimensions still tagged default: float payload,
// plain unit, one value per frame, continuous, unbound, world view, main
// branch. A surviving variable is a solver bug; a many cardinality with no
// resolved population is a type error because no default population exists.
func (p Pattern) Resolve() (Type, error) {
	for _, tag := range []TagKind{
		p.Payload.Tag, p.Unit.Tag, p.Card.Tag, p.Inst.Tag,
		p.Time.Tag, p.Bind.Tag, p.View.Tag, p.Branch.Tag,
	} {
		if tag == TagVar {
			panic("types: Resolve on unsubstituted variable")
		}
	}

	payload := PayloadFloat
	if p.Payload.Tag == TagBound {
		payload = p.Payload.Val
	}
	unit := UnitNone
	if p.Unit.Tag == TagBound {
		unit = p.Unit.Val
	}
	t, err := New(payload, unit)
	if err != nil {
		return Type{}, err
	}

	card := CardOne
	if p.Card.Tag == TagBound {
		card = p.Card.Val
	}
	switch card {
	case CardMany:
		if p.Inst.Tag != TagBound || p.Inst.Val == NoInstance {
			return Type{}, fmt.Errorf("types: many cardinality with no population")
		}
		t.Extent.Card = Many(p.Inst.Val)
	case CardZero:
		t.Extent.Card = Zero()
	default:
		t.Extent.Card = One()
	}

	if p.Time.Tag == TagBound {
		t.Extent.Time = p.Time.Val
	}
	if p.Bind.Tag == TagBound {
		t.Extent.Bind = p.Bind.Val
	}
	if p.View.Tag == TagBound {
		t.Extent.View = p.View.Val
	}
	if p.Branch.Tag == TagBound {
		t.Extent.Branch = p.Branch.Val
	}
	return t, nil
}

// MaxLocalVar returns the highest local variable id used by the pattern
// plus one, or zero when the pattern is var-free. The solver uses it to
// size the rebasing table for a block signature.
func (p Pattern) MaxLocalVar() VarID {
	max := VarID(0)
	bump := func(tag TagKind, v VarID) {
		if tag == TagVar && v+1 > max {
			max = v + 1
		}
	}
	bump(p.Payload.Tag, p.Payload.Var)
	bump(p.Unit.Tag, p.Unit.Var)
	bump(p.Card.Tag, p.Card.Var)
	bump(p.Inst.Tag, p.Inst.Var)
	bump(p.Time.Tag, p.Time.Var)
	bump(p.Bind.Tag, p.Bind.Var)
	bump(p.View.Tag, p.View.Var)
	bump(p.Branch.Tag, p.Branch.Var)
	return max
}
