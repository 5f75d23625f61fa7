package types

import "fmt"

// InstanceID names a registered population. Zero means no population.
type InstanceID uint32

// NoInstance marks the absence of a population reference.
const NoInstance InstanceID = 0

// CardKind is the resolved cardinality of a value.
type CardKind uint8

const (
	CardZero CardKind = iota // compile-time constant
	CardOne                  // one value per frame
	CardMany                 // one value per lane of a population
)

func (k CardKind) String() string {
	switch k {
	case CardZero:
		return "zero"
	case CardOne:
		return "one"
	case CardMany:
		return "many"
	default:
		return "card?"
	}
}

// Cardinality carries the resolved cardinality axis. Instance is set only
// when Kind is CardMany.
type Cardinality struct {
	Kind     CardKind
	Instance InstanceID
}

// Zero returns the constant cardinality.
func Zero() Cardinality { return Cardinality{Kind: CardZero} }

// One returns the per-frame cardinality.
func One() Cardinality { return Cardinality{Kind: CardOne} }

// Many returns the per-lane cardinality over the given population.
func Many(inst InstanceID) Cardinality {
	return Cardinality{Kind: CardMany, Instance: inst}
}

func (c Cardinality) String() string {
	if c.Kind == CardMany {
		return fmt.Sprintf("many(#%d)", c.Instance)
	}
	return c.Kind.String()
}

// Temporality is the resolved temporality axis.
type Temporality uint8

const (
	Continuous Temporality = iota
	Discrete
)

func (t Temporality) String() string {
	if t == Discrete {
		return "discrete"
	}
	return "continuous"
}

// BindKind is the strength of the binding axis.
type BindKind uint8

const (
	BindNone BindKind = iota
	BindWeak
	BindStrong
	BindIdentity
)

func (k BindKind) String() string {
	switch k {
	case BindNone:
		return "unbound"
	case BindWeak:
		return "weak"
	case BindStrong:
		return "strong"
	case BindIdentity:
		return "identity"
	default:
		return "bind?"
	}
}

// EntityID names a bound entity. Zero is reserved for the unbound case.
type EntityID uint32

// Binding carries the resolved binding axis.
type Binding struct {
	Kind   BindKind
	Entity EntityID
}

// Unbound returns the default binding.
func Unbound() Binding { return Binding{} }

// Bound returns a binding of the given strength to an entity.
func Bound(kind BindKind, entity EntityID) Binding {
	return Binding{Kind: kind, Entity: entity}
}

func (b Binding) String() string {
	if b.Kind == BindNone {
		return "unbound"
	}
	return fmt.Sprintf("%s(@%d)", b.Kind, b.Entity)
}

// Perspective is the resolved perspective axis. PerspectiveWorld is the
// shared view every value lives in unless a block narrows it.
type Perspective uint32

const PerspectiveWorld Perspective = 0

func (p Perspective) String() string {
	if p == PerspectiveWorld {
		return "world"
	}
	return fmt.Sprintf("view(%d)", uint32(p))
}

// Branch is the resolved branch axis. BranchMain is the primary timeline.
type Branch uint32

const BranchMain Branch = 0

func (b Branch) String() string {
	if b == BranchMain {
		return "main"
	}
	return fmt.Sprintf("branch(%d)", uint32(b))
}

// Extent locates a value on all five axes. Every Extent held by a Type is
// fully instantiated; unresolved axes exist only as patterns in the solver.
type Extent struct {
	Card   Cardinality
	Time   Temporality
	Bind   Binding
	View   Perspective
	Branch Branch
}

// SignalExtent is the canonical default extent: one value per frame,
// continuous, unbound, world view, main branch.
func SignalExtent() Extent {
	return Extent{Card: One()}
}

// FieldExtent is the per-lane continuous extent over a population.
func FieldExtent(inst InstanceID) Extent {
	return Extent{Card: Many(inst)}
}

func (e Extent) String() string {
	s := e.Card.String() + "/" + e.Time.String()
	if e.Bind.Kind != BindNone {
		s += "/" + e.Bind.String()
	}
	if e.View != PerspectiveWorld {
		s += "/" + e.View.String()
	}
	if e.Branch != BranchMain {
		s += "/" + e.Branch.String()
	}
	return s
}
