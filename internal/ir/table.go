package ir

import (
	"encoding/binary"
	"math"

	"fortio.org/safecast"

	"lumen/internal/types"
)

// Table is the append-only arena of expressions with hash-consing: interning
// a node whose structural content (kind, op, type, children, literal, ref)
// matches an existing node returns the existing id. This is an invariant the
// executor's per-node caches depend on, not an optimization.
type Table struct {
	exprs []Expr
	index map[string]ExprID
}

// NewTable returns a table with index 0 reserved as the invalid sentinel.
func NewTable() *Table {
	t := &Table{
		exprs: make([]Expr, 1, 64),
		index: make(map[string]ExprID, 64),
	}
	t.exprs[0] = Expr{Kind: ExprInvalid}
	return t
}

// Len returns the number of nodes including the sentinel.
func (t *Table) Len() int { return len(t.exprs) }

// Exprs returns the backing node slice. Callers must not modify it.
func (t *Table) Exprs() []Expr { return t.exprs }

// Lookup returns the node for an id.
func (t *Table) Lookup(id ExprID) (Expr, bool) {
	if id == NoExpr || int(id) >= len(t.exprs) {
		return Expr{}, false
	}
	return t.exprs[id], true
}

// MustLookup panics when id is invalid.
func (t *Table) MustLookup(id ExprID) Expr {
	e, ok := t.Lookup(id)
	if !ok {
		invariant("child", "expression id %d out of range", id)
	}
	return e
}

// Intern validates the node and returns its id, reusing an existing node on
// a structural match. Validation failures are contract breaches of the
// caller (the solver or lowering), raised as InvariantError panics.
func (t *Table) Intern(e Expr) ExprID {
	t.check(e)
	key := t.key(e)
	if id, ok := t.index[key]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(t.exprs))
	if err != nil {
		invariant("child", "expression table overflow: %v", err)
	}
	id := ExprID(n)
	t.exprs = append(t.exprs, e)
	t.index[key] = id
	return id
}

// check enforces construction invariants. The type carried by e is
// statically fully instantiated (types.Type cannot hold a solver tag), so
// the checks left are payload validity, population presence on many
// cardinality, arity, child range and literal shape.
func (t *Table) check(e Expr) {
	if !e.Type.Valid() {
		invariant("type", "%s node with invalid type %s", e.Kind, e.Type)
	}
	if e.Type.Extent.Card.Kind == types.CardMany && e.Type.Extent.Card.Instance == types.NoInstance {
		invariant("instance", "%s node is many-cardinality with no population", e.Kind)
	}
	for _, a := range e.Args {
		if a == NoExpr || int(a) >= len(t.exprs) {
			invariant("child", "%s node references expression %d of %d", e.Kind, a, len(t.exprs))
		}
	}
	switch e.Kind {
	case ExprConst:
		if len(e.Args) != 0 {
			invariant("arity", "const with %d children", len(e.Args))
		}
		if len(e.Lit) != e.Type.Stride() {
			invariant("literal", "const %s literal has %d scalars, stride is %d",
				e.Type, len(e.Lit), e.Type.Stride())
		}
	case ExprKernel:
		want, ok := opArity[e.Op]
		if !ok {
			invariant("arity", "kernel with unknown op %s", e.Op)
		}
		if len(e.Args) != want {
			invariant("arity", "kernel %s with %d children, want %d", e.Op, len(e.Args), want)
		}
	case ExprIntrinsic:
		if e.Op != OpSpread && e.Op != OpLaneIndex && e.Op != OpLaneRandom {
			invariant("arity", "intrinsic with op %s", e.Op)
		}
		if types.InstanceID(e.Ref) == types.NoInstance {
			invariant("instance", "intrinsic %s with no population", e.Op)
		}
	case ExprTime:
		if e.Op != OpTimeSeconds && e.Op != OpTimeDelta && e.Op != OpTimeFrame {
			invariant("arity", "time read with op %s", e.Op)
		}
	case ExprEvent:
		if e.Op != OpPulse && e.Op != OpWrap {
			invariant("arity", "event with op %s", e.Op)
		}
	case ExprEventRead:
		if e.Op != OpEventFired && e.Op != OpEventValue {
			invariant("arity", "event read with op %s", e.Op)
		}
		if len(e.Args) != 1 {
			invariant("arity", "event read with %d children", len(e.Args))
		}
		// External triggers arrive as event-flagged inputs, so both event
		// sources and inputs are readable.
		if child := t.exprs[e.Args[0]]; child.Kind != ExprEvent && child.Kind != ExprInput {
			invariant("child", "event read of a %s node", child.Kind)
		}
	case ExprInput, ExprStateRead, ExprShape, ExprSlotRead:
		if len(e.Args) != 0 {
			invariant("arity", "%s with %d children", e.Kind, len(e.Args))
		}
	default:
		invariant("type", "interning node of kind %s", e.Kind)
	}
}

// key builds the structural identity of a node. Two nodes with the same key
// are the same node.
func (t *Table) key(e Expr) string {
	buf := make([]byte, 0, 24+8*len(e.Args)+8*len(e.Lit))
	buf = append(buf, byte(e.Kind), byte(e.Op))
	buf = append(buf, byte(e.Type.Payload), byte(e.Type.Unit))
	buf = append(buf, byte(e.Type.Extent.Card.Kind), byte(e.Type.Extent.Time), byte(e.Type.Extent.Bind.Kind))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(e.Type.Extent.Card.Instance))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(e.Type.Extent.Bind.Entity))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(e.Type.Extent.View))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(e.Type.Extent.Branch))
	buf = binary.LittleEndian.AppendUint32(buf, e.Ref)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.Args)))
	for _, a := range e.Args {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(a))
	}
	for _, l := range e.Lit {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(l))
	}
	return string(buf)
}
