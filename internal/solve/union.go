package solve

import (
	"lumen/internal/diag"
	"lumen/internal/types"
)

// axis identifies which type dimension a cell constrains. Cardinality and
// population never enter the union-find: they flow through the join
// lattice in cards.go, because a signal broadcasting over a field is not
// an equality.
type axis uint8

const (
	axPayload axis = iota
	axUnit
	axTime
	axBind
	axView
	axBranch
	axCount
)

func (a axis) String() string {
	switch a {
	case axPayload:
		return "payload"
	case axUnit:
		return "unit"
	case axTime:
		return "temporality"
	case axBind:
		return "binding"
	case axView:
		return "perspective"
	case axBranch:
		return "branch"
	default:
		return "axis?"
	}
}

func (a axis) code() diag.Code {
	switch a {
	case axPayload:
		return diag.TypPayloadMismatch
	case axUnit:
		return diag.TypUnitMismatch
	case axTime:
		return diag.TypTimeMismatch
	case axBind:
		return diag.TypBindMismatch
	case axView:
		return diag.TypViewMismatch
	case axBranch:
		return diag.TypBranchMismatch
	default:
		return diag.TypInfo
	}
}

// describe renders an encoded axis value for diagnostics.
func (a axis) describe(v uint64) string {
	switch a {
	case axPayload:
		return types.Payload(v).String()
	case axUnit:
		return types.Unit(v).String()
	case axTime:
		return types.Temporality(v).String()
	case axBind:
		return decodeBind(v).String()
	case axView:
		return types.Perspective(v).String()
	case axBranch:
		return types.Branch(v).String()
	default:
		return "?"
	}
}

func encodeBind(b types.Binding) uint64 {
	return uint64(b.Kind)<<32 | uint64(b.Entity)
}

func decodeBind(v uint64) types.Binding {
	return types.Binding{
		Kind:   types.BindKind(v >> 32),
		Entity: types.EntityID(v & 0xffffffff),
	}
}

// cell indexes the union-find arena.
type cell int32

const noCell cell = -1

// conflict describes a failed merge: two classes pinned to different
// values, with the port that pinned each side.
type conflict struct {
	ax    axis
	a, b  uint64
	siteA diag.Target
	siteB diag.Target
}

// cells is a union-find arena over inference cells. Each class optionally
// carries a binding: the concrete axis value plus the target that pinned
// it, kept so a later conflict can point at both origins.
type cells struct {
	parent []cell
	rank   []uint8
	bound  []bool
	val    []uint64
	site   []diag.Target
	ax     []axis
}

func newCells() *cells {
	return &cells{}
}

// fresh allocates an unbound cell.
func (c *cells) fresh(a axis) cell {
	id := cell(len(c.parent))
	c.parent = append(c.parent, id)
	c.rank = append(c.rank, 0)
	c.bound = append(c.bound, false)
	c.val = append(c.val, 0)
	c.site = append(c.site, diag.Target{})
	c.ax = append(c.ax, a)
	return id
}

// freshBound allocates a cell already pinned to a value.
func (c *cells) freshBound(a axis, v uint64, site diag.Target) cell {
	id := c.fresh(a)
	c.bound[id] = true
	c.val[id] = v
	c.site[id] = site
	return id
}

// find returns the class root, compressing paths by halving.
func (c *cells) find(x cell) cell {
	for c.parent[x] != x {
		c.parent[x] = c.parent[c.parent[x]]
		x = c.parent[x]
	}
	return x
}

// value returns the pinned value of x's class.
func (c *cells) value(x cell) (uint64, bool) {
	r := c.find(x)
	return c.val[r], c.bound[r]
}

// union merges two classes. A nil return means success; otherwise both
// classes were pinned to different values and stay unmerged.
func (c *cells) union(x, y cell) *conflict {
	rx, ry := c.find(x), c.find(y)
	if rx == ry {
		return nil
	}
	if c.bound[rx] && c.bound[ry] && c.val[rx] != c.val[ry] {
		return &conflict{
			ax: c.ax[rx],
			a:  c.val[rx], siteA: c.site[rx],
			b: c.val[ry], siteB: c.site[ry],
		}
	}
	if c.rank[rx] < c.rank[ry] {
		rx, ry = ry, rx
	}
	if c.rank[rx] == c.rank[ry] {
		c.rank[rx]++
	}
	c.parent[ry] = rx
	if !c.bound[rx] && c.bound[ry] {
		c.bound[rx] = true
		c.val[rx] = c.val[ry]
		c.site[rx] = c.site[ry]
	}
	return nil
}

// bind pins a class to a concrete value.
func (c *cells) bind(x cell, v uint64, site diag.Target) *conflict {
	r := c.find(x)
	if c.bound[r] {
		if c.val[r] != v {
			return &conflict{
				ax: c.ax[r],
				a:  c.val[r], siteA: c.site[r],
				b: v, siteB: site,
			}
		}
		return nil
	}
	c.bound[r] = true
	c.val[r] = v
	c.site[r] = site
	return nil
}
