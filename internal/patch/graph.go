// Package patch models the author-facing dataflow graph: blocks with typed
// ports, edges between them, and the signature registry describing every
// block kind. The graph arrives from an external authoring layer; the core
// reads it, never mutates it, and never branches on the opaque role
// metadata blocks may carry.
package patch

import (
	"fmt"

	"lumen/internal/types"
)

// BlockID indexes a block inside its graph.
type BlockID uint32

// PortIdx indexes a port within a block signature; inputs and outputs are
// numbered independently.
type PortIdx uint32

// PortRef names one side of an edge.
type PortRef struct {
	Block BlockID
	Port  PortIdx
}

func (p PortRef) String() string {
	return fmt.Sprintf("%d.%d", p.Block, p.Port)
}

// TransformKind is an implicit value transform attached to an edge by the
// authoring layer. The normalizer expands every transform into an explicit
// inserted block so the compiled graph has no hidden conversions.
type TransformKind uint8

const (
	TransformNone TransformKind = iota
	TransformNegate
	TransformInvert // 1 - x
	TransformClamp01
	TransformDegToRad
	TransformRadToDeg
	TransformPhaseToRad
	TransformMsToSec
	TransformSecToMs
)

func (t TransformKind) String() string {
	switch t {
	case TransformNone:
		return "none"
	case TransformNegate:
		return "negate"
	case TransformInvert:
		return "invert"
	case TransformClamp01:
		return "clamp01"
	case TransformDegToRad:
		return "deg-to-rad"
	case TransformRadToDeg:
		return "rad-to-deg"
	case TransformPhaseToRad:
		return "phase-to-rad"
	case TransformMsToSec:
		return "ms-to-sec"
	case TransformSecToMs:
		return "sec-to-ms"
	default:
		return "transform?"
	}
}

// Edge connects a block output to a block input. Order is the author's
// explicit ordering key among multiple writers to the same input; ties are
// broken by edge index so combining stays reproducible.
type Edge struct {
	From      PortRef
	To        PortRef
	Order     int
	Transform TransformKind
}

// Block is one node of the patch. Role is opaque metadata owned by the
// editing surface. Instance binds population-scoped blocks to a declared
// population.
type Block struct {
	Kind     Kind
	Label    string
	Role     string
	Params   Params
	Instance types.InstanceID
}

// Graph is the author-supplied patch: blocks plus edges. Block ids are
// indices into Blocks, edge ids indices into Edges.
type Graph struct {
	Blocks []Block
	Edges  []Edge
}

// Add appends a block and returns its id.
func (g *Graph) Add(kind Kind, params Params) BlockID {
	return g.AddBlock(Block{Kind: kind, Params: params})
}

// AddBlock appends a fully-specified block and returns its id.
func (g *Graph) AddBlock(b Block) BlockID {
	g.Blocks = append(g.Blocks, b)
	return BlockID(len(g.Blocks) - 1)
}

// Connect adds an edge from an output port to an input port and returns
// the edge index.
func (g *Graph) Connect(from BlockID, out PortIdx, to BlockID, in PortIdx) int {
	return g.ConnectVia(from, out, to, in, TransformNone)
}

// ConnectVia adds an edge carrying an implicit transform.
func (g *Graph) ConnectVia(from BlockID, out PortIdx, to BlockID, in PortIdx, tr TransformKind) int {
	g.Edges = append(g.Edges, Edge{
		From:      PortRef{Block: from, Port: out},
		To:        PortRef{Block: to, Port: in},
		Transform: tr,
	})
	return len(g.Edges) - 1
}

// Clone returns a deep copy. The normalizer works on a clone so the
// author's graph is never mutated.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Blocks: make([]Block, len(g.Blocks)),
		Edges:  make([]Edge, len(g.Edges)),
	}
	copy(out.Edges, g.Edges)
	for i, b := range g.Blocks {
		nb := b
		if b.Params != nil {
			nb.Params = make(Params, len(b.Params))
			for k, v := range b.Params {
				nb.Params[k] = v
			}
		}
		out.Blocks[i] = nb
	}
	return out
}

// BlockName returns a stable human-readable name for diagnostics: the
// author label when present, otherwise the kind.
func (g *Graph) BlockName(id BlockID) string {
	if int(id) >= len(g.Blocks) {
		return fmt.Sprintf("block#%d", id)
	}
	b := g.Blocks[id]
	if b.Label != "" {
		return b.Label
	}
	return b.Kind.String()
}
