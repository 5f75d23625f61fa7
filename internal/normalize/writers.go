package normalize

import (
	"fmt"
	"sort"

	"lumen/internal/diag"
	"lumen/internal/patch"
)

// orderWriters groups edges by target input and assigns every multi-writer
// input its deterministic combine order: the author's explicit Order key
// first, edge index as the tiebreak. The rank is written back onto the
// normalized edges so the ordering is explicit data, not a convention.
func (p *pass) orderWriters() [][][]int {
	writers := make([][][]int, len(p.graph.Blocks))
	for id := range p.graph.Blocks {
		sig := blockSig(p.sigs, id)
		if sig == nil {
			writers[id] = make([][]int, 0)
			continue
		}
		writers[id] = make([][]int, len(sig.Inputs))
	}

	for i, e := range p.graph.Edges {
		b := int(e.To.Block)
		if b >= len(writers) || int(e.To.Port) >= len(writers[b]) {
			continue // invalid edges were reported in checkEdges
		}
		writers[b][e.To.Port] = append(writers[b][e.To.Port], i)
	}

	for b := range writers {
		sig := blockSig(p.sigs, b)
		for port, edges := range writers[b] {
			if len(edges) < 2 {
				continue
			}
			sort.SliceStable(edges, func(i, j int) bool {
				ei, ej := p.graph.Edges[edges[i]], p.graph.Edges[edges[j]]
				if ei.Order != ej.Order {
					return ei.Order < ej.Order
				}
				return edges[i] < edges[j]
			})
			for rank, idx := range edges {
				p.graph.Edges[idx].Order = rank
			}
			if sig != nil && sig.Inputs[port].Combine == patch.CombineNone {
				d := diag.NewError(diag.StrDuplicateWriter,
					diag.AtInput(uint32(b), uint32(port)),
					fmt.Sprintf("input %s.%s does not combine, but %d edges write it",
						p.graph.BlockName(patch.BlockID(b)), sig.Inputs[port].Name, len(edges)))
				for _, idx := range edges[1:] {
					d = d.WithNote(diag.AtEdge(uint32(idx)), "conflicting writer")
				}
				p.bag.Add(d)
			}
		}
	}
	return writers
}
