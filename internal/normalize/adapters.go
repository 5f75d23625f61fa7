package normalize

import (
	"fmt"

	"lumen/internal/diag"
	"lumen/internal/patch"
)

// adapterKinds maps an implicit edge transform to the explicit block kind
// inserted on the edge.
var adapterKinds = map[patch.TransformKind]patch.Kind{
	patch.TransformNegate:     patch.KindNeg,
	patch.TransformInvert:     patch.KindInvert,
	patch.TransformClamp01:    patch.KindClamp01,
	patch.TransformDegToRad:   patch.KindDegToRad,
	patch.TransformRadToDeg:   patch.KindRadToDeg,
	patch.TransformPhaseToRad: patch.KindPhaseToRad,
	patch.TransformMsToSec:    patch.KindMsToSec,
	patch.TransformSecToMs:    patch.KindSecToMs,
}

// expandAdapters rewrites every edge carrying an implicit transform into
// source → adapter → target, so the compiled graph contains no hidden
// conversion. The ordering key stays on the adapter→target edge; combine
// order is unaffected.
func (p *pass) expandAdapters() {
	n := len(p.graph.Edges)
	for i := 0; i < n; i++ {
		e := p.graph.Edges[i]
		if e.Transform == patch.TransformNone {
			continue
		}
		kind, ok := adapterKinds[e.Transform]
		if !ok {
			p.bag.Add(diag.NewError(diag.StrAdapterUnsupported, diag.AtEdge(uint32(i)),
				fmt.Sprintf("no adapter block exists for transform %q", e.Transform)))
			continue
		}
		id := p.graph.AddBlock(patch.Block{
			Kind:  kind,
			Label: fmt.Sprintf("%s@edge%d", kind, i),
		})
		p.graph.Edges[i] = patch.Edge{
			From: e.From,
			To:   patch.PortRef{Block: id, Port: 0},
		}
		p.graph.Edges = append(p.graph.Edges, patch.Edge{
			From:  patch.PortRef{Block: id, Port: 0},
			To:    e.To,
			Order: e.Order,
		})
	}
}
