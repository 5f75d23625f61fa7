package lower

import (
	"lumen/internal/ir"
	"lumen/internal/patch"
	"lumen/internal/types"
)

// renderParams maps render input ports to sink parameter names, skipping
// the topology port which is resolved at compile time.
var renderParams = []struct {
	name string
	port patch.PortIdx
}{
	{"position", 1},
	{"size", 2},
	{"rotation", 3},
	{"color", 4},
	{"view", 5},
}

func (c *ctx) buildSinks() {
	for _, b := range c.n.Sinks {
		blk := &c.n.Graph.Blocks[b]
		switch blk.Kind {
		case patch.KindRender:
			c.buildRender(b, blk)
		case patch.KindProbe:
			c.buildProbe(b, blk)
		default:
			fail("type", "block kind %s is not a sink", blk.Kind)
		}
	}
}

// buildRender lowers one render sink. The topology input must collapse to
// a shape reference at compile time; everything else evaluates per frame.
func (c *ctx) buildRender(b patch.BlockID, blk *patch.Block) {
	topoExpr := c.inputExpr(b, 0)
	te := c.tab.MustLookup(topoExpr)
	if te.Kind != ir.ExprShape {
		fail("child", "render topology resolved to a %s node", te.Kind)
	}
	blend := ir.BlendAlpha
	if blk.Params.StrOr("blend", "alpha") == "add" {
		blend = ir.BlendAdd
	}
	sb := sinkBuild{
		kind:  ir.SinkRender,
		name:  c.n.Graph.BlockName(b),
		blend: blend,
		topo:  ir.TopologyID(te.Ref),
		inst:  types.NoInstance,
	}
	for _, rp := range renderParams {
		e := c.inputExpr(b, rp.port)
		sb.params = append(sb.params, sinkParam{name: rp.name, expr: e})
		t := c.tab.MustLookup(e).Type
		if t.Extent.Card.Kind == types.CardMany && sb.inst == types.NoInstance {
			sb.inst = t.Extent.Card.Instance
		}
	}
	c.sinks = append(c.sinks, sb)
}

// buildProbe lowers one named debug sink recording a single value.
func (c *ctx) buildProbe(b patch.BlockID, blk *patch.Block) {
	e := c.inputExpr(b, 0)
	name := blk.Params.StrOr("name", "")
	if name == "" {
		name = c.n.Graph.BlockName(b)
	}
	inst := types.NoInstance
	if t := c.tab.MustLookup(e).Type; t.Extent.Card.Kind == types.CardMany {
		inst = t.Extent.Card.Instance
	}
	c.sinks = append(c.sinks, sinkBuild{
		kind:   ir.SinkProbe,
		name:   name,
		inst:   inst,
		params: []sinkParam{{name: "x", expr: e}},
	})
}
