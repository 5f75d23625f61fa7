package normalize

import (
	"fmt"

	"lumen/internal/diag"
	"lumen/internal/patch"
	"lumen/internal/types"
)

// defaultSource builds the default block for one unfilled input of the
// given payload kind. Defaults favor meaningful animated values over zero:
// a float becomes a slow sine when the patch carries a time authority, a
// color becomes neutral gray, a projection becomes identity. Each default
// is a single self-contained source block.
func defaultSource(payload types.Payload, animated bool) (patch.Block, bool) {
	switch payload {
	case types.PayloadFloat:
		if animated {
			return patch.Block{Kind: patch.KindWave, Params: patch.Params{
				"rate": patch.Float(0.1),
				"lo":   patch.Float(0),
				"hi":   patch.Float(1),
			}}, true
		}
		return constBlock(patch.Float(0)), true
	case types.PayloadInt:
		return constBlock(patch.Int(0)), true
	case types.PayloadBool:
		return constBlock(patch.Bool(false)), true
	case types.PayloadVec2:
		return constBlock(patch.Vec2(0, 0)), true
	case types.PayloadVec3:
		return constBlock(patch.Vec3(0, 0, 0)), true
	case types.PayloadColor:
		return constBlock(patch.Color(0.5, 0.5, 0.5, 1)), true
	case types.PayloadProjection:
		return patch.Block{Kind: patch.KindProjection}, true
	case types.PayloadShape:
		return patch.Block{Kind: patch.KindShape, Params: patch.Params{
			"topology": patch.Str("quad"),
		}}, true
	default:
		return patch.Block{}, false
	}
}

func constBlock(v patch.ParamValue) patch.Block {
	return patch.Block{Kind: patch.KindConst, Params: patch.Params{"value": v}}
}

// fillDefaults materializes one explicit default-source block per
// unconnected input. Inputs whose pattern cannot be defaulted (per-lane
// inputs with no population to range over) are reported as unfillable.
func (p *pass) fillDefaults(hasTime bool) {
	fed := make(map[patch.PortRef]bool, len(p.graph.Edges))
	for _, e := range p.graph.Edges {
		fed[e.To] = true
	}

	nblocks := len(p.graph.Blocks)
	for id := 0; id < nblocks; id++ {
		sig := blockSig(p.sigs, id)
		if sig == nil {
			continue
		}
		for port := range sig.Inputs {
			ref := patch.PortRef{Block: patch.BlockID(id), Port: patch.PortIdx(port)}
			if fed[ref] {
				continue
			}
			ps := &sig.Inputs[port]
			p.fillOne(ref, ps, hasTime)
		}
	}
}

func (p *pass) fillOne(ref patch.PortRef, ps *patch.PortSig, hasTime bool) {
	target := diag.AtInput(uint32(ref.Block), uint32(ref.Port))
	name := fmt.Sprintf("%s.%s", p.graph.BlockName(ref.Block), ps.Name)

	// A port pinned to many cardinality has no meaningful default: there
	// is no population to spread a constant over.
	if ps.Pat.Card.Tag == types.TagBound && ps.Pat.Card.Val == types.CardMany {
		p.bag.Add(diag.NewError(diag.StrUnfillableInput, target,
			fmt.Sprintf("input %s expects a field and cannot be filled with a default", name)))
		return
	}

	// Discrete inputs default to a trigger that never fires.
	if ps.Pat.Time.Tag == types.TagBound && ps.Pat.Time.Val == types.Discrete {
		id := p.graph.AddBlock(patch.Block{
			Kind:   patch.KindTrigger,
			Label:  fmt.Sprintf("default@%s", name),
			Params: patch.Params{"name": patch.Str(fmt.Sprintf("__default_%d_%d", ref.Block, ref.Port))},
		})
		p.graph.Connect(id, 0, ref.Block, ref.Port)
		return
	}

	payload := types.PayloadFloat
	if ps.Pat.Payload.Tag == types.TagBound {
		payload = ps.Pat.Payload.Val
	}
	blk, ok := defaultSource(payload, hasTime)
	if !ok {
		p.bag.Add(diag.NewError(diag.StrUnfillableInput, target,
			fmt.Sprintf("input %s has payload %s with no default source", name, payload)))
		return
	}
	blk.Label = fmt.Sprintf("default@%s", name)
	id := p.graph.AddBlock(blk)
	p.graph.Connect(id, 0, ref.Block, ref.Port)
}
