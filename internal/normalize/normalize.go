// Package normalize closes an author-supplied patch graph into one where
// every input has exactly one deterministic source: unfilled inputs gain
// explicit default-source blocks, implicit edge transforms become explicit
// adapter blocks, feedback cycles are validated against the stateful
// primitives, and multi-writer inputs get a reproducible ordering. The
// author's graph is never mutated; normalization produces a derived copy or
// a complete diagnostic batch.
package normalize

import (
	"fmt"

	"lumen/internal/diag"
	"lumen/internal/domain"
	"lumen/internal/patch"
	"lumen/internal/types"
)

// NoBlock marks the absence of a block reference in a Result.
const NoBlock patch.BlockID = ^patch.BlockID(0)

// Result is the normalized form lowering consumes. Blocks with ids below
// AuthorBlocks are the author's; the rest were materialized here.
type Result struct {
	Graph        *patch.Graph
	Sigs         []*patch.Signature
	AuthorBlocks int

	// Writers lists, per block and input port, the edge indices feeding
	// that port in their deterministic combine order.
	Writers [][][]int

	// Time is the single time authority, NoBlock when the patch has none.
	Time patch.BlockID

	// Sinks lists render and probe blocks in block order.
	Sinks []patch.BlockID
}

// HasTime reports whether the patch carries a time authority.
func (r *Result) HasTime() bool { return r.Time != NoBlock }

type pass struct {
	graph   *patch.Graph
	reg     *patch.Registry
	domains *domain.Registry
	bag     *diag.Bag
	sigs    []*patch.Signature
}

// Run normalizes the graph. On structural errors it returns nil after
// filling the bag; it never stops at the first defect.
func Run(g *patch.Graph, reg *patch.Registry, domains *domain.Registry, bag *diag.Bag) *Result {
	p := &pass{
		graph:   g.Clone(),
		reg:     reg,
		domains: domains,
		bag:     bag,
	}
	author := len(p.graph.Blocks)

	p.resolveSignatures()
	p.checkEdges()
	p.checkInstances()
	p.checkInputNames()
	timeBlock := p.findTimeAuthority()

	// Adapters before defaults: adapter blocks arrive fully wired, while
	// default insertion must see the final input topology.
	p.expandAdapters()
	p.fillDefaults(timeBlock != NoBlock)
	p.resolveSignatures()

	writers := p.orderWriters()
	p.checkCycles()

	var sinks []patch.BlockID
	for id := range p.graph.Blocks {
		if s := p.sigs[id]; s != nil && s.Sink {
			sinks = append(sinks, patch.BlockID(id))
		}
	}
	if len(sinks) == 0 {
		p.bag.Add(diag.NewWarning(diag.StrNoRenderSink, diag.Target{},
			"patch has no render or probe sink; nothing will be evaluated"))
	}

	if p.bag.HasErrors() {
		return nil
	}
	return &Result{
		Graph:        p.graph,
		Sigs:         p.sigs,
		AuthorBlocks: author,
		Writers:      writers,
		Time:         timeBlock,
		Sinks:        sinks,
	}
}

// resolveSignatures fills p.sigs for every block, reporting unknown kinds
// and malformed parameters. Re-run after insertion passes so materialized
// blocks get signatures too.
func (p *pass) resolveSignatures() {
	p.sigs = make([]*patch.Signature, len(p.graph.Blocks))
	for id := range p.graph.Blocks {
		b := &p.graph.Blocks[id]
		if !p.reg.Known(b.Kind) {
			p.bag.Add(diag.NewError(diag.StrUnknownBlockKind, diag.AtBlock(uint32(id)),
				fmt.Sprintf("block %q has unknown kind %q", p.graph.BlockName(patch.BlockID(id)), b.Kind)))
			continue
		}
		sig, err := p.reg.Signature(b)
		if err != nil {
			p.bag.Add(diag.NewError(diag.StrBadParam, diag.AtBlock(uint32(id)), err.Error()))
			continue
		}
		p.sigs[id] = sig
	}
}

// checkEdges validates every edge endpoint against the block signatures.
func (p *pass) checkEdges() {
	for i, e := range p.graph.Edges {
		if int(e.From.Block) >= len(p.graph.Blocks) || int(e.To.Block) >= len(p.graph.Blocks) {
			p.bag.Add(diag.NewError(diag.StrBadEdge, diag.AtEdge(uint32(i)),
				fmt.Sprintf("edge %d references a block that does not exist", i)))
			continue
		}
		from, to := p.sigs[e.From.Block], p.sigs[e.To.Block]
		if from == nil || to == nil {
			continue // already reported by resolveSignatures
		}
		if from.Out(e.From.Port) == nil {
			p.bag.Add(diag.NewError(diag.StrBadPort, diag.AtOutput(uint32(e.From.Block), uint32(e.From.Port)),
				fmt.Sprintf("block %q has no output %d", p.graph.BlockName(e.From.Block), e.From.Port)))
		}
		if to.In(e.To.Port) == nil {
			p.bag.Add(diag.NewError(diag.StrBadPort, diag.AtInput(uint32(e.To.Block), uint32(e.To.Port)),
				fmt.Sprintf("block %q has no input %d", p.graph.BlockName(e.To.Block), e.To.Port)))
		}
	}
}

// checkInstances verifies that population-scoped blocks reference declared
// populations.
func (p *pass) checkInstances() {
	for id := range p.graph.Blocks {
		b := &p.graph.Blocks[id]
		if b.Instance == types.NoInstance {
			continue
		}
		if _, ok := p.domains.Lookup(b.Instance); !ok {
			p.bag.Add(diag.NewError(diag.StrUnknownInstance, diag.AtBlock(uint32(id)),
				fmt.Sprintf("block %q references undeclared population #%d",
					p.graph.BlockName(patch.BlockID(id)), b.Instance)))
		}
	}
}

// checkInputNames rejects external inputs that reuse a name with a
// different shape. Reusing a name with the same payload, unit and
// discreteness is legal aliasing: both blocks read the same host value.
func (p *pass) checkInputNames() {
	type decl struct {
		block   int
		payload string
		unit    string
		event   bool
	}
	seen := make(map[string]decl)
	for id := range p.graph.Blocks {
		b := &p.graph.Blocks[id]
		if b.Kind != patch.KindInput && b.Kind != patch.KindTrigger {
			continue
		}
		name := b.Params.StrOr("name", "")
		if name == "" {
			continue // missing name already reported by resolveSignatures
		}
		d := decl{
			block:   id,
			payload: b.Params.StrOr("payload", "float"),
			unit:    b.Params.StrOr("unit", ""),
			event:   b.Kind == patch.KindTrigger,
		}
		prev, ok := seen[name]
		if !ok {
			seen[name] = d
			continue
		}
		if prev.payload != d.payload || prev.unit != d.unit || prev.event != d.event {
			p.bag.Add(diag.NewError(diag.StrBadParam, diag.AtBlock(uint32(id)),
				fmt.Sprintf("input %q is redeclared with a different shape", name)).
				WithNote(diag.AtBlock(uint32(prev.block)), "first declaration is here"))
		}
	}
}

// findTimeAuthority locates the single time block. Implicit clock readers
// (oscillators, stateful filters, animated defaults) require one; the time
// authority itself is never defaulted.
func (p *pass) findTimeAuthority() patch.BlockID {
	found := NoBlock
	for id := range p.graph.Blocks {
		if p.graph.Blocks[id].Kind != patch.KindTime {
			continue
		}
		if found != NoBlock {
			p.bag.Add(diag.NewError(diag.StrTimeConflict, diag.AtBlock(uint32(id)),
				"patch declares more than one time authority").
				WithNote(diag.AtBlock(uint32(found)), "first time authority is here"))
			continue
		}
		found = patch.BlockID(id)
	}
	if found == NoBlock {
		for id := range p.graph.Blocks {
			sig := blockSig(p.sigs, id)
			if sig != nil && sig.NeedsTime {
				p.bag.Add(diag.NewError(diag.StrMissingTime, diag.AtBlock(uint32(id)),
					fmt.Sprintf("block %q reads the clock but the patch has no time authority",
						p.graph.BlockName(patch.BlockID(id)))))
			}
		}
	}
	return found
}

func blockSig(sigs []*patch.Signature, id int) *patch.Signature {
	if id >= len(sigs) {
		return nil
	}
	return sigs[id]
}
