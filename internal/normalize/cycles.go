package normalize

import (
	"fmt"
	"sort"
	"strings"

	"lumen/internal/diag"
	"lumen/internal/patch"
)

// checkCycles validates feedback. A strongly connected component of more
// than one block, or a block feeding itself, is legal only when at least
// one member is a stateful primitive: state splits the loop into a read of
// the previous frame and a write at the end of the current one. A cycle of
// pure kernels has no consistent evaluation order and is rejected, naming
// every member so the author sees the whole loop, not one edge of it.
func (p *pass) checkCycles() {
	n := len(p.graph.Blocks)
	adj := make([][]int, n)
	for _, e := range p.graph.Edges {
		f, t := int(e.From.Block), int(e.To.Block)
		if f >= n || t >= n {
			continue
		}
		adj[f] = append(adj[f], t)
	}

	for _, scc := range tarjan(adj) {
		if len(scc) == 1 && !selfLoop(scc[0], adj) {
			continue
		}
		if p.cycleHasState(scc) {
			continue
		}
		sort.Ints(scc)
		names := make([]string, len(scc))
		for i, b := range scc {
			names[i] = p.graph.BlockName(patch.BlockID(b))
		}
		d := diag.NewError(diag.StrInvalidCycle, diag.AtBlock(uint32(scc[0])),
			fmt.Sprintf("feedback cycle %s has no stateful block; insert a delay, slew, phasor or latch",
				strings.Join(names, " -> ")))
		for _, b := range scc[1:] {
			d = d.WithNote(diag.AtBlock(uint32(b)), "part of the same cycle")
		}
		p.bag.Add(d)
	}
}

func (p *pass) cycleHasState(scc []int) bool {
	for _, b := range scc {
		if sig := blockSig(p.sigs, b); sig != nil && sig.Stateful {
			return true
		}
	}
	return false
}

func selfLoop(v int, adj [][]int) bool {
	for _, w := range adj[v] {
		if w == v {
			return true
		}
	}
	return false
}

// tarjan returns the strongly connected components of a dense graph. The
// traversal keeps its own frame stack so pathological patch depth cannot
// overflow the goroutine stack.
func tarjan(adj [][]int) [][]int {
	n := len(adj)
	const unvisited = -1
	var (
		index   = make([]int, n)
		lowlink = make([]int, n)
		onStack = make([]bool, n)
		stack   []int
		next    int
		sccs    [][]int
	)
	for i := range index {
		index[i] = unvisited
	}

	type frame struct {
		v, ei int
	}

	for root := 0; root < n; root++ {
		if index[root] != unvisited {
			continue
		}
		frames := []frame{{v: root}}
		for len(frames) > 0 {
			fr := &frames[len(frames)-1]
			v := fr.v
			if fr.ei == 0 {
				index[v] = next
				lowlink[v] = next
				next++
				stack = append(stack, v)
				onStack[v] = true
			}
			advanced := false
			for fr.ei < len(adj[v]) {
				w := adj[v][fr.ei]
				fr.ei++
				if index[w] == unvisited {
					frames = append(frames, frame{v: w})
					advanced = true
					break
				}
				if onStack[w] {
					lowlink[v] = min(lowlink[v], index[w])
				}
			}
			if advanced {
				continue
			}
			if lowlink[v] == index[v] {
				var scc []int
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					scc = append(scc, w)
					if w == v {
						break
					}
				}
				sccs = append(sccs, scc)
			}
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := frames[len(frames)-1].v
				lowlink[parent] = min(lowlink[parent], lowlink[v])
			}
		}
	}
	return sccs
}
