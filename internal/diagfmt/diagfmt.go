// Package diagfmt renders diagnostic bags for humans and machines. The
// compiler attributes findings to graph targets (blocks, ports, axes), so
// rendering resolves those against the authored patch when one is
// available; raw ids remain readable without it.
package diagfmt

import (
	"fmt"

	"lumen/internal/diag"
	"lumen/internal/patch"
)

// Resolver maps a diagnostic target to a display label. A nil Resolver
// falls back to the target's built-in formatting.
type Resolver func(diag.Target) string

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color     bool
	Resolver  Resolver
	ShowNotes bool
	Max       int // cap on printed diagnostics, 0 means no cap
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	Resolver     Resolver
	IncludeNotes bool
	Max          int // output truncation, the bag itself is untouched
}

// GraphResolver labels targets with the author's block ids from the patch
// the diagnostics were produced against.
func GraphResolver(g *patch.Graph) Resolver {
	if g == nil {
		return nil
	}
	return func(t diag.Target) string {
		switch t.Kind {
		case diag.TargetBlock:
			return g.BlockName(patch.BlockID(t.Block))
		case diag.TargetPort, diag.TargetAxis:
			side := "in"
			if t.Out {
				side = "out"
			}
			label := fmt.Sprintf("%s.%s%d", g.BlockName(patch.BlockID(t.Block)), side, t.Port)
			if t.Kind == diag.TargetAxis {
				label += "/" + t.Axis
			}
			return label
		default:
			return t.String()
		}
	}
}

func label(t diag.Target, r Resolver) string {
	if r == nil {
		return t.String()
	}
	return r(t)
}
