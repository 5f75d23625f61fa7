// Package dump renders compiled programs as stable, line-oriented text.
// The output is written for diffing and inspection: dumping the same
// program twice yields byte-identical text, and every row carries its
// table index so schedule lines can be traced back by hand.
package dump

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"lumen/internal/ir"
	"lumen/internal/types"
)

// Options configures program dumping.
type Options struct {
	// Exprs includes the expression table. The schedule references
	// expression ids either way.
	Exprs bool
	// Types annotates each expression with its resolved type. Only
	// meaningful together with Exprs.
	Types bool
}

// Program writes a human-readable representation of a compiled program.
func Program(w io.Writer, p *ir.Program, opts Options) error {
	if w == nil || p == nil {
		return nil
	}

	fmt.Fprintf(w, "program fp=%016x scalars=%d exprs=%d slots=%d steps=%d\n",
		p.Fingerprint, p.ScalarWords, len(p.Exprs), len(p.Slots), len(p.Steps))

	if len(p.Pops) > 0 {
		fmt.Fprintf(w, "\npops=%d\n", len(p.Pops))
		for _, d := range p.Pops {
			fmt.Fprintf(w, "  #%d: lanes=%d map=%s policy=%s", d.Inst, d.Lanes, d.MapBy, d.Policy)
			if d.Tau != 0 {
				fmt.Fprintf(w, " tau=%s", fmtScalar(d.Tau))
			}
			if d.Fade != 0 {
				fmt.Fprintf(w, " fade=%s", fmtScalar(d.Fade))
			}
			fmt.Fprintln(w)
		}
	}

	if len(p.Inputs) > 0 {
		fmt.Fprintf(w, "\ninputs=%d\n", len(p.Inputs))
		for i, in := range p.Inputs {
			kind := "value"
			if in.Event {
				kind = "event"
			}
			fmt.Fprintf(w, "  in%d: %q %s %s default=%s\n",
				i, in.Name, kind, in.Type, fmtLits(in.Default))
		}
	}

	if len(p.States) > 0 {
		fmt.Fprintf(w, "\nstates=%d\n", len(p.States))
		for i, st := range p.States {
			fmt.Fprintf(w, "  st%d: %s identity=%016x", i, st.Kind, st.Identity)
			if st.Inst != types.NoInstance {
				fmt.Fprintf(w, " pop=#%d", st.Inst)
			}
			if len(st.Init) > 0 {
				fmt.Fprintf(w, " init=%s", fmtLits(st.Init))
			}
			fmt.Fprintln(w)
		}
	}

	if len(p.Slots) > 0 {
		fmt.Fprintf(w, "\nslots=%d\n", len(p.Slots))
		for i, s := range p.Slots {
			fmt.Fprintf(w, "  s%d: %s", i, s)
			if len(p.SlotExpr) == len(p.Slots) && p.SlotExpr[i] != ir.NoExpr {
				fmt.Fprintf(w, " <- e%d", p.SlotExpr[i])
			}
			fmt.Fprintln(w)
		}
	}

	if len(p.Sinks) > 0 {
		fmt.Fprintf(w, "\nsinks=%d\n", len(p.Sinks))
		for i, s := range p.Sinks {
			fmt.Fprintf(w, "  sink%d: %s %q", i, s.Kind, s.Name)
			if s.Kind == ir.SinkRender {
				fmt.Fprintf(w, " blend=%s topo=%s", s.Blend, s.Topology)
				if s.Inst != types.NoInstance {
					fmt.Fprintf(w, " pop=#%d", s.Inst)
				}
			}
			if len(s.Params) > 0 {
				parts := make([]string, len(s.Params))
				for j, pr := range s.Params {
					parts[j] = fmt.Sprintf("%s<-s%d", pr.Name, pr.Slot)
				}
				fmt.Fprintf(w, " params: %s", strings.Join(parts, " "))
			}
			fmt.Fprintln(w)
		}
	}

	if opts.Exprs && len(p.Exprs) > 1 {
		fmt.Fprintf(w, "\nexprs=%d\n", len(p.Exprs)-1)
		for i := 1; i < len(p.Exprs); i++ {
			e := p.Exprs[i]
			if opts.Types {
				fmt.Fprintf(w, "  e%d: %s : %s\n", i, formatExpr(e), e.Type)
			} else {
				fmt.Fprintf(w, "  e%d: %s\n", i, formatExpr(e))
			}
		}
	}

	fmt.Fprintf(w, "\nschedule=%d\n", len(p.Steps))
	for i, s := range p.Steps {
		fmt.Fprintf(w, "  %3d: %s\n", i, s)
	}
	return nil
}

// formatExpr renders one expression row. The schedule and slot tables refer
// to expressions by id, so rows lead with structure rather than values.
func formatExpr(e ir.Expr) string {
	switch e.Kind {
	case ir.ExprConst:
		return "const " + fmtLits(e.Lit)
	case ir.ExprInput:
		return fmt.Sprintf("input in%d", e.Ref)
	case ir.ExprIntrinsic:
		s := fmt.Sprintf("intrinsic %s #%d", e.Op, e.Ref)
		if len(e.Lit) > 0 {
			s += " " + fmtLits(e.Lit)
		}
		return s
	case ir.ExprKernel:
		return fmt.Sprintf("kernel %s%s%s", e.Op, fmtArgs(e.Args), fmtImm(e.Lit))
	case ir.ExprStateRead:
		return fmt.Sprintf("state st%d", e.Ref)
	case ir.ExprTime:
		return fmt.Sprintf("time %s", e.Op)
	case ir.ExprShape:
		return fmt.Sprintf("shape %s", ir.TopologyID(e.Ref))
	case ir.ExprEventRead:
		return fmt.Sprintf("event-read %s%s", e.Op, fmtArgs(e.Args))
	case ir.ExprEvent:
		return fmt.Sprintf("event %s st%d%s", e.Op, e.Ref, fmtImm(e.Lit))
	case ir.ExprSlotRead:
		return fmt.Sprintf("slot s%d", e.Ref)
	default:
		return "invalid"
	}
}

func fmtArgs(args []ir.ExprID) string {
	if len(args) == 0 {
		return "()"
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("e%d", a)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// fmtImm renders kernel immediates (split component, random seed, pulse
// period) after the operand list.
func fmtImm(lit []float64) string {
	if len(lit) == 0 {
		return ""
	}
	return " " + fmtLits(lit)
}

func fmtLits(lit []float64) string {
	parts := make([]string, len(lit))
	for i, v := range lit {
		parts[i] = fmtScalar(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func fmtScalar(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
