package diagfmt

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"lumen/internal/diag"
)

// Pretty writes one line per diagnostic:
//
//	ERROR STR1004 osc1.in0: input cannot be filled with a default
//	  note rate.out0: producer declared here
//
// Notes indent under their diagnostic. Callers wanting stable output should
// bag.Sort() first.
func Pretty(w io.Writer, bag *diag.Bag, opts PrettyOpts) {
	if bag == nil {
		return
	}
	sevColor := map[diag.Severity]*color.Color{
		diag.SevError:   color.New(color.FgRed, color.Bold),
		diag.SevWarning: color.New(color.FgYellow),
		diag.SevInfo:    color.New(color.FgCyan),
	}
	printed := 0
	for _, d := range bag.Items() {
		if opts.Max > 0 && printed >= opts.Max {
			fmt.Fprintf(w, "... and %d more\n", bag.Len()-printed)
			return
		}
		sev := d.Severity.String()
		if opts.Color {
			if c, ok := sevColor[d.Severity]; ok {
				sev = c.Sprint(sev)
			}
		}
		fmt.Fprintf(w, "%s %s %s: %s\n", sev, d.Code.ID(), label(d.Primary, opts.Resolver), d.Message)
		if opts.ShowNotes {
			for _, n := range d.Notes {
				fmt.Fprintf(w, "  note %s: %s\n", label(n.Target, opts.Resolver), n.Msg)
			}
		}
		printed++
	}
}
