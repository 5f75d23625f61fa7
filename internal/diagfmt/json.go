package diagfmt

import (
	"encoding/json"
	"io"

	"lumen/internal/diag"
)

// TargetJSON is a diagnostic target in JSON form: the resolved label plus
// the raw coordinates so tooling does not have to parse the label back.
type TargetJSON struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
	Block uint32 `json:"block,omitempty"`
	Port  uint32 `json:"port,omitempty"`
	Out   bool   `json:"out,omitempty"`
	Axis  string `json:"axis,omitempty"`
	Index uint32 `json:"index,omitempty"`
}

// NoteJSON is one attached note.
type NoteJSON struct {
	Message string     `json:"message"`
	Target  TargetJSON `json:"target"`
}

// DiagnosticJSON is one finding.
type DiagnosticJSON struct {
	Severity string     `json:"severity"`
	Code     string     `json:"code"`
	Title    string     `json:"title"`
	Message  string     `json:"message"`
	Target   TargetJSON `json:"target"`
	Notes    []NoteJSON `json:"notes,omitempty"`
}

// DiagnosticsOutput is the root of the JSON document.
type DiagnosticsOutput struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
	Errors      int              `json:"errors"`
	Warnings    int              `json:"warnings"`
	Truncated   bool             `json:"truncated,omitempty"`
}

// JSON writes the bag as one indented JSON document.
func JSON(w io.Writer, bag *diag.Bag, opts JSONOpts) error {
	out := DiagnosticsOutput{Diagnostics: []DiagnosticJSON{}}
	if bag != nil {
		items := bag.Items()
		out.Count = len(items)
		for _, d := range items {
			switch d.Severity {
			case diag.SevError:
				out.Errors++
			case diag.SevWarning:
				out.Warnings++
			}
		}
		if opts.Max > 0 && len(items) > opts.Max {
			items = items[:opts.Max]
			out.Truncated = true
		}
		for _, d := range items {
			out.Diagnostics = append(out.Diagnostics, makeDiagnostic(d, opts))
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func makeDiagnostic(d diag.Diagnostic, opts JSONOpts) DiagnosticJSON {
	dj := DiagnosticJSON{
		Severity: d.Severity.String(),
		Code:     d.Code.ID(),
		Title:    d.Code.Title(),
		Message:  d.Message,
		Target:   makeTarget(d.Primary, opts.Resolver),
	}
	if opts.IncludeNotes {
		for _, n := range d.Notes {
			dj.Notes = append(dj.Notes, NoteJSON{
				Message: n.Msg,
				Target:  makeTarget(n.Target, opts.Resolver),
			})
		}
	}
	return dj
}

func makeTarget(t diag.Target, r Resolver) TargetJSON {
	return TargetJSON{
		Kind:  targetKindName(t.Kind),
		Label: label(t, r),
		Block: t.Block,
		Port:  t.Port,
		Out:   t.Out,
		Axis:  t.Axis,
		Index: t.Index,
	}
}

func targetKindName(k diag.TargetKind) string {
	switch k {
	case diag.TargetBlock:
		return "block"
	case diag.TargetPort:
		return "port"
	case diag.TargetEdge:
		return "edge"
	case diag.TargetAxis:
		return "axis"
	case diag.TargetInstance:
		return "instance"
	case diag.TargetState:
		return "state"
	case diag.TargetStep:
		return "step"
	default:
		return "none"
	}
}
