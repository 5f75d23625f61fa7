package diag

// Note attaches secondary context to a diagnostic, typically the other
// location involved in a conflict.
type Note struct {
	Target Target
	Msg    string
}

// Diagnostic is one structured finding. Values are immutable once emitted;
// the With helpers return modified copies.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  Target
	Notes    []Note
}

func (d Diagnostic) WithNote(t Target, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Target: t, Msg: msg})
	return d
}
