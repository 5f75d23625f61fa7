package diag

// Reporter is the minimal contract for receiving diagnostics from a pass
// or from the executor's fault path. Implementations: BagReporter,
// DedupReporter, or an external notification sink.
type Reporter interface {
	Report(d Diagnostic)
}

// BagReporter writes into a *Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(d Diagnostic) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(d)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(Diagnostic)

func (f ReporterFunc) Report(d Diagnostic) { f(d) }

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) Report(Diagnostic) {}

type dedupKey struct {
	code   Code
	sev    Severity
	target Target
	msg    string
}

// DedupReporter wraps another Reporter and suppresses duplicates with the
// same code, severity, target and message. The executor uses it so a fault
// that repeats every frame is reported once.
type DedupReporter struct {
	next Reporter
	seen map[dedupKey]struct{}
}

func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{
		next: next,
		seen: make(map[dedupKey]struct{}),
	}
}

func (r *DedupReporter) Report(d Diagnostic) {
	if r == nil {
		return
	}
	key := dedupKey{code: d.Code, sev: d.Severity, target: d.Primary, msg: d.Message}
	if _, ok := r.seen[key]; ok {
		return
	}
	r.seen[key] = struct{}{}
	if r.next != nil {
		r.next.Report(d)
	}
}

// Reset clears the suppression memory, typically after a program swap.
func (r *DedupReporter) Reset() {
	if r == nil {
		return
	}
	r.seen = make(map[dedupKey]struct{})
}
