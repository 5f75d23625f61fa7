package vm

import "lumen/internal/diag"

// reporter collects runtime diagnostics. A fault that repeats every frame
// is recorded once; Install resets the dedup window so the same fault in a
// new program surfaces again.
type reporter struct {
	seen  map[faultKey]struct{}
	queue []diag.Diagnostic
	count int
}

type faultKey struct {
	code   diag.Code
	target diag.Target
}

func newReporter() *reporter {
	return &reporter{seen: make(map[faultKey]struct{})}
}

func (r *reporter) report(d diag.Diagnostic) {
	k := faultKey{code: d.Code, target: d.Primary}
	if _, ok := r.seen[k]; ok {
		return
	}
	r.seen[k] = struct{}{}
	r.queue = append(r.queue, d)
	r.count++
}

// drain returns the queued diagnostics and clears the queue. The dedup
// window stays, so a drained fault does not reappear until reset.
func (r *reporter) drain() []diag.Diagnostic {
	out := r.queue
	r.queue = nil
	return out
}

// total counts every diagnostic reported since the last reset.
func (r *reporter) total() int { return r.count }

// reset clears the dedup window, typically on install.
func (r *reporter) reset() {
	r.seen = make(map[faultKey]struct{})
	r.queue = nil
	r.count = 0
}
