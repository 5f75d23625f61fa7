// Package session hosts a live patch. Frames keep running on the installed
// program while edits compile in the background; a finished compile lands
// at the next frame boundary, carrying state and continuity with it. A
// newer edit supersedes any compile still in flight.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"lumen/internal/compile"
	"lumen/internal/diag"
	"lumen/internal/domain"
	"lumen/internal/ir"
	"lumen/internal/observ"
	"lumen/internal/patch"
	"lumen/internal/trace"
	"lumen/internal/vm"
)

// Config configures a session.
type Config struct {
	Tracer         trace.Tracer
	MaxDiagnostics int
}

// Update reports the outcome of one submitted edit. Err is nil exactly
// when Program is set; superseded compiles never produce an update.
type Update struct {
	Generation uint64
	Program    *ir.Program
	Bag        *diag.Bag
	Timings    observ.Report
	Err        error
}

// InstallNotice describes the swap a frame boundary performed.
type InstallNotice struct {
	Generation  uint64
	Fingerprint uint64
	Unchanged   bool // same fingerprint as the running program, no install
	Report      vm.InstallReport
}

type staged struct {
	gen  uint64
	prog *ir.Program
}

// Session serializes frames and installs on one machine and runs compiles
// on the side. Frame, SetInput, Fire, Probe and Faults may be called from
// any goroutine; they share one lock.
type Session struct {
	tracer  trace.Tracer
	maxDiag int

	frameMu sync.Mutex
	machine *vm.Machine

	mu     sync.Mutex
	gen    uint64 // last assigned submission generation
	high   uint64 // highest generation ever staged
	cancel context.CancelFunc

	pending atomic.Pointer[staged]
	workers errgroup.Group
	updates chan Update
}

// New creates an idle session. Nothing runs until a program is staged via
// Submit or Install and the host starts calling Frame.
func New(cfg Config) *Session {
	t := cfg.Tracer
	if t == nil {
		t = trace.Nop
	}
	maxDiag := cfg.MaxDiagnostics
	if maxDiag <= 0 {
		maxDiag = 64
	}
	return &Session{
		tracer:  t,
		maxDiag: maxDiag,
		machine: vm.New(),
		updates: make(chan Update, 16),
	}
}

// Updates delivers compile outcomes. The channel is buffered; when the
// host falls behind, the oldest undelivered update is dropped.
func (s *Session) Updates() <-chan Update { return s.updates }

// Ready reports whether a program has been installed.
func (s *Session) Ready() bool {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return s.machine.Program() != nil
}

// Program returns the running program, nil before the first install.
func (s *Session) Program() *ir.Program {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return s.machine.Program()
}

// Submit schedules a compile of the graph. It returns immediately with the
// edit's generation number; the outcome arrives on Updates. A submission
// cancels any compile still in flight, and a stale result never overwrites
// a newer one.
func (s *Session) Submit(ctx context.Context, g *patch.Graph, domains *domain.Registry) uint64 {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.cancel != nil {
		s.cancel()
	}
	cctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.workers.Go(func() error {
		defer cancel()
		span := trace.Begin(s.tracer, trace.ScopeSession, "submit", 0)

		res, err := compile.Compile(trace.WithTracer(cctx, s.tracer), &compile.Request{
			Graph:          g,
			Domains:        domains,
			MaxDiagnostics: s.maxDiag,
		})
		if errors.Is(err, context.Canceled) {
			span.End("superseded")
			return nil
		}

		u := Update{Generation: gen, Bag: res.Bag, Timings: res.Timings, Err: err}
		if err == nil {
			u.Program = res.Program
			s.stage(gen, res.Program)
		}
		s.publish(u)
		span.End("")
		return nil
	})
	return gen
}

// Install stages a ready program directly, bypassing compilation. Like a
// compile result it lands at the next frame boundary.
func (s *Session) Install(p *ir.Program) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()
	s.stage(gen, p)
}

// stage parks a finished program for the next frame boundary. The
// high-water mark keeps a slow compile from overwriting a newer result,
// including one a frame already consumed.
func (s *Session) stage(gen uint64, prog *ir.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen < s.high {
		return
	}
	s.high = gen
	s.pending.Store(&staged{gen: gen, prog: prog})
}

func (s *Session) publish(u Update) {
	select {
	case s.updates <- u:
		return
	default:
	}
	// Full: drop the oldest undelivered update and retry once.
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- u:
	default:
	}
}

// Frame performs at most one install, then advances the machine by dt
// seconds. Before the first install it is a no-op returning zero info.
// The returned notice is non-nil exactly when a staged program was
// considered at this boundary.
func (s *Session) Frame(dt float64) (vm.FrameInfo, *InstallNotice) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	var notice *InstallNotice
	if st := s.pending.Swap(nil); st != nil {
		notice = &InstallNotice{Generation: st.gen, Fingerprint: st.prog.Fingerprint}
		cur := s.machine.Program()
		if cur != nil && cur.Fingerprint == st.prog.Fingerprint {
			notice.Unchanged = true
			trace.Point(s.tracer, trace.ScopeSession, "install", "unchanged", 0)
		} else {
			notice.Report = s.machine.Install(st.prog)
			trace.Point(s.tracer, trace.ScopeSession, "install", "", 0)
		}
	}

	if s.machine.Program() == nil {
		return vm.FrameInfo{}, notice
	}
	return s.machine.Frame(dt), notice
}

// SetInput writes a named external input, effective from the next frame.
func (s *Session) SetInput(name string, vals ...float64) error {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return s.machine.SetInput(name, vals...)
}

// Fire marks a trigger input as fired for the next frame.
func (s *Session) Fire(name string) error {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return s.machine.Fire(name)
}

// Probe returns the last frame's value of a named probe sink. The slice
// is only valid until the next Frame call.
func (s *Session) Probe(name string) ([]float64, bool) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return s.machine.Probe(name)
}

// Faults drains the machine's runtime diagnostics.
func (s *Session) Faults() []diag.Diagnostic {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return s.machine.Faults()
}

// AttachSink registers a render consumer on the machine.
func (s *Session) AttachSink(sink vm.RenderSink) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	s.machine.AttachSink(sink)
}

// Close cancels any in-flight compile and waits for workers to drain.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	return s.workers.Wait()
}
