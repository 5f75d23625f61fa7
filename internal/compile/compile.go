// Package compile wires the compiler passes into a single entry point:
// normalize, solve, lower. It owns the shared diagnostic bag, the pass
// timings and the trace spans; callers get either a sealed program or the
// diagnostics that stopped one from being built.
package compile

import (
	"context"
	"errors"
	"fmt"

	"lumen/internal/diag"
	"lumen/internal/domain"
	"lumen/internal/ir"
	"lumen/internal/lower"
	"lumen/internal/normalize"
	"lumen/internal/observ"
	"lumen/internal/patch"
	"lumen/internal/solve"
	"lumen/internal/trace"
)

// ErrDiagnostics is returned when a pass reported errors. The details are
// in Result.Bag; the error exists so callers can branch without inspecting
// the bag twice.
var ErrDiagnostics = errors.New("compile: diagnostics reported errors")

// Request configures one compilation of a patch graph.
type Request struct {
	Graph   *patch.Graph
	Domains *domain.Registry

	// Registry overrides the block registry; nil selects the builtins.
	Registry *patch.Registry

	// MaxDiagnostics caps the bag. Zero selects the default of 64.
	MaxDiagnostics int
}

// Result captures the compiled artifact and everything observed on the
// way: diagnostics (always populated) and per-pass timings.
type Result struct {
	Program *ir.Program // nil when compilation stopped
	Bag     *diag.Bag
	Timings observ.Report
}

// Compile runs the full pipeline on one graph. The context cancels between
// passes: a superseded live-edit compile stops early instead of finishing
// work nobody will install. Internal contract breaches inside lowering
// surface as a BldInvariant diagnostic, never as a panic.
func Compile(ctx context.Context, req *Request) (Result, error) {
	var result Result
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("compile: missing request")
	}
	if req.Graph == nil {
		return result, fmt.Errorf("compile: missing graph")
	}

	domains := req.Domains
	if domains == nil {
		domains = domain.NewRegistry()
	}
	reg := req.Registry
	if reg == nil {
		reg = patch.Builtins()
	}
	maxDiag := req.MaxDiagnostics
	if maxDiag <= 0 {
		maxDiag = 64
	}

	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeCompile, "compile", trace.CurrentSpan(ctx).SpanID)
	timer := observ.NewTimer()
	bag := diag.NewBag(maxDiag)
	result.Bag = bag

	finish := func(detail string) {
		result.Timings = timer.Report()
		span.End(detail)
	}

	if err := ctx.Err(); err != nil {
		finish("canceled")
		return result, err
	}

	norm := func() (n *normalize.Result) {
		idx := timer.Begin("normalize")
		ps := trace.Begin(tracer, trace.ScopePass, "pass:normalize", span.ID())
		defer func() {
			ps.End("")
			timer.End(idx, "")
		}()
		return normalize.Run(req.Graph, reg, domains, bag)
	}()
	if norm == nil {
		finish("normalize failed")
		return result, ErrDiagnostics
	}

	if err := ctx.Err(); err != nil {
		finish("canceled")
		return result, err
	}

	types := func() (ty *solve.Result) {
		idx := timer.Begin("solve")
		ps := trace.Begin(tracer, trace.ScopePass, "pass:solve", span.ID())
		defer func() {
			ps.End("")
			timer.End(idx, "")
		}()
		return solve.Run(norm, domains, bag)
	}()
	if types == nil {
		finish("solve failed")
		return result, ErrDiagnostics
	}

	if err := ctx.Err(); err != nil {
		finish("canceled")
		return result, err
	}

	prog, err := lowerSafely(timer, tracer, span.ID(), norm, types, domains, bag)
	if err != nil {
		finish("lower failed")
		return result, err
	}

	result.Program = prog
	finish(fmt.Sprintf("fingerprint=%016x", prog.Fingerprint))
	return result, nil
}

// lowerSafely runs lowering with the invariant boundary: an
// ir.InvariantError panic becomes a BldInvariant diagnostic and an error,
// anything else keeps panicking.
func lowerSafely(timer *observ.Timer, tracer trace.Tracer, parent uint64,
	norm *normalize.Result, types *solve.Result, domains *domain.Registry,
	bag *diag.Bag) (prog *ir.Program, err error) {

	idx := timer.Begin("lower")
	ps := trace.Begin(tracer, trace.ScopePass, "pass:lower", parent)
	defer func() {
		if r := recover(); r != nil {
			inv, ok := r.(*ir.InvariantError)
			if !ok {
				panic(r)
			}
			bag.Add(diag.NewError(diag.BldInvariant, diag.Target{}, inv.Error()))
			prog = nil
			err = fmt.Errorf("compile: %w", inv)
			ps.End("invariant: " + inv.What)
			timer.End(idx, inv.What)
			return
		}
		ps.End("")
		timer.End(idx, "")
	}()

	return lower.Run(norm, types, domains), nil
}
