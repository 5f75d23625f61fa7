// Package trace provides a tracing subsystem for the lumen compiler and
// runtime session.
//
// The trace package tracks compilations, compiler passes and frame
// execution to help diagnose performance problems and hangs in live
// sessions.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	lumen run --trace=- --trace-level=phase mypatch.toml
//
// # Architecture
//
// The package provides several tracer implementations:
//
//   - NopTracer: zero-overhead no-op tracer when disabled
//   - StreamTracer: immediate write to output (file/stderr)
//   - RingTracer: circular buffer for crash dumps
//   - MultiTracer: combines multiple tracers
//
// # Levels
//
// Tracing verbosity is controlled by levels:
//
//   - LevelOff: no tracing
//   - LevelError: only crash dumps
//   - LevelPhase: session, compile and pass boundaries
//   - LevelDetail: per-frame events
//   - LevelDebug: everything including schedule steps
//
// # Scopes
//
// Events are categorized by scope:
//
//   - ScopeSession: installs, swaps, snapshot loads
//   - ScopeCompile: one compilation of a patch
//   - ScopePass: compiler passes (normalize, solve, lower)
//   - ScopeFrame: one evaluated frame
//   - ScopeStep: individual schedule steps
//
// # Context Propagation
//
// Tracers are propagated through the pipeline via context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopePass, "solve", parentID)
//	defer span.End("")
package trace
