// Package diag defines the diagnostic model shared by every compile pass
// and the frame executor.
//
// # Purpose
//
//   - Provide deterministic, serialisable records that capture findings
//     produced by normalization, type solving, lowering and execution.
//   - Offer light-weight utilities (Reporter, Bag) that let producers emit
//     diagnostics without coupling to storage or formatting layers.
//
// # Scope
//
// Package diag performs no formatting, IO or CLI integration. Rendering
// lives in internal/dump and the CLI; the external notification surface
// consumes Diagnostic values as opaque records.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity – tri-level enum (Info, Warning, Error).
//   - Code – compact numeric identifier (see codes.go) with stable string
//     form, grouped by pipeline stage.
//   - Target – the block, port, edge, axis, state or step the finding is
//     attributed to. Every diagnostic names a precise location.
//   - Message – short, actionable text.
//   - Notes – secondary targets with context (e.g. the other half of a
//     conflicting pair). Use sparingly.
//
// Compile passes accumulate into a Bag and keep going: a compile attempt
// yields either a usable program or the complete batch, never a partial
// program silently missing pieces.
package diag
