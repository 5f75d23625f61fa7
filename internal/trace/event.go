package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindSpanBegin marks the start of a logical operation.
	KindSpanBegin Kind = iota + 1
	// KindSpanEnd marks the end of a logical operation.
	KindSpanEnd
	// KindPoint represents an instant event.
	KindPoint
	// KindHeartbeat is a periodic liveness signal.
	KindHeartbeat
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity of the event. Lower numeric values
// represent coarser events.
type Scope uint8

const (
	// ScopeSession covers session-level operations: installs, swaps,
	// snapshot loads.
	ScopeSession Scope = iota + 1
	// ScopeCompile covers one compilation of a patch.
	ScopeCompile
	// ScopePass covers compiler passes (normalize, solve, lower).
	ScopePass
	// ScopeFrame covers one evaluated frame.
	ScopeFrame
	// ScopeStep covers individual schedule steps, the most detailed.
	ScopeStep
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeSession:
		return "session"
	case ScopeCompile:
		return "compile"
	case ScopePass:
		return "pass"
	case ScopeFrame:
		return "frame"
	case ScopeStep:
		return "step"
	default:
		return "unknown"
	}
}

// Event represents a single trace event.
type Event struct {
	Time     time.Time         // wall-clock timestamp
	Seq      uint64            // global sequence number (monotonic)
	Kind     Kind              // event kind
	Scope    Scope             // granularity level
	SpanID   uint64            // unique span identifier
	ParentID uint64            // parent span (0 if root)
	GID      uint64            // goroutine ID (for concurrent spans)
	Name     string            // e.g. "compile", "pass:solve", "frame"
	Detail   string            // optional detail message
	Extra    map[string]string // extensible key-value pairs
}
