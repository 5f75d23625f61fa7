package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Structural defects found while normalizing the patch graph.
	StrInfo               Code = 1000
	StrUnknownBlockKind   Code = 1001
	StrBadPort            Code = 1002
	StrBadEdge            Code = 1003
	StrUnfillableInput    Code = 1004
	StrInvalidCycle       Code = 1005
	StrMissingTime        Code = 1006
	StrUnknownInstance    Code = 1007
	StrBadParam           Code = 1008
	StrNoRenderSink       Code = 1009
	StrDuplicateWriter    Code = 1010
	StrAdapterUnsupported Code = 1011
	StrTimeConflict       Code = 1012

	// Type resolution failures.
	TypInfo             Code = 2000
	TypPayloadMismatch  Code = 2001
	TypUnitMismatch     Code = 2002
	TypCardMismatch     Code = 2003
	TypInstanceMismatch Code = 2004
	TypTimeMismatch     Code = 2005
	TypBindMismatch     Code = 2006
	TypViewMismatch     Code = 2007
	TypBranchMismatch   Code = 2008
	TypUnitPayload      Code = 2009
	TypNoPopulation     Code = 2010
	TypPhaseArithmetic  Code = 2011

	// Internal contract breaches caught at the compile boundary. Fatal:
	// these indicate a solver or lowering bug, never a user mistake.
	BldInfo           Code = 3000
	BldInvariant      Code = 3001
	BldUnresolvedType Code = 3002
	BldBadArity       Code = 3003
	BldBadChild       Code = 3004
	BldBadInstance    Code = 3005
	BldBadSlot        Code = 3006

	// Faults raised while executing a frame. The offending step's consumers
	// substitute the last known good value; the frame continues.
	RunInfo         Code = 4000
	RunNonFinite    Code = 4001
	RunBufferShape  Code = 4002
	RunStateReset   Code = 4003
	RunMissingInput Code = 4004

	// Observability.
	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

var codeDescription = map[Code]string{
	UnknownCode:           "Unknown error",
	StrInfo:               "Structural information",
	StrUnknownBlockKind:   "Unknown block kind",
	StrBadPort:            "Port does not exist on block",
	StrBadEdge:            "Edge endpoint is invalid",
	StrUnfillableInput:    "Input cannot be filled with a default",
	StrInvalidCycle:       "Feedback cycle without a stateful primitive",
	StrMissingTime:        "Patch has no time authority",
	StrUnknownInstance:    "Population is not declared",
	StrBadParam:           "Invalid block parameter",
	StrNoRenderSink:       "Patch has no render sink",
	StrDuplicateWriter:    "Conflicting writers on a non-combining input",
	StrAdapterUnsupported: "No adapter exists for the connection",
	StrTimeConflict:       "Patch declares more than one time authority",
	TypInfo:               "Type information",
	TypPayloadMismatch:    "Payload kinds do not unify",
	TypUnitMismatch:       "Units do not unify",
	TypCardMismatch:       "Cardinalities do not unify",
	TypInstanceMismatch:   "Populations do not unify",
	TypTimeMismatch:       "Temporalities do not unify",
	TypBindMismatch:       "Bindings do not unify",
	TypViewMismatch:       "Perspectives do not unify",
	TypBranchMismatch:     "Branches do not unify",
	TypUnitPayload:        "Unit does not fit payload",
	TypNoPopulation:       "Field type has no population",
	TypPhaseArithmetic:    "Invalid phase arithmetic",
	BldInfo:               "Builder information",
	BldInvariant:          "Internal builder invariant violated",
	BldUnresolvedType:     "Unresolved type reached the builder",
	BldBadArity:           "Wrong operand count for expression",
	BldBadChild:           "Expression child id out of range",
	BldBadInstance:        "Expression references unknown population",
	BldBadSlot:            "Slot metadata is inconsistent",
	RunInfo:               "Runtime information",
	RunNonFinite:          "Non-finite value produced",
	RunBufferShape:        "Buffer shape mismatch at materialization",
	RunStateReset:         "Persistent state was reset",
	RunMissingInput:       "External input missing, default substituted",
	ObsInfo:               "Observability information",
	ObsTimings:            "Pipeline timings",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("STR%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("TYP%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("BLD%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("RUN%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
