// Package domain declares the populations that many-cardinality values
// range over. Populations are compile-time declarations: dense, zero-indexed
// lane sets with optional stable lane keys and rest positions. At runtime a
// population is erased to its lane count and layout constants; no Registry
// survives into the executor.
package domain

import (
	"fmt"

	"lumen/internal/types"
)

// Kind identifies the domain type a population belongs to (particles,
// strokes, voices, ...). The core never branches on it; it only keeps
// populations of different kinds from unifying by accident.
type Kind uint32

// Policy selects how field values are reconciled when the population's
// shape changes between compilations.
type Policy uint8

const (
	// PolicyNone discards old values; fields start at the new base.
	PolicyNone Policy = iota
	// PolicyPreserve holds each mapped lane at its old value via a
	// persistent gauge offset.
	PolicyPreserve
	// PolicySlew decays the gauge offset exponentially with the
	// configured time constant.
	PolicySlew
	// PolicyProject snaps to the new base immediately.
	PolicyProject
	// PolicyCrossfade blends from old to new with a smoothstep weight
	// over the configured duration.
	PolicyCrossfade
)

func (p Policy) String() string {
	switch p {
	case PolicyNone:
		return "none"
	case PolicyPreserve:
		return "preserve"
	case PolicySlew:
		return "slew"
	case PolicyProject:
		return "project"
	case PolicyCrossfade:
		return "crossfade"
	default:
		return "policy?"
	}
}

// PolicyByName resolves a policy name from a patch description.
func PolicyByName(name string) (Policy, bool) {
	switch name {
	case "", "none":
		return PolicyNone, true
	case "preserve":
		return PolicyPreserve, true
	case "slew":
		return PolicySlew, true
	case "project":
		return PolicyProject, true
	case "crossfade":
		return PolicyCrossfade, true
	default:
		return PolicyNone, false
	}
}

// MapBy selects how old lanes are matched to new lanes during
// reconciliation.
type MapBy uint8

const (
	// MapByID matches lanes sharing a stable key.
	MapByID MapBy = iota
	// MapByPosition matches each new lane to the nearest old rest
	// position.
	MapByPosition
)

func (m MapBy) String() string {
	if m == MapByPosition {
		return "position"
	}
	return "id"
}

// MapByName resolves a mapping mode name from a patch description.
func MapByName(name string) (MapBy, bool) {
	switch name {
	case "", "id":
		return MapByID, true
	case "position":
		return MapByPosition, true
	default:
		return MapByID, false
	}
}

// Population is one declared lane set.
type Population struct {
	Instance types.InstanceID
	Kind     Kind
	Lanes    int

	// Keys are optional stable per-lane identities used by identity-based
	// continuity mapping. When present, len(Keys) == Lanes.
	Keys []uint64

	// Rest are optional per-lane rest positions used by nearest-position
	// continuity mapping. When present, len(Rest) == Lanes.
	Rest [][2]float64

	// Continuity configuration applied to fields backed by this
	// population when its shape changes under a hot swap.
	Policy Policy
	MapBy  MapBy
	Tau    float64 // slew time constant, seconds
	Fade   float64 // crossfade duration, seconds
}

// Registry holds every population declared for one compilation.
type Registry struct {
	pops []Population
	byID map[types.InstanceID]int
	next types.InstanceID
}

func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[types.InstanceID]int, 8),
		next: types.NoInstance + 1,
	}
}

// Declare registers a dense population of the given kind and lane count and
// returns its instance id.
func (r *Registry) Declare(kind Kind, lanes int) (types.InstanceID, error) {
	return r.DeclareWith(Population{Kind: kind, Lanes: lanes})
}

// DeclareWith registers a population with explicit lane keys or rest
// positions. The Instance field of the argument is ignored; the registry
// assigns ids.
func (r *Registry) DeclareWith(p Population) (types.InstanceID, error) {
	if p.Lanes < 0 {
		return types.NoInstance, fmt.Errorf("domain: negative lane count %d", p.Lanes)
	}
	if p.Keys != nil && len(p.Keys) != p.Lanes {
		return types.NoInstance, fmt.Errorf("domain: %d lane keys for %d lanes", len(p.Keys), p.Lanes)
	}
	if p.Rest != nil && len(p.Rest) != p.Lanes {
		return types.NoInstance, fmt.Errorf("domain: %d rest positions for %d lanes", len(p.Rest), p.Lanes)
	}
	p.Instance = r.next
	r.next++
	r.byID[p.Instance] = len(r.pops)
	r.pops = append(r.pops, p)
	return p.Instance, nil
}

// Lookup returns the population for an instance id.
func (r *Registry) Lookup(id types.InstanceID) (Population, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return Population{}, false
	}
	return r.pops[idx], true
}

// Lanes returns the lane count for an instance id, or zero when unknown.
func (r *Registry) Lanes(id types.InstanceID) int {
	if p, ok := r.Lookup(id); ok {
		return p.Lanes
	}
	return 0
}

// All returns the declared populations in declaration order. The slice is
// shared; callers must not modify it.
func (r *Registry) All() []Population { return r.pops }

// Len returns the number of declared populations.
func (r *Registry) Len() int { return len(r.pops) }
