package remap

import (
	"math"

	"lumen/internal/domain"
)

// Gauge is one field buffer's continuity correction after a swap: a
// per-lane offset blended onto the freshly evaluated base each frame until
// the policy has worn it off. The evaluator never sees the gauge; it runs
// in the reconcile phase after the field is materialized.
type Gauge struct {
	policy domain.Policy
	tau    float64
	fade   float64
	offset []float64
	age    float64
	spent  bool
}

// NewGauge wraps freshly computed offsets in a policy. A nil gauge is
// returned for policies that need no per-frame work.
func NewGauge(policy domain.Policy, tau, fade float64, offset []float64) *Gauge {
	switch policy {
	case domain.PolicyNone, domain.PolicyProject:
		return nil
	}
	all := true
	for _, v := range offset {
		if v != 0 {
			all = false
			break
		}
	}
	if all {
		return nil
	}
	if policy == domain.PolicySlew && tau <= 0 {
		return nil
	}
	if policy == domain.PolicyCrossfade && fade <= 0 {
		return nil
	}
	return &Gauge{policy: policy, tau: tau, fade: fade, offset: offset}
}

// Apply advances the gauge by dt and adds the weighted offset onto the
// buffer in place. Buffer length beyond the offset is left untouched, which
// covers a population growing after the swap.
func (g *Gauge) Apply(buf []float64, dt float64) {
	if g == nil || g.spent {
		return
	}
	n := len(g.offset)
	if len(buf) < n {
		n = len(buf)
	}
	switch g.policy {
	case domain.PolicyPreserve:
		for i := 0; i < n; i++ {
			buf[i] += g.offset[i]
		}
	case domain.PolicySlew:
		decay := math.Exp(-dt / g.tau)
		peak := 0.0
		for i := 0; i < n; i++ {
			g.offset[i] *= decay
			buf[i] += g.offset[i]
			if a := math.Abs(g.offset[i]); a > peak {
				peak = a
			}
		}
		if peak < 1e-9 {
			g.spent = true
		}
	case domain.PolicyCrossfade:
		g.age += dt
		w := 1 - smoothstep(g.age/g.fade)
		if w <= 0 {
			g.spent = true
			return
		}
		for i := 0; i < n; i++ {
			buf[i] += w * g.offset[i]
		}
	}
}

// Done reports whether the gauge has fully worn off and can be dropped.
// Preserve gauges never finish.
func (g *Gauge) Done() bool { return g == nil || g.spent }

func smoothstep(x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	return x * x * (3 - 2*x)
}
