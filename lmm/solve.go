package lmm

import "math"

// Solve runs progressive filling to convergence: it repeatedly finds the
// most constrained resource (the smallest "how much further can every
// active variable grow" ratio across all SHARED constraints, and the
// smallest "remaining headroom" across every FATPIPE cap and variable
// bound), grants that increment to every still-growing variable, and
// permanently fixes whoever or whatever saturated. This mirrors
// lmm_solve in maxmin.c: SHARED constraints hand out bandwidth
// proportional to weight (sum_active(coeff*weight) demand against a
// shrinking remaining budget) while FATPIPE constraints and per-variable
// bounds act as independent caps, exactly like the "min_bound" fixing
// branch in the original.
//
// If selective update is active and nothing has been marked modified
// since the last Solve, this is a no-op: the previous solution is still
// valid.
func (s *System) Solve() {
	if s.selectiveUpdateActive && !s.modified && len(s.modifiedSet) == 0 {
		return
	}

	active := make([]*Variable, 0, len(s.variables))
	for _, v := range s.variables {
		v.value = 0
		v.growing = v.sharingWeight > 0
		if v.growing {
			active = append(active, v)
		}
	}

	light := make([]*Constraint, 0, len(s.constraints))
	for _, c := range s.constraints {
		c.remaining = c.Bound
		c.lightIdx = -1
		if c.Policy == Shared && len(c.enabled) > 0 {
			c.lightIdx = len(light)
			light = append(light, c)
		}
	}

	removeFromLight := func(c *Constraint) {
		i := c.lightIdx
		if i < 0 {
			return
		}
		last := len(light) - 1
		light[i] = light[last]
		light[i].lightIdx = i
		light = light[:last]
		c.lightIdx = -1
	}

	demand := func(c *Constraint) float64 {
		d := 0.0
		for _, idx := range c.enabled {
			e := s.elements.Get(idx)
			if e.vari.growing {
				d += e.coeff * e.vari.sharingWeight
			}
		}
		return d
	}

	fatCap := func(v *Variable) float64 {
		cap := math.Inf(1)
		if v.Bound >= 0 {
			cap = v.Bound
		}
		for _, idx := range v.elements {
			e := s.elements.Get(idx)
			if e.cnst.Policy == FatPipe && e.coeff > 0 {
				if b := e.cnst.Bound / e.coeff; b < cap {
					cap = b
				}
			}
		}
		return cap
	}

	eps := s.Precision
	if eps <= 0 {
		eps = DefaultPrecision
	}

	const maxRounds = 1 << 20
	for round := 0; len(active) > 0 && round < maxRounds; round++ {
		activeBefore := len(active)
		best := math.Inf(1)

		for _, c := range light {
			d := demand(c)
			if d <= 0 {
				continue
			}
			if t := c.remaining / d; t < best {
				best = t
			}
		}

		caps := make(map[*Variable]float64, len(active))
		for _, v := range active {
			cap := fatCap(v)
			caps[v] = cap
			if math.IsInf(cap, 1) {
				continue
			}
			if t := (cap - v.value) / v.sharingWeight; t < best {
				best = t
			}
		}

		if math.IsInf(best, 1) || best < 0 {
			break
		}

		for _, v := range active {
			v.value += best * v.sharingWeight
		}

		for _, c := range light {
			d := demand(c)
			c.remaining -= best * d
		}

		stillActive := active[:0:0]
		for _, v := range active {
			cap := caps[v]
			if !math.IsInf(cap, 1) && v.value >= cap-eps*math.Max(1, cap) {
				v.value = cap
				v.growing = false
				continue
			}
			stillActive = append(stillActive, v)
		}
		active = stillActive

		for i := 0; i < len(light); {
			c := light[i]
			if c.remaining <= eps*math.Max(1, c.Bound) {
				removeFromLight(c)
				active = s.dropConstraintVars(active, c)
				continue
			}
			i++
		}

		if best <= 0 && len(active) == activeBefore {
			// No progress this round (every limiting resource reports zero
			// remaining headroom but nothing cleared the epsilon test): stop
			// to avoid spinning forever.
			break
		}
	}

	if s.selectiveUpdateActive {
		s.removeAllModifiedSet()
	}
	s.modified = false
}

// dropConstraintVars removes every variable touching c from active,
// because c (a SHARED constraint) just saturated: max-min fairness
// freezes every flow crossing a saturated link, even ones with slack
// elsewhere, so no var of c may grow further this solve.
func (s *System) dropConstraintVars(active []*Variable, c *Constraint) []*Variable {
	drop := make(map[*Variable]bool, len(c.enabled))
	for _, idx := range c.enabled {
		v := s.elements.Get(idx).vari
		v.growing = false
		drop[v] = true
	}
	kept := active[:0]
	for _, v := range active {
		if !drop[v] {
			kept = append(kept, v)
		}
	}
	return kept
}
