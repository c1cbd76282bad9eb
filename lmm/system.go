package lmm

import (
	"math"

	"github.com/nmxmxh/simcore/internal/arena"
)

// DefaultPrecision is the relative tolerance epsilon used throughout the
// solver, matching sg_maxmin_precision in the original source.
const DefaultPrecision = 1e-5

// System owns the whole linear system: every constraint, every
// variable, and the pool of elements connecting them. There is exactly
// one System per simulator (spec.md §9's "no package globals" note).
type System struct {
	Precision float64

	selectiveUpdateActive bool
	modified              bool
	visitedCounter         uint64
	modifiedSet            map[*Constraint]bool

	elements    *arena.Arena[element]
	constraints []*Constraint
	variables   []*Variable
}

// NewSystem constructs an empty system. If selectiveUpdate is true the
// solver tracks the modified-constraint subset across calls, and Solve
// returns at once when nothing was modified since the previous call;
// otherwise it recomputes the whole system, not just that subset.
func NewSystem(selectiveUpdate bool) *System {
	return &System{
		Precision:             DefaultPrecision,
		selectiveUpdateActive: selectiveUpdate,
		visitedCounter:         1,
		modifiedSet:            make(map[*Constraint]bool),
		elements:                arena.New[element](64),
	}
}

// NewConstraint creates a constraint with the given opaque id and bound.
func (s *System) NewConstraint(id interface{}, bound float64) *Constraint {
	c := &Constraint{
		ID:               id,
		Bound:            bound,
		Policy:           Shared,
		ConcurrencyLimit: -1,
		lightIdx:         -1,
	}
	s.constraints = append(s.constraints, c)
	return c
}

// NewVariable creates a variable with the given weight, bound (-1 for
// unbounded) and a hint of how many constraints it will be expanded
// into (mirrors lmm_variable_new's number_of_constraints reservation).
func (s *System) NewVariable(id interface{}, weight, bound float64, maxElements int) *Variable {
	v := &Variable{
		ID:               id,
		sharingWeight:    weight,
		Bound:            bound,
		ConcurrencyShare: 1,
		maxElements:      maxElements,
	}
	s.variables = append(s.variables, v)
	return v
}

// Constraints returns every constraint registered with the system, in
// creation order.
func (s *System) Constraints() []*Constraint { return s.constraints }

// Variables returns every variable registered with the system, in
// creation order.
func (s *System) Variables() []*Variable { return s.variables }

// ConstraintUsage recomputes the constraint's instantaneous utilization
// from its elements' current values (lmm_constraint_get_usage).
func (s *System) ConstraintUsage(c *Constraint) float64 {
	usage := 0.0
	for _, idx := range c.enabled {
		e := s.elements.Get(idx)
		if e.vari.sharingWeight <= 0 {
			continue
		}
		contribution := e.coeff * e.vari.value
		if contribution <= 0 {
			continue
		}
		if c.Policy == Shared {
			usage += contribution
		} else if contribution > usage {
			usage = contribution
		}
	}
	return usage
}

func (s *System) concurrencySlack(c *Constraint) int {
	if c.ConcurrencyLimit < 0 {
		return unboundedConcurrency
	}
	return c.ConcurrencyLimit - c.concurrencyCurrent
}

func (s *System) minConcurrencySlack(v *Variable) int {
	min := unboundedConcurrency
	for _, idx := range v.elements {
		e := s.elements.Get(idx)
		if sl := s.concurrencySlack(e.cnst); sl < min {
			min = sl
		}
	}
	return min
}

func (s *System) canEnableVar(v *Variable) bool {
	return v.stagedWeight > 0 && s.minConcurrencySlack(v) >= v.ConcurrencyShare
}

func (s *System) increaseConcurrency(e *element) {
	e.cnst.concurrencyCurrent += elementConcurrency(e)
	if e.cnst.concurrencyCurrent > e.cnst.concurrencyMaximum {
		e.cnst.concurrencyMaximum = e.cnst.concurrencyCurrent
	}
}

func (s *System) decreaseConcurrency(e *element) {
	e.cnst.concurrencyCurrent -= elementConcurrency(e)
}

func removeIndex(list []arena.Index, idx arena.Index) []arena.Index {
	for i, x := range list {
		if x == idx {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// moveToEnabled relocates idx from c's disabled list to its enabled
// list. idx is appended to the enabled list unconditionally, so it must
// not already be there.
func (c *Constraint) moveToEnabled(idx arena.Index) {
	c.disabled = removeIndex(c.disabled, idx)
	c.enabled = append(c.enabled, idx)
}

func (c *Constraint) moveToDisabled(idx arena.Index) {
	c.enabled = removeIndex(c.enabled, idx)
	c.disabled = append(c.disabled, idx)
}

// enableVar promotes a staged variable: its remembered weight becomes
// its effective weight, and every element it owns moves from its
// constraint's disabled list to its enabled list.
func (s *System) enableVar(v *Variable) {
	v.sharingWeight = v.stagedWeight
	v.stagedWeight = 0
	for _, idx := range v.elements {
		e := s.elements.Get(idx)
		e.cnst.moveToEnabled(idx)
		s.increaseConcurrency(e)
	}
	if len(v.elements) > 0 {
		s.markModified(s.elements.Get(v.elements[0]).cnst)
	}
}

// disableVar parks a variable: every element it owns moves to its
// constraint's disabled list, and its weight is zeroed (the caller is
// responsible for remembering it in stagedWeight first, if desired).
func (s *System) disableVar(v *Variable) {
	if len(v.elements) > 0 {
		s.markModified(s.elements.Get(v.elements[0]).cnst)
	}
	for _, idx := range v.elements {
		e := s.elements.Get(idx)
		e.cnst.moveToDisabled(idx)
		s.decreaseConcurrency(e)
	}
	v.sharingWeight = 0
	v.stagedWeight = 0
	v.value = 0
}

// onDisabledVar walks a constraint's disabled-element FIFO after a slot
// freed up, promoting staged variables that now fit, in order, until
// the constraint's concurrency limit is exhausted again.
func (s *System) onDisabledVar(c *Constraint) {
	if c.ConcurrencyLimit < 0 || len(c.disabled) == 0 {
		return
	}
	candidates := append([]arena.Index(nil), c.disabled...)
	for _, idx := range candidates {
		e := s.elements.Get(idx)
		if e.vari.stagedWeight > 0 && s.canEnableVar(e.vari) {
			s.enableVar(e.vari)
		}
		if c.concurrencyCurrent == c.ConcurrencyLimit {
			break
		}
	}
}

// VariableTouches reports whether v has an element (enabled or
// disabled/staged) on constraint c. Used by resource models to find
// which running actions a failing host/link affects.
func (s *System) VariableTouches(c *Constraint, v *Variable) bool {
	for _, idx := range v.elements {
		if s.elements.Get(idx).cnst == c {
			return true
		}
	}
	return false
}

func findElement(v *Variable, c *Constraint, elements *arena.Arena[element]) (arena.Index, *element, bool) {
	for _, idx := range v.elements {
		e := elements.Get(idx)
		if e.cnst == c {
			return idx, e, true
		}
	}
	return 0, nil, false
}

// Expand adds (or, if (c, v) already has an element, combines with) a
// consumption-weight coefficient between variable v and constraint c.
// Under the SHARED policy the coefficients sum across repeated calls
// (modelling adaptive cross-traffic throttling); under FATPIPE the max
// is kept. If adding this element would exceed c's concurrency slack
// while v is enabled, v is staged instead: it is disabled and its
// requested weight is remembered. Its new element keeps coeff but sits
// in c's disabled list, contributing nothing until a slot frees up and
// the variable is promoted.
func (s *System) Expand(c *Constraint, v *Variable, coeff float64) {
	s.modified = true

	if idx, e, ok := findElement(v, c, s.elements); ok {
		if v.sharingWeight > 0 {
			s.decreaseConcurrency(e)
		}
		if c.Policy == Shared {
			e.coeff += coeff
		} else {
			e.coeff = math.Max(e.coeff, coeff)
		}
		if v.sharingWeight > 0 {
			if s.concurrencySlack(c) < elementConcurrency(e) {
				weight := v.sharingWeight
				s.disableVar(v)
				for _, idx2 := range v.elements {
					s.onDisabledVar(s.elements.Get(idx2).cnst)
				}
				v.stagedWeight = weight
			} else {
				s.increaseConcurrency(e)
			}
		}
		s.markModified(c)
		_ = idx
		return
	}

	if v.sharingWeight > 0 && v.ConcurrencyShare > s.concurrencySlack(c) {
		weight := v.sharingWeight
		s.disableVar(v)
		for _, idx2 := range v.elements {
			s.onDisabledVar(s.elements.Get(idx2).cnst)
		}
		v.stagedWeight = weight
	}

	idx := s.elements.Alloc()
	e := s.elements.Get(idx)
	*e = element{cnst: c, vari: v, coeff: coeff}
	v.elements = append(v.elements, idx)

	if v.sharingWeight > 0 {
		c.enabled = append(c.enabled, idx)
		s.increaseConcurrency(e)
	} else {
		c.disabled = append(c.disabled, idx)
	}

	if !s.selectiveUpdateActive {
		// constraint becomes active implicitly (it has an element now)
	} else if e.coeff > 0 || v.sharingWeight > 0 {
		s.markModified(c)
		if len(v.elements) > 1 {
			s.markModified(s.elements.Get(v.elements[0]).cnst)
		}
	}
}

// UpdateVariableWeight sets v's weight, enabling it if it transitions
// from 0 to positive or disabling it if it transitions the other way.
// Unlike Expand, this is a direct user request and bypasses concurrency
// staging: the caller is expected to have arranged capacity already.
func (s *System) UpdateVariableWeight(v *Variable, weight float64) {
	if weight == v.sharingWeight {
		return
	}
	s.modified = true
	old := v.sharingWeight
	v.sharingWeight = weight
	for _, idx := range v.elements {
		e := s.elements.Get(idx)
		switch {
		case weight > 0 && old <= 0:
			e.cnst.moveToEnabled(idx)
			s.increaseConcurrency(e)
		case weight <= 0 && old > 0:
			e.cnst.moveToDisabled(idx)
			s.decreaseConcurrency(e)
		}
	}
	if len(v.elements) > 0 {
		s.markModified(s.elements.Get(v.elements[0]).cnst)
	}
	if weight <= 0 {
		v.value = 0
	}
}

// UpdateVariableBound changes v's upper bound (-1 for unbounded).
func (s *System) UpdateVariableBound(v *Variable, bound float64) {
	s.modified = true
	v.Bound = bound
	if len(v.elements) > 0 {
		s.markModified(s.elements.Get(v.elements[0]).cnst)
	}
}

// UpdateConstraintBound changes c's bound B_c.
func (s *System) UpdateConstraintBound(c *Constraint, bound float64) {
	s.modified = true
	c.Bound = bound
	s.markModified(c)
}

// markModified adds c, and every constraint reachable from it through
// shared variables, to the modified set (no-op unless selective update
// is active). See updateModifiedSetRec for the recursion.
func (s *System) markModified(c *Constraint) {
	if !s.selectiveUpdateActive {
		return
	}
	if s.modifiedSet[c] {
		return
	}
	s.modifiedSet[c] = true
	s.updateModifiedSetRec(c)
}

func (s *System) updateModifiedSetRec(c *Constraint) {
	for _, idx := range c.enabled {
		e := s.elements.Get(idx)
		v := e.vari
		for _, idx2 := range v.elements {
			if v.visited == s.visitedCounter {
				break
			}
			e2 := s.elements.Get(idx2)
			if e2.cnst != c && !s.modifiedSet[e2.cnst] {
				s.modifiedSet[e2.cnst] = true
				s.updateModifiedSetRec(e2.cnst)
			}
		}
		v.visited = s.visitedCounter
	}
}

// removeAllModifiedSet clears the modified set at the end of a
// selective solve, bumping the visited-counter generation (and, on the
// rare wraparound to 1, resetting every variable's counter).
func (s *System) removeAllModifiedSet() {
	s.visitedCounter++
	if s.visitedCounter == 1 {
		for _, v := range s.variables {
			v.visited = 0
		}
	}
	for c := range s.modifiedSet {
		delete(s.modifiedSet, c)
	}
}
