package surf

import (
	"github.com/nmxmxh/simcore/activity"
	"github.com/nmxmxh/simcore/lmm"
)

// Host is a simulated compute resource: an immutable identity plus a
// mutable on/off state and current processing speed (spec.md §3).
type Host struct {
	Name  string
	Speed float64 // flops/s while on
	On    bool

	constraint *lmm.Constraint
}

// CPUModel is the one CPU model variant spec.md §4.B describes;
// "others derive" from it by swapping how a host's constraint bound
// tracks its speed trace.
type CPUModel struct {
	sys     *lmm.System
	hosts   map[string]*Host
	running map[*activity.Action]bool
}

// NewCPUModel creates an empty CPU model over the given LMM system.
func NewCPUModel(sys *lmm.System) *CPUModel {
	return &CPUModel{sys: sys, hosts: make(map[string]*Host), running: make(map[*activity.Action]bool)}
}

// AddHost registers a host with the given processing speed (flops/s)
// and a freshly created LMM constraint bounding its total throughput.
func (m *CPUModel) AddHost(name string, speed float64) *Host {
	h := &Host{Name: name, Speed: speed, On: true}
	h.constraint = m.sys.NewConstraint(h, speed)
	m.hosts[name] = h
	return h
}

// SetConcurrencyLimit applies the maxmin/concurrency-limit config key
// (spec.md §6) to host's underlying constraint; -1 means unlimited.
func (m *CPUModel) SetConcurrencyLimit(h *Host, n int) { h.constraint.ConcurrencyLimit = n }

// Host looks up a previously registered host by name.
func (m *CPUModel) Host(name string) (*Host, bool) {
	h, ok := m.hosts[name]
	return h, ok
}

// Execute allocates a compute action of the given cost (flops) on
// host, expands it against the host's constraint with coefficient 1,
// and marks it Running (spec.md §4.B).
func (m *CPUModel) Execute(host *Host, flops, now float64) *activity.Action {
	a := activity.New(activity.KindExecute, flops)
	a.StartTime = now
	a.Variable = m.sys.NewVariable(a, 1, -1, 1)
	m.sys.Expand(host.constraint, a.Variable, 1)
	a.State = activity.Running
	m.running[a] = true
	return a
}

// ShareResources solves the LMM system and returns the smallest
// positive time until some running action completes.
func (m *CPUModel) ShareResources(now float64) float64 {
	if len(m.running) == 0 {
		return posInf
	}
	m.sys.Solve()
	next := posInf
	for a := range m.running {
		x := a.Variable.Value()
		if x <= 0 {
			continue
		}
		if t := a.Remaining / x; t < next {
			next = t
		}
	}
	return next
}

// UpdateActionsState advances every running action's remaining cost by
// x_v·delta and finishes any that reach zero.
func (m *CPUModel) UpdateActionsState(now, delta float64) {
	for a := range m.running {
		x := a.Variable.Value()
		a.Remaining -= x * delta
		if a.Remaining <= Epsilon*maxFloat(1, a.Cost) {
			a.Remaining = 0
			m.sys.UpdateVariableWeight(a.Variable, 0)
			a.Finish(activity.Done, now+delta)
			delete(m.running, a)
		}
	}
}

// UpdateResourceState applies a host on/off transition: turning a host
// off drops its constraint bound to zero and fails every action
// currently running on it.
func (m *CPUModel) UpdateResourceState(ev StateEvent) {
	if ev.Kind != HostStateEvent {
		return
	}
	h := ev.Target.(*Host)
	h.On = ev.On
	if ev.On {
		m.sys.UpdateConstraintBound(h.constraint, h.Speed)
		return
	}
	m.sys.UpdateConstraintBound(h.constraint, 0)
	for a := range m.running {
		if a.Variable != nil && m.sys.VariableTouches(h.constraint, a.Variable) {
			a.Finish(activity.SrcHostFailure, 0)
			delete(m.running, a)
		}
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
