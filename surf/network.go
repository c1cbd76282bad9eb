package surf

import (
	"github.com/nmxmxh/simcore/activity"
	"github.com/nmxmxh/simcore/lmm"
)

// Link is a simulated network link: bandwidth and latency, an on/off
// state, and a sharing policy (spec.md §6's platform callback fields).
type Link struct {
	Name      string
	Bandwidth float64
	Latency   float64
	On        bool
	Policy    lmm.Policy

	constraint *lmm.Constraint
}

// commState holds the per-action bookkeeping the network model needs
// beyond what activity.Action itself carries: the route, the optional
// reverse route for ACK back-pressure, and the latency countdown.
type commState struct {
	route, reverse []*Link
	latencyLeft    float64
	bound          float64
}

// NetworkModel is the one network model variant of spec.md §4.B.
type NetworkModel struct {
	sys     *lmm.System
	links   map[string]*Link
	running map[*activity.Action]*commState

	// LatencyFactor/BandwidthFactor/TCPGamma mirror the
	// network/* configuration keys of spec.md §6; the original's
	// latency_factor/bandwidth_factor are piecewise functions of
	// message size, simplified here to the single scalar multipliers
	// the configuration map actually exposes (see DESIGN.md).
	LatencyFactor   float64
	BandwidthFactor float64
	TCPGamma        float64
}

// NewNetworkModel creates an empty network model over sys, with
// spec.md §6's documented network/* defaults (factor 1, gamma disabled
// i.e. +Inf bound contribution) until overridden from config.Config.
func NewNetworkModel(sys *lmm.System) *NetworkModel {
	return &NetworkModel{
		sys:             sys,
		links:           make(map[string]*Link),
		running:         make(map[*activity.Action]*commState),
		LatencyFactor:   1,
		BandwidthFactor: 1,
		TCPGamma:        posInf,
	}
}

// AddLink registers a link with the given bandwidth/latency/policy and
// a constraint bounding its throughput at bandwidth*BandwidthFactor —
// the spec §8 send-completion law's bandwidth_factor(S) term, applied
// here as the scalar multiplier DESIGN.md documents (see LatencyFactor
// above) rather than the original's size-bucketed piecewise function.
func (m *NetworkModel) AddLink(name string, bandwidth, latency float64, policy lmm.Policy) *Link {
	l := &Link{Name: name, Bandwidth: bandwidth, Latency: latency, On: true, Policy: policy}
	l.constraint = m.sys.NewConstraint(l, bandwidth*m.BandwidthFactor)
	l.constraint.Policy = policy
	m.links[name] = l
	return l
}

// SetConcurrencyLimit applies the maxmin/concurrency-limit config key
// (spec.md §6) to link's underlying constraint; -1 means unlimited.
func (m *NetworkModel) SetConcurrencyLimit(l *Link, n int) { l.constraint.ConcurrencyLimit = n }

// Link looks up a previously registered link by name.
func (m *NetworkModel) Link(name string) (*Link, bool) {
	l, ok := m.links[name]
	return l, ok
}

// Communicate allocates a communication action of size bytes along
// route, bounded by userRate, with an optional reverseRoute expanded
// at coefficient 0.05 to model TCP-ACK back-pressure (spec.md §4.B).
// The action's LMM variable starts at weight 0 until the a-priori
// latency elapses; UpdateActionsState raises it to 1 at that point. On a
// route with zero total latency it starts at weight 1 (see Start).
func (m *NetworkModel) Communicate(src, dst interface{}, size, userRate float64, route, reverseRoute []*Link, now float64) *activity.Action {
	a := activity.New(activity.KindCommunicate, size)
	a.Src, a.Dst = src, dst
	a.Size = size
	m.Start(a, userRate, route, reverseRoute, now)
	return a
}

// Start promotes a (already created, possibly by a matched rendezvous
// post rather than by this model) into a running communication: it
// computes the latency, the TCP-window bound, creates the LMM variable,
// and expands it against route/reverseRoute (a reverse-route link that
// is also on the forward route is not expanded a second time). Factored out of
// Communicate so a provisional action already handed to waiting actor
// code (spec.md §4.D's "its action object is shared between sender and
// receiver") can be upgraded in place instead of replaced.
func (m *NetworkModel) Start(a *activity.Action, userRate float64, route, reverseRoute []*Link, now float64) {
	totalLatency := 0.0
	for _, l := range route {
		totalLatency += l.Latency
	}
	latency := m.LatencyFactor * totalLatency

	bound := userRate
	if m.TCPGamma > 0 && latency > 0 {
		if g := m.TCPGamma / (2 * latency); g < bound {
			bound = g
		}
	}

	// A route with zero total latency has nothing to wait out: start its
	// variable already competing for bandwidth (weight 1), rather than
	// leaving it at weight 0 until the next UpdateActionsState call ever
	// notices latencyLeft is already <= 0 — ShareResources would
	// otherwise see a weight-0 variable contributing nothing and report
	// no pending event at all for this action.
	weight := 0.0
	if latency <= 0 {
		weight = 1
	}
	a.StartTime = now
	a.State = activity.Running
	a.Variable = m.sys.NewVariable(a, weight, bound, len(route)+len(reverseRoute))
	for _, l := range route {
		m.sys.Expand(l.constraint, a.Variable, 1)
	}
	for _, l := range reverseRoute {
		if onRoute(route, l) {
			// A link used in both directions is one shared channel, not a
			// full-duplex pair: it carries no separate ACK term.
			continue
		}
		m.sys.Expand(l.constraint, a.Variable, 0.05)
	}

	m.running[a] = &commState{route: route, reverse: reverseRoute, latencyLeft: latency, bound: bound}
}

func onRoute(route []*Link, l *Link) bool {
	for _, r := range route {
		if r == l {
			return true
		}
	}
	return false
}

// ShareResources returns the smallest positive time until some
// action's latency elapses or some already-transmitting action
// completes.
func (m *NetworkModel) ShareResources(now float64) float64 {
	if len(m.running) == 0 {
		return posInf
	}
	m.sys.Solve()
	next := posInf
	for a, st := range m.running {
		if st.latencyLeft > 0 {
			if st.latencyLeft < next {
				next = st.latencyLeft
			}
			continue
		}
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

// UpdateActionsState advances the latency countdown or the in-flight
// byte count of every running action by delta, raising a still-in-
// latency action's weight to 1 the instant its latency elapses
// (spec.md §4.B), and finishing any action whose payload is fully
// transmitted.
func (m *NetworkModel) UpdateActionsState(now, delta float64) {
	for a, st := range m.running {
		if st.latencyLeft > 0 {
			// delta is always exactly ShareResources' reported
			// latencyLeft when latency is the binding event (see
			// ShareResources above), so the weight-1 transition below
			// lands precisely on a step boundary and no byte ever
			// transmits during the same delta latency elapsed in. A delta
			// shorter than latencyLeft only counts the latency down. A
			// delta longer than latencyLeft would transmit nothing for the
			// part past the latency; maestro never passes one, since it
			// takes the minimum over every model's ShareResources.
			st.latencyLeft -= delta
			if st.latencyLeft <= Epsilon {
				st.latencyLeft = 0
				m.sys.UpdateVariableWeight(a.Variable, 1)
			}
			continue
		}
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

// UpdateResourceState applies a link on/off transition: turning a link
// off drops its constraint bound to zero and fails every action
// currently routed over it with LinkFailure.
func (m *NetworkModel) UpdateResourceState(ev StateEvent) {
	if ev.Kind != LinkStateEvent {
		return
	}
	l := ev.Target.(*Link)
	l.On = ev.On
	if ev.On {
		m.sys.UpdateConstraintBound(l.constraint, l.Bandwidth*m.BandwidthFactor)
		return
	}
	m.sys.UpdateConstraintBound(l.constraint, 0)
	toFail := make(map[*activity.Action]bool)
	for a := range m.running {
		if a.Variable != nil && m.sys.VariableTouches(l.constraint, a.Variable) {
			toFail[a] = true
		}
	}
	affected := make([]*activity.Action, 0, len(toFail))
	for a := range toFail {
		affected = append(affected, a)
	}
	finishRunning(toFail, func(*activity.Action) activity.State { return activity.LinkFailure }, 0)
	for _, a := range affected {
		delete(m.running, a)
	}
}
