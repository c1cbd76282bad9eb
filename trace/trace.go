// Package trace implements the optional Paje-like event consumer of
// spec.md §6: declare_var/set_var/add_var/sub_var/event hooks, invoked
// by the core in virtual-time order with no buffering of its own. The
// wire format (Paje) is explicitly out of scope (spec.md §1); only the
// hook interface and an optional live sink are implemented.
package trace

// VarKind tags what a declared variable measures, purely for a
// consumer's legend/axis labeling.
type VarKind int

const (
	VarKindCPULoad VarKind = iota
	VarKindLinkLoad
	VarKindCustom
)

func (k VarKind) String() string {
	switch k {
	case VarKindCPULoad:
		return "cpu_load"
	case VarKindLinkLoad:
		return "link_load"
	default:
		return "custom"
	}
}

// Hooks is the consumer interface spec.md §6 names. simulator.New
// stores the Hooks it is given and exposes them through
// Simulator.Hooks; neither surf nor simix imports this package, so the
// core itself does not call these methods.
type Hooks interface {
	DeclareVar(name string, kind VarKind)
	SetVar(time float64, varName, resource string, value float64)
	AddVar(time float64, varName, resource string, value float64)
	SubVar(time float64, varName, resource string, value float64)
	Event(time float64, container, typ, value string)
}

// Nop is the default Hooks implementation: every call is a no-op, at
// zero cost, for a simulator run with tracing disabled.
type Nop struct{}

func (Nop) DeclareVar(string, VarKind)                      {}
func (Nop) SetVar(float64, string, string, float64)          {}
func (Nop) AddVar(float64, string, string, float64)          {}
func (Nop) SubVar(float64, string, string, float64)          {}
func (Nop) Event(float64, string, string, string)            {}

var _ Hooks = Nop{}
