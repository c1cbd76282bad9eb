// Package simulator assembles the core components of spec.md §4 — the
// LMM solver, the surf resource models, the maestro scheduler, and the
// platform topology — into the single value spec.md §9 asks for: "no
// package globals; the whole engine lives behind one Simulator value a
// caller constructs explicitly." Everything else (cmd/simcore) only
// ever talks to this package.
package simulator

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/nmxmxh/simcore/activity"
	"github.com/nmxmxh/simcore/config"
	"github.com/nmxmxh/simcore/internal/klog"
	"github.com/nmxmxh/simcore/lmm"
	"github.com/nmxmxh/simcore/platform"
	"github.com/nmxmxh/simcore/simix"
	"github.com/nmxmxh/simcore/surf"
	"github.com/nmxmxh/simcore/trace"
)

// Simulator owns every long-lived piece of one simulation run: the LMM
// system backing both resource models, the CPU/network models
// themselves, the resolved platform topology, the maestro scheduler,
// and the ambient config/logging/tracing/shutdown machinery.
type Simulator struct {
	cfg      *config.Config
	log      *klog.Logger
	hooks    trace.Hooks
	sys      *lmm.System
	cpu      *surf.CPUModel
	net      *surf.NetworkModel
	platform *platform.Platform
	maestro  *simix.Maestro
	shutdown *klog.GracefulShutdown
}

// New builds a Simulator over an already-populated platform.Builder:
// it constructs the LMM system and resource models, applies
// MaxminPrecision, MaxminConcurrencyLimit and the NetworkLatencyFactor/
// NetworkBandwidthFactor/NetworkTCPGamma fields onto them (the other
// config.Config fields are stored but not consumed), resolves b against
// those models, wires the maestro's ExecuteHook/StartComm injection points,
// and seeds the scheduler for deterministic reruns (spec.md §8).
func New(b *platform.Builder, cfg *config.Config, seed int64, hooks trace.Hooks, log *klog.Logger) (*Simulator, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if log == nil {
		log = klog.DefaultLogger("simulator")
	}
	if hooks == nil {
		hooks = trace.Nop{}
	}

	sys := lmm.NewSystem(true)
	sys.Precision = cfg.MaxminPrecision

	cpu := surf.NewCPUModel(sys)
	net := surf.NewNetworkModel(sys)
	net.LatencyFactor = orDefault(cfg.NetworkLatencyFactor, 1)
	net.BandwidthFactor = orDefault(cfg.NetworkBandwidthFactor, 1)
	net.TCPGamma = orDefault(cfg.NetworkTCPGamma, net.TCPGamma)

	plat, err := platform.Build(b, cpu, net)
	if err != nil {
		return nil, err
	}

	for _, h := range plat.Hosts() {
		cpu.SetConcurrencyLimit(h, cfg.MaxminConcurrencyLimit)
	}
	for _, l := range plat.Links() {
		net.SetConcurrencyLimit(l, cfg.MaxminConcurrencyLimit)
	}

	maestro := simix.NewMaestro([]surf.Model{cpu, net}, seed, log)

	s := &Simulator{
		cfg:      cfg,
		log:      log,
		hooks:    hooks,
		sys:      sys,
		cpu:      cpu,
		net:      net,
		platform: plat,
		maestro:  maestro,
		shutdown: klog.NewGracefulShutdown(5*time.Second, log),
	}

	maestro.ExecuteHook = s.executeHook
	maestro.StartComm = s.startCommHook
	s.shutdown.Register(func() error {
		log.Info("simulator shutting down", klog.Float64("clock", maestro.Clock()))
		return nil
	})

	return s, nil
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// Config returns the resolved configuration this Simulator was built
// from.
func (s *Simulator) Config() *config.Config { return s.cfg }

// Platform returns the resolved host/link/route topology.
func (s *Simulator) Platform() *platform.Platform { return s.platform }

// Hooks returns the trace sink this Simulator reports to (trace.Nop{}
// if none was supplied).
func (s *Simulator) Hooks() trace.Hooks { return s.hooks }

// SpawnActor creates a new actor bound to the named host and enqueues
// it for the next scheduling tick. hostName must resolve through the
// platform this Simulator was built from.
func (s *Simulator) SpawnActor(name, hostName string, body simix.Body, userData interface{}) (*simix.Actor, error) {
	h, ok := s.platform.Host(hostName)
	if !ok {
		return nil, &UnknownHostError{Name: hostName}
	}
	return s.maestro.SpawnActor(name, h, body, userData), nil
}

// Run drives the maestro loop to completion (spec.md §4.D). It
// returns nil once every actor has terminated, or a
// *simix.DeadlockError if every remaining actor is blocked with
// nothing pending.
func (s *Simulator) Run() error { return s.maestro.Run() }

// Clock returns the current virtual time.
func (s *Simulator) Clock() float64 { return s.maestro.Clock() }

// Shutdown runs every registered cleanup hook, concurrently, within ctx's
// deadline, adapted from internal/klog.GracefulShutdown the same way
// the teacher's own server entry points drain in-flight work on exit.
func (s *Simulator) Shutdown(ctx context.Context) error { return s.shutdown.Shutdown(ctx) }

// executeHook backs simix.Maestro.ExecuteHook: it resolves a's host to
// its *surf.Host and starts a compute action on the CPU model.
func (s *Simulator) executeHook(a *simix.Actor, flops, now float64) *activity.Action {
	h := a.Host.(*surf.Host)
	return s.cpu.Execute(h, flops, now)
}

// startCommHook backs simix.Maestro.StartComm: it resolves the two
// endpoint hosts to a forward (and, if declared, reverse) route and
// promotes the provisional action into a running communication. No
// simcall exposes a user-level rate cap (spec.md §4.D's comm_isend/
// comm_irecv take no rate argument), so the TCP window is the only
// bound in play — the same "no artificial user rate" default
// surf.CPUModel.Execute already applies to compute actions.
func (s *Simulator) startCommHook(act *activity.Action, srcHost, dstHost interface{}, now float64) {
	src := srcHost.(*surf.Host)
	dst := dstHost.(*surf.Host)
	route, reverse, ok := s.platform.Route(src.Name, dst.Name)
	if !ok {
		act.Finish(activity.Failed, now)
		return
	}
	s.net.Start(act, math.Inf(1), route, reverse, now)
}

// UnknownHostError reports that SpawnActor was asked to bind an actor
// to a host name the Simulator's platform never declared.
type UnknownHostError struct{ Name string }

func (e *UnknownHostError) Error() string {
	return fmt.Sprintf("simulator: unknown host %q", e.Name)
}
