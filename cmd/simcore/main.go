// Command simcore runs a fixed demonstration scenario through the
// simulation kernel and prints the final virtual clock. Platform-file
// parsing is explicitly out of scope (spec.md §1 Non-goals), so the
// topology below is built directly through platform.Builder the way
// any other front end (a future XML loader, a test) would.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nmxmxh/simcore/config"
	"github.com/nmxmxh/simcore/internal/klog"
	"github.com/nmxmxh/simcore/lmm"
	"github.com/nmxmxh/simcore/platform"
	"github.com/nmxmxh/simcore/simix"
	"github.com/nmxmxh/simcore/simulator"
	"github.com/nmxmxh/simcore/trace"
)

func usage() {
	fmt.Fprintln(os.Stderr, "simcore runs a fixed two-host compute/communication scenario")
	fmt.Fprintln(os.Stderr, "Usage: simcore [flags]")
	flag.PrintDefaults()
}

func main() {
	var (
		seed      int64
		traceURL  string
		verbose   bool
		precision float64
	)
	flag.Usage = usage
	flag.Int64Var(&seed, "seed", 1, "deterministic RNG seed")
	flag.StringVar(&traceURL, "trace", "", "optional WebSocket URL to stream trace events to")
	flag.BoolVar(&verbose, "v", false, "debug-level logging")
	flag.Float64Var(&precision, "precision", 1e-5, "maxmin/precision configuration value")
	flag.Parse()

	level := klog.INFO
	if verbose {
		level = klog.DEBUG
	}
	log := klog.NewLogger(klog.LoggerConfig{
		Level:      level,
		Component:  "simcore",
		Output:     os.Stdout,
		Colorize:   true,
		TimeFormat: "15:04:05.000",
	})

	os.Exit(run(log, seed, traceURL, precision))
}

func run(log *klog.Logger, seed int64, traceURL string, precision float64) int {
	var hooks trace.Hooks = trace.Nop{}
	if traceURL != "" {
		s, err := trace.Dial(traceURL, log.Named("trace"))
		if err != nil {
			log.Error("failed to connect trace sink", klog.String("url", traceURL), klog.Err(err))
			return 1
		}
		defer s.Close()
		hooks = s
	}

	b := platform.NewBuilder()
	b.DeclareHost("A", 1e9) // 1 Gflops/s
	b.DeclareHost("B", 1e9)
	b.DeclareLink("backbone", 1.25e8, 1e-4, lmm.Shared) // 1 Gbit/s, 100us latency
	b.DeclareRoute("A", "B", "backbone")
	b.DeclareRoute("B", "A", "backbone")

	cfg := config.New(config.WithMaxminPrecision(precision))

	sim, err := simulator.New(b, cfg, seed, hooks, log.Named("simulator"))
	if err != nil {
		log.Error("failed to build simulator", klog.Err(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sim.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown did not complete cleanly", klog.Err(err))
		}
	}()

	rdv := simix.NewRendezvous("demo")
	if _, err := sim.SpawnActor("client", "A", func(self *simix.Actor) {
		act, err := self.Execute(5e9) // 5 Gflops of local work first
		if err != nil {
			log.Error("execute failed", klog.Err(err))
			return
		}
		if err := self.ExecutionWait(act); err != nil {
			log.Error("execute wait failed", klog.Err(err))
			return
		}
		comm, err := self.Send(rdv, 1e6, "request", nil) // 1MB request
		if err != nil {
			log.Error("send failed", klog.Err(err))
			return
		}
		if err := self.Wait(comm, -1); err != nil {
			log.Error("send wait failed", klog.Err(err))
		}
	}, nil); err != nil {
		log.Error("failed to spawn client", klog.Err(err))
		return 1
	}

	if _, err := sim.SpawnActor("server", "B", func(self *simix.Actor) {
		comm, err := self.Recv(rdv, nil, nil)
		if err != nil {
			log.Error("recv failed", klog.Err(err))
			return
		}
		if err := self.Wait(comm, -1); err != nil {
			log.Error("recv wait failed", klog.Err(err))
		}
	}, nil); err != nil {
		log.Error("failed to spawn server", klog.Err(err))
		return 1
	}

	if err := sim.Run(); err != nil {
		log.Error("simulation ended in error", klog.Err(err))
		return 1
	}

	log.Info("simulation complete", klog.Float64("clock", sim.Clock()))
	fmt.Printf("final virtual clock: %.6fs\n", sim.Clock())
	return 0
}
