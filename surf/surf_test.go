package surf

import (
	"testing"

	"github.com/nmxmxh/simcore/activity"
	"github.com/nmxmxh/simcore/lmm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPUModel_ExecuteRunsToCompletion(t *testing.T) {
	sys := lmm.NewSystem(false)
	cpu := NewCPUModel(sys)
	h := cpu.AddHost("h1", 100) // 100 flops/s

	a := cpu.Execute(h, 1000, 0) // 1000 flops at 100 flops/s => 10s

	now := 0.0
	for i := 0; i < 1000 && a.State == activity.Running; i++ {
		dt := cpu.ShareResources(now)
		require.False(t, dt == posInf, "an execute action must report a finite completion delta")
		cpu.UpdateActionsState(now, dt)
		now += dt
	}

	assert.Equal(t, activity.Done, a.State)
	assert.InDelta(t, 10.0, now, 1e-3)
}

func TestCPUModel_HostFailureAbortsRunningAction(t *testing.T) {
	sys := lmm.NewSystem(false)
	cpu := NewCPUModel(sys)
	h := cpu.AddHost("h1", 100)
	a := cpu.Execute(h, 1000, 0)

	cpu.UpdateResourceState(StateEvent{Kind: HostStateEvent, Target: h, On: false})

	assert.Equal(t, activity.SrcHostFailure, a.State)
}

func TestNetworkModel_CommunicateFinishesAfterLatencyAndTransfer(t *testing.T) {
	sys := lmm.NewSystem(false)
	net := NewNetworkModel(sys)
	net.LatencyFactor = 1
	link := net.AddLink("l1", 10, 0.001, lmm.Shared) // 10 B/s, 1ms latency

	a := net.Communicate("A", "B", 10, posInf, []*Link{link}, nil, 0)

	now := 0.0
	for i := 0; i < 10000 && a.State == activity.Running; i++ {
		dt := net.ShareResources(now)
		require.False(t, dt == posInf)
		net.UpdateActionsState(now, dt)
		now += dt
	}

	assert.Equal(t, activity.Done, a.State)
	assert.InDelta(t, 0.001+1.0, now, 1e-3, "1ms latency plus 10 bytes over a 10 B/s link")
}

func TestNetworkModel_FatPipeGivesEachFlowFullBandwidth(t *testing.T) {
	sys := lmm.NewSystem(false)
	net := NewNetworkModel(sys)
	link := net.AddLink("out", 100, 0, lmm.FatPipe)

	a := net.Communicate("A", "X", 100, posInf, []*Link{link}, nil, 0)
	b := net.Communicate("A", "Y", 100, posInf, []*Link{link}, nil, 0)

	net.ShareResources(0)
	assert.InDelta(t, 100, a.Variable.Value(), 1e-3)
	assert.InDelta(t, 100, b.Variable.Value(), 1e-3)
}

func TestNetworkModel_LinkFailureFailsInFlightComm(t *testing.T) {
	sys := lmm.NewSystem(false)
	net := NewNetworkModel(sys)
	link := net.AddLink("l1", 10, 0, lmm.Shared)
	a := net.Communicate("A", "B", 100, posInf, []*Link{link}, nil, 0)

	net.UpdateResourceState(StateEvent{Kind: LinkStateEvent, Target: link, On: false})

	assert.Equal(t, activity.LinkFailure, a.State)
}

func TestNetworkModel_ReverseRouteCarriesAckBackpressure(t *testing.T) {
	sys := lmm.NewSystem(false)
	net := NewNetworkModel(sys)
	fwd := net.AddLink("fwd", 100, 0, lmm.Shared)
	rev := net.AddLink("rev", 1, 0, lmm.Shared) // tiny reverse link

	a := net.Communicate("A", "B", 100, posInf, []*Link{fwd}, []*Link{rev}, 0)
	net.ShareResources(0)

	// The reverse link's bound (1) divided by the 0.05 coefficient caps
	// the flow at 20, well below the forward link's 100.
	assert.InDelta(t, 20.0, a.Variable.Value(), 1e-2)
}
