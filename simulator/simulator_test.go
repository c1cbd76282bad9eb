package simulator

import (
	"testing"

	"github.com/nmxmxh/simcore/config"
	"github.com/nmxmxh/simcore/lmm"
	"github.com/nmxmxh/simcore/platform"
	"github.com/nmxmxh/simcore/simix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoHostPlatform() *platform.Builder {
	b := platform.NewBuilder()
	b.DeclareHost("A", 100)
	b.DeclareHost("B", 100)
	b.DeclareLink("l1", 10, 0.001, lmm.Shared)
	b.DeclareRoute("A", "B", "l1")
	b.DeclareRoute("B", "A", "l1")
	return b
}

func TestNew_ResolvesPlatformAndAppliesConfigWithoutError(t *testing.T) {
	b := twoHostPlatform()
	cfg := config.New(config.WithMaxminConcurrencyLimit(3), config.WithMaxminPrecision(1e-7))
	s, err := New(b, cfg, 1, nil, nil)
	require.NoError(t, err)

	assert.Len(t, s.platform.Hosts(), 2)
	assert.Len(t, s.platform.Links(), 1)
	assert.Equal(t, 1e-7, s.sys.Precision)
}

func TestSimulator_ExecuteRunsComputeActionToCompletion(t *testing.T) {
	b := twoHostPlatform()
	s, err := New(b, config.New(), 1, nil, nil)
	require.NoError(t, err)

	_, err = s.SpawnActor("worker", "A", func(self *simix.Actor) {
		act, err := self.Execute(1000) // 1000 flops at 100 flops/s => 10s
		assert.NoError(t, err)
		assert.NoError(t, self.ExecutionWait(act))
	}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Run())
	assert.InDelta(t, 10.0, s.Clock(), 1e-3)
}

func TestSimulator_SendRecvAcrossHostsCompletes(t *testing.T) {
	b := twoHostPlatform()
	s, err := New(b, config.New(), 1, nil, nil)
	require.NoError(t, err)

	rdv := simix.NewRendezvous("r")
	done := false

	_, err = s.SpawnActor("sender", "A", func(self *simix.Actor) {
		act, err := self.Send(rdv, 10, "hello", nil)
		assert.NoError(t, err)
		assert.NoError(t, self.Wait(act, -1))
	}, nil)
	require.NoError(t, err)

	_, err = s.SpawnActor("receiver", "B", func(self *simix.Actor) {
		act, err := self.Recv(rdv, nil, nil)
		assert.NoError(t, err)
		assert.NoError(t, self.Wait(act, -1))
		done = true
	}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Run())
	assert.True(t, done)
	assert.InDelta(t, 0.001+1.0, s.Clock(), 1e-3, "1ms latency plus 10 bytes over a 10 B/s link")
}

func TestSimulator_SpawnActorRejectsUnknownHost(t *testing.T) {
	b := twoHostPlatform()
	s, err := New(b, config.New(), 1, nil, nil)
	require.NoError(t, err)

	_, err = s.SpawnActor("ghost", "nowhere", func(self *simix.Actor) {}, nil)
	require.Error(t, err)
	var uh *UnknownHostError
	assert.ErrorAs(t, err, &uh)
}

func TestSimulator_CommWithNoDeclaredRouteFailsWithoutStallingTheRun(t *testing.T) {
	b := platform.NewBuilder()
	b.DeclareHost("A", 100)
	b.DeclareHost("B", 100)
	// no route declared between A and B
	s, err := New(b, config.New(), 1, nil, nil)
	require.NoError(t, err)

	rdv := simix.NewRendezvous("r")
	_, err = s.SpawnActor("sender", "A", func(self *simix.Actor) {
		act, err := self.Send(rdv, 10, "hello", nil)
		assert.NoError(t, err)
		_ = self.Wait(act, -1) // Failed terminal state surfaces as an error here
	}, nil)
	require.NoError(t, err)
	_, err = s.SpawnActor("receiver", "B", func(self *simix.Actor) {
		act, err := self.Recv(rdv, nil, nil)
		assert.NoError(t, err)
		_ = self.Wait(act, -1)
	}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Run())
}
