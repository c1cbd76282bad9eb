package simix

import (
	"testing"

	"github.com/nmxmxh/simcore/activity"
	"github.com/nmxmxh/simcore/lmm"
	"github.com/nmxmxh/simcore/surf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Actor bodies run on their own kcontext goroutine, but maestro's
// Resume/Suspend handshake fully serializes them with the test
// goroutine — only one of the two ever runs at a time — so using
// assert (never require, which calls runtime.Goexit) from inside a
// body is safe: failures are just recorded, never used to unwind a
// goroutine other than the test's own.

func TestMaestro_SleepTwiceEndsAtExactlyTwo(t *testing.T) {
	m := NewMaestro(nil, 1, nil)
	m.SpawnActor("a", nil, func(self *Actor) {
		assert.NoError(t, self.Sleep(1))
		assert.NoError(t, self.Sleep(1))
	}, nil)

	require.NoError(t, m.Run())
	assert.InDelta(t, 2.0, m.Clock(), 1e-9)
}

func TestMaestro_DeadlockWhenAllActorsBlockForever(t *testing.T) {
	m := NewMaestro(nil, 1, nil)
	rdv := NewRendezvous("rdv")
	m.SpawnActor("waiter", nil, func(self *Actor) {
		act, err := self.Recv(rdv, nil, nil)
		assert.NoError(t, err)
		assert.NoError(t, self.Wait(act, -1))
	}, nil)

	err := m.Run()
	var dl *DeadlockError
	require.ErrorAs(t, err, &dl)
	assert.Contains(t, dl.Blocked, "waiter")
}

func TestMaestro_RendezvousSendRecvMatchAndComplete(t *testing.T) {
	sys := lmm.NewSystem(false)
	net := surf.NewNetworkModel(sys)
	link := net.AddLink("l1", 10, 0, lmm.Shared)

	m := NewMaestro([]surf.Model{net}, 1, nil)
	m.StartComm = func(act *activity.Action, src, dst interface{}, now float64) {
		net.Start(act, 1e18, []*surf.Link{link}, nil, now)
	}

	rdv := NewRendezvous("rdv")
	var recvDone bool

	m.SpawnActor("receiver", "H2", func(self *Actor) {
		act, err := self.Recv(rdv, nil, nil)
		assert.NoError(t, err)
		assert.NoError(t, self.Wait(act, -1))
		recvDone = true
	}, nil)

	m.SpawnActor("sender", "H1", func(self *Actor) {
		assert.NoError(t, self.Sleep(5))
		act, err := self.Send(rdv, 10, nil, nil)
		assert.NoError(t, err)
		assert.NoError(t, self.Wait(act, -1))
	}, nil)

	require.NoError(t, m.Run())
	assert.True(t, recvDone)
	assert.InDelta(t, 6.0, m.Clock(), 1e-3, "5s delay before send, plus 10 bytes / 10 B/s")
}

func TestMaestro_RecvTimeoutWithNoMatchingSend(t *testing.T) {
	m := NewMaestro(nil, 1, nil)
	rdv := NewRendezvous("rdv")

	m.SpawnActor("waiter", nil, func(self *Actor) {
		act, err := self.Recv(rdv, nil, nil)
		assert.NoError(t, err)
		err = self.Wait(act, 3)
		assert.Error(t, err)
		assert.Equal(t, activity.SrcTimeout, act.State)
	}, nil)

	require.NoError(t, m.Run())
	assert.InDelta(t, 3.0, m.Clock(), 1e-9)
}

func TestMaestro_MutexGrantsAccessInArrivalOrder(t *testing.T) {
	m := NewMaestro(nil, 1, nil)
	mu := NewMutex()
	var order []int

	for i := 0; i < 4; i++ {
		i := i
		m.SpawnActor("A", nil, func(self *Actor) {
			assert.NoError(t, self.Sleep(float64(i)))
			assert.NoError(t, self.LockMutex(mu))
			order = append(order, i)
			assert.NoError(t, self.Sleep(10))
			self.UnlockMutex(mu)
		}, nil)
	}

	require.NoError(t, m.Run())
	assert.Equal(t, []int{0, 1, 2, 3}, order)
	assert.InDelta(t, 40.0, m.Clock(), 1e-6, "A3 acquires at t=30 and holds for 10s")
}

func TestMaestro_KillStopsActorAndRunsExitHook(t *testing.T) {
	m := NewMaestro(nil, 1, nil)
	exited := false

	var victim *Actor
	m.SpawnActor("victim", nil, func(self *Actor) {
		victim = self
		self.OnExit(func() { exited = true })
		_ = self.Sleep(1000) // would otherwise never return in this test's lifetime
	}, nil)

	m.SpawnActor("killer", nil, func(self *Actor) {
		assert.NoError(t, self.Sleep(1))
		self.Kill(victim)
	}, nil)

	require.NoError(t, m.Run())
	assert.True(t, exited)
}

func TestMaestro_ExecuteRunsToCompletionOnHost(t *testing.T) {
	sys := lmm.NewSystem(false)
	cpu := surf.NewCPUModel(sys)
	h := cpu.AddHost("H1", 100)

	m := NewMaestro([]surf.Model{cpu}, 1, nil)
	m.ExecuteHook = func(a *Actor, flops, now float64) *activity.Action {
		return cpu.Execute(h, flops, now)
	}

	m.SpawnActor("compute", h, func(self *Actor) {
		act, err := self.Execute(1000)
		assert.NoError(t, err)
		assert.NoError(t, self.ExecutionWait(act))
		assert.Equal(t, activity.Done, act.State)
	}, nil)

	require.NoError(t, m.Run())
	assert.InDelta(t, 10.0, m.Clock(), 1e-3)
}
