package platform

import (
	"testing"

	"github.com/nmxmxh/simcore/lmm"
	"github.com/nmxmxh/simcore/surf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_ResolvesHostsLinksAndRoutes(t *testing.T) {
	b := NewBuilder()
	b.DeclareHost("H1", 100e6)
	b.DeclareHost("H2", 100e6)
	b.DeclareLink("L1", 10e6, 0.001, lmm.Shared)
	b.DeclareRoute("H1", "H2", "L1")
	b.DeclareRoute("H2", "H1", "L1")

	sys := lmm.NewSystem(false)
	cpu := surf.NewCPUModel(sys)
	net := surf.NewNetworkModel(sys)

	p, err := Build(b, cpu, net)
	require.NoError(t, err)

	h1, ok := p.Host("H1")
	require.True(t, ok)
	assert.Equal(t, "H1", h1.Name)

	route, reverse, ok := p.Route("H1", "H2")
	require.True(t, ok)
	require.Len(t, route, 1)
	assert.Equal(t, "L1", route[0].Name)
	require.Len(t, reverse, 1)
	assert.Equal(t, "L1", reverse[0].Name)

	_, _, ok = p.Route("H1", "H3")
	assert.False(t, ok)
}

func TestBuild_RejectsRouteToUnknownHost(t *testing.T) {
	b := NewBuilder()
	b.DeclareHost("H1", 100e6)
	b.DeclareLink("L1", 10e6, 0.001, lmm.Shared)
	b.DeclareRoute("H1", "ghost", "L1")

	sys := lmm.NewSystem(false)
	_, err := Build(b, surf.NewCPUModel(sys), surf.NewNetworkModel(sys))
	assert.Error(t, err)
}

func TestBuild_RejectsRouteOverUnknownLink(t *testing.T) {
	b := NewBuilder()
	b.DeclareHost("H1", 100e6)
	b.DeclareHost("H2", 100e6)
	b.DeclareRoute("H1", "H2", "ghost-link")

	sys := lmm.NewSystem(false)
	_, err := Build(b, surf.NewCPUModel(sys), surf.NewNetworkModel(sys))
	assert.Error(t, err)
}
