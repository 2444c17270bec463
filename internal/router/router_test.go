package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netsdn/controlplane/internal/ospf"
	"github.com/netsdn/controlplane/internal/protocol"
	"github.com/netsdn/controlplane/internal/store"
)

func TestNeighborFull_InstallsInternalRoute(t *testing.T) {
	s := store.NewMemoryStore()
	a := New("R1", "10.0.0.1", s, nil)

	_, err := a.Simulator().ReceiveHello("R2", "10.0.0.2", 5)
	require.NoError(t, err)
	_, err = a.Simulator().ReceiveAck("10.0.0.2")
	require.NoError(t, err)

	e, ok := a.RouteRequest("10.0.0.2")
	require.True(t, ok)
	assert.Equal(t, store.FIBInternal, e.Source)
	assert.Equal(t, 5.0, e.TotalCost)
}

func TestApplyRouteUpdate_ReplacesControllerRoutesOnly(t *testing.T) {
	s := store.NewMemoryStore()
	a := New("R1", "10.0.0.1", s, nil)

	_, err := a.Simulator().ReceiveHello("R2", "10.0.0.2", 1)
	require.NoError(t, err)
	_, err = a.Simulator().ReceiveAck("10.0.0.2")
	require.NoError(t, err)

	require.NoError(t, a.ApplyRouteUpdate(protocol.RouteUpdatePayload{
		Rutas: []protocol.RutaEntry{
			{Destino: "10.0.0.3", NextHop: "10.0.0.2", InterfazSalida: "eth0", Costo: 2},
		},
	}))

	direct, ok := a.RouteRequest("10.0.0.2")
	require.True(t, ok)
	assert.Equal(t, store.FIBInternal, direct.Source, "direct neighbor route must survive a controller route update")

	viaController, ok := a.RouteRequest("10.0.0.3")
	require.True(t, ok)
	assert.Equal(t, store.FIBController, viaController.Source)
	assert.Equal(t, "eth0", viaController.EgressIface)

	require.NoError(t, a.ApplyRouteUpdate(protocol.RouteUpdatePayload{Rutas: nil}))
	_, ok = a.RouteRequest("10.0.0.3")
	assert.False(t, ok, "a second update with no rows purges the stale controller route")
}

func TestNeighborDeadInterval_PurgesRoutesThroughIt(t *testing.T) {
	// Scenario E: a neighbor's adjacency dies, and every FIB entry whose
	// next hop was that neighbor's IP must disappear, not just the
	// neighbor's own direct route.
	s := store.NewMemoryStore()
	a := New("R1", "10.0.0.1", s, nil, ospf.WithIntervals(time.Millisecond, 10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.Simulator().Start(ctx)

	_, err := a.Simulator().ReceiveHello("R2", "10.0.0.2", 1)
	require.NoError(t, err)
	n, err := a.Simulator().ReceiveAck("10.0.0.2")
	require.NoError(t, err)

	require.NoError(t, a.ApplyRouteUpdate(protocol.RouteUpdatePayload{
		Rutas: []protocol.RutaEntry{
			{Destino: "10.0.0.3", NextHop: "10.0.0.2", InterfazSalida: "eth0", Costo: 2},
		},
	}))

	_, ok := a.RouteRequest("10.0.0.2")
	require.True(t, ok)
	_, ok = a.RouteRequest("10.0.0.3")
	require.True(t, ok)

	// force LastHello into the past so the next dead-interval tick reaps it.
	_, err = s.SetNeighborState(n.ID, store.NeighborFull, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		updated, err := s.GetNeighbor(n.ID)
		return err == nil && updated.State == store.NeighborDown
	}, time.Second, 5*time.Millisecond)

	_, ok = a.RouteRequest("10.0.0.2")
	assert.False(t, ok, "the dead neighbor's own direct route must be gone")
	_, ok = a.RouteRequest("10.0.0.3")
	assert.False(t, ok, "every route with next_hop_ip == the dead neighbor's ip must be gone")
}
