package controlserver

import (
	"context"
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netsdn/controlplane/internal/controller"
	"github.com/netsdn/controlplane/internal/protocol"
	"github.com/netsdn/controlplane/internal/store"
)

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	serverCfg, clientCfg, err := testTLSPair()
	require.NoError(t, err)

	s := store.NewMemoryStore()
	ctrl := controller.New(s, nil)
	srv := New("127.0.0.1:0", serverCfg, ctrl, s, nil)

	ln, err := srv.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx, ln)
	t.Cleanup(cancel)

	t.Cleanup(func() { clientTLSByTest[t] = nil })
	clientTLSByTest[t] = clientCfg
	return srv, ln.Addr().String()
}

var clientTLSByTest = make(map[*testing.T]*tls.Config)

func dialTestClient(t *testing.T, addr string) (*protocol.Reader, *protocol.Writer, func()) {
	t.Helper()
	cfg := clientTLSByTest[t]
	conn, err := tls.Dial("tcp", addr, cfg)
	require.NoError(t, err)
	return protocol.NewReader(conn, 0), protocol.NewWriter(conn), func() { conn.Close() }
}

func TestHandshake_RegistersNewRouterAndAcks(t *testing.T) {
	srv, addr := startTestServer(t)
	r, w, closeConn := dialTestClient(t, addr)
	defer closeConn()

	msg, err := protocol.New(protocol.TypeRegister, "R1", "controller", protocol.RegisterPayload{
		RouterNombre: "R1",
		RouterIP:     "10.0.0.1",
	}, time.Now())
	require.NoError(t, err)
	require.NoError(t, w.WriteMessage(msg))

	ack, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeRegisterAck, ack.Type)

	var payload protocol.RegisterAckPayload
	require.NoError(t, ack.Decode(&payload))
	assert.True(t, payload.Success)

	// ROUTE_UPDATE follows immediately (empty, single router so far).
	routeMsg, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeRouteUpdate, routeMsg.Type)

	assert.Eventually(t, func() bool { return srv.SessionCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHeartbeat_ReturnsAck(t *testing.T) {
	_, addr := startTestServer(t)
	r, w, closeConn := dialTestClient(t, addr)
	defer closeConn()

	reg, err := protocol.New(protocol.TypeRegister, "R1", "controller", protocol.RegisterPayload{RouterNombre: "R1", RouterIP: "10.0.0.1"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, w.WriteMessage(reg))
	_, err = r.ReadMessage() // ack
	require.NoError(t, err)
	_, err = r.ReadMessage() // initial route update
	require.NoError(t, err)

	hb, err := protocol.New(protocol.TypeHeartbeat, "R1", "controller", protocol.HeartbeatPayload{}, time.Now())
	require.NoError(t, err)
	require.NoError(t, w.WriteMessage(hb))

	ack, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeHeartbeatAck, ack.Type)
}

func TestRouteRequest_UnknownDestinationHasNoRoute(t *testing.T) {
	_, addr := startTestServer(t)
	r, w, closeConn := dialTestClient(t, addr)
	defer closeConn()

	reg, err := protocol.New(protocol.TypeRegister, "R1", "controller", protocol.RegisterPayload{RouterNombre: "R1", RouterIP: "10.0.0.1"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, w.WriteMessage(reg))
	_, err = r.ReadMessage() // ack
	require.NoError(t, err)
	_, err = r.ReadMessage() // initial route update
	require.NoError(t, err)

	req, err := protocol.New(protocol.TypeRouteRequest, "R1", "controller", protocol.RouteRequestPayload{Destino: "R2"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, w.WriteMessage(req))

	resp, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeRouteResponse, resp.Type)

	var payload protocol.RouteResponsePayload
	require.NoError(t, resp.Decode(&payload))
	assert.Equal(t, "R2", payload.Ruta.Destino)
	assert.Nil(t, payload.Ruta.Costo, "R2 does not exist yet, so no route is resolved")
}
