package controlclient

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netsdn/controlplane/internal/protocol"
)

// writeSelfSignedPair generates a throwaway self-signed cert/key pair,
// writes them (plus the cert again as CA) to PEM files under dir, and
// returns a server-side tls.Config trusting the same certificate.
func writeSelfSignedPair(t *testing.T, dir string) (serverCfg *tls.Config, certPath, keyPath, caPath string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "controlclient-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		DNSNames:              []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")
	caPath = filepath.Join(dir, "ca.pem")

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	require.NoError(t, os.WriteFile(certPath, certPEM, 0o600))
	require.NoError(t, os.WriteFile(caPath, certPEM, 0o600))

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	require.NoError(t, os.WriteFile(keyPath, keyPEM, 0o600))

	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	pool := x509.NewCertPool()
	pool.AddCert(leaf)

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	require.NoError(t, err)

	serverCfg = &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
	}
	return serverCfg, certPath, keyPath, caPath
}

// fakeControllerOnce accepts exactly one connection, completes the
// REGISTER handshake, pushes one ROUTE_UPDATE, and reads one HEARTBEAT
// without acknowledging it.
func fakeControllerOnce(t *testing.T, ln net.Listener) {
	t.Helper()
	conn, err := ln.Accept()
	require.NoError(t, err)
	defer conn.Close()

	r := protocol.NewReader(conn, 0)
	w := protocol.NewWriter(conn)

	reg, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeRegister, reg.Type)

	ack, err := protocol.New(protocol.TypeRegisterAck, "controller", "R1", protocol.RegisterAckPayload{Success: true}, time.Now())
	require.NoError(t, err)
	require.NoError(t, w.WriteMessage(ack))

	update, err := protocol.New(protocol.TypeRouteUpdate, "controller", "R1", protocol.RouteUpdatePayload{
		Rutas: []protocol.RutaEntry{{Destino: "10.0.0.3", NextHop: "10.0.0.2", Costo: 2}},
	}, time.Now())
	require.NoError(t, err)
	require.NoError(t, w.WriteMessage(update))

	hb, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeHeartbeat, hb.Type)
}

func TestClient_RegisterReceiveRouteUpdateAndHeartbeat(t *testing.T) {
	dir := t.TempDir()
	serverCfg, certPath, keyPath, caPath := writeSelfSignedPair(t, dir)

	ln, err := tls.Listen("tcp", "127.0.0.1:0", serverCfg)
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fakeControllerOnce(t, ln)
	}()

	var received protocol.RouteUpdatePayload
	gotUpdate := make(chan struct{}, 1)

	c, err := New(Config{
		Addr:              ln.Addr().String(),
		RouterName:        "R1",
		RouterIP:          "10.0.0.1",
		TLS:               TLSConfig{CertFile: certPath, KeyFile: keyPath, CAFile: caPath},
		HeartbeatInterval: 20 * time.Millisecond,
	}, func(p protocol.RouteUpdatePayload) {
		received = p
		gotUpdate <- struct{}{}
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	select {
	case <-gotUpdate:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for route update")
	}
	assert.Len(t, received.Rutas, 1)
	assert.Equal(t, "10.0.0.3", received.Rutas[0].Destino)

	<-done
	cancel()
	<-runErr
}

func TestDeriveNextHop_FillsFromCaminoWhenAbsent(t *testing.T) {
	ruta := deriveNextHop(protocol.RutaDetalle{
		Destino: "10.0.0.3",
		Camino:  []string{"R1", "R2", "R3"},
	})
	require.NotNil(t, ruta.NextHop)
	assert.Equal(t, "R2", *ruta.NextHop)
}

func TestDeriveNextHop_LeavesAbsentWhenNoPath(t *testing.T) {
	ruta := deriveNextHop(protocol.RutaDetalle{Destino: "10.0.0.9"})
	assert.Nil(t, ruta.NextHop)
}

func TestDeriveNextHop_DoesNotOverrideExistingValue(t *testing.T) {
	existing := "R9"
	ruta := deriveNextHop(protocol.RutaDetalle{
		Destino: "10.0.0.3",
		NextHop: &existing,
		Camino:  []string{"R1", "R2", "R3"},
	})
	require.NotNil(t, ruta.NextHop)
	assert.Equal(t, "R9", *ruta.NextHop)
}
