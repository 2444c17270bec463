package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadControllerConfig_AppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "controller.yaml")

	minimal := `
cert_file: "certs/cert.pem"
key_file: "certs/key.pem"
`
	require.NoError(t, os.WriteFile(configFile, []byte(minimal), 0644))

	cfg, err := loadControllerConfig(configFile)
	require.NoError(t, err)
	assert.Equal(t, ":9443", cfg.Address)
	assert.Equal(t, ":9090", cfg.AdminAddr)
	assert.Equal(t, 600, cfg.SweepEvery)
	assert.Equal(t, 24, cfg.RetentionHr)
}

func TestLoadControllerConfig_PreservesExplicitValues(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "controller.yaml")

	full := `
address: "0.0.0.0:8443"
admin_address: ":9999"
cert_file: "/c.pem"
key_file: "/k.pem"
client_ca_file: "/ca.pem"
store_path: "/var/lib/sdnctl/store.json"
sweep_interval_sec: 120
retention_hours: 2
`
	require.NoError(t, os.WriteFile(configFile, []byte(full), 0644))

	cfg, err := loadControllerConfig(configFile)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8443", cfg.Address)
	assert.Equal(t, ":9999", cfg.AdminAddr)
	assert.Equal(t, "/ca.pem", cfg.ClientCAs)
	assert.Equal(t, "/var/lib/sdnctl/store.json", cfg.StorePath)
	assert.Equal(t, 120, cfg.SweepEvery)
	assert.Equal(t, 2, cfg.RetentionHr)
}

func TestLoadControllerConfig_MissingFile(t *testing.T) {
	_, err := loadControllerConfig("/nonexistent/controller.yaml")
	assert.Error(t, err)
}

func TestSetupServerTLS_InvalidFiles(t *testing.T) {
	_, err := setupServerTLS("/nonexistent/cert.pem", "/nonexistent/key.pem", "")
	assert.Error(t, err)
}

func TestHealthHandler_ProbeLive_GETAndHEAD(t *testing.T) {
	h := &healthHandler{statusFunc: func() Status {
		return Status{Status: "healthy", ActiveSessions: 1, Timestamp: time.Now()}
	}}

	req := httptest.NewRequest(http.MethodGet, "/health?probe=live", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "alive", resp["status"])

	req = httptest.NewRequest(http.MethodHead, "/health?probe=live", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, rec.Body.Len())
}

func TestHealthHandler_ProbeReady_Cases(t *testing.T) {
	tests := map[string]struct {
		status     Status
		wantCode   int
		wantReady  bool
		wantReason string
	}{
		"ready with healthy status": {
			status:    Status{ActiveSessions: 0, Status: "healthy"},
			wantCode:  http.StatusOK,
			wantReady: true,
		},
		"invalid session count": {
			status:     Status{ActiveSessions: -1, Status: "healthy"},
			wantCode:   http.StatusServiceUnavailable,
			wantReady:  false,
			wantReason: "invalid_session_state",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := &healthHandler{statusFunc: func() Status { return tt.status }}
			req := httptest.NewRequest(http.MethodGet, "/health?probe=ready", nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)

			var resp map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantReady, resp["ready"])
			if !tt.wantReady {
				assert.Equal(t, tt.wantReason, resp["reason"])
			}
		})
	}
}

func TestHealthHandler_DefaultStatusResponses(t *testing.T) {
	tests := map[string]struct {
		status   Status
		wantCode int
	}{
		"unhealthy status code": {status: Status{Status: "unhealthy"}, wantCode: http.StatusServiceUnavailable},
		"healthy status code":   {status: Status{Status: "healthy"}, wantCode: http.StatusOK},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := &healthHandler{statusFunc: func() Status { return tt.status }}
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)

			var resp map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.status.Status, resp["status"])
			assert.Contains(t, resp, "live")
			assert.Contains(t, resp, "ready")
		})
	}
}

func TestHealthHandler_InvalidMethod(t *testing.T) {
	h := &healthHandler{statusFunc: func() Status { return Status{Status: "healthy"} }}
	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type mockServer struct {
	listenCalled   chan struct{}
	shutdownCalled chan struct{}
	listenErr      error
}

func newMockServer(listenErr error) *mockServer {
	return &mockServer{listenCalled: make(chan struct{}), shutdownCalled: make(chan struct{}), listenErr: listenErr}
}

func (m *mockServer) ListenAndServe() error {
	close(m.listenCalled)
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.shutdownCalled
	return nil
}

func (m *mockServer) Shutdown(_ context.Context) error {
	select {
	case <-m.shutdownCalled:
	default:
		close(m.shutdownCalled)
	}
	return nil
}

type mockControlServer struct {
	listenCalled chan struct{}
	closeCalled  chan struct{}
}

func newMockControlServer() *mockControlServer {
	return &mockControlServer{listenCalled: make(chan struct{}), closeCalled: make(chan struct{})}
}

func (m *mockControlServer) ListenAndServe(ctx context.Context) error {
	close(m.listenCalled)
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockControlServer) Close() error {
	select {
	case <-m.closeCalled:
	default:
		close(m.closeCalled)
	}
	return nil
}

func TestServeControlPlane_ShutdownOnContextCancel(t *testing.T) {
	ctlMock := newMockControlServer()
	httpMock := newMockServer(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go serveControlPlane(ctx, ctlMock, httpMock, time.Second)

	<-ctlMock.listenCalled
	<-httpMock.listenCalled

	cancel()

	select {
	case <-ctlMock.closeCalled:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("control server close was not called")
	}

	select {
	case <-httpMock.shutdownCalled:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("http shutdown was not called")
	}
}

func TestServeControlPlane_IgnoresImmediateHTTPError(t *testing.T) {
	ctlMock := newMockControlServer()
	httpMock := newMockServer(fmt.Errorf("listen failed"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go serveControlPlane(ctx, ctlMock, httpMock, time.Second)

	<-ctlMock.listenCalled
	<-httpMock.listenCalled

	cancel()

	select {
	case <-ctlMock.closeCalled:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("control server close was not called after context cancel")
	}
}
