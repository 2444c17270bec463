// Package cli wires the Controller and Router agent processes together:
// YAML configuration loading, TLS setup, signal-driven graceful shutdown,
// and the admin HTTP surface (/health, /metrics). The shape is grounded on
// the teacher's internal/cli/relay.go (loadConfig/setupTLS/serveComponents/
// healthHandler).
package cli

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"github.com/netsdn/controlplane/internal/controller"
	"github.com/netsdn/controlplane/internal/controlserver"
	"github.com/netsdn/controlplane/internal/eventlog"
	"github.com/netsdn/controlplane/internal/store"
)

// ControllerConfig is the Controller process's YAML configuration.
type ControllerConfig struct {
	Address     string `yaml:"address"`
	AdminAddr   string `yaml:"admin_address"`
	CertFile    string `yaml:"cert_file"`
	KeyFile     string `yaml:"key_file"`
	ClientCAs   string `yaml:"client_ca_file"`
	StorePath   string `yaml:"store_path"` // empty: in-memory only
	SweepEvery  int    `yaml:"sweep_interval_sec"`
	RetentionHr int    `yaml:"retention_hours"`
}

func loadControllerConfig(filename string) (*ControllerConfig, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var cfg ControllerConfig
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Address == "" {
		cfg.Address = ":9443"
	}
	if cfg.AdminAddr == "" {
		cfg.AdminAddr = ":9090"
	}
	if cfg.SweepEvery == 0 {
		cfg.SweepEvery = 600
	}
	if cfg.RetentionHr == 0 {
		cfg.RetentionHr = 24
	}
	return &cfg, nil
}

func setupServerTLS(certFile, keyFile, clientCAFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificates: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
	}

	if clientCAFile != "" {
		caCert, err := os.ReadFile(clientCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read client CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse client CA certificate")
		}
		tlsCfg.ClientCAs = pool
	}

	return tlsCfg, nil
}

// RunController is the entry point for the "controller" subcommand.
func RunController(args []string) error {
	fs := newFlagSet("controller")
	configFile := fs.String("config", "config.controller.yaml", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadControllerConfig(*configFile)
	if err != nil {
		return err
	}

	tlsCfg, err := setupServerTLS(cfg.CertFile, cfg.KeyFile, cfg.ClientCAs)
	if err != nil {
		return fmt.Errorf("failed to setup TLS: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var st store.Store
	if cfg.StorePath != "" {
		fileStore, err := store.NewFileStore(cfg.StorePath)
		if err != nil {
			return fmt.Errorf("failed to open store file: %w", err)
		}
		st = fileStore
	} else {
		st = store.NewMemoryStore()
	}

	ctrl := controller.New(st, slog.Default())
	ctlServer := controlserver.New(cfg.Address, tlsCfg, ctrl, st, slog.Default())

	sweeper := eventlog.New(st, slog.Default(),
		eventlog.WithInterval(time.Duration(cfg.SweepEvery)*time.Second),
		eventlog.WithRetention(time.Duration(cfg.RetentionHr)*time.Hour))
	sweeper.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/health", &healthHandler{statusFunc: func() Status {
		return Status{Status: "healthy", Timestamp: time.Now(), ActiveSessions: ctlServer.SessionCount()}
	}})
	mux.Handle("/metrics", promhttp.Handler())
	adminServer := &http.Server{Addr: cfg.AdminAddr, Handler: mux}

	serveControlPlane(ctx, ctlServer, adminServer, 10*time.Second)
	return nil
}

// controlServerRunner is the subset of controlserver.Server's lifecycle
// serveControlPlane depends on, so tests can substitute a fake.
type controlServerRunner interface {
	ListenAndServe(ctx context.Context) error
	Close() error
}

// httpServerRunner mirrors http.Server's lifecycle.
type httpServerRunner interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// serveControlPlane starts the control-plane TLS server and the admin
// HTTP server, and blocks until ctx is cancelled, then shuts both down
// within shutdownTimeout. Mirrors the teacher's serveComponents.
func serveControlPlane(ctx context.Context, ctlSrv controlServerRunner, adminSrv httpServerRunner, shutdownTimeout time.Duration) {
	go func() {
		if err := ctlSrv.ListenAndServe(ctx); err != nil {
			log.Printf("control server error: %v", err)
		}
	}()

	go func() {
		if err := adminSrv.ListenAndServe(); err != nil {
			if err == http.ErrServerClosed {
				return
			}
			log.Printf("admin server error: %v", err)
		}
	}()

	log.Println("controller started successfully")
	log.Println("  /health  - health check (?probe=live|ready)")
	log.Println("  /metrics - Prometheus metrics")

	<-ctx.Done()
	slog.Info("controller shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := ctlSrv.Close(); err != nil {
		log.Printf("error closing control server: %v", err)
	}
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down admin server: %v", err)
	}
	slog.Info("controller stopped")
}

// Status is the JSON body returned by the health handler's default probe.
type Status struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	ActiveSessions int       `json:"active_sessions"`
}

type healthHandler struct {
	statusFunc func() Status
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// single handler that supports probes via query param: ?probe=live|ready
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	probe := r.URL.Query().Get("probe")

	switch probe {
	case "live":
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
		return

	case "ready":
		status := h.statusFunc()
		ready, reason := readiness(status)

		statusCode := http.StatusOK
		if !ready {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if r.Method == http.MethodHead {
			return
		}
		response := map[string]any{"ready": ready}
		if !ready {
			response["reason"] = reason
		}
		json.NewEncoder(w).Encode(response)
		return

	default:
		status := h.statusFunc()
		ready, reason := readiness(status)

		response := map[string]any{
			"status":          status.Status,
			"timestamp":       status.Timestamp,
			"active_sessions": status.ActiveSessions,
			"live":            true,
			"ready":           ready,
		}
		if !ready {
			response["ready_reason"] = reason
		}

		statusCode := http.StatusOK
		if status.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if r.Method == http.MethodHead {
			return
		}
		json.NewEncoder(w).Encode(response)
	}
}

// readiness reports a Status as ready unless its active session count is
// invalid. A negative count means the session registry miscounted.
func readiness(status Status) (ready bool, reason string) {
	if status.ActiveSessions < 0 {
		return false, "invalid_session_state"
	}
	return true, "ready"
}
