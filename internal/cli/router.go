package cli

import (
	"context"
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

	"github.com/netsdn/controlplane/internal/controlclient"
	"github.com/netsdn/controlplane/internal/ospf"
	"github.com/netsdn/controlplane/internal/protocol"
	"github.com/netsdn/controlplane/internal/router"
	"github.com/netsdn/controlplane/internal/store"
)

// NeighborConfig is one statically configured adjacency this Router agent
// simulates HELLOs with at startup, since there is no real link layer to
// listen on.
type NeighborConfig struct {
	Name string  `yaml:"name"`
	IP   string  `yaml:"ip"`
	Cost float64 `yaml:"cost"`
}

// RouterConfig is the Router agent process's YAML configuration.
type RouterConfig struct {
	Name           string           `yaml:"name"`
	IP             string           `yaml:"ip"`
	ControllerAddr string           `yaml:"controller_address"`
	AdminAddr      string           `yaml:"admin_address"`
	CertFile       string           `yaml:"cert_file"`
	KeyFile        string           `yaml:"key_file"`
	CAFile         string           `yaml:"ca_file"`
	HeartbeatSec   int              `yaml:"heartbeat_interval_sec"`
	HelloSec       int              `yaml:"hello_interval_sec"`
	DeadSec        int              `yaml:"dead_interval_sec"`
	Neighbors      []NeighborConfig `yaml:"neighbors"`
}

func loadRouterConfig(filename string) (*RouterConfig, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var cfg RouterConfig
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.AdminAddr == "" {
		cfg.AdminAddr = ":9091"
	}
	if cfg.HeartbeatSec == 0 {
		cfg.HeartbeatSec = 20
	}
	if cfg.HelloSec == 0 {
		cfg.HelloSec = 10
	}
	if cfg.DeadSec == 0 {
		cfg.DeadSec = 40
	}
	return &cfg, nil
}

// RunRouter is the entry point for the "router" subcommand.
func RunRouter(args []string) error {
	fs := newFlagSet("router")
	configFile := fs.String("config", "config.router.yaml", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadRouterConfig(*configFile)
	if err != nil {
		return err
	}
	if cfg.Name == "" || cfg.IP == "" {
		return fmt.Errorf("router config: name and ip are required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	agentStore := store.NewMemoryStore()
	agent := router.New(cfg.Name, cfg.IP, agentStore, slog.Default(),
		ospf.WithIntervals(time.Duration(cfg.HelloSec)*time.Second, time.Duration(cfg.DeadSec)*time.Second))
	agent.Simulator().Start(ctx)

	simulateStaticNeighbors(ctx, agent, cfg.Neighbors, time.Duration(cfg.HelloSec)*time.Second)

	client, err := controlclient.New(controlclient.Config{
		Addr:       cfg.ControllerAddr,
		RouterName: cfg.Name,
		RouterIP:   cfg.IP,
		TLS: controlclient.TLSConfig{
			CertFile: cfg.CertFile,
			KeyFile:  cfg.KeyFile,
			CAFile:   cfg.CAFile,
		},
		HeartbeatInterval: time.Duration(cfg.HeartbeatSec) * time.Second,
	}, func(payload protocol.RouteUpdatePayload) {
		if err := agent.ApplyRouteUpdate(payload); err != nil {
			slog.Default().Warn("router: apply route update failed", "error", err)
		}
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to build control client: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/health", &healthHandler{statusFunc: func() Status {
		return Status{Status: "healthy", Timestamp: time.Now(), ActiveSessions: len(agent.FIB().All())}
	}})
	mux.Handle("/metrics", promhttp.Handler())
	adminServer := &http.Server{Addr: cfg.AdminAddr, Handler: mux}

	serveRouterAgent(ctx, client, adminServer, 10*time.Second)
	return nil
}

// simulateStaticNeighbors drives ReceiveHello/ReceiveAck for the
// statically configured neighbor list, since this simulator has no real
// link layer to listen for HELLOs on. Each neighbor is brought to 2-Way
// immediately and to Full after one hello interval, mirroring a peer that
// answers back on its own next tick.
func simulateStaticNeighbors(ctx context.Context, agent *router.Agent, neighbors []NeighborConfig, helloInterval time.Duration) {
	for _, n := range neighbors {
		n := n
		if _, err := agent.Simulator().ReceiveHello(n.Name, n.IP, n.Cost); err != nil {
			slog.Default().Warn("router: simulated hello failed", "neighbor", n.Name, "error", err)
			continue
		}
		go func() {
			timer := time.NewTimer(helloInterval)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				if _, err := agent.Simulator().ReceiveAck(n.IP); err != nil {
					slog.Default().Warn("router: simulated ack failed", "neighbor", n.Name, "error", err)
				}
			}
		}()
	}
}

// defaultBackoffMin and defaultBackoffMax bound the reconnect delay between
// failed Run attempts.
const (
	defaultBackoffMin = 500 * time.Millisecond
	defaultBackoffMax = 30 * time.Second
)

// runWithReconnect calls client.Run repeatedly until ctx is cancelled,
// doubling the delay between attempts on each consecutive failure and
// resetting it after any Run call that lasted longer than defaultBackoffMax.
// The doubling-factor shape mirrors a BFD-style backoff: start small, cap
// the ceiling, and don't let a flapping controller spin a tight retry loop.
func runWithReconnect(ctx context.Context, client *controlclient.Client) {
	delay := defaultBackoffMin
	for {
		if ctx.Err() != nil {
			return
		}
		started := time.Now()
		err := client.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("control client error: %v", err)
		}

		if time.Since(started) > defaultBackoffMax {
			delay = defaultBackoffMin
		} else {
			delay *= 2
			if delay > defaultBackoffMax {
				delay = defaultBackoffMax
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func serveRouterAgent(ctx context.Context, client *controlclient.Client, adminSrv httpServerRunner, shutdownTimeout time.Duration) {
	go runWithReconnect(ctx, client)

	go func() {
		if err := adminSrv.ListenAndServe(); err != nil {
			if err == http.ErrServerClosed {
				return
			}
			log.Printf("admin server error: %v", err)
		}
	}()

	log.Println("router agent started successfully")
	log.Println("  /health  - health check (?probe=live|ready)")
	log.Println("  /metrics - Prometheus metrics")

	<-ctx.Done()
	slog.Info("router agent shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down admin server: %v", err)
	}
	slog.Info("router agent stopped")
}
