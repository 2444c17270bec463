// Package controlclient implements the Router agent's half of the
// control-plane session: it dials the Controller over mutual TLS,
// completes the REGISTER handshake, then runs a heartbeat loop and a
// receive loop concurrently, handing inbound ROUTE_UPDATE pushes to a
// router.Agent. TLS setup and the heartbeat-ticker shape are grounded on
// the teacher's sdn.Client (internal/sdn/client.go).
package controlclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/netsdn/controlplane/internal/protocol"
)

// DefaultHeartbeatInterval matches spec.md's default keepalive cadence.
const DefaultHeartbeatInterval = 20 * time.Second

// TLSConfig holds mutual-TLS settings for the Router -> Controller
// connection.
type TLSConfig struct {
	CertFile string
	KeyFile  string
	CAFile   string
}

func buildTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("controlclient: load client cert: %w", err)
	}

	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}}

	if cfg.CAFile != "" {
		caCert, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("controlclient: read CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("controlclient: failed to parse CA certificate")
		}
		tlsCfg.RootCAs = pool
	}

	return tlsCfg, nil
}

// Config configures a Client.
type Config struct {
	Addr              string
	RouterName        string
	RouterIP          string
	TLS               TLSConfig
	HeartbeatInterval time.Duration
}

// RouteUpdateHandler is invoked on every inbound ROUTE_UPDATE.
type RouteUpdateHandler func(protocol.RouteUpdatePayload)

// Client manages one Router agent's persistent session to the Controller.
type Client struct {
	cfg     Config
	tlsCfg  *tls.Config
	log     *slog.Logger
	onRoute RouteUpdateHandler

	mu     sync.Mutex
	conn   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer
}

// New builds a Client. Call Run to connect and serve until ctx is
// cancelled.
func New(cfg Config, onRoute RouteUpdateHandler, log *slog.Logger) (*Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("controlclient: Addr is required")
	}
	if cfg.RouterName == "" {
		return nil, fmt.Errorf("controlclient: RouterName is required")
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if log == nil {
		log = slog.Default()
	}

	tlsCfg, err := buildTLSConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}

	return &Client{cfg: cfg, tlsCfg: tlsCfg, onRoute: onRoute, log: log}, nil
}

// Run connects, completes the REGISTER handshake, and then runs the
// heartbeat and receive loops until ctx is cancelled or the connection is
// lost. Callers reconnecting on failure should loop Run themselves.
func (c *Client) Run(ctx context.Context) error {
	conn, err := tls.Dial("tcp", c.cfg.Addr, c.tlsCfg)
	if err != nil {
		return fmt.Errorf("controlclient: dial: %w", err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.reader = protocol.NewReader(conn, 0)
	c.writer = protocol.NewWriter(conn)
	c.mu.Unlock()

	if err := c.register(); err != nil {
		return fmt.Errorf("controlclient: register: %w", err)
	}
	c.log.Info("controlclient: registered", "router", c.cfg.RouterName, "controller", c.cfg.Addr)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- c.heartbeatLoop(ctx) }()
	go func() { errCh <- c.receiveLoop(ctx) }()

	select {
	case <-ctx.Done():
		c.sendDisconnect()
		return ctx.Err()
	case err := <-errCh:
		cancel()
		return err
	}
}

func (c *Client) register() error {
	msg, err := protocol.New(protocol.TypeRegister, c.cfg.RouterName, "controller", protocol.RegisterPayload{
		RouterNombre: c.cfg.RouterName,
		RouterIP:     c.cfg.RouterIP,
	}, time.Now())
	if err != nil {
		return err
	}
	if err := c.writer.WriteMessage(msg); err != nil {
		return err
	}

	ack, err := c.reader.ReadMessage()
	if err != nil {
		return fmt.Errorf("read register_ack: %w", err)
	}
	if ack.Type != protocol.TypeRegisterAck {
		return fmt.Errorf("expected REGISTER_ACK, got %s", ack.Type)
	}
	var payload protocol.RegisterAckPayload
	if err := ack.Decode(&payload); err != nil {
		return err
	}
	if !payload.Success {
		return fmt.Errorf("registration rejected: %s", payload.Message)
	}
	return nil
}

func (c *Client) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			msg, err := protocol.New(protocol.TypeHeartbeat, c.cfg.RouterName, "controller", protocol.HeartbeatPayload{}, time.Now())
			if err != nil {
				return err
			}
			if err := c.writer.WriteMessage(msg); err != nil {
				return fmt.Errorf("heartbeat: %w", err)
			}
		}
	}
}

func (c *Client) receiveLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, err := c.reader.ReadMessage()
		if err != nil {
			if errors.Is(err, protocol.ErrUnknownType) {
				if reply, mErr := protocol.New(protocol.TypeError, c.cfg.RouterName, "controller", protocol.ErrorPayload{Error: err.Error()}, time.Now()); mErr == nil {
					_ = c.writer.WriteMessage(reply)
				}
			}
			return fmt.Errorf("receive: %w", err)
		}

		switch msg.Type {
		case protocol.TypeRouteUpdate:
			var payload protocol.RouteUpdatePayload
			if err := msg.Decode(&payload); err != nil {
				c.log.Warn("controlclient: decode route_update failed", "error", err)
				continue
			}
			if c.onRoute != nil {
				c.onRoute(payload)
			}
		case protocol.TypeHeartbeatAck:
			// no-op, keepalive acknowledged
		default:
			c.log.Debug("controlclient: ignoring message", "type", msg.Type)
		}
	}
}

func (c *Client) sendDisconnect() {
	msg, err := protocol.New(protocol.TypeDisconnect, c.cfg.RouterName, "controller", protocol.DisconnectPayload{}, time.Now())
	if err != nil {
		return
	}
	if err := c.writer.WriteMessage(msg); err != nil {
		c.log.Warn("controlclient: send disconnect failed", "error", err)
	}
}

// RouteRequest sends a ROUTE_REQUEST and blocks for the matching
// ROUTE_RESPONSE. It is intended for request/response use outside the
// receive loop (e.g. a CLI probe); concurrent use alongside Run's receive
// loop is not supported since both would read from the same connection.
func (c *Client) RouteRequest(destino string) (protocol.RutaDetalle, error) {
	msg, err := protocol.New(protocol.TypeRouteRequest, c.cfg.RouterName, "controller", protocol.RouteRequestPayload{Destino: destino}, time.Now())
	if err != nil {
		return protocol.RutaDetalle{}, err
	}
	if err := c.writer.WriteMessage(msg); err != nil {
		return protocol.RutaDetalle{}, err
	}

	resp, err := c.reader.ReadMessage()
	if err != nil {
		return protocol.RutaDetalle{}, err
	}
	if resp.Type != protocol.TypeRouteResponse {
		return protocol.RutaDetalle{}, fmt.Errorf("expected ROUTE_RESPONSE, got %s", resp.Type)
	}
	var payload protocol.RouteResponsePayload
	if err := resp.Decode(&payload); err != nil {
		return protocol.RutaDetalle{}, err
	}
	return deriveNextHop(payload.Ruta), nil
}

// deriveNextHop fills in NextHop from the path when the wire payload left it
// absent. ROUTE_RESPONSE never carries next_hop on the wire (a preserved
// protocol quirk), but camino[0] is this router and camino[1] is the first
// hop towards destino, so Go callers can still get the real value.
func deriveNextHop(ruta protocol.RutaDetalle) protocol.RutaDetalle {
	if ruta.NextHop == nil && len(ruta.Camino) >= 2 {
		nextHop := ruta.Camino[1]
		ruta.NextHop = &nextHop
	}
	return ruta
}
