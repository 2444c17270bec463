// Package controlserver implements the Controller-side half of the
// control-plane session protocol: a mutually-authenticated TLS listener,
// one goroutine per accepted Router agent connection, and the
// REGISTER/HEARTBEAT/ROUTE_REQUEST/DISCONNECT dispatch loop. Connection
// accounting follows the teacher's peerRegistry (atomic counter plus a
// mutex-guarded map); the server lifecycle follows the teacher's
// Server.init/ListenAndServe/Shutdown shape from internal/relay.
package controlserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/netsdn/controlplane/internal/controller"
	"github.com/netsdn/controlplane/internal/metrics"
	"github.com/netsdn/controlplane/internal/protocol"
	"github.com/netsdn/controlplane/internal/store"
)

// sessionCounter generates unique session ids, mirroring the teacher's
// peerCounter atomic.Uint64.
var sessionCounter atomic.Uint64

// session holds per-connection state for one Router agent.
type session struct {
	id          string
	routerName  string
	conn        net.Conn
	reader      *protocol.Reader
	writer      *protocol.Writer
	connectedAt time.Time
}

// sessionRegistry tracks connected Router agent sessions, thread-safe.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*session)}
}

func (r *sessionRegistry) register(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
}

func (r *sessionRegistry) deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *sessionRegistry) all() []*session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *sessionRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Server accepts Router agent connections over TLS and dispatches their
// protocol messages against a controller.Controller.
type Server struct {
	Addr      string
	TLSConfig *tls.Config
	MaxFrame  int

	ctrl *controller.Controller
	st   store.ControllerStore
	log  *slog.Logger

	initOnce sync.Once
	sessions *sessionRegistry
	listener net.Listener
}

// New builds a Server. TLSConfig must require and verify client
// certificates (mutual TLS) per spec.md §6.
func New(addr string, tlsCfg *tls.Config, ctrl *controller.Controller, st store.ControllerStore, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{Addr: addr, TLSConfig: tlsCfg, ctrl: ctrl, st: st, log: log}
}

func (s *Server) init() {
	s.initOnce.Do(func() {
		s.sessions = newSessionRegistry()
		if s.MaxFrame <= 0 {
			s.MaxFrame = protocol.DefaultMaxFrameLength
		}
	})
}

// SessionCount reports the number of currently connected Router agents.
func (s *Server) SessionCount() int {
	s.init()
	return s.sessions.count()
}

// Listen binds the TLS listener without serving, so callers (and tests)
// can read back the assigned address before Serve starts accepting.
func (s *Server) Listen() (net.Listener, error) {
	s.init()

	if s.TLSConfig == nil {
		return nil, fmt.Errorf("controlserver: no TLS config")
	}

	ln, err := tls.Listen("tcp", s.Addr, s.TLSConfig)
	if err != nil {
		return nil, fmt.Errorf("controlserver: listen: %w", err)
	}
	s.listener = ln
	return ln, nil
}

// Serve accepts connections on ln until ctx is cancelled or Close is
// called.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.init()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("controlserver: accept failed", "error", err)
			continue
		}
		go s.handle(ctx, conn)
	}
}

// ListenAndServe binds and serves in one call, blocking until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	s.init()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	sess := &session{
		id:          fmt.Sprintf("session-%d", sessionCounter.Add(1)),
		conn:        conn,
		reader:      protocol.NewReader(conn, s.MaxFrame),
		writer:      protocol.NewWriter(conn),
		connectedAt: time.Now(),
	}

	routerName, err := s.handshake(sess)
	if err != nil {
		s.log.Warn("controlserver: handshake failed", "error", err, "remote", conn.RemoteAddr())
		return
	}
	sess.routerName = routerName
	s.sessions.register(sess)
	metrics.ActiveSessions.Inc()
	defer func() {
		s.sessions.deregister(sess.id)
		metrics.ActiveSessions.Dec()
		if r, err := s.st.GetRouterByName(routerName); err == nil {
			if _, err := s.ctrl.SetRouterState(r.ID, store.RouterInactive); err != nil {
				s.log.Warn("controlserver: mark router inactive failed", "error", err, "router", routerName)
			}
		}
	}()

	s.log.Info("controlserver: router registered", "router", routerName, "session", sess.id)

	if err := s.pushRouteUpdate(sess, routerName); err != nil {
		s.log.Warn("controlserver: initial route push failed", "error", err, "router", routerName)
	}

	for {
		msg, err := sess.reader.ReadMessage()
		if err != nil {
			if errors.Is(err, protocol.ErrUnknownType) {
				if reply, mErr := protocol.New(protocol.TypeError, "controller", routerName, protocol.ErrorPayload{Error: err.Error()}, time.Now()); mErr == nil {
					_ = sess.writer.WriteMessage(reply)
				}
			}
			s.log.Info("controlserver: session closed", "router", routerName, "error", err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		if err := s.dispatch(sess, msg); err != nil {
			s.log.Warn("controlserver: dispatch error", "router", routerName, "type", msg.Type, "error", err)
		}
		if msg.Type == protocol.TypeDisconnect {
			return
		}
	}
}

func (s *Server) handshake(sess *session) (string, error) {
	msg, err := sess.reader.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read register: %w", err)
	}
	if msg.Type != protocol.TypeRegister {
		return "", fmt.Errorf("expected REGISTER, got %s", msg.Type)
	}
	var reg protocol.RegisterPayload
	if err := msg.Decode(&reg); err != nil {
		return "", fmt.Errorf("decode register: %w", err)
	}

	ackPayload := protocol.RegisterAckPayload{Success: true, Message: "registered"}
	existing, err := s.st.GetRouterByName(reg.RouterNombre)
	if err != nil {
		if _, addErr := s.ctrl.AddRouter(reg.RouterNombre, reg.RouterIP); addErr != nil {
			ackPayload = protocol.RegisterAckPayload{Success: false, Message: addErr.Error()}
		}
	} else if _, setErr := s.ctrl.SetRouterState(existing.ID, store.RouterActive); setErr != nil {
		ackPayload = protocol.RegisterAckPayload{Success: false, Message: setErr.Error()}
	}

	ack, err := protocol.New(protocol.TypeRegisterAck, "controller", reg.RouterNombre, ackPayload, time.Now())
	if err != nil {
		return "", err
	}
	if err := sess.writer.WriteMessage(ack); err != nil {
		return "", fmt.Errorf("write register_ack: %w", err)
	}
	s.logMessage(msg, "")
	return reg.RouterNombre, nil
}

func (s *Server) dispatch(sess *session, msg protocol.Message) error {
	s.logMessage(msg, sess.routerName)

	switch msg.Type {
	case protocol.TypeHeartbeat:
		ack, err := protocol.New(protocol.TypeHeartbeatAck, "controller", sess.routerName, protocol.HeartbeatPayload{}, time.Now())
		if err != nil {
			return err
		}
		return sess.writer.WriteMessage(ack)

	case protocol.TypeNeighborUpdate:
		// Accepted and logged only; never applied to controller topology
		// state (spec.md Open Question 1).
		return nil

	case protocol.TypeRouteRequest:
		return s.handleRouteRequest(sess, msg)

	case protocol.TypeDisconnect:
		return nil

	default:
		errPayload := protocol.ErrorPayload{Error: fmt.Sprintf("unexpected message type %s", msg.Type)}
		nack, err := protocol.New(protocol.TypeNack, "controller", sess.routerName, errPayload, time.Now())
		if err != nil {
			return err
		}
		return sess.writer.WriteMessage(nack)
	}
}

func (s *Server) handleRouteRequest(sess *session, msg protocol.Message) error {
	var req protocol.RouteRequestPayload
	if err := msg.Decode(&req); err != nil {
		return fmt.Errorf("decode route_request: %w", err)
	}

	detalle := protocol.RutaDetalle{Destino: req.Destino}

	srcRouter, srcErr := s.st.GetRouterByName(sess.routerName)
	dstRouter, dstErr := s.st.GetRouterByName(req.Destino)
	if srcErr == nil && dstErr == nil {
		if route, err := s.st.GetRoute(srcRouter.ID, dstRouter.ID); err == nil {
			cost := route.TotalCost
			detalle.Costo = &cost
			detalle.Camino = pathNames(s.st, route.Path)
			// NextHop intentionally left nil: spec.md Open Question 2's
			// documented wire quirk.
		}
	}

	resp, err := protocol.New(protocol.TypeRouteResponse, "controller", sess.routerName, protocol.RouteResponsePayload{Ruta: detalle}, time.Now())
	if err != nil {
		return err
	}
	return sess.writer.WriteMessage(resp)
}

func pathNames(st store.ControllerStore, path []int) []string {
	names := make([]string, 0, len(path))
	for _, id := range path {
		r, err := st.GetRouter(id)
		if err != nil {
			continue
		}
		names = append(names, r.Name)
	}
	return names
}

func (s *Server) logMessage(msg protocol.Message, receiver string) {
	if receiver == "" {
		receiver = msg.Receiver
	}
	if err := s.st.AppendMessage(store.Message{
		ID:       uuid.NewString(),
		Type:     string(msg.Type),
		Sender:   msg.Sender,
		Receiver: receiver,
		Body:     string(msg.Payload),
		At:       time.Now(),
	}); err != nil {
		s.log.Warn("controlserver: append message log failed", "error", err)
	}
}

// pushRouteUpdate sends the full current route set for routerName as an
// initial ROUTE_UPDATE immediately after registration.
func (s *Server) pushRouteUpdate(sess *session, routerName string) error {
	r, err := s.st.GetRouterByName(routerName)
	if err != nil {
		return err
	}
	routes, err := s.st.ListRoutesFrom(r.ID)
	if err != nil {
		return err
	}

	rutas := make([]protocol.RutaEntry, 0, len(routes))
	for _, rt := range routes {
		if len(rt.Path) < 2 {
			continue
		}
		nextHop, err := s.st.GetRouter(rt.Path[1])
		if err != nil {
			continue
		}
		dst, err := s.st.GetRouter(rt.Dst)
		if err != nil {
			continue
		}
		rutas = append(rutas, protocol.RutaEntry{
			Destino:        dst.IP,
			NextHop:        nextHop.IP,
			InterfazSalida: fmt.Sprintf("eth_to_R%d", nextHop.ID),
			Costo:          rt.TotalCost,
			OrigenInfo:     "controller",
		})
	}

	msg, err := protocol.New(protocol.TypeRouteUpdate, "controller", routerName, protocol.RouteUpdatePayload{Rutas: rutas}, time.Now())
	if err != nil {
		return err
	}
	return sess.writer.WriteMessage(msg)
}

// Broadcast pushes the current routes to every connected Router agent.
// Route recomputation in the controller package does not call it; routes
// reach a connected agent only through this call or the push made right
// after registration.
func (s *Server) Broadcast() {
	s.init()
	for _, sess := range s.sessions.all() {
		if err := s.pushRouteUpdate(sess, sess.routerName); err != nil {
			s.log.Warn("controlserver: broadcast route update failed", "error", err, "router", sess.routerName)
		}
	}
}
