// Package ospf implements the Router agent's local adjacency simulator: a
// HELLO/dead-interval timer pair drives each neighbor through the
// Down -> 2-Way -> Full state machine, and Full neighbors feed the
// agent's Internal-sourced FIB entries. The timer/sweeper shape mirrors
// the teacher's announceTable.StartSweeper idiom — a cancellable
// background goroutine driven by a ticker, stopped via context.
package ospf

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/netsdn/controlplane/internal/metrics"
	"github.com/netsdn/controlplane/internal/store"
)

// DefaultHelloInterval and DefaultDeadInterval match spec.md's defaults.
const (
	DefaultHelloInterval = 10 * time.Second
	DefaultDeadInterval  = 40 * time.Second
)

// AgentStore is the persistence surface the simulator mutates.
type AgentStore interface {
	store.NeighborRepo
	store.EventRepo
}

// Simulator runs the HELLO/dead-interval state machine for one Router
// agent's neighbor table.
type Simulator struct {
	mu sync.Mutex

	store         AgentStore
	log           *slog.Logger
	helloInterval time.Duration
	deadInterval  time.Duration

	onFull func(n store.Neighbor) // invoked when a neighbor reaches Full
	onDown func(n store.Neighbor) // invoked when a neighbor falls back to Down
}

// Option configures a Simulator at construction time.
type Option func(*Simulator)

// WithIntervals overrides the HELLO and dead-interval durations.
func WithIntervals(hello, dead time.Duration) Option {
	return func(s *Simulator) {
		s.helloInterval = hello
		s.deadInterval = dead
	}
}

// WithOnFull registers a callback invoked whenever a neighbor transitions
// into the Full state, so the Router agent core can regenerate its
// Internal FIB entries.
func WithOnFull(cb func(n store.Neighbor)) Option {
	return func(s *Simulator) { s.onFull = cb }
}

// WithOnDown registers a callback invoked whenever a neighbor's
// dead-interval expires and it falls back to Down, so the Router agent
// core can purge the FIB entries that routed through it.
func WithOnDown(cb func(n store.Neighbor)) Option {
	return func(s *Simulator) { s.onDown = cb }
}

// New builds a Simulator over s.
func New(s AgentStore, log *slog.Logger, opts ...Option) *Simulator {
	if log == nil {
		log = slog.Default()
	}
	sim := &Simulator{
		store:         s,
		log:           log,
		helloInterval: DefaultHelloInterval,
		deadInterval:  DefaultDeadInterval,
	}
	for _, opt := range opts {
		opt(sim)
	}
	return sim
}

// Start launches the HELLO and dead-interval loops as background
// goroutines. Both stop when ctx is cancelled.
func (s *Simulator) Start(ctx context.Context) {
	go s.helloLoop(ctx)
	go s.deadLoop(ctx)
}

func (s *Simulator) helloLoop(ctx context.Context) {
	ticker := time.NewTicker(s.helloInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sendHellos()
		}
	}
}

func (s *Simulator) deadLoop(ctx context.Context) {
	ticker := time.NewTicker(s.helloInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reapExpired()
		}
	}
}

// sendHellos is the hello-interval hook: in this simulator HELLOs are
// logical (delivered by callers of ReceiveHello, not an actual multicast
// send), so this loop only counts the tick and emits a debug trace.
func (s *Simulator) sendHellos() {
	metrics.HelloTicks.Inc()
	s.log.Debug("ospf: hello tick")
}

// reapExpired transitions any neighbor whose LastHello predates the dead
// interval back to Down.
func (s *Simulator) reapExpired() {
	neighbors, err := s.store.ListNeighbors()
	if err != nil {
		s.log.Warn("ospf: list neighbors failed", "error", err)
		return
	}
	cutoff := time.Now().Add(-s.deadInterval)
	for _, n := range neighbors {
		if n.State == store.NeighborDown {
			continue
		}
		if n.LastHello.IsZero() || n.LastHello.After(cutoff) {
			continue
		}
		down, err := s.store.SetNeighborState(n.ID, store.NeighborDown, time.Time{})
		if err != nil {
			s.log.Warn("ospf: dead-interval transition failed", "error", err, "neighbor", n.ID)
			continue
		}
		metrics.DeadIntervalExpirations.Inc()
		metrics.NeighborStateTransitions.WithLabelValues(string(store.NeighborDown)).Inc()
		s.appendEvent("neighbor_down", fmt.Sprintf("neighbor id=%d (%s) dead-interval expired", n.ID, n.PeerName))
		if s.onDown != nil {
			s.onDown(down)
		}
	}
}

// ReceiveHello records a HELLO from peerIP, creating the neighbor record
// if this is the first contact, and advances Down -> 2-Way.
func (s *Simulator) ReceiveHello(peerName, peerIP string, linkCost float64) (store.Neighbor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.store.FindNeighborByIP(peerIP)
	if err != nil {
		n, err = s.store.CreateNeighbor(peerName, peerIP, linkCost)
		if err != nil {
			return store.Neighbor{}, fmt.Errorf("ospf: create neighbor: %w", err)
		}
	}

	now := time.Now()
	wasDown := n.State == store.NeighborDown
	next := n.State
	if wasDown {
		next = store.NeighborTwoWay
	}
	n, err = s.store.SetNeighborState(n.ID, next, now)
	if err != nil {
		return store.Neighbor{}, fmt.Errorf("ospf: advance to 2-way: %w", err)
	}
	if wasDown {
		metrics.NeighborStateTransitions.WithLabelValues(string(store.NeighborTwoWay)).Inc()
		s.appendEvent("neighbor_2way", fmt.Sprintf("neighbor id=%d (%s)", n.ID, n.PeerName))
	}
	return n, nil
}

// ReceiveAck completes the adjacency: 2-Way -> Full. Full is the terminal
// state in this simulator — there is no exchange/loading sub-phase, per
// spec.md's simplified state machine.
func (s *Simulator) ReceiveAck(peerIP string) (store.Neighbor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.store.FindNeighborByIP(peerIP)
	if err != nil {
		return store.Neighbor{}, fmt.Errorf("ospf: receive ack: %w", err)
	}
	if n.State == store.NeighborDown {
		return store.Neighbor{}, fmt.Errorf("ospf: receive ack: neighbor %d not past Down", n.ID)
	}

	n, err = s.store.SetNeighborState(n.ID, store.NeighborFull, time.Now())
	if err != nil {
		return store.Neighbor{}, fmt.Errorf("ospf: advance to full: %w", err)
	}
	metrics.NeighborStateTransitions.WithLabelValues(string(store.NeighborFull)).Inc()
	s.appendEvent("neighbor_full", fmt.Sprintf("neighbor id=%d (%s)", n.ID, n.PeerName))
	if s.onFull != nil {
		s.onFull(n)
	}
	return n, nil
}

func (s *Simulator) appendEvent(kind, detail string) {
	if err := s.store.AppendEvent(store.Event{ID: uuid.NewString(), Event: kind, Detail: detail, At: time.Now()}); err != nil {
		s.log.Warn("ospf: append event failed", "error", err)
	}
}
