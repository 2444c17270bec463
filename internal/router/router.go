// Package router implements the Router agent core: it owns a local
// Neighbor table (driven by the ospf simulator) and a FIB, and applies
// ROUTE_UPDATE pushes from the Controller by purging the previous
// Controller-sourced entries and reinserting the new set, leaving
// Internal-sourced entries (directly adjacent neighbors) untouched.
package router

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/netsdn/controlplane/internal/fib"
	"github.com/netsdn/controlplane/internal/ospf"
	"github.com/netsdn/controlplane/internal/protocol"
	"github.com/netsdn/controlplane/internal/store"
)

// Agent is one Router's local control state: its name/IP identity, its
// neighbor table (via the OSPF simulator), and its forwarding table.
type Agent struct {
	Name string
	IP   string

	store store.AgentStore
	fib   *fib.Table
	sim   *ospf.Simulator
	log   *slog.Logger
}

// New builds an Agent identified by name/ip, backed by s. The OSPF
// simulator's onFull hook is wired to install an Internal FIB entry for
// the newly adjacent neighbor.
func New(name, ip string, s store.AgentStore, log *slog.Logger, opts ...ospf.Option) *Agent {
	if log == nil {
		log = slog.Default()
	}
	a := &Agent{Name: name, IP: ip, store: s, fib: fib.New(), log: log}
	opts = append([]ospf.Option{
		ospf.WithOnFull(a.installDirectRoute),
		ospf.WithOnDown(a.purgeNeighborRoutes),
	}, opts...)
	a.sim = ospf.New(s, log, opts...)
	return a
}

// Simulator exposes the OSPF adjacency simulator for the transport layer
// to drive (Start, ReceiveHello, ReceiveAck) and for tests.
func (a *Agent) Simulator() *ospf.Simulator { return a.sim }

// FIB exposes the forwarding table for lookups and for tests.
func (a *Agent) FIB() *fib.Table { return a.fib }

func (a *Agent) installDirectRoute(n store.Neighbor) {
	entry := store.FIBEntry{
		DstIP:     n.PeerIP,
		NextHopIP: n.PeerIP,
		TotalCost: n.LinkCost,
		Source:    store.FIBInternal,
	}
	installed, installedFlag, err := a.store.UpsertFIBEntry(entry)
	if err != nil {
		a.log.Warn("router: upsert internal fib entry failed", "error", err, "peer", n.PeerIP)
		return
	}
	if installedFlag {
		if err := a.fib.Insert(installed); err != nil {
			a.log.Warn("router: fib table insert failed", "error", err)
		}
	}
}

// purgeNeighborRoutes drops every FIB entry routed through a neighbor that
// just fell back to Down, from both the store and the live lookup table,
// so a dead adjacency never leaves a stale forwarding entry behind.
func (a *Agent) purgeNeighborRoutes(n store.Neighbor) {
	purged, err := a.store.DeleteFIBEntriesByNextHop(n.PeerIP)
	if err != nil {
		a.log.Warn("router: purge fib entries by next hop failed", "error", err, "peer", n.PeerIP)
		return
	}
	for _, e := range purged {
		if err := a.fib.Delete(e.DstIP); err != nil {
			a.log.Warn("router: fib table delete failed", "error", err, "dst", e.DstIP)
		}
	}
}

// ApplyRouteUpdate replaces every Controller-sourced FIB entry with the
// rows carried in a ROUTE_UPDATE payload. Internal entries (direct
// neighbors, installed by the OSPF simulator) are left in place.
func (a *Agent) ApplyRouteUpdate(payload protocol.RouteUpdatePayload) error {
	if _, err := a.store.DeleteFIBEntriesBySource(store.FIBController); err != nil {
		return fmt.Errorf("apply route update: purge controller routes: %w", err)
	}

	for _, rt := range payload.Rutas {
		entry := store.FIBEntry{
			DstIP:       rt.Destino,
			NextHopIP:   rt.NextHop,
			EgressIface: rt.InterfazSalida,
			TotalCost:   rt.Costo,
			Source:      store.FIBController,
		}
		if _, _, err := a.store.UpsertFIBEntry(entry); err != nil {
			return fmt.Errorf("apply route update: upsert %s: %w", rt.Destino, err)
		}
	}

	// Resync the live lookup table from the store's authoritative set so
	// any destination dropped from this payload (no longer upserted above)
	// is also gone from the bart table, not just from the store map.
	entries, err := a.store.ListFIBEntries()
	if err != nil {
		return fmt.Errorf("apply route update: list fib entries: %w", err)
	}
	if err := a.fib.Sync(entries); err != nil {
		return fmt.Errorf("apply route update: sync fib table: %w", err)
	}

	if err := a.store.AppendEvent(store.Event{
		ID:     uuid.NewString(),
		Event:  "route_update_applied",
		Detail: fmt.Sprintf("%d controller routes installed", len(payload.Rutas)),
		At:     time.Now(),
	}); err != nil {
		a.log.Warn("router: append event failed", "error", err)
	}
	return nil
}

// RouteRequest resolves a single destination, for a ROUTE_REQUEST ->
// ROUTE_RESPONSE round trip initiated by a peer.
func (a *Agent) RouteRequest(dstIP string) (store.FIBEntry, bool) {
	e, ok, err := a.fib.Lookup(dstIP)
	if err != nil {
		a.log.Warn("router: route request lookup failed", "error", err, "dst", dstIP)
		return store.FIBEntry{}, false
	}
	return e, ok
}
