// Package store abstracts persistence for the control plane and router
// agent: routers, links, routes, neighbors, FIB entries, message log and
// event log. The Controller and Router agent cores depend only on the
// interfaces in this package, never on a concrete backend — see Store in
// store.go. Two adapters are provided: MemoryStore (tests, single-process
// deployments) and FileStore (JSON snapshot persistence).
package store

import "time"

// RouterState is the operational state of a Router record.
type RouterState string

const (
	RouterActive      RouterState = "Active"
	RouterInactive    RouterState = "Inactive"
	RouterMaintenance RouterState = "Maintenance"
)

// Router is a control-plane node identity.
type Router struct {
	ID          int         `json:"id"`
	Name        string      `json:"name"`
	IP          string      `json:"ip"`
	State       RouterState `json:"state"`
	LastUpdated time.Time   `json:"last_updated"`
}

// LinkState is the operational state of a Link record.
type LinkState string

const (
	LinkActive   LinkState = "Active"
	LinkInactive LinkState = "Inactive"
)

// Link is an undirected, weighted connection between two routers.
type Link struct {
	ID        int       `json:"id"`
	A         int       `json:"a"`
	B         int       `json:"b"`
	Cost      float64   `json:"cost"`
	Bandwidth *float64  `json:"bandwidth,omitempty"`
	DelayMS   *float64  `json:"delay_ms,omitempty"`
	State     LinkState `json:"state"`
}

// Endpoints returns the link's endpoints normalized so A <= B, for
// uniqueness checks against the unordered-pair invariant.
func (l Link) Endpoints() (int, int) {
	if l.A <= l.B {
		return l.A, l.B
	}
	return l.B, l.A
}

// Route is a Controller-computed path between two routers.
type Route struct {
	ID         int       `json:"id"`
	Src        int       `json:"src"`
	Dst        int       `json:"dst"`
	Path       []int     `json:"path"`
	TotalCost  float64   `json:"total_cost"`
	ComputedAt time.Time `json:"computed_at"`
}

// NeighborState is a Router-side OSPF-like adjacency state.
type NeighborState string

const (
	NeighborDown  NeighborState = "Down"
	NeighborTwoWay NeighborState = "2-Way"
	NeighborFull  NeighborState = "Full"
)

// Neighbor is a Router agent's view of an adjacent router.
type Neighbor struct {
	ID        int           `json:"id"`
	PeerName  string        `json:"peer_name"`
	PeerIP    string        `json:"peer_ip"`
	State     NeighborState `json:"state"`
	LinkCost  float64       `json:"link_cost"`
	LastHello time.Time     `json:"last_hello"`
}

// FIBSource tags which subsystem owns a FIB entry and therefore may purge
// or replace it.
type FIBSource string

const (
	FIBInternal   FIBSource = "Internal"
	FIBController FIBSource = "Controller"
	FIBExternal   FIBSource = "External"
)

// FIBEntry is one Router agent forwarding-table row.
type FIBEntry struct {
	ID          int       `json:"id"`
	DstIP       string    `json:"dst_ip"`
	NextHopIP   string    `json:"next_hop_ip"`
	EgressIface string    `json:"egress_iface"`
	TotalCost   float64   `json:"total_cost"`
	Source      FIBSource `json:"source"`
}

// Message is an append-only log row recording one protocol message.
type Message struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Sender   string    `json:"sender"`
	Receiver string    `json:"receiver"`
	Body     string    `json:"body"`
	At       time.Time `json:"at"`
}

// Event is an append-only log row recording one control-plane or
// OSPF-simulator event.
type Event struct {
	ID     string    `json:"id"`
	Event  string    `json:"event"`
	Detail string    `json:"detail"`
	At     time.Time `json:"at"`
}
