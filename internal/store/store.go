package store

import "time"

// RouterRepo persists Router records. Name and IP must be unique across all
// routers; implementations enforce that invariant and return ErrValidation
// on collision.
type RouterRepo interface {
	CreateRouter(name, ip string) (Router, error)
	UpdateRouter(id int, name, ip string) (Router, error)
	SetRouterState(id int, state RouterState) (Router, error)
	DeleteRouter(id int) error
	GetRouter(id int) (Router, error)
	GetRouterByName(name string) (Router, error)
	ListRouters() ([]Router, error)
	ListActiveRouters() ([]Router, error)
}

// LinkRepo persists Link records. At most one link may exist between any
// unordered pair of routers; implementations enforce that invariant.
type LinkRepo interface {
	CreateLink(a, b int, cost float64, bandwidth, delayMS *float64) (Link, error)
	UpdateLink(id int, cost float64, bandwidth, delayMS *float64) (Link, error)
	SetLinkState(id int, state LinkState) (Link, error)
	DeleteLink(id int) error
	DeleteLinksForRouter(routerID int) ([]Link, error)
	GetLink(id int) (Link, error)
	FindLink(a, b int) (Link, error)
	ListLinks() ([]Link, error)
	ListActiveLinks() ([]Link, error)
}

// RouteRepo persists Route records. Routes are derived state: they are
// purged and regenerated wholesale, never mutated in place.
type RouteRepo interface {
	PutRoutes(routes []Route) error
	DeleteRoutesFrom(src int) error
	DeleteRoutesInvolving(routerID int) error
	ListRoutes() ([]Route, error)
	ListRoutesFrom(src int) ([]Route, error)
	GetRoute(src, dst int) (Route, error)
}

// NeighborRepo persists Router-agent Neighbor records. PeerName and PeerIP
// are each unique within a router's neighbor table.
type NeighborRepo interface {
	CreateNeighbor(peerName, peerIP string, linkCost float64) (Neighbor, error)
	UpdateNeighbor(id int, linkCost float64) (Neighbor, error)
	SetNeighborState(id int, state NeighborState, lastHello time.Time) (Neighbor, error)
	DeleteNeighbor(id int) (Neighbor, error)
	GetNeighbor(id int) (Neighbor, error)
	FindNeighborByIP(ip string) (Neighbor, error)
	ListNeighbors() ([]Neighbor, error)
}

// FIBRepo persists Router-agent forwarding-table rows, at most one per
// destination IP.
type FIBRepo interface {
	UpsertFIBEntry(e FIBEntry) (FIBEntry, bool, error) // bool: true if installed (new or lower-cost win)
	DeleteFIBEntry(dstIP string) error
	DeleteFIBEntriesBySource(source FIBSource) ([]FIBEntry, error)
	DeleteFIBEntriesByNextHop(nextHopIP string) ([]FIBEntry, error)
	GetFIBEntry(dstIP string) (FIBEntry, error)
	ListFIBEntries() ([]FIBEntry, error)
}

// MessageRepo persists the append-only protocol message log.
type MessageRepo interface {
	AppendMessage(m Message) error
	ListMessages() ([]Message, error)
	PurgeMessagesOlderThan(age time.Duration) (int, error)
}

// EventRepo persists the append-only event log.
type EventRepo interface {
	AppendEvent(e Event) error
	ListEvents() ([]Event, error)
	PurgeEventsOlderThan(age time.Duration) (int, error)
}

// ControllerStore is the persistence port the Controller core depends on.
type ControllerStore interface {
	RouterRepo
	LinkRepo
	RouteRepo
	MessageRepo
	EventRepo
}

// AgentStore is the persistence port the Router agent core depends on.
type AgentStore interface {
	NeighborRepo
	FIBRepo
	MessageRepo
	EventRepo
}

// Store is the full persistence surface; MemoryStore and FileStore both
// implement it so either side of the system can be built against a single
// concrete type in tests.
type Store interface {
	ControllerStore
	AgentStore
}
