package store

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation, safe for concurrent
// use. It is the default for tests and single-process deployments without
// durable persistence requirements.
type MemoryStore struct {
	mu sync.RWMutex

	routers   map[int]Router
	links     map[int]Link
	routes    map[int]Route
	neighbors map[int]Neighbor
	fib       map[string]FIBEntry // keyed by dst_ip
	messages  []Message
	events    []Event

	nextRouterID   int
	nextLinkID     int
	nextRouteID    int
	nextNeighborID int
	nextFIBID      int
}

// NewMemoryStore returns an empty, ready-to-use MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		routers:   make(map[int]Router),
		links:     make(map[int]Link),
		routes:    make(map[int]Route),
		neighbors: make(map[int]Neighbor),
		fib:       make(map[string]FIBEntry),
	}
}

// --- RouterRepo ---

func (s *MemoryStore) CreateRouter(name, ip string) (Router, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.routers {
		if r.Name == name || r.IP == ip {
			return Router{}, ErrValidation
		}
	}

	s.nextRouterID++
	r := Router{ID: s.nextRouterID, Name: name, IP: ip, State: RouterActive, LastUpdated: time.Now()}
	s.routers[r.ID] = r
	return r, nil
}

func (s *MemoryStore) UpdateRouter(id int, name, ip string) (Router, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.routers[id]
	if !ok {
		return Router{}, ErrNotFound
	}
	for oid, other := range s.routers {
		if oid == id {
			continue
		}
		if other.Name == name || other.IP == ip {
			return Router{}, ErrValidation
		}
	}
	r.Name = name
	r.IP = ip
	r.LastUpdated = time.Now()
	s.routers[id] = r
	return r, nil
}

func (s *MemoryStore) SetRouterState(id int, state RouterState) (Router, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.routers[id]
	if !ok {
		return Router{}, ErrNotFound
	}
	r.State = state
	r.LastUpdated = time.Now()
	s.routers[id] = r
	return r, nil
}

func (s *MemoryStore) DeleteRouter(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.routers[id]; !ok {
		return ErrNotFound
	}
	delete(s.routers, id)
	return nil
}

func (s *MemoryStore) GetRouter(id int) (Router, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.routers[id]
	if !ok {
		return Router{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) GetRouterByName(name string) (Router, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.routers {
		if r.Name == name {
			return r, nil
		}
	}
	return Router{}, ErrNotFound
}

func (s *MemoryStore) ListRouters() ([]Router, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Router, 0, len(s.routers))
	for _, r := range s.routers {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListActiveRouters() ([]Router, error) {
	all, _ := s.ListRouters()
	out := all[:0:0]
	for _, r := range all {
		if r.State == RouterActive {
			out = append(out, r)
		}
	}
	return out, nil
}

// --- LinkRepo ---

func (s *MemoryStore) CreateLink(a, b int, cost float64, bandwidth, delayMS *float64) (Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a == b {
		return Link{}, ErrValidation
	}
	if _, ok := s.routers[a]; !ok {
		return Link{}, ErrValidation
	}
	if _, ok := s.routers[b]; !ok {
		return Link{}, ErrValidation
	}
	na, nb := normPair(a, b)
	for _, l := range s.links {
		la, lb := l.Endpoints()
		if la == na && lb == nb {
			return Link{}, ErrValidation
		}
	}

	s.nextLinkID++
	l := Link{ID: s.nextLinkID, A: a, B: b, Cost: cost, Bandwidth: bandwidth, DelayMS: delayMS, State: LinkActive}
	s.links[l.ID] = l
	return l, nil
}

func normPair(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

func (s *MemoryStore) UpdateLink(id int, cost float64, bandwidth, delayMS *float64) (Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.links[id]
	if !ok {
		return Link{}, ErrNotFound
	}
	l.Cost = cost
	l.Bandwidth = bandwidth
	l.DelayMS = delayMS
	s.links[id] = l
	return l, nil
}

func (s *MemoryStore) SetLinkState(id int, state LinkState) (Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.links[id]
	if !ok {
		return Link{}, ErrNotFound
	}
	l.State = state
	s.links[id] = l
	return l, nil
}

func (s *MemoryStore) DeleteLink(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[id]; !ok {
		return ErrNotFound
	}
	delete(s.links, id)
	return nil
}

func (s *MemoryStore) DeleteLinksForRouter(routerID int) ([]Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []Link
	for id, l := range s.links {
		if l.A == routerID || l.B == routerID {
			removed = append(removed, l)
			delete(s.links, id)
		}
	}
	return removed, nil
}

func (s *MemoryStore) GetLink(id int) (Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.links[id]
	if !ok {
		return Link{}, ErrNotFound
	}
	return l, nil
}

func (s *MemoryStore) FindLink(a, b int) (Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	na, nb := normPair(a, b)
	for _, l := range s.links {
		la, lb := l.Endpoints()
		if la == na && lb == nb {
			return l, nil
		}
	}
	return Link{}, ErrNotFound
}

func (s *MemoryStore) ListLinks() ([]Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Link, 0, len(s.links))
	for _, l := range s.links {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListActiveLinks() ([]Link, error) {
	all, _ := s.ListLinks()
	out := all[:0:0]
	for _, l := range all {
		if l.State == LinkActive {
			out = append(out, l)
		}
	}
	return out, nil
}

// --- RouteRepo ---

func (s *MemoryStore) PutRoutes(routes []Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range routes {
		s.nextRouteID++
		r.ID = s.nextRouteID
		s.routes[r.ID] = r
	}
	return nil
}

func (s *MemoryStore) DeleteRoutesFrom(src int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.routes {
		if r.Src == src {
			delete(s.routes, id)
		}
	}
	return nil
}

func (s *MemoryStore) DeleteRoutesInvolving(routerID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.routes {
		if r.Src == routerID || r.Dst == routerID {
			delete(s.routes, id)
		}
	}
	return nil
}

func (s *MemoryStore) ListRoutes() ([]Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Route, 0, len(s.routes))
	for _, r := range s.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Src != out[j].Src {
			return out[i].Src < out[j].Src
		}
		return out[i].Dst < out[j].Dst
	})
	return out, nil
}

func (s *MemoryStore) ListRoutesFrom(src int) ([]Route, error) {
	all, _ := s.ListRoutes()
	out := all[:0:0]
	for _, r := range all {
		if r.Src == src {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetRoute(src, dst int) (Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.routes {
		if r.Src == src && r.Dst == dst {
			return r, nil
		}
	}
	return Route{}, ErrNotFound
}

// --- NeighborRepo ---

func (s *MemoryStore) CreateNeighbor(peerName, peerIP string, linkCost float64) (Neighbor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.neighbors {
		if n.PeerName == peerName || n.PeerIP == peerIP {
			return Neighbor{}, ErrValidation
		}
	}

	s.nextNeighborID++
	n := Neighbor{ID: s.nextNeighborID, PeerName: peerName, PeerIP: peerIP, State: NeighborDown, LinkCost: linkCost}
	s.neighbors[n.ID] = n
	return n, nil
}

func (s *MemoryStore) UpdateNeighbor(id int, linkCost float64) (Neighbor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.neighbors[id]
	if !ok {
		return Neighbor{}, ErrNotFound
	}
	n.LinkCost = linkCost
	s.neighbors[id] = n
	return n, nil
}

func (s *MemoryStore) SetNeighborState(id int, state NeighborState, lastHello time.Time) (Neighbor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.neighbors[id]
	if !ok {
		return Neighbor{}, ErrNotFound
	}
	n.State = state
	if !lastHello.IsZero() {
		n.LastHello = lastHello
	}
	s.neighbors[id] = n
	return n, nil
}

func (s *MemoryStore) DeleteNeighbor(id int) (Neighbor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.neighbors[id]
	if !ok {
		return Neighbor{}, ErrNotFound
	}
	delete(s.neighbors, id)
	return n, nil
}

func (s *MemoryStore) GetNeighbor(id int) (Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.neighbors[id]
	if !ok {
		return Neighbor{}, ErrNotFound
	}
	return n, nil
}

func (s *MemoryStore) FindNeighborByIP(ip string) (Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.neighbors {
		if n.PeerIP == ip {
			return n, nil
		}
	}
	return Neighbor{}, ErrNotFound
}

func (s *MemoryStore) ListNeighbors() ([]Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Neighbor, 0, len(s.neighbors))
	for _, n := range s.neighbors {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- FIBRepo ---

func (s *MemoryStore) UpsertFIBEntry(e FIBEntry) (FIBEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.fib[e.DstIP]
	if ok {
		if e.TotalCost >= existing.TotalCost {
			// incumbent stays: lower cost wins, ties favor the incumbent
			return existing, false, nil
		}
		e.ID = existing.ID
		s.fib[e.DstIP] = e
		return e, true, nil
	}

	s.nextFIBID++
	e.ID = s.nextFIBID
	s.fib[e.DstIP] = e
	return e, true, nil
}

func (s *MemoryStore) DeleteFIBEntry(dstIP string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fib[dstIP]; !ok {
		return ErrNotFound
	}
	delete(s.fib, dstIP)
	return nil
}

func (s *MemoryStore) DeleteFIBEntriesBySource(source FIBSource) ([]FIBEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []FIBEntry
	for ip, e := range s.fib {
		if e.Source == source {
			removed = append(removed, e)
			delete(s.fib, ip)
		}
	}
	return removed, nil
}

func (s *MemoryStore) DeleteFIBEntriesByNextHop(nextHopIP string) ([]FIBEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []FIBEntry
	for ip, e := range s.fib {
		if e.NextHopIP == nextHopIP {
			removed = append(removed, e)
			delete(s.fib, ip)
		}
	}
	return removed, nil
}

func (s *MemoryStore) GetFIBEntry(dstIP string) (FIBEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.fib[dstIP]
	if !ok {
		return FIBEntry{}, ErrNotFound
	}
	return e, nil
}

func (s *MemoryStore) ListFIBEntries() ([]FIBEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FIBEntry, 0, len(s.fib))
	for _, e := range s.fib {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DstIP < out[j].DstIP })
	return out, nil
}

// --- MessageRepo / EventRepo ---

func (s *MemoryStore) AppendMessage(m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return nil
}

func (s *MemoryStore) ListMessages() ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

func (s *MemoryStore) PurgeMessagesOlderThan(age time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-age)
	kept := s.messages[:0]
	removed := 0
	for _, m := range s.messages {
		if m.At.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	s.messages = kept
	return removed, nil
}

func (s *MemoryStore) AppendEvent(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *MemoryStore) ListEvents() ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out, nil
}

func (s *MemoryStore) PurgeEventsOlderThan(age time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-age)
	kept := s.events[:0]
	removed := 0
	for _, e := range s.events {
		if e.At.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return removed, nil
}

var _ Store = (*MemoryStore)(nil)
