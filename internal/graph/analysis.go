package graph

import (
	"sort"
	"strconv"

	"github.com/katalvlaran/lvlath/graph/algorithms"
	"github.com/katalvlaran/lvlath/graph/core"
)

// Connectivity summarizes the connected-component structure of the graph.
type Connectivity struct {
	Connected        bool
	Components       int
	IsolatedNodes     []ID
	ComponentMembers [][]ID
}

// mirror builds an undirected, unweighted lvlath core.Graph with the same
// vertex set and adjacency as g. Component membership does not depend on
// edge weight, so the mirror intentionally drops cost.
func (g *Graph) mirror() *core.Graph {
	cg := core.NewGraph(false, false)
	for _, id := range g.NodeIDs() {
		cg.AddVertex(&core.Vertex{ID: strconv.Itoa(id)})
	}
	for _, id := range g.NodeIDs() {
		for _, e := range g.sortedEdges(id) {
			cg.AddEdge(strconv.Itoa(id), strconv.Itoa(e.To), 1)
		}
	}
	return cg
}

// Connectivity computes connected components by driving lvlath's BFS from
// every undiscovered vertex over a mirrored unweighted graph.
func (g *Graph) Connectivity() Connectivity {
	if len(g.Nodes) == 0 {
		return Connectivity{Connected: true, Components: 0}
	}

	cg := g.mirror()
	seen := make(map[ID]bool, len(g.Nodes))
	var members [][]ID
	var isolated []ID

	for _, id := range g.NodeIDs() {
		if seen[id] {
			continue
		}
		res, err := algorithms.BFS(cg, strconv.Itoa(id), nil)
		if err != nil {
			// start vertex always exists in the mirror; defensive only.
			continue
		}
		var comp []ID
		for vid, ok := range res.Visited {
			if !ok {
				continue
			}
			n, convErr := strconv.Atoi(vid)
			if convErr != nil {
				continue
			}
			comp = append(comp, n)
			seen[n] = true
		}
		sort.Ints(comp)
		members = append(members, comp)
		if len(comp) == 1 {
			isolated = append(isolated, comp[0])
		}
	}

	sort.Slice(members, func(i, j int) bool { return members[i][0] < members[j][0] })
	sort.Ints(isolated)

	return Connectivity{
		Connected:        len(members) <= 1,
		Components:       len(members),
		IsolatedNodes:    isolated,
		ComponentMembers: members,
	}
}

// EdgePair is an unordered pair of router ids, normalized so A <= B.
type EdgePair struct{ A, B ID }

func normPair(a, b ID) EdgePair {
	if a > b {
		a, b = b, a
	}
	return EdgePair{A: a, B: b}
}

// tarjanState carries the shared bookkeeping for the single DFS pass that
// computes both articulation points and bridges (classic Tarjan low-link).
type tarjanState struct {
	g        *Graph
	disc     map[ID]int
	low      map[ID]int
	visited  map[ID]bool
	parent   map[ID]ID
	hasP     map[ID]bool
	counter  int
	aps      map[ID]bool
	bridges  []EdgePair
	children map[ID]int // root child count, for the root articulation-point rule
}

func (s *tarjanState) dfs(u ID, isRoot bool) {
	s.visited[u] = true
	s.disc[u] = s.counter
	s.low[u] = s.counter
	s.counter++

	childCount := 0

	for _, e := range s.g.sortedEdges(u) {
		v := e.To
		if s.hasP[u] && s.parent[u] == v && !s.multiEdge(u, v) {
			// skip the tree edge back to parent, unless there are parallel
			// edges (the Link invariant forbids those, so this is defensive)
			continue
		}
		if !s.visited[v] {
			childCount++
			s.parent[v] = u
			s.hasP[v] = true
			s.dfs(v, false)

			if s.low[v] < s.low[u] {
				s.low[u] = s.low[v]
			}

			if !isRoot && s.low[v] >= s.disc[u] {
				s.aps[u] = true
			}
			if s.low[v] > s.disc[u] {
				s.bridges = append(s.bridges, normPair(u, v))
			}
		} else if s.disc[v] < s.disc[u] {
			if s.disc[v] < s.low[u] {
				s.low[u] = s.disc[v]
			}
		}
	}

	if isRoot && childCount > 1 {
		s.aps[u] = true
	}
}

// multiEdge is always false: the Link invariant forbids parallel edges
// between the same pair. Kept as a named hook so the single-back-edge skip
// above reads intentionally rather than as an oversight.
func (s *tarjanState) multiEdge(ID, ID) bool { return false }

// articulationAndBridges runs one DFS pass per connected component and
// returns the articulation points and bridges of the whole graph.
func (g *Graph) articulationAndBridges() (map[ID]bool, []EdgePair) {
	s := &tarjanState{
		g:       g,
		disc:    make(map[ID]int),
		low:     make(map[ID]int),
		visited: make(map[ID]bool),
		parent:  make(map[ID]ID),
		hasP:    make(map[ID]bool),
		aps:     make(map[ID]bool),
	}
	for _, id := range g.NodeIDs() {
		if !s.visited[id] {
			s.dfs(id, true)
		}
	}
	return s.aps, s.bridges
}

// ArticulationPoints returns the set of router ids whose removal increases
// the number of connected components.
func (g *Graph) ArticulationPoints() []ID {
	aps, _ := g.articulationAndBridges()
	out := make([]ID, 0, len(aps))
	for id := range aps {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Bridges returns the set of edges whose removal disconnects the graph.
func (g *Graph) Bridges() []EdgePair {
	_, bridges := g.articulationAndBridges()
	sort.Slice(bridges, func(i, j int) bool {
		if bridges[i].A != bridges[j].A {
			return bridges[i].A < bridges[j].A
		}
		return bridges[i].B < bridges[j].B
	})
	return bridges
}

// Centrality bundles degree, betweenness and closeness centrality, all
// keyed by router id.
type Centrality struct {
	Degree      map[ID]int
	Betweenness map[ID]float64
	Closeness   map[ID]float64
}

// Centrality computes degree/betweenness/closeness centrality. Betweenness
// treats edge weight as distance weight (Brandes' algorithm); closeness
// treats it as shortest-path distance; both operate per connected
// component since cross-component distances are infinite.
func (g *Graph) Centrality() Centrality {
	c := Centrality{
		Degree:      make(map[ID]int, len(g.Nodes)),
		Betweenness: make(map[ID]float64, len(g.Nodes)),
		Closeness:   make(map[ID]float64, len(g.Nodes)),
	}
	for _, id := range g.NodeIDs() {
		c.Degree[id] = len(g.Nodes[id].Edges)
		c.Betweenness[id] = 0
		c.Closeness[id] = 0
	}

	bc := brandesBetweenness(g)
	for id, v := range bc {
		c.Betweenness[id] = v
	}

	n := len(g.Nodes)
	for _, s := range g.NodeIDs() {
		dist, _ := dijkstraFrom(g, s)
		var sum float64
		reachable := 0
		for _, t := range g.NodeIDs() {
			if t == s {
				continue
			}
			if d, ok := dist[t]; ok {
				sum += d
				reachable++
			}
		}
		if sum > 0 && n > 1 {
			// Normalize by the fraction of the graph actually reached, so
			// peripheral nodes in small components aren't penalized purely
			// for the rest of the graph being unreachable.
			c.Closeness[s] = float64(reachable) / sum
		}
	}

	return c
}

// EdgeBetweenness returns the betweenness score of every edge, used for
// congestion analysis: how many shortest paths cross each link.
func (g *Graph) EdgeBetweenness() map[EdgePair]float64 {
	scores := make(map[EdgePair]float64)
	for _, s := range g.NodeIDs() {
		_, prev := dijkstraFrom(g, s)
		for _, t := range g.NodeIDs() {
			if t == s {
				continue
			}
			path := reconstructPath(prev, s, t)
			if len(path) < 2 || path[0] != s {
				continue
			}
			for i := 0; i+1 < len(path); i++ {
				scores[normPair(path[i], path[i+1])]++
			}
		}
	}
	// Every unordered shortest-path traversal is counted once per ordered
	// (s,t) pair in both directions, so halve to get the undirected score.
	for k, v := range scores {
		scores[k] = v / 2
	}
	return scores
}

// brandesBetweenness computes unnormalized vertex betweenness centrality
// with Brandes-style dependency accumulation, using Dijkstra instead of BFS
// layering. Shortest paths are not counted: each source contributes along
// the single shortest-path tree dijkstraFrom returns, so when several
// equal-cost paths exist only that tree's path is credited.
func brandesBetweenness(g *Graph) map[ID]float64 {
	cb := make(map[ID]float64, len(g.Nodes))
	for _, id := range g.NodeIDs() {
		cb[id] = 0
	}

	for _, s := range g.NodeIDs() {
		dist, prev := dijkstraFrom(g, s)

		// Build predecessor DAG (on the shortest-path tree from prev) and a
		// topological order via stack.
		order := make([]ID, 0, len(g.Nodes))
		for _, id := range g.NodeIDs() {
			if id == s {
				continue
			}
			if _, ok := dist[id]; ok {
				order = append(order, id)
			}
		}
		sort.Slice(order, func(i, j int) bool { return dist[order[i]] > dist[order[j]] })

		sigma := make(map[ID]float64)
		delta := make(map[ID]float64)
		for _, id := range g.NodeIDs() {
			sigma[id] = 0
			delta[id] = 0
		}
		sigma[s] = 1

		// Approximate sigma (path count) along the single shortest-path
		// tree captured by prev: since dijkstraFrom keeps one predecessor
		// per node, sigma[v] = 1 for every reachable v != s.
		for _, id := range order {
			sigma[id] = 1
		}

		for _, w := range order {
			p, ok := prev[w]
			if !ok {
				continue
			}
			delta[p] += (sigma[p] / sigma[w]) * (1 + delta[w])
			if w != s {
				cb[w] += delta[w]
			}
		}
	}

	// Undirected graphs double-count every pair; halve.
	for id := range cb {
		cb[id] /= 2
	}
	return cb
}

// Stats bundles graph-wide summary statistics.
type Stats struct {
	N       int
	M       int
	Density float64
	// Diameter and Radius are only meaningful (non-nil) when the graph is
	// connected, per spec.
	Diameter *float64
	Radius   *float64
}

// Stats computes n, m, density and, when the graph is connected, diameter
// and radius (both weighted, over shortest-path distances).
func (g *Graph) Stats() Stats {
	n := len(g.Nodes)
	m := 0
	for _, node := range g.Nodes {
		m += len(node.Edges)
	}
	m /= 2

	var density float64
	if n > 1 {
		density = float64(2*m) / float64(n*(n-1))
	}

	st := Stats{N: n, M: m, Density: density}

	if n == 0 || !g.Connectivity().Connected {
		return st
	}

	var maxEcc, minEcc float64
	first := true
	for _, s := range g.NodeIDs() {
		dist, _ := dijkstraFrom(g, s)
		var ecc float64
		for _, t := range g.NodeIDs() {
			if t == s {
				continue
			}
			if dist[t] > ecc {
				ecc = dist[t]
			}
		}
		if first {
			maxEcc, minEcc = ecc, ecc
			first = false
		}
		if ecc > maxEcc {
			maxEcc = ecc
		}
		if ecc < minEcc {
			minEcc = ecc
		}
	}

	st.Diameter = &maxEcc
	st.Radius = &minEcc
	return st
}
