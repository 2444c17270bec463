package graph

import "container/heap"

// PathResult is a computed path and its total cost.
type PathResult struct {
	Path []ID
	Cost float64
}

// ShortestPath runs Dijkstra's algorithm from src to dst over non-negative
// edge weights. Ties in total cost are broken by lexicographic order of the
// router-id sequence, matching the recomputation determinism spec.md fixes.
//
// s == t returns ([]ID{s}, 0, nil). A missing endpoint returns
// ErrNodeNotFound. An unreachable target returns ErrNoPath.
func ShortestPath(g *Graph, src, dst ID) (PathResult, error) {
	if _, ok := g.Nodes[src]; !ok {
		return PathResult{}, ErrNodeNotFound
	}
	if _, ok := g.Nodes[dst]; !ok {
		return PathResult{}, ErrNodeNotFound
	}
	if src == dst {
		return PathResult{Path: []ID{src}, Cost: 0}, nil
	}

	dist, prev := dijkstraFrom(g, src)

	d, ok := dist[dst]
	if !ok {
		return PathResult{}, ErrNoPath
	}

	path := reconstructPath(prev, src, dst)
	return PathResult{Path: path, Cost: d}, nil
}

// AllShortestPathsFrom runs single-source Dijkstra and returns every
// reachable destination's path and cost, keyed by destination id. The
// source itself is included with a zero-cost single-node path.
func AllShortestPathsFrom(g *Graph, src ID) (map[ID]PathResult, error) {
	if _, ok := g.Nodes[src]; !ok {
		return nil, ErrNodeNotFound
	}

	dist, prev := dijkstraFrom(g, src)

	out := make(map[ID]PathResult)
	for _, id := range g.NodeIDs() {
		d, ok := dist[id]
		if !ok {
			continue
		}
		if id == src {
			out[id] = PathResult{Path: []ID{src}, Cost: 0}
			continue
		}
		out[id] = PathResult{Path: reconstructPath(prev, src, id), Cost: d}
	}
	return out, nil
}

// dijkstraFrom computes single-source shortest distances and a predecessor
// map. Each priority-queue entry carries the full candidate path so far, and
// entries are ordered by (cost, path) with path compared lexicographically
// (lessPath); a node is finalized the first time it is popped, so the path
// that finalizes it is the lexicographically smallest among all shortest
// paths reaching it. prev[id] is then just that finalized path's last hop
// before id, letting reconstructPath and every other caller of dijkstraFrom
// keep using a plain single-predecessor map.
func dijkstraFrom(g *Graph, src ID) (dist map[ID]float64, prev map[ID]ID) {
	dist = make(map[ID]float64, len(g.Nodes))
	prev = make(map[ID]ID, len(g.Nodes))
	visited := make(map[ID]bool, len(g.Nodes))

	pq := &pqueue{}
	heap.Init(pq)
	heap.Push(pq, &pqItem{node: src, cost: 0, path: []ID{src}})

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem)
		u := item.node
		if visited[u] {
			continue
		}
		visited[u] = true
		dist[u] = item.cost
		if len(item.path) >= 2 {
			prev[u] = item.path[len(item.path)-2]
		}

		for _, e := range g.sortedEdges(u) {
			if visited[e.To] {
				continue
			}
			path := make([]ID, len(item.path)+1)
			copy(path, item.path)
			path[len(item.path)] = e.To
			heap.Push(pq, &pqItem{node: e.To, cost: item.cost + e.Cost, path: path})
		}
	}

	return dist, prev
}

func reconstructPath(prev map[ID]ID, src, dst ID) []ID {
	path := []ID{dst}
	at := dst
	for at != src {
		p, ok := prev[at]
		if !ok {
			break
		}
		path = append(path, p)
		at = p
	}
	// reverse
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// --- priority queue ---

type pqItem struct {
	node  ID
	cost  float64
	path  []ID
	index int
}

type pqueue []*pqItem

func (pq pqueue) Len() int { return len(pq) }
func (pq pqueue) Less(i, j int) bool {
	if pq[i].cost != pq[j].cost {
		return pq[i].cost < pq[j].cost
	}
	return lessPath(pq[i].path, pq[j].path)
}
func (pq pqueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i]; pq[i].index = i; pq[j].index = j }
func (pq *pqueue) Push(x any) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *pqueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}
