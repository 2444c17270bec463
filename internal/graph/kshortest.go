package graph

import (
	"container/heap"
	"sort"
)

// KShortestPaths returns up to k loopless simple paths from src to dst,
// ranked by ascending total cost and, for equal cost, lexicographic path
// order. Implements Yen's algorithm restricted to simple (no repeated
// vertex) paths. Fewer than k results are returned if fewer simple paths
// exist; an empty slice (not an error) is returned when src/dst are
// disconnected. When src == dst the single zero-cost path [src] is returned.
func KShortestPaths(g *Graph, src, dst ID, k int) ([]PathResult, error) {
	if k <= 0 {
		return nil, nil
	}
	if _, ok := g.Nodes[src]; !ok {
		return nil, ErrNodeNotFound
	}
	if _, ok := g.Nodes[dst]; !ok {
		return nil, ErrNodeNotFound
	}

	first, err := simpleShortestPath(g, src, dst, nil, nil)
	if err != nil {
		return nil, nil // no path at all: empty result, not an error
	}

	A := []PathResult{first}
	var B []PathResult

	for len(A) < k {
		prevPath := A[len(A)-1].Path

		for i := 0; i < len(prevPath)-1; i++ {
			spurNode := prevPath[i]
			rootPath := append([]ID(nil), prevPath[:i+1]...)

			removedEdges := map[[2]ID]bool{}
			for _, p := range A {
				if len(p.Path) > i && pathPrefixEqual(p.Path[:i+1], rootPath) {
					removedEdges[[2]ID{p.Path[i], p.Path[i+1]}] = true
				}
			}

			removedNodes := map[ID]bool{}
			for _, n := range rootPath[:len(rootPath)-1] {
				removedNodes[n] = true
			}

			spurResult, err := simpleShortestPath(g, spurNode, dst, removedEdges, removedNodes)
			if err != nil {
				continue
			}

			totalPath := append(append([]ID(nil), rootPath[:len(rootPath)-1]...), spurResult.Path...)
			totalCost := pathCost(rootPath[:len(rootPath)-1], g) + spurResult.Cost

			cand := PathResult{Path: totalPath, Cost: totalCost}
			if !containsPath(A, cand) && !containsPath(B, cand) {
				B = append(B, cand)
			}
		}

		if len(B) == 0 {
			break
		}

		sort.Slice(B, func(i, j int) bool {
			if B[i].Cost != B[j].Cost {
				return B[i].Cost < B[j].Cost
			}
			return lessPath(B[i].Path, B[j].Path)
		})

		A = append(A, B[0])
		B = B[1:]
	}

	return A, nil
}

// simpleShortestPath runs Dijkstra while forbidding the given removed edges
// and removed intermediate nodes, used by Yen's spur-path search. Like
// dijkstraFrom, each queue entry carries its full candidate path so a node
// is finalized by the lexicographically smallest of its equal-cost paths.
func simpleShortestPath(g *Graph, src, dst ID, removedEdges map[[2]ID]bool, removedNodes map[ID]bool) (PathResult, error) {
	if removedNodes[src] {
		return PathResult{}, ErrNoPath
	}

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

		if u == dst {
			return PathResult{Path: item.path, Cost: item.cost}, nil
		}

		for _, e := range g.sortedEdges(u) {
			if visited[e.To] {
				continue
			}
			if removedNodes[e.To] && e.To != dst {
				continue
			}
			if removedEdges[[2]ID{u, e.To}] {
				continue
			}
			path := make([]ID, len(item.path)+1)
			copy(path, item.path)
			path[len(item.path)] = e.To
			heap.Push(pq, &pqItem{node: e.To, cost: item.cost + e.Cost, path: path})
		}
	}

	return PathResult{}, ErrNoPath
}

func pathPrefixEqual(a, b []ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func pathCost(path []ID, g *Graph) float64 {
	var total float64
	for i := 0; i+1 < len(path); i++ {
		if c, ok := g.hasEdge(path[i], path[i+1]); ok {
			total += c
		}
	}
	return total
}

func containsPath(list []PathResult, p PathResult) bool {
	for _, x := range list {
		if pathPrefixEqual(x.Path, p.Path) {
			return true
		}
	}
	return false
}
