package graph

import "errors"

// ErrNodeNotFound is returned when a requested source/target is not a
// vertex in the current snapshot.
var ErrNodeNotFound = errors.New("graph: node not found")

// ErrNoPath is returned when no path exists between two vertices in the
// same call where both vertices are known (RouteUnavailable in spec terms).
var ErrNoPath = errors.New("graph: no path between nodes")
