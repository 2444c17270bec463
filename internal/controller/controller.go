// Package controller implements the Controller core: router/link CRUD with
// validation, route recomputation via the graph engine, and event-log
// bookkeeping. It depends on store.ControllerStore, graph and metrics, never
// on the transport layer — internal/controlserver drives it from accepted
// sessions.
package controller

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/netsdn/controlplane/internal/graph"
	"github.com/netsdn/controlplane/internal/metrics"
	"github.com/netsdn/controlplane/internal/store"
)

// Controller owns the authoritative topology. Link mutations and router
// removal recompute routes; AddRouter and SetRouterState record the change
// without recomputing, so routes reflect a new or re-stated router only
// after the next recomputation. All exported methods are safe for concurrent use; the
// underlying store provides the locking.
type Controller struct {
	store store.ControllerStore
	log   *slog.Logger
}

// New builds a Controller backed by s.
func New(s store.ControllerStore, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{store: s, log: log}
}

func (c *Controller) event(kind, detail string) {
	metrics.TopologyMutations.WithLabelValues(kind).Inc()
	if err := c.store.AppendEvent(store.Event{
		ID:     uuid.NewString(),
		Event:  kind,
		Detail: detail,
		At:     time.Now(),
	}); err != nil {
		c.log.Warn("controller: append event failed", "error", err, "event", kind)
	}
}

// AddRouter registers a new router. Name and IP must each be unique. Routes
// are not recomputed.
func (c *Controller) AddRouter(name, ip string) (store.Router, error) {
	r, err := c.store.CreateRouter(name, ip)
	if err != nil {
		return store.Router{}, fmt.Errorf("add router: %w", err)
	}
	c.event("router_added", fmt.Sprintf("router %s (%s) id=%d", name, ip, r.ID))
	return r, nil
}

// RemoveRouter deletes a router, cascades its links, purges dependent
// routes, and recomputes the remaining shortest paths.
func (c *Controller) RemoveRouter(id int) error {
	if err := c.store.DeleteRouter(id); err != nil {
		return fmt.Errorf("remove router: %w", err)
	}
	if _, err := c.store.DeleteLinksForRouter(id); err != nil {
		return fmt.Errorf("remove router: cascade links: %w", err)
	}
	if err := c.store.DeleteRoutesInvolving(id); err != nil {
		return fmt.Errorf("remove router: purge routes: %w", err)
	}
	c.event("router_removed", fmt.Sprintf("router id=%d", id))
	return c.RecomputeRoutes()
}

// SetRouterState transitions a router between Active/Inactive/Maintenance.
// Routes are not recomputed.
func (c *Controller) SetRouterState(id int, state store.RouterState) (store.Router, error) {
	r, err := c.store.SetRouterState(id, state)
	if err != nil {
		return store.Router{}, fmt.Errorf("set router state: %w", err)
	}
	c.event("router_state_changed", fmt.Sprintf("router id=%d state=%s", id, state))
	return r, nil
}

// AddLink creates a bidirectional weighted link between two existing,
// distinct routers and recomputes routes.
func (c *Controller) AddLink(a, b int, cost float64, bandwidth, delayMS *float64) (store.Link, error) {
	l, err := c.store.CreateLink(a, b, cost, bandwidth, delayMS)
	if err != nil {
		return store.Link{}, fmt.Errorf("add link: %w", err)
	}
	c.event("link_added", fmt.Sprintf("link id=%d %d<->%d cost=%.3f", l.ID, a, b, cost))
	if err := c.RecomputeRoutes(); err != nil {
		return l, err
	}
	return l, nil
}

// RemoveLink deletes a link and recomputes routes.
func (c *Controller) RemoveLink(id int) error {
	if err := c.store.DeleteLink(id); err != nil {
		return fmt.Errorf("remove link: %w", err)
	}
	c.event("link_removed", fmt.Sprintf("link id=%d", id))
	return c.RecomputeRoutes()
}

// SetLinkState marks a link Active or Inactive. An Inactive link is
// excluded from route computation without being deleted.
func (c *Controller) SetLinkState(id int, state store.LinkState) (store.Link, error) {
	l, err := c.store.SetLinkState(id, state)
	if err != nil {
		return store.Link{}, fmt.Errorf("set link state: %w", err)
	}
	c.event("link_state_changed", fmt.Sprintf("link id=%d state=%s", id, state))
	if err := c.RecomputeRoutes(); err != nil {
		return l, err
	}
	return l, nil
}

// RecomputeRoutes rebuilds the routing table from scratch: it purges all
// existing routes and reinserts the full all-pairs shortest-path set over
// active routers and active links, mirroring spec.md's purge-then-reinsert
// policy so stale routes never survive a topology change.
func (c *Controller) RecomputeRoutes() error {
	routers, err := c.store.ListActiveRouters()
	if err != nil {
		return fmt.Errorf("recompute routes: list routers: %w", err)
	}
	links, err := c.store.ListActiveLinks()
	if err != nil {
		return fmt.Errorf("recompute routes: list links: %w", err)
	}

	ids := make([]graph.ID, 0, len(routers))
	for _, r := range routers {
		ids = append(ids, graph.ID(r.ID))
	}
	linkInputs := make([]graph.LinkInput, 0, len(links))
	for _, l := range links {
		linkInputs = append(linkInputs, graph.LinkInput{A: graph.ID(l.A), B: graph.ID(l.B), Cost: l.Cost})
	}
	g := graph.Build(ids, linkInputs)

	var newRoutes []store.Route
	now := time.Now()
	for _, src := range ids {
		results, err := graph.AllShortestPathsFrom(g, src)
		if err != nil {
			return fmt.Errorf("recompute routes: shortest paths from %d: %w", src, err)
		}
		for dst, pr := range results {
			if dst == src {
				continue
			}
			path := make([]int, len(pr.Path))
			for i, id := range pr.Path {
				path[i] = int(id)
			}
			newRoutes = append(newRoutes, store.Route{
				Src:        int(src),
				Dst:        int(dst),
				Path:       path,
				TotalCost:  pr.Cost,
				ComputedAt: now,
			})
		}
	}

	allRouters, err := c.store.ListRouters()
	if err != nil {
		return fmt.Errorf("recompute routes: list all routers: %w", err)
	}
	for _, r := range allRouters {
		if err := c.store.DeleteRoutesFrom(r.ID); err != nil {
			return fmt.Errorf("recompute routes: purge: %w", err)
		}
	}
	if err := c.store.PutRoutes(newRoutes); err != nil {
		return fmt.Errorf("recompute routes: insert: %w", err)
	}
	metrics.RoutesRecomputed.Inc()
	c.event("routes_recomputed", fmt.Sprintf("%d routes over %d routers", len(newRoutes), len(ids)))
	return nil
}

// Topology returns the current active routers and links, for building a
// graph.Graph or a TOPOLOGY_UPDATE payload.
func (c *Controller) Topology() ([]store.Router, []store.Link, error) {
	routers, err := c.store.ListRouters()
	if err != nil {
		return nil, nil, err
	}
	links, err := c.store.ListLinks()
	if err != nil {
		return nil, nil, err
	}
	return routers, links, nil
}

// RoutesFrom returns the computed routes originating at src.
func (c *Controller) RoutesFrom(src int) ([]store.Route, error) {
	return c.store.ListRoutesFrom(src)
}
