// Package fib wraps gaissmai/bart's compressed routing trie to back the
// Router agent's forwarding table. The spec's FIB is keyed by an exact
// destination IP, so every entry is installed as a host route (/32 for
// IPv4, /128 for IPv6) — a degenerate case of bart's longest-prefix-match
// table. Table serializes access to the trie with a sync.RWMutex.
package fib

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/gaissmai/bart"

	"github.com/netsdn/controlplane/internal/metrics"
	"github.com/netsdn/controlplane/internal/store"
)

// Table is a concurrency-safe exact-match forwarding table.
type Table struct {
	mu sync.RWMutex
	t  *bart.Table[store.FIBEntry]
}

// New returns an empty Table.
func New() *Table {
	return &Table{t: &bart.Table[store.FIBEntry]{}}
}

func hostPrefix(ip string) (netip.Prefix, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("fib: invalid ip %q: %w", ip, err)
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Insert installs or overwrites the host route for e.DstIP.
func (tb *Table) Insert(e store.FIBEntry) error {
	p, err := hostPrefix(e.DstIP)
	if err != nil {
		return err
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.t.Insert(p, e)
	metrics.FIBEntries.Set(float64(tb.t.Size()))
	return nil
}

// Delete removes the host route for dstIP, if present.
func (tb *Table) Delete(dstIP string) error {
	p, err := hostPrefix(dstIP)
	if err != nil {
		return err
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.t.Delete(p)
	metrics.FIBEntries.Set(float64(tb.t.Size()))
	return nil
}

// Lookup returns the exact-match entry for dstIP. ok is false if no host
// route for that address is installed, even if a covering prefix exists —
// the spec's FIB is exact-match only.
func (tb *Table) Lookup(dstIP string) (store.FIBEntry, bool, error) {
	p, err := hostPrefix(dstIP)
	if err != nil {
		return store.FIBEntry{}, false, err
	}
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	e, ok := tb.t.Get(p)
	return e, ok, nil
}

// All returns every installed entry, in no particular order.
func (tb *Table) All() []store.FIBEntry {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	var out []store.FIBEntry
	for _, e := range tb.t.All() {
		out = append(out, e)
	}
	return out
}

// Sync replaces the table contents to exactly match entries, used after a
// ROUTE_UPDATE purge-then-reinsert cycle.
func (tb *Table) Sync(entries []store.FIBEntry) error {
	tb.mu.Lock()
	tb.t = &bart.Table[store.FIBEntry]{}
	tb.mu.Unlock()

	for _, e := range entries {
		if err := tb.Insert(e); err != nil {
			return err
		}
	}
	return nil
}
