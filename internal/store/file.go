package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// FileStore persists the full entity set as a single JSON file on disk,
// writing atomically (write-to-temp, then rename), mirroring the teacher's
// topology.FileStore. It wraps a MemoryStore for in-process reads/writes
// and saves a fresh snapshot after every mutation.
type FileStore struct {
	*MemoryStore
	Path string
}

// NewFileStore creates a FileStore at path, restoring prior state if the
// file exists.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{MemoryStore: NewMemoryStore(), Path: path}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read store file: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("unmarshal store file: %w", err)
	}
	fs.restore(snap)
	return nil
}

func (fs *FileStore) save() {
	snap := fs.dump()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		slog.Error("store: marshal snapshot failed", "error", err)
		return
	}

	dir := filepath.Dir(fs.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("store: create dir failed", "error", err, "dir", dir)
		return
	}

	tmp := fs.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		slog.Error("store: write temp file failed", "error", err)
		return
	}
	if err := os.Rename(tmp, fs.Path); err != nil {
		slog.Error("store: rename temp file failed", "error", err)
	}
}

// The mutating methods below delegate to MemoryStore and then persist a
// fresh snapshot, exactly mirroring topology.Topology's save()-after-every-
// mutation idiom.

func (fs *FileStore) CreateRouter(name, ip string) (Router, error) {
	r, err := fs.MemoryStore.CreateRouter(name, ip)
	if err == nil {
		fs.save()
	}
	return r, err
}

func (fs *FileStore) UpdateRouter(id int, name, ip string) (Router, error) {
	r, err := fs.MemoryStore.UpdateRouter(id, name, ip)
	if err == nil {
		fs.save()
	}
	return r, err
}

func (fs *FileStore) SetRouterState(id int, state RouterState) (Router, error) {
	r, err := fs.MemoryStore.SetRouterState(id, state)
	if err == nil {
		fs.save()
	}
	return r, err
}

func (fs *FileStore) DeleteRouter(id int) error {
	err := fs.MemoryStore.DeleteRouter(id)
	if err == nil {
		fs.save()
	}
	return err
}

func (fs *FileStore) CreateLink(a, b int, cost float64, bandwidth, delayMS *float64) (Link, error) {
	l, err := fs.MemoryStore.CreateLink(a, b, cost, bandwidth, delayMS)
	if err == nil {
		fs.save()
	}
	return l, err
}

func (fs *FileStore) UpdateLink(id int, cost float64, bandwidth, delayMS *float64) (Link, error) {
	l, err := fs.MemoryStore.UpdateLink(id, cost, bandwidth, delayMS)
	if err == nil {
		fs.save()
	}
	return l, err
}

func (fs *FileStore) SetLinkState(id int, state LinkState) (Link, error) {
	l, err := fs.MemoryStore.SetLinkState(id, state)
	if err == nil {
		fs.save()
	}
	return l, err
}

func (fs *FileStore) DeleteLink(id int) error {
	err := fs.MemoryStore.DeleteLink(id)
	if err == nil {
		fs.save()
	}
	return err
}

func (fs *FileStore) DeleteLinksForRouter(routerID int) ([]Link, error) {
	links, err := fs.MemoryStore.DeleteLinksForRouter(routerID)
	if err == nil {
		fs.save()
	}
	return links, err
}

func (fs *FileStore) PutRoutes(routes []Route) error {
	err := fs.MemoryStore.PutRoutes(routes)
	if err == nil {
		fs.save()
	}
	return err
}

func (fs *FileStore) DeleteRoutesFrom(src int) error {
	err := fs.MemoryStore.DeleteRoutesFrom(src)
	if err == nil {
		fs.save()
	}
	return err
}

func (fs *FileStore) DeleteRoutesInvolving(routerID int) error {
	err := fs.MemoryStore.DeleteRoutesInvolving(routerID)
	if err == nil {
		fs.save()
	}
	return err
}

func (fs *FileStore) CreateNeighbor(peerName, peerIP string, linkCost float64) (Neighbor, error) {
	n, err := fs.MemoryStore.CreateNeighbor(peerName, peerIP, linkCost)
	if err == nil {
		fs.save()
	}
	return n, err
}

func (fs *FileStore) UpdateNeighbor(id int, linkCost float64) (Neighbor, error) {
	n, err := fs.MemoryStore.UpdateNeighbor(id, linkCost)
	if err == nil {
		fs.save()
	}
	return n, err
}

func (fs *FileStore) SetNeighborState(id int, state NeighborState, lastHello time.Time) (Neighbor, error) {
	n, err := fs.MemoryStore.SetNeighborState(id, state, lastHello)
	if err == nil {
		fs.save()
	}
	return n, err
}

func (fs *FileStore) DeleteNeighbor(id int) (Neighbor, error) {
	n, err := fs.MemoryStore.DeleteNeighbor(id)
	if err == nil {
		fs.save()
	}
	return n, err
}

func (fs *FileStore) UpsertFIBEntry(e FIBEntry) (FIBEntry, bool, error) {
	out, installed, err := fs.MemoryStore.UpsertFIBEntry(e)
	if err == nil && installed {
		fs.save()
	}
	return out, installed, err
}

func (fs *FileStore) DeleteFIBEntry(dstIP string) error {
	err := fs.MemoryStore.DeleteFIBEntry(dstIP)
	if err == nil {
		fs.save()
	}
	return err
}

func (fs *FileStore) DeleteFIBEntriesBySource(source FIBSource) ([]FIBEntry, error) {
	out, err := fs.MemoryStore.DeleteFIBEntriesBySource(source)
	if err == nil {
		fs.save()
	}
	return out, err
}

func (fs *FileStore) DeleteFIBEntriesByNextHop(nextHopIP string) ([]FIBEntry, error) {
	out, err := fs.MemoryStore.DeleteFIBEntriesByNextHop(nextHopIP)
	if err == nil {
		fs.save()
	}
	return out, err
}

func (fs *FileStore) AppendMessage(m Message) error {
	err := fs.MemoryStore.AppendMessage(m)
	if err == nil {
		fs.save()
	}
	return err
}

func (fs *FileStore) AppendEvent(e Event) error {
	err := fs.MemoryStore.AppendEvent(e)
	if err == nil {
		fs.save()
	}
	return err
}

func (fs *FileStore) PurgeMessagesOlderThan(age time.Duration) (int, error) {
	n, err := fs.MemoryStore.PurgeMessagesOlderThan(age)
	if err == nil && n > 0 {
		fs.save()
	}
	return n, err
}

func (fs *FileStore) PurgeEventsOlderThan(age time.Duration) (int, error) {
	n, err := fs.MemoryStore.PurgeEventsOlderThan(age)
	if err == nil && n > 0 {
		fs.save()
	}
	return n, err
}

var _ Store = (*FileStore)(nil)
