// Package eventlog runs the background sweeper that bounds retention of
// the append-only message and event logs, mirroring the teacher's
// announceTable.StartSweeper/Sweep idiom: a ticker-driven goroutine,
// stopped via context, that prunes entries older than a configured TTL.
package eventlog

import (
	"context"
	"log/slog"
	"time"
)

// Pruner is the persistence surface the sweeper prunes against.
type Pruner interface {
	PurgeMessagesOlderThan(age time.Duration) (int, error)
	PurgeEventsOlderThan(age time.Duration) (int, error)
}

// DefaultRetention bounds how long message/event log rows are kept.
const DefaultRetention = 24 * time.Hour

// DefaultSweepInterval is how often the sweeper runs.
const DefaultSweepInterval = 10 * time.Minute

// Sweeper periodically prunes the message and event logs.
type Sweeper struct {
	store     Pruner
	log       *slog.Logger
	retention time.Duration
	interval  time.Duration
}

// Option configures a Sweeper at construction time.
type Option func(*Sweeper)

// WithRetention overrides DefaultRetention.
func WithRetention(d time.Duration) Option {
	return func(s *Sweeper) { s.retention = d }
}

// WithInterval overrides DefaultSweepInterval.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) { s.interval = d }
}

// New builds a Sweeper over store.
func New(store Pruner, log *slog.Logger, opts ...Option) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	s := &Sweeper{store: store, log: log, retention: DefaultRetention, interval: DefaultSweepInterval}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the sweep loop as a background goroutine until ctx is
// cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Sweep prunes the message and event logs immediately, returning the
// number of rows removed from each.
func (s *Sweeper) Sweep() (messagesRemoved, eventsRemoved int) {
	messagesRemoved, err := s.store.PurgeMessagesOlderThan(s.retention)
	if err != nil {
		s.log.Warn("eventlog: purge messages failed", "error", err)
	}
	eventsRemoved, err = s.store.PurgeEventsOlderThan(s.retention)
	if err != nil {
		s.log.Warn("eventlog: purge events failed", "error", err)
	}
	if messagesRemoved > 0 || eventsRemoved > 0 {
		s.log.Debug("eventlog: swept logs", "messages_removed", messagesRemoved, "events_removed", eventsRemoved)
	}
	return messagesRemoved, eventsRemoved
}
