package eventlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netsdn/controlplane/internal/store"
)

func TestSweep_RemovesOnlyExpiredRows(t *testing.T) {
	s := store.NewMemoryStore()

	require.NoError(t, s.AppendMessage(store.Message{ID: "m-old", At: time.Now().Add(-2 * time.Hour)}))
	require.NoError(t, s.AppendMessage(store.Message{ID: "m-new", At: time.Now()}))
	require.NoError(t, s.AppendEvent(store.Event{ID: "e-old", At: time.Now().Add(-2 * time.Hour)}))
	require.NoError(t, s.AppendEvent(store.Event{ID: "e-new", At: time.Now()}))

	sweeper := New(s, nil, WithRetention(time.Hour))
	msgRemoved, evtRemoved := sweeper.Sweep()
	assert.Equal(t, 1, msgRemoved)
	assert.Equal(t, 1, evtRemoved)

	messages, err := s.ListMessages()
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "m-new", messages[0].ID)

	events, err := s.ListEvents()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e-new", events[0].ID)
}
