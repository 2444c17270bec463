package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netsdn/controlplane/internal/router"
	"github.com/netsdn/controlplane/internal/store"
)

func TestLoadRouterConfig_AppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "router.yaml")

	minimal := `
name: "R1"
ip: "10.0.0.1"
controller_address: "127.0.0.1:9443"
`
	require.NoError(t, os.WriteFile(configFile, []byte(minimal), 0644))

	cfg, err := loadRouterConfig(configFile)
	require.NoError(t, err)
	assert.Equal(t, "R1", cfg.Name)
	assert.Equal(t, ":9091", cfg.AdminAddr)
	assert.Equal(t, 20, cfg.HeartbeatSec)
	assert.Equal(t, 10, cfg.HelloSec)
	assert.Equal(t, 40, cfg.DeadSec)
}

func TestLoadRouterConfig_Neighbors(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "router.yaml")

	full := `
name: "R1"
ip: "10.0.0.1"
controller_address: "127.0.0.1:9443"
neighbors:
  - name: "R2"
    ip: "10.0.0.2"
    cost: 5
  - name: "R3"
    ip: "10.0.0.3"
    cost: 1
`
	require.NoError(t, os.WriteFile(configFile, []byte(full), 0644))

	cfg, err := loadRouterConfig(configFile)
	require.NoError(t, err)
	require.Len(t, cfg.Neighbors, 2)
	assert.Equal(t, "R2", cfg.Neighbors[0].Name)
	assert.Equal(t, 5.0, cfg.Neighbors[0].Cost)
}

func TestLoadRouterConfig_MissingFile(t *testing.T) {
	_, err := loadRouterConfig("/nonexistent/router.yaml")
	assert.Error(t, err)
}

func TestSimulateStaticNeighbors_BringsNeighborToTwoWayThenFull(t *testing.T) {
	agentStore := store.NewMemoryStore()
	agent := router.New("R1", "10.0.0.1", agentStore, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	simulateStaticNeighbors(ctx, agent, []NeighborConfig{{Name: "R2", IP: "10.0.0.2", Cost: 1}}, 20*time.Millisecond)

	neighbors, err := agentStore.ListNeighbors()
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, store.NeighborTwoWay, neighbors[0].State)

	require.Eventually(t, func() bool {
		neighbors, err := agentStore.ListNeighbors()
		require.NoError(t, err)
		return neighbors[0].State == store.NeighborFull
	}, time.Second, 10*time.Millisecond)

	entry, ok, err := agent.FIB().Lookup("10.0.0.2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, store.FIBInternal, entry.Source)
}
