package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniswap/internal/model"
)

func setupTestStore(t *testing.T) *Store {
	dsn := os.Getenv("MINISWAP_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("MINISWAP_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	if err := store.Ping(ctx, 2*time.Second); err != nil {
		store.Close()
		t.Skipf("Postgres not available: %v", err)
	}
	require.NoError(t, store.EnsureSchema(ctx))
	t.Cleanup(store.Close)
	return store
}

func TestNewStoreRequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	require.Error(t, err)
}

func TestDeploymentRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	network := "test-" + time.Now().Format("150405.000000")
	d := model.Deployment{
		AssetA:  "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		AssetB:  "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
		Pool:    "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0",
		Network: network,
		ChainID: 31337,
	}
	require.NoError(t, store.UpsertDeployments(ctx, []model.Deployment{d}))

	got, ok, err := store.LoadDeployment(ctx, network)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, d, got)

	_, ok, err = store.LoadDeployment(ctx, network+"-missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
