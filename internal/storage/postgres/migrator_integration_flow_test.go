package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMigrator_PostgresLifecycle(t *testing.T) {
	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	require.NoError(t, store.MigrateDown(ctx, 100))

	state, err := store.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, MigrationState{Version: 0, Applied: 0, Pending: 3}, state)

	require.NoError(t, store.MigrateUp(ctx, 0))
	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, MigrationState{Version: 3, Applied: 3, Pending: 0}, state)

	require.NoError(t, store.MigrateUp(ctx, 0))

	require.NoError(t, store.MigrateDown(ctx, 1))
	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, MigrationState{Version: 2, Applied: 2, Pending: 1}, state)

	require.NoError(t, store.MigrateUp(ctx, 0))
}

func TestMigrator_GuardsAndUnsupportedDirection(t *testing.T) {
	var nilStore *Store
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.Error(t, nilStore.MigrateUp(ctx, 0))
	require.Error(t, nilStore.MigrateDown(ctx, 1))
	_, err := nilStore.MigrationStatus(ctx)
	require.Error(t, err)
	require.Error(t, nilStore.Ping(ctx))
	require.NoError(t, nilStore.Close())

	store := openRawPostgresStoreForIntegrationTest(t)
	require.Error(t, store.Migrate(ctx, MigrationDirection("invalid"), 0))
}
