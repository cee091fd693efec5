package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverMemory,
	}, log.WithField("test", "memory-storage"))
	require.NoError(t, err)
	require.NotNil(t, deps.orders)
	require.NotNil(t, deps.outboxRepo)
	require.NotNil(t, deps.idempotencyRepo)
	require.NoError(t, deps.orders.Ping(context.Background()))
	require.NoError(t, deps.close())
}

func TestInitRuntimeDependencies_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverPostgres,
	}, log.WithField("test", "postgres-missing-dsn"))
	require.Error(t, err)
}

func TestInitRuntimeDependencies_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: "sqlite",
	}, log.WithField("test", "unsupported-driver"))
	require.Error(t, err)
}

func TestInitRemoteServices_FallsBackToMocks(t *testing.T) {
	t.Parallel()

	remote, err := initRemoteServices(DefaultConfig(), log.WithField("test", "remote"))
	require.NoError(t, err)
	defer remote.Close()

	require.Empty(t, remote.conns)
	products, err := remote.catalog.Validate(context.Background(), []int64{7})
	require.NoError(t, err)
	require.Len(t, products, 1)
}

func TestInitRemoteServices_DialsConfiguredAddresses(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.CatalogAddr = "127.0.0.1:1"
	cfg.PaymentAddr = "127.0.0.1:2"

	remote, err := initRemoteServices(cfg, log.WithField("test", "remote"))
	require.NoError(t, err)
	defer remote.Close()
	require.Len(t, remote.conns, 2)
}

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	t.Parallel()

	runtime, err := initKafkaProducer(nil, log.WithField("test", "kafka"))
	require.NoError(t, err)
	require.Nil(t, runtime)
	closeKafka(runtime, log.WithField("test", "kafka"))
}
