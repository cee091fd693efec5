package postgres

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestLoadMigrationsFromFS_Success(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0002_more.up.sql":   {Data: []byte("CREATE TABLE test_b (id INT);")},
		"sql/migrations/0002_more.down.sql": {Data: []byte("DROP TABLE IF EXISTS test_b;")},
		"sql/migrations/0001_init.up.sql":   {Data: []byte("CREATE TABLE test_a (id INT);")},
		"sql/migrations/0001_init.down.sql": {Data: []byte("DROP TABLE IF EXISTS test_a;")},
	}

	migrations, err := loadMigrationsFromFS(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	require.Equal(t, int64(1), migrations[0].Version)
	require.Equal(t, "init", migrations[0].Name)
	require.Equal(t, int64(2), migrations[1].Version)
	require.Equal(t, "DROP TABLE IF EXISTS test_b;", migrations[1].SQL[MigrationDown])
}

func TestLoadMigrationsFromFS_Errors(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		fsys fstest.MapFS
		want string
	}{
		"missing down": {
			fsys: fstest.MapFS{"sql/migrations/0001_init.up.sql": {Data: []byte("SELECT 1;")}},
			want: "both up and down",
		},
		"invalid filename": {
			fsys: fstest.MapFS{"sql/migrations/not_a_migration.sql": {Data: []byte("SELECT 1;")}},
			want: "invalid migration file name",
		},
		"empty body": {
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":   {Data: []byte("   \n")},
				"sql/migrations/0001_init.down.sql": {Data: []byte("DROP TABLE IF EXISTS test;")},
			},
			want: "empty",
		},
		"name mismatch": {
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":    {Data: []byte("SELECT 1;")},
				"sql/migrations/0001_other.down.sql": {Data: []byte("SELECT 1;")},
			},
			want: "name mismatch",
		},
		"no files": {
			fsys: fstest.MapFS{"sql/migrations/README.md": {Data: []byte("docs")}},
			want: "no migration files",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loadMigrationsFromFS(tc.fsys)
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tc.want), "unexpected error: %v", err)
		})
	}
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	migrations, err := loadMigrationsFromFS(migrationsFS)
	require.NoError(t, err)
	require.Len(t, migrations, 3)
	require.Equal(t, "create_orders", migrations[0].Name)
	require.Contains(t, migrations[0].SQL[MigrationUp], "order_receipts")
}

func TestPlanMigrations(t *testing.T) {
	all := []migration{{Version: 1}, {Version: 2}, {Version: 3}}

	up := planMigrations(all, map[int64]bool{1: true}, MigrationUp, 0)
	require.Len(t, up, 2)
	require.Equal(t, int64(2), up[0].Version)

	upOne := planMigrations(all, map[int64]bool{}, MigrationUp, 1)
	require.Len(t, upOne, 1)
	require.Equal(t, int64(1), upOne[0].Version)

	down := planMigrations(all, map[int64]bool{1: true, 2: true}, MigrationDown, 1)
	require.Len(t, down, 1)
	require.Equal(t, int64(2), down[0].Version)

	require.Empty(t, planMigrations(all, map[int64]bool{}, MigrationDown, 5))
}

func TestParseMigrationDirection(t *testing.T) {
	d, err := ParseMigrationDirection(" UP ")
	require.NoError(t, err)
	require.Equal(t, MigrationUp, d)

	d, err = ParseMigrationDirection("down")
	require.NoError(t, err)
	require.Equal(t, MigrationDown, d)

	_, err = ParseMigrationDirection("sideways")
	require.Error(t, err)
}
