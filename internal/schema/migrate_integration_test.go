package schema_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/todoapi/internal/schema"
	"github.com/eleven-am/todoapi/internal/testdb"
)

func TestMigrateAgainstPostgres(t *testing.T) {
	tdb := testdb.New(t)
	ctx := context.Background()
	m := schema.NewMigrator(tdb.ConnStr)

	planned, err := m.Migrate(ctx, schema.Options{DryRun: true})
	require.NoError(t, err)
	assert.NotEmpty(t, planned.Statements)
	assert.False(t, planned.Applied)

	var tables int
	require.NoError(t, tdb.DB.QueryRow(`SELECT count(*) FROM information_schema.tables WHERE table_schema = 'public'`).Scan(&tables))
	assert.Zero(t, tables)

	applied, err := m.Migrate(ctx, schema.Options{})
	require.NoError(t, err)
	assert.True(t, applied.Applied)

	again, err := m.Migrate(ctx, schema.Options{})
	require.NoError(t, err)
	assert.Empty(t, again.Changes)
	assert.False(t, again.Applied)

	_, err = tdb.DB.Exec(`INSERT INTO users (id, email, password_hash, user_name) VALUES (gen_random_uuid(), 'a@x.com', 'h', 'a')`)
	require.NoError(t, err)
	_, err = tdb.DB.Exec(`INSERT INTO users (id, email, password_hash, user_name, role) VALUES (gen_random_uuid(), 'b@x.com', 'h', 'b', 'ROOT')`)
	assert.Error(t, err)

	_, err = tdb.DB.Exec(`CREATE TABLE legacy (id integer)`)
	require.NoError(t, err)

	refused, err := m.Migrate(ctx, schema.Options{})
	assert.ErrorIs(t, err, schema.ErrDestructive)
	require.NotNil(t, refused)
	assert.Equal(t, []string{"drop table legacy"}, refused.Destructive)
	assert.False(t, refused.Applied)

	forced, err := m.Migrate(ctx, schema.Options{AllowDestructive: true})
	require.NoError(t, err)
	assert.True(t, forced.Applied)
}
