package shelf_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	shelf "github.com/openshelf/shelf"
)

func setupDB(t *testing.T) (*bun.DB, func()) {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	require.NoError(t, shelf.Migrate(context.Background(), bunDB))

	cleanup := func() {
		_ = bunDB.Close()
		_ = db.Close()
	}

	return bunDB, cleanup
}

func setupStore(t *testing.T, opts ...shelf.StoreOption) (shelf.CredentialStore, *bun.DB, func()) {
	t.Helper()

	bunDB, cleanup := setupDB(t)

	store := shelf.NewCredentialStore(bunDB, opts...)
	require.NoError(t, shelf.EnsureDefaultRoles(context.Background(), store))

	return store, bunDB, cleanup
}

func mustCreateUser(t *testing.T, store shelf.CredentialStore, username, email, password string) *shelf.User {
	t.Helper()

	user, err := store.Create(context.Background(), &shelf.User{
		Username: username,
		Email:    email,
	}, password)
	require.NoError(t, err)
	require.NoError(t, store.AddToRole(context.Background(), user, shelf.RoleUser))

	return user
}
