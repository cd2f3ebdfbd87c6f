package shelf_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shelf "github.com/openshelf/shelf"
)

func TestCreateAndFindUser(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	user := mustCreateUser(t, store, "alice", "alice@example.com", "Secret1")
	require.NotEqual(t, uuid.Nil, user.ID)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "Secret1", user.PasswordHash)

	byID, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byID.Email)

	byEmail, err := store.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
}

func TestFindUserNotFound(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.FindByID(ctx, uuid.New())
	assert.True(t, shelf.IsAccountNotFound(err))

	_, err = store.FindByEmail(ctx, "nobody@example.com")
	assert.True(t, shelf.IsAccountNotFound(err))
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	mustCreateUser(t, store, "alice", "alice@example.com", "Secret1")

	_, err := store.Create(ctx, &shelf.User{Username: "imposter", Email: "alice@example.com"}, "Secret1")
	credErr, ok := shelf.IsCredentialError(err)
	require.True(t, ok)
	require.Len(t, credErr.Details, 1)
	assert.Equal(t, "DuplicateEmail", credErr.Details[0].Code)
}

func TestCreateRejectsWeakPassword(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.Create(ctx, &shelf.User{Username: "alice", Email: "alice@example.com"}, "weak")
	_, ok := shelf.IsCredentialError(err)
	require.True(t, ok)

	// rejection must not leave a partial account behind
	_, err = store.FindByEmail(ctx, "alice@example.com")
	assert.True(t, shelf.IsAccountNotFound(err))
}

func TestVerifyPassword(t *testing.T) {
	now := time.Now()
	store, _, cleanup := setupStore(t, shelf.WithStoreClock(func() time.Time { return now }))
	defer cleanup()
	ctx := context.Background()

	user := mustCreateUser(t, store, "alice", "alice@example.com", "Secret1")

	status, err := store.VerifyPassword(ctx, user, "Secret1")
	require.NoError(t, err)
	assert.Equal(t, shelf.VerifyOK, status)

	status, err = store.VerifyPassword(ctx, user, "Wrong1x")
	require.NoError(t, err)
	assert.Equal(t, shelf.VerifyMismatch, status)

	status, err = store.VerifyPassword(ctx, nil, "Secret1")
	require.NoError(t, err)
	assert.Equal(t, shelf.VerifyNotFound, status)

	end := now.Add(time.Hour)
	require.NoError(t, store.SetLockoutEnd(ctx, user, &end))
	status, err = store.VerifyPassword(ctx, user, "Secret1")
	require.NoError(t, err)
	assert.Equal(t, shelf.VerifyLockedOut, status)

	// expired locks do not block sign-in
	past := now.Add(-time.Minute)
	require.NoError(t, store.SetLockoutEnd(ctx, user, &past))
	status, err = store.VerifyPassword(ctx, user, "Secret1")
	require.NoError(t, err)
	assert.Equal(t, shelf.VerifyOK, status)

	require.NoError(t, store.RemovePassword(ctx, user))
	status, err = store.VerifyPassword(ctx, user, "Secret1")
	require.NoError(t, err)
	assert.Equal(t, shelf.VerifyNotAllowed, status)
}

func TestUpdateUserPartial(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	user := mustCreateUser(t, store, "alice", "alice@example.com", "Secret1")

	updated, err := store.Update(ctx, &shelf.User{ID: user.ID, Username: "alice-renamed"})
	require.NoError(t, err)
	assert.Equal(t, "alice-renamed", updated.Username)
	// untouched columns survive the partial update
	assert.Equal(t, "alice@example.com", updated.Email)
	assert.NotEmpty(t, updated.PasswordHash)
}

func TestDeleteUser(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	user := mustCreateUser(t, store, "alice", "alice@example.com", "Secret1")

	require.NoError(t, store.Delete(ctx, user))

	_, err := store.FindByID(ctx, user.ID)
	assert.True(t, shelf.IsAccountNotFound(err))

	err = store.Delete(ctx, &shelf.User{ID: uuid.New()})
	assert.True(t, shelf.IsAccountNotFound(err))
}

func TestSetLockoutEndRoundTrip(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	user := mustCreateUser(t, store, "alice", "alice@example.com", "Secret1")

	require.NoError(t, store.SetLockoutEnd(ctx, user, &shelf.PermanentLockoutEnd))

	reloaded, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, shelf.LockoutPermanent, reloaded.Lockout().Kind)

	require.NoError(t, store.SetLockoutEnd(ctx, user, nil))
	reloaded, err = store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, shelf.LockoutNone, reloaded.Lockout().Kind)

	err = store.SetLockoutEnd(ctx, &shelf.User{ID: uuid.New()}, nil)
	assert.True(t, shelf.IsAccountNotFound(err))
}

func TestPasswordReplacement(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	user := mustCreateUser(t, store, "alice", "alice@example.com", "Secret1")

	require.NoError(t, store.RemovePassword(ctx, user))
	require.NoError(t, store.AddPassword(ctx, user, "Fresh2x"))

	status, err := store.VerifyPassword(ctx, user, "Fresh2x")
	require.NoError(t, err)
	assert.Equal(t, shelf.VerifyOK, status)

	err = store.AddPassword(ctx, user, "weak")
	_, ok := shelf.IsCredentialError(err)
	assert.True(t, ok)
}

func TestRoleMembership(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	user := mustCreateUser(t, store, "alice", "alice@example.com", "Secret1")

	roles, err := store.GetRoles(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []string{shelf.RoleUser}, roles)

	require.NoError(t, store.AddToRole(ctx, user, shelf.RoleAdmin))
	// adding twice is a no-op
	require.NoError(t, store.AddToRole(ctx, user, shelf.RoleAdmin))

	roles, err = store.GetRoles(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []string{shelf.RoleAdmin, shelf.RoleUser}, roles)

	err = store.AddToRole(ctx, user, "Bogus")
	assert.Error(t, err)

	require.NoError(t, store.RemoveFromRoles(ctx, user, []string{shelf.RoleAdmin}))
	roles, err = store.GetRoles(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []string{shelf.RoleUser}, roles)
}

func TestRoleRegistry(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	ok, err := store.RoleExists(ctx, shelf.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.RoleExists(ctx, "Bogus")
	require.NoError(t, err)
	assert.False(t, ok)

	roles, err := store.ListRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, shelf.RoleAdmin, roles[0].Name)
	assert.Equal(t, shelf.RoleUser, roles[1].Name)

	// seeding twice keeps the registry stable
	require.NoError(t, shelf.EnsureDefaultRoles(ctx, store))
	roles, err = store.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 2)
}
