package shelf

import "context"

// DefaultRoles are created at process start so registration and role
// assignment never race an empty registry.
var DefaultRoles = []string{RoleAdmin, RoleUser}

// EnsureDefaultRoles seeds the role registry; already-present roles are
// left untouched.
func EnsureDefaultRoles(ctx context.Context, store CredentialStore) error {
	for _, name := range DefaultRoles {
		if _, err := store.CreateRole(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
