package shelf

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// VerifyStatus is the verdict of a password verification. Everything other
// than VerifyOK is a sign-in failure; callers must not expose which one.
type VerifyStatus int

const (
	// VerifyOK means the credentials are valid and the account may sign in
	VerifyOK VerifyStatus = iota
	// VerifyMismatch means the password did not match
	VerifyMismatch
	// VerifyLockedOut means the account is under an active lockout
	VerifyLockedOut
	// VerifyNotAllowed means policy blocks the account from signing in
	VerifyNotAllowed
	// VerifyNotFound means there is no such account
	VerifyNotFound
)

// CredentialStore persists accounts, credentials, and role membership. It
// owns password hashing and constraint enforcement (unique email, password
// policy); rejections surface as *CredentialError detail lists that callers
// propagate verbatim. The Tx variants let services compose several
// operations into one atomic unit through RunInTx.
type CredentialStore interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.IDB) error) error

	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)

	Create(ctx context.Context, record *User, password string) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, password string) (*User, error)
	Update(ctx context.Context, record *User) (*User, error)
	Delete(ctx context.Context, record *User) error

	VerifyPassword(ctx context.Context, user *User, password string) (VerifyStatus, error)

	GetRoles(ctx context.Context, user *User) ([]string, error)
	GetRolesTx(ctx context.Context, tx bun.IDB, user *User) ([]string, error)
	AddToRole(ctx context.Context, user *User, role string) error
	AddToRoleTx(ctx context.Context, tx bun.IDB, user *User, role string) error
	RemoveFromRoles(ctx context.Context, user *User, roles []string) error
	RemoveFromRolesTx(ctx context.Context, tx bun.IDB, user *User, roles []string) error

	SetLockoutEnd(ctx context.Context, user *User, end *time.Time) error

	RemovePassword(ctx context.Context, user *User) error
	RemovePasswordTx(ctx context.Context, tx bun.IDB, user *User) error
	AddPassword(ctx context.Context, user *User, newPassword string) error
	AddPasswordTx(ctx context.Context, tx bun.IDB, user *User, newPassword string) error

	RoleExists(ctx context.Context, name string) (bool, error)
	CreateRole(ctx context.Context, name string) (*Role, error)
	ListRoles(ctx context.Context) ([]*Role, error)
}
