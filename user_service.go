package shelf

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserView is the read-only projection of an account returned by the
// administrative operations.
type UserView struct {
	ID            uuid.UUID  `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone_number,omitempty"`
	EmailVerified bool       `json:"is_email_verified"`
	Roles         []string   `json:"roles"`
	IsLockedOut   bool       `json:"is_locked_out"`
	LockoutEnd    *time.Time `json:"lockout_end,omitempty"`
}

// UserStats aggregates account counts for the admin panel. Computed by
// walking every account and its role set; fine at administrative scale.
type UserStats struct {
	TotalUsers  int `json:"total_users"`
	AdminCount  int `json:"admin_count"`
	UserCount   int `json:"user_count"`
	LockedUsers int `json:"locked_users"`
	ActiveUsers int `json:"active_users"`
}

// CreateUserRequest is the administrative account creation payload.
type CreateUserRequest struct {
	Username      string   `json:"username"`
	Email         string   `json:"email"`
	Password      string   `json:"password"`
	Phone         string   `json:"phone_number"`
	EmailVerified bool     `json:"is_email_verified"`
	Roles         []string `json:"roles"`
}

// UpdateUserRequest is a partial update; empty fields leave the stored
// value untouched.
type UpdateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone_number"`
}

// UserManager performs administrative operations on existing accounts.
type UserManager struct {
	store  CredentialStore
	logger Logger
	now    func() time.Time
}

// UserManagerOption customizes UserManager construction.
type UserManagerOption func(*UserManager)

// WithUserManagerClock injects a custom clock (useful for lockout tests).
func WithUserManagerClock(clock func() time.Time) UserManagerOption {
	return func(m *UserManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithUserManagerLogger overrides the default logger.
func WithUserManagerLogger(logger Logger) UserManagerOption {
	return func(m *UserManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewUserManager returns a new UserManager
func NewUserManager(store CredentialStore, opts ...UserManagerOption) *UserManager {
	m := &UserManager{
		store:  store,
		logger: defLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// List returns projections of every account.
func (m *UserManager) List(ctx context.Context) ([]UserView, error) {
	users, err := m.store.List(ctx)
	if err != nil {
		return nil, m.internalError("list users", err)
	}

	views := make([]UserView, 0, len(users))
	for _, user := range users {
		roles, err := m.store.GetRoles(ctx, user)
		if err != nil {
			return nil, m.internalError("list user roles", err)
		}
		views = append(views, m.viewOf(user, roles))
	}

	return views, nil
}

// Get returns the projection for one account, or nil when the id is not
// known. Absence is not an error here; mutating operations report it as one.
func (m *UserManager) Get(ctx context.Context, id uuid.UUID) (*UserView, error) {
	user, err := m.store.FindByID(ctx, id)
	if err != nil {
		if IsAccountNotFound(err) {
			return nil, nil
		}
		return nil, m.internalError("get user", err)
	}

	roles, err := m.store.GetRoles(ctx, user)
	if err != nil {
		return nil, m.internalError("get user roles", err)
	}

	view := m.viewOf(user, roles)
	return &view, nil
}

// Create builds an account from the request. Requested roles are filtered
// to the ones registered in the role registry; unknown names are silently
// dropped. With no roles requested the account gets exactly "User".
func (m *UserManager) Create(ctx context.Context, req CreateUserRequest) (*UserView, error) {
	user := &User{
		Username:      req.Username,
		Email:         req.Email,
		Phone:         NormalizePhone(req.Phone),
		EmailVerified: req.EmailVerified,
	}

	roles, err := m.resolveRoles(ctx, req.Roles)
	if err != nil {
		return nil, m.internalError("resolve roles", err)
	}

	err = m.store.RunInTx(ctx, nil, func(ctx context.Context, tx bun.IDB) error {
		created, err := m.store.CreateTx(ctx, tx, user, req.Password)
		if err != nil {
			return err
		}
		user = created

		for _, role := range roles {
			if err := m.store.AddToRoleTx(ctx, tx, user, role); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		if _, ok := IsCredentialError(err); ok {
			return nil, err
		}
		return nil, m.internalError("create user", err)
	}

	view := m.viewOf(user, roles)
	return &view, nil
}

// Update applies the non-empty request fields to the account.
func (m *UserManager) Update(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*UserView, error) {
	if _, err := m.store.FindByID(ctx, id); err != nil {
		return nil, m.passThrough("update user", err)
	}

	record := &User{
		ID:       id,
		Username: req.Username,
		Email:    req.Email,
		Phone:    NormalizePhone(req.Phone),
	}

	updated, err := m.store.Update(ctx, record)
	if err != nil {
		return nil, m.passThrough("update user", err)
	}

	roles, err := m.store.GetRoles(ctx, updated)
	if err != nil {
		return nil, m.internalError("update user roles", err)
	}

	view := m.viewOf(updated, roles)
	return &view, nil
}

// Delete removes an account. An account can never delete itself.
func (m *UserManager) Delete(ctx context.Context, id, currentUserID uuid.UUID) error {
	if id == currentUserID {
		return ErrSelfActionForbidden
	}

	user, err := m.store.FindByID(ctx, id)
	if err != nil {
		return m.passThrough("delete user", err)
	}

	if err := m.store.Delete(ctx, user); err != nil {
		return m.passThrough("delete user", err)
	}

	return nil
}

// AssignRoles replaces the account's entire role set with the requested
// names that exist in the registry, returning the actually-assigned subset.
func (m *UserManager) AssignRoles(ctx context.Context, id uuid.UUID, roles []string) ([]string, error) {
	user, err := m.store.FindByID(ctx, id)
	if err != nil {
		return nil, m.passThrough("assign roles", err)
	}

	current, err := m.store.GetRoles(ctx, user)
	if err != nil {
		return nil, m.internalError("assign roles", err)
	}

	assigned := make([]string, 0, len(roles))
	for _, role := range roles {
		ok, err := m.store.RoleExists(ctx, role)
		if err != nil {
			return nil, m.internalError("assign roles", err)
		}
		if ok {
			assigned = append(assigned, role)
		}
	}

	err = m.store.RunInTx(ctx, nil, func(ctx context.Context, tx bun.IDB) error {
		if err := m.store.RemoveFromRolesTx(ctx, tx, user, current); err != nil {
			return err
		}

		for _, role := range assigned {
			if err := m.store.AddToRoleTx(ctx, tx, user, role); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, m.internalError("assign roles", err)
	}

	return assigned, nil
}

// Lock suspends an account until now+minutes, or indefinitely when minutes
// is nil. An account can never lock itself. Returns the resulting lock
// state for caller display.
func (m *UserManager) Lock(ctx context.Context, id, currentUserID uuid.UUID, minutes *int) (Lockout, error) {
	if id == currentUserID {
		return Lockout{}, ErrSelfActionForbidden
	}

	user, err := m.store.FindByID(ctx, id)
	if err != nil {
		return Lockout{}, m.passThrough("lock user", err)
	}

	lock := PermanentLock()
	if minutes != nil {
		lock = LockoutFor(m.now(), *minutes)
	}

	if err := m.store.SetLockoutEnd(ctx, user, lock.End()); err != nil {
		return Lockout{}, m.passThrough("lock user", err)
	}

	return lock, nil
}

// Unlock clears the lockout regardless of prior state; unlocking an
// already-unlocked account succeeds trivially.
func (m *UserManager) Unlock(ctx context.Context, id uuid.UUID) error {
	user, err := m.store.FindByID(ctx, id)
	if err != nil {
		return m.passThrough("unlock user", err)
	}

	if err := m.store.SetLockoutEnd(ctx, user, nil); err != nil {
		return m.passThrough("unlock user", err)
	}

	return nil
}

// ResetPassword atomically replaces the stored credential. The removal and
// the add commit together; a policy rejection of the new password rolls the
// whole operation back and is surfaced verbatim.
func (m *UserManager) ResetPassword(ctx context.Context, id uuid.UUID, newPassword string) error {
	user, err := m.store.FindByID(ctx, id)
	if err != nil {
		return m.passThrough("reset password", err)
	}

	err = m.store.RunInTx(ctx, nil, func(ctx context.Context, tx bun.IDB) error {
		if err := m.store.RemovePasswordTx(ctx, tx, user); err != nil {
			return err
		}
		return m.store.AddPasswordTx(ctx, tx, user, newPassword)
	})
	if err != nil {
		return m.passThrough("reset password", err)
	}

	return nil
}

// GetAllRoles lists the role registry.
func (m *UserManager) GetAllRoles(ctx context.Context) ([]*Role, error) {
	roles, err := m.store.ListRoles(ctx)
	if err != nil {
		return nil, m.internalError("list roles", err)
	}
	return roles, nil
}

// GetUserStats aggregates counts over every account and its role set.
func (m *UserManager) GetUserStats(ctx context.Context) (*UserStats, error) {
	users, err := m.store.List(ctx)
	if err != nil {
		return nil, m.internalError("user stats", err)
	}

	now := m.now()
	stats := &UserStats{TotalUsers: len(users)}

	for _, user := range users {
		roles, err := m.store.GetRoles(ctx, user)
		if err != nil {
			return nil, m.internalError("user stats roles", err)
		}

		for _, role := range roles {
			switch role {
			case RoleAdmin:
				stats.AdminCount++
			case RoleUser:
				stats.UserCount++
			}
		}

		if user.IsLockedOut(now) {
			stats.LockedUsers++
		}
	}

	stats.ActiveUsers = stats.TotalUsers - stats.LockedUsers
	return stats, nil
}

func (m *UserManager) viewOf(user *User, roles []string) UserView {
	return UserView{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		Phone:         user.Phone,
		EmailVerified: user.EmailVerified,
		Roles:         roles,
		IsLockedOut:   user.IsLockedOut(m.now()),
		LockoutEnd:    user.LockoutEnd,
	}
}

// resolveRoles filters the requested role names down to the registered
// ones; with none requested the default role applies.
func (m *UserManager) resolveRoles(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return []string{RoleUser}, nil
	}

	roles := make([]string, 0, len(requested))
	for _, role := range requested {
		ok, err := m.store.RoleExists(ctx, role)
		if err != nil {
			return nil, err
		}
		if ok {
			roles = append(roles, role)
		}
	}

	return roles, nil
}

// passThrough keeps the not-found / self-action / store-rejection taxonomy
// intact and converts everything else into a logged generic internal error,
// matching the policy the auth service applies.
func (m *UserManager) passThrough(op string, err error) error {
	if IsAccountNotFound(err) || IsSelfActionForbidden(err) {
		return err
	}
	if _, ok := IsCredentialError(err); ok {
		return err
	}
	return m.internalError(op, err)
}

func (m *UserManager) internalError(op string, err error) error {
	corr := uuid.NewString()
	m.logger.Error("user management %s failed correlation_id=%s: %v", op, corr, err)
	return goerrors.New("an unexpected error occurred", goerrors.CategoryInternal).
		WithTextCode(textCodeInternal).
		WithCode(goerrors.CodeInternal).
		WithMetadata(map[string]any{"correlation_id": corr})
}
