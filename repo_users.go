package shelf

import (
	"context"
	"database/sql"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type credentialStore struct {
	db     *bun.DB
	users  repository.Repository[*User]
	logger Logger
	now    func() time.Time
}

var _ CredentialStore = (*credentialStore)(nil)

// StoreOption customizes credential store construction.
type StoreOption func(*credentialStore)

// WithStoreClock injects a custom clock (useful for lockout tests).
func WithStoreClock(clock func() time.Time) StoreOption {
	return func(s *credentialStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithStoreLogger overrides the default logger.
func WithStoreLogger(logger Logger) StoreOption {
	return func(s *credentialStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewCredentialStore builds the bun-backed CredentialStore.
func NewCredentialStore(db *bun.DB, opts ...StoreOption) CredentialStore {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	s := &credentialStore{
		db:     db,
		users:  repo,
		logger: defLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

func (s *credentialStore) RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.IDB) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return s.db.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
			return fn(ctx, tx)
		})
	}
}

func (s *credentialStore) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := s.users.GetByID(ctx, id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *credentialStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	record := &User{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", strings.TrimSpace(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return record, nil
}

func (s *credentialStore) List(ctx context.Context) ([]*User, error) {
	var records []*User
	err := s.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *credentialStore) Create(ctx context.Context, record *User, password string) (*User, error) {
	return s.CreateTx(ctx, s.db, record, password)
}

func (s *credentialStore) CreateTx(ctx context.Context, tx bun.IDB, record *User, password string) (*User, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	taken, err := tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.email = ?", record.Email).
		Exists(ctx)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, duplicateEmailError(record.Email)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	record.PasswordHash = hash
	prepareUserDefaults(record)

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		// the unique index catches racing registrations the exists
		// check above cannot see
		if isUniqueViolation(err) {
			return nil, duplicateEmailError(record.Email)
		}
		return nil, err
	}

	return record, nil
}

func (s *credentialStore) Update(ctx context.Context, record *User) (*User, error) {
	if record == nil || record.ID == uuid.Nil {
		return nil, ErrAccountNotFound
	}

	// the repository update omits zero-value columns, so this is a
	// partial update
	_, err := s.users.Update(ctx, record,
		repository.UpdateByID(record.ID.String()),
	)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		if isUniqueViolation(err) {
			return nil, duplicateEmailError(record.Email)
		}
		return nil, err
	}

	// the partial update only returns the touched columns
	return s.FindByID(ctx, record.ID)
}

func (s *credentialStore) Delete(ctx context.Context, record *User) error {
	if record == nil || record.ID == uuid.Nil {
		return ErrAccountNotFound
	}

	res, err := s.db.NewDelete().
		Model((*User)(nil)).
		Where("?TableAlias.id = ?", record.ID).
		Exec(ctx)
	if err != nil {
		return err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

func (s *credentialStore) VerifyPassword(ctx context.Context, user *User, password string) (VerifyStatus, error) {
	if user == nil {
		return VerifyNotFound, nil
	}

	if user.IsLockedOut(s.now()) {
		return VerifyLockedOut, nil
	}

	// an account with no stored credential cannot sign in
	if user.PasswordHash == "" {
		return VerifyNotAllowed, nil
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if err == ErrMismatchedHashAndPassword {
			return VerifyMismatch, nil
		}
		return VerifyMismatch, err
	}

	return VerifyOK, nil
}

func (s *credentialStore) SetLockoutEnd(ctx context.Context, user *User, end *time.Time) error {
	res, err := s.db.NewRaw(`
		UPDATE "users" SET
			"lockout_end" = ?,
			"updated_at" = ?
		WHERE
			("id" = ?)
			AND "deleted_at" IS NULL;
	`, end, s.now(), user.ID).Exec(ctx)
	if err != nil {
		return err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrAccountNotFound
	}

	user.LockoutEnd = end
	return nil
}

func (s *credentialStore) RemovePassword(ctx context.Context, user *User) error {
	return s.RemovePasswordTx(ctx, s.db, user)
}

func (s *credentialStore) RemovePasswordTx(ctx context.Context, tx bun.IDB, user *User) error {
	return s.setPasswordHashTx(ctx, tx, user, "")
}

func (s *credentialStore) AddPassword(ctx context.Context, user *User, newPassword string) error {
	return s.AddPasswordTx(ctx, s.db, user, newPassword)
}

func (s *credentialStore) AddPasswordTx(ctx context.Context, tx bun.IDB, user *User, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.setPasswordHashTx(ctx, tx, user, hash)
}

func (s *credentialStore) setPasswordHashTx(ctx context.Context, tx bun.IDB, user *User, hash string) error {
	res, err := tx.NewRaw(`
		UPDATE "users" SET
			"password_hash" = ?,
			"updated_at" = ?
		WHERE
			("id" = ?)
			AND "deleted_at" IS NULL;
	`, hash, s.now(), user.ID).Exec(ctx)
	if err != nil {
		return err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrAccountNotFound
	}

	user.PasswordHash = hash
	return nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	record.Email = strings.TrimSpace(record.Email)
	record.Username = strings.TrimSpace(record.Username)
}

func duplicateEmailError(email string) *CredentialError {
	return NewCredentialError(ErrorDetail{
		Code:        "DuplicateEmail",
		Description: "email '" + email + "' is already taken",
	})
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
