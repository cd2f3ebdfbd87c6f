package shelf

import (
	"context"
	"database/sql"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

func (s *credentialStore) GetRoles(ctx context.Context, user *User) ([]string, error) {
	return s.GetRolesTx(ctx, s.db, user)
}

func (s *credentialStore) GetRolesTx(ctx context.Context, tx bun.IDB, user *User) ([]string, error) {
	var names []string
	err := tx.NewSelect().
		ColumnExpr("rol.name").
		TableExpr("roles AS rol").
		Join("JOIN user_roles AS url ON url.role_id = rol.id").
		Where("url.user_id = ?", user.ID).
		OrderExpr("rol.name ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (s *credentialStore) AddToRole(ctx context.Context, user *User, role string) error {
	return s.AddToRoleTx(ctx, s.db, user, role)
}

func (s *credentialStore) AddToRoleTx(ctx context.Context, tx bun.IDB, user *User, role string) error {
	record, err := s.findRoleTx(ctx, tx, role)
	if err != nil {
		return err
	}

	link := &UserRoleLink{UserID: user.ID, RoleID: record.ID}
	_, err = tx.NewInsert().
		Model(link).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	return err
}

func (s *credentialStore) RemoveFromRoles(ctx context.Context, user *User, roles []string) error {
	return s.RemoveFromRolesTx(ctx, s.db, user, roles)
}

func (s *credentialStore) RemoveFromRolesTx(ctx context.Context, tx bun.IDB, user *User, roles []string) error {
	if len(roles) == 0 {
		return nil
	}

	_, err := tx.NewDelete().
		Model((*UserRoleLink)(nil)).
		Where("user_id = ?", user.ID).
		Where("role_id IN (SELECT id FROM roles WHERE name IN (?))", bun.In(roles)).
		Exec(ctx)
	return err
}

func (s *credentialStore) RoleExists(ctx context.Context, name string) (bool, error) {
	return s.db.NewSelect().
		Model((*Role)(nil)).
		Where("?TableAlias.name = ?", name).
		Exists(ctx)
}

// CreateRole registers a role name. Role ids are derived from the name so
// seeded roles keep stable identifiers across environments.
func (s *credentialStore) CreateRole(ctx context.Context, name string) (*Role, error) {
	id, err := hashid.NewUUID(name)
	if err != nil {
		id = uuid.New()
	}

	record := &Role{ID: id, Name: name}
	_, err = s.db.NewInsert().
		Model(record).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (s *credentialStore) ListRoles(ctx context.Context) ([]*Role, error) {
	var records []*Role
	err := s.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *credentialStore) findRoleTx(ctx context.Context, tx bun.IDB, name string) (*Role, error) {
	record := &Role{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return record, nil
}
