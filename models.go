package shelf

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	// RoleAdmin grants access to the administrative surface
	RoleAdmin = "Admin"
	// RoleUser is the default role every registered account receives
	RoleUser = "User"
)

// User is the account model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull" json:"username,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash" json:"-"`
	EmailVerified bool       `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	Phone         string     `bun:"phone_number" json:"phone_number,omitempty"`
	LockoutEnd    *time.Time `bun:"lockout_end,nullzero" json:"lockout_end,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Lockout returns the tagged lockout state derived from the stored column.
func (u *User) Lockout() Lockout {
	return LockoutFromEnd(u.LockoutEnd)
}

// IsLockedOut reports whether the account cannot authenticate at the given instant.
func (u *User) IsLockedOut(now time.Time) bool {
	return u.Lockout().Active(now)
}

// Role is a named permission group, seeded at process start
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// UserRoleLink is the account-role membership join row
type UserRoleLink struct {
	bun.BaseModel `bun:"table:user_roles,alias:url"`
	UserID        uuid.UUID `bun:"user_id,pk,type:uuid" json:"user_id,omitempty"`
	RoleID        uuid.UUID `bun:"role_id,pk,type:uuid" json:"role_id,omitempty"`
}

// Product is the catalog model
type Product struct {
	bun.BaseModel `bun:"table:products,alias:prd"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	SKU           string     `bun:"sku,notnull,unique" json:"sku,omitempty"`
	Name          string     `bun:"name,notnull" json:"name,omitempty"`
	Description   string     `bun:"description" json:"description,omitempty"`
	PriceCents    int64      `bun:"price_cents" json:"price_cents,omitempty"`
	Currency      string     `bun:"currency" json:"currency,omitempty"`
	Stock         int        `bun:"stock" json:"stock,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}
