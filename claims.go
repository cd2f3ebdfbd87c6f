package shelf

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthClaims represents the structured claims carried by a bearer token
type AuthClaims interface {
	Subject() string
	UserID() string
	Email() string
	Username() string
	Roles() []string
	HasRole(role string) bool
	IsAdmin() bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims. The claim layout
// is consumed by downstream authorization middleware: sub = account id,
// email, jti = fresh random value per issuance, name = username, and one
// string per assigned role.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID       string   `json:"uid,omitempty"`
	UserEmail string   `json:"email,omitempty"`
	Name      string   `json:"name,omitempty"`
	RoleList  []string `json:"roles,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the account identifier
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Email returns the email claim
func (c *JWTClaims) Email() string {
	return c.UserEmail
}

// Username returns the display name claim
func (c *JWTClaims) Username() string {
	return c.Name
}

// Roles returns the role claims
func (c *JWTClaims) Roles() []string {
	return c.RoleList
}

// HasRole checks if the token asserts a specific role
func (c *JWTClaims) HasRole(role string) bool {
	for _, r := range c.RoleList {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin checks for the administrative role claim
func (c *JWTClaims) IsAdmin() bool {
	return c.HasRole(RoleAdmin)
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// ensureTokenID gives every issued token a distinguishable identity, even
// for the same account twice in the same millisecond.
func ensureTokenID(rc *jwt.RegisteredClaims) {
	if rc.ID == "" {
		rc.ID = uuid.NewString()
	}
}
