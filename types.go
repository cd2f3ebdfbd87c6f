package shelf

import "fmt"

// Logger is the minimal logging surface the services need
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated account
type Identity interface {
	ID() string
	Username() string
	Email() string
}

// Config is the configuration surface consumed by the token issuer
type Config interface {
	GetSigningSecret() string
	GetIssuer() string
	GetAudience() []string
	GetTokenExpirationMinutes() int
}

type authIdentity struct {
	id       string
	username string
	email    string
}

func (a authIdentity) ID() string       { return a.id }
func (a authIdentity) Username() string { return a.username }
func (a authIdentity) Email() string    { return a.email }

var _ Identity = authIdentity{}

func identityOf(user *User) Identity {
	return authIdentity{
		id:       user.ID.String(),
		username: user.Username,
		email:    user.Email,
	}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SHELF "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SHELF "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SHELF "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SHELF "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
