package shelf

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RegistrationErrorCode is the single generic code returned when any
// unexpected internal failure interrupts a registration. Internal detail is
// logged, never surfaced.
const RegistrationErrorCode = "RegistrationError"

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Register(ctx context.Context, username, email, password string) AuthResult
	Login(ctx context.Context, email, password string) AuthResult
}

// AuthService orchestrates registration and login against the credential
// store and the token issuer.
type AuthService struct {
	store  CredentialStore
	tokens TokenService
	logger Logger
	delay  FailureDelay
}

var _ Authenticator = (*AuthService)(nil)

// AuthOption customizes AuthService construction.
type AuthOption func(*AuthService)

// WithAuthLogger overrides the default logger.
func WithAuthLogger(logger Logger) AuthOption {
	return func(s *AuthService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFailureDelay overrides the login failure-delay window. Tests shrink
// it; production keeps the default.
func WithFailureDelay(delay FailureDelay) AuthOption {
	return func(s *AuthService) {
		s.delay = delay
	}
}

// NewAuthService returns a new AuthService
func NewAuthService(store CredentialStore, tokens TokenService, opts ...AuthOption) *AuthService {
	s := &AuthService{
		store:  store,
		tokens: tokens,
		logger: defLogger{},
		delay:  DefaultFailureDelay(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Register creates an account, assigns the default "User" role, and issues a
// token. Creation and role assignment commit atomically; the role set read
// back for the token reflects the assignment just made. Store rejections
// (duplicate email, password policy) pass through verbatim; anything else
// collapses into the one generic registration error.
func (s *AuthService) Register(ctx context.Context, username, email, password string) AuthResult {
	user := &User{
		Username: username,
		Email:    email,
	}

	var roles []string
	err := s.store.RunInTx(ctx, nil, func(ctx context.Context, tx bun.IDB) error {
		created, err := s.store.CreateTx(ctx, tx, user, password)
		if err != nil {
			return err
		}
		user = created

		if err := s.store.AddToRoleTx(ctx, tx, user, RoleUser); err != nil {
			return err
		}

		roles, err = s.store.GetRolesTx(ctx, tx, user)
		return err
	})

	if err != nil {
		if credErr, ok := IsCredentialError(err); ok {
			return Failed(credErr.Details...)
		}

		corr := uuid.NewString()
		s.logger.Error("registration failed correlation_id=%s: %v", corr, err)
		return Failed(ErrorDetail{
			Code:        RegistrationErrorCode,
			Description: "unable to register the account",
		})
	}

	token, err := s.tokens.Issue(identityOf(user), roles)
	if err != nil {
		corr := uuid.NewString()
		s.logger.Error("registration token issuance failed correlation_id=%s: %v", corr, err)
		return Failed(ErrorDetail{
			Code:        RegistrationErrorCode,
			Description: "unable to register the account",
		})
	}

	return Succeeded(&AuthResponse{
		Token:    token,
		ID:       user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
		Roles:    roles,
	})
}

// Login verifies credentials and issues a token. Every failure (missing
// input, unknown email, wrong password, lockout, policy block, internal
// error) is the same detail-free result, and every failure path waits out
// the randomized delay window before returning.
func (s *AuthService) Login(ctx context.Context, email, password string) AuthResult {
	if strings.TrimSpace(email) == "" || password == "" {
		return s.fail(ctx)
	}

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if !IsAccountNotFound(err) {
			corr := uuid.NewString()
			s.logger.Error("login lookup failed correlation_id=%s: %v", corr, err)
		}
		return s.fail(ctx)
	}

	status, err := s.store.VerifyPassword(ctx, user, password)
	if err != nil {
		corr := uuid.NewString()
		s.logger.Error("login verification failed correlation_id=%s: %v", corr, err)
		return s.fail(ctx)
	}

	if status != VerifyOK {
		return s.fail(ctx)
	}

	roles, err := s.store.GetRoles(ctx, user)
	if err != nil {
		corr := uuid.NewString()
		s.logger.Error("login role fetch failed correlation_id=%s: %v", corr, err)
		return s.fail(ctx)
	}

	token, err := s.tokens.Issue(identityOf(user), roles)
	if err != nil {
		corr := uuid.NewString()
		s.logger.Error("login token issuance failed correlation_id=%s: %v", corr, err)
		return s.fail(ctx)
	}

	return Succeeded(&AuthResponse{
		Token:    token,
		ID:       user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
		Roles:    roles,
	})
}

func (s *AuthService) fail(ctx context.Context) AuthResult {
	s.delay.Wait(ctx)
	return Failed()
}
