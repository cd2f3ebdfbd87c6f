package shelf

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeAccountNotFound = "ACCOUNT_NOT_FOUND"
	textCodeRoleNotFound    = "ROLE_NOT_FOUND"
	textCodeSelfAction      = "SELF_ACTION_FORBIDDEN"
	textCodeInternal        = "INTERNAL_ERROR"
	textCodeTokenExpired    = "TOKEN_EXPIRED"
	textCodeTokenMalformed  = "TOKEN_MALFORMED"
)

// ErrAccountNotFound is returned when the target account does not exist.
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrRoleNotFound is returned when a role name is not in the role registry.
var ErrRoleNotFound = goerrors.New("role not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeRoleNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrSelfActionForbidden is returned when an account tries to lock or delete itself.
var ErrSelfActionForbidden = goerrors.New("accounts cannot perform this action on themselves", goerrors.CategoryValidation).
	WithTextCode(textCodeSelfAction).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExpired is returned when a bearer token is past its expiration.
var ErrTokenExpired = goerrors.New("authentication token expired", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that fail parsing or signature checks.
var ErrTokenMalformed = goerrors.New("invalid authentication token", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString is the error we return when hashing an empty password
var ErrNoEmptyString = errors.New("password must not be empty")

// ErrMismatchedHashAndPassword is the error for a wrong password
var ErrMismatchedHashAndPassword = errors.New("password does not match")

// ErrorDetail is one machine-readable (code, description) pair surfaced by
// the credential store. Store-rejected errors travel through the services
// verbatim as lists of these.
type ErrorDetail struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// CredentialError aggregates the structured details a credential store
// operation was rejected with (duplicate email, password policy, ...).
type CredentialError struct {
	Details []ErrorDetail
}

func (e *CredentialError) Error() string {
	if len(e.Details) == 0 {
		return "credential store rejected the operation"
	}
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, d.Code+": "+d.Description)
	}
	return strings.Join(parts, "; ")
}

// NewCredentialError builds a CredentialError from detail pairs.
func NewCredentialError(details ...ErrorDetail) *CredentialError {
	return &CredentialError{Details: details}
}

// IsAccountNotFound checks for the not-found category.
func IsAccountNotFound(err error) bool {
	return goerrors.IsNotFound(err)
}

// IsSelfActionForbidden checks for the self-protection invariant violation.
func IsSelfActionForbidden(err error) bool {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode == textCodeSelfAction
	}
	return false
}

// IsCredentialError extracts structured store details when present.
func IsCredentialError(err error) (*CredentialError, bool) {
	var credErr *CredentialError
	if errors.As(err, &credErr) {
		return credErr, true
	}
	return nil, false
}

// detailsFromError flattens an error into API-facing detail pairs without
// leaking internal messages for unexpected failures.
func detailsFromError(err error) []ErrorDetail {
	if credErr, ok := IsCredentialError(err); ok {
		return credErr.Details
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Category != goerrors.CategoryInternal {
		code := rich.TextCode
		if code == "" {
			code = string(rich.Category)
		}
		return []ErrorDetail{{Code: code, Description: rich.Message}}
	}

	return []ErrorDetail{{Code: textCodeInternal, Description: "an unexpected error occurred"}}
}
