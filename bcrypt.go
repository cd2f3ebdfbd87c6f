package shelf

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost balances hashing time against login throughput; 12 keeps a
// single verification well under the failure-delay window.
const bcryptCost = 12

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// ValidatePassword enforces the credential store's password policy. Each
// violation is reported as its own (code, description) pair so callers can
// surface the full list verbatim.
func ValidatePassword(password string) error {
	var details []ErrorDetail

	if len(password) < 6 {
		details = append(details, ErrorDetail{
			Code:        "PasswordTooShort",
			Description: "passwords must be at least 6 characters",
		})
	}

	// bcrypt truncates beyond 72 bytes
	if len(password) > 72 {
		details = append(details, ErrorDetail{
			Code:        "PasswordTooLong",
			Description: "passwords must be at most 72 characters",
		})
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper {
		details = append(details, ErrorDetail{
			Code:        "PasswordRequiresUpper",
			Description: "passwords must have at least one uppercase letter",
		})
	}
	if !hasLower {
		details = append(details, ErrorDetail{
			Code:        "PasswordRequiresLower",
			Description: "passwords must have at least one lowercase letter",
		})
	}
	if !hasDigit {
		details = append(details, ErrorDetail{
			Code:        "PasswordRequiresDigit",
			Description: "passwords must have at least one digit",
		})
	}

	if len(details) > 0 {
		return NewCredentialError(details...)
	}

	return nil
}
