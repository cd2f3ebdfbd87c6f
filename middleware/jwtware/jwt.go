// Package jwtware is the bearer-token middleware guarding the API routes.
// It validates through an injected TokenValidator and optionally enforces a
// role claim, keeping the middleware free of any signing-key knowledge.
package jwtware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var (
	defaultTokenLookup = "header:" + fiber.HeaderAuthorization

	// ErrJWTMissingOrMalformed is returned when no token can be extracted
	// from the request.
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
)

// TokenValidator validates raw tokens without importing the auth package.
// It mirrors TokenService.Validate.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// AuthClaims is the structural subset of validated claims the middleware
// needs for authorization checks.
type AuthClaims interface {
	Subject() string
	UserID() string
	Roles() []string
	HasRole(role string) bool
}

// Config holds the middleware configuration.
type Config struct {
	// Filter skips the middleware when it returns true.
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler

	// Validator is required.
	Validator TokenValidator

	// ContextKey is the Locals key the validated claims are stored under.
	ContextKey string
	// TokenLookup is a comma separated list of "<source>:<name>" entries,
	// e.g. "header:Authorization,cookie:jwt,query:auth_token".
	TokenLookup string
	AuthScheme  string

	// RequiredRole, when set, rejects tokens that do not carry the role.
	RequiredRole string
}

// New returns the configured middleware handler.
func New(config ...Config) fiber.Handler {
	cfg := configDefault(config...)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := extractRawToken(c, cfg.extractors())
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		claims, err := cfg.Validator.Validate(raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if cfg.RequiredRole != "" && !claims.HasRole(cfg.RequiredRole) {
			return cfg.ErrorHandler(c, fmt.Errorf("access denied: required role %q not found", cfg.RequiredRole))
		}

		c.Locals(cfg.ContextKey, claims)

		return cfg.SuccessHandler(c)
	}
}

// ClaimsFromContext fetches the validated claims a prior New handler stored,
// or nil when the route is not guarded.
func ClaimsFromContext(c *fiber.Ctx, contextKey string) AuthClaims {
	if contextKey == "" {
		contextKey = "user"
	}
	claims, _ := c.Locals(contextKey).(AuthClaims)
	return claims
}

func configDefault(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Validator == nil {
		panic("jwtware: middleware configuration requires a Validator")
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			if errors.Is(err, ErrJWTMissingOrMalformed) {
				return c.Status(fiber.StatusUnauthorized).SendString(ErrJWTMissingOrMalformed.Error())
			}
			if strings.HasPrefix(err.Error(), "access denied") {
				return c.Status(fiber.StatusForbidden).SendString(err.Error())
			}
			return c.Status(fiber.StatusUnauthorized).SendString("Invalid or expired token")
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

type jwtExtractor func(c *fiber.Ctx) (string, error)

func (cfg *Config) extractors() []jwtExtractor {
	extractors := make([]jwtExtractor, 0)

	// header:Authorization,cookie:jwt,query:auth_token
	for _, rootPart := range strings.Split(cfg.TokenLookup, ",") {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}

		name := strings.TrimSpace(parts[1])
		switch strings.TrimSpace(parts[0]) {
		case "header":
			extractors = append(extractors, jwtFromHeader(name, cfg.AuthScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(name))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(name))
		}
	}

	return extractors
}

func extractRawToken(c *fiber.Ctx, extractors []jwtExtractor) (string, error) {
	var raw string
	err := ErrJWTMissingOrMalformed

	for _, extractor := range extractors {
		raw, err = extractor(c)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) jwtExtractor {
	return func(c *fiber.Ctx) (string, error) {
		a := c.Get(header)
		scheme := strings.TrimSpace(authScheme)
		l := len(scheme)
		if l == 0 {
			return "", ErrJWTMissingOrMalformed
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], scheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrJWTMissingOrMalformed
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) jwtExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) jwtExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}
