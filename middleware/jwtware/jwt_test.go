package jwtware_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/shelf/middleware/jwtware"
)

type stubClaims struct {
	subject string
	roles   []string
}

func (s stubClaims) Subject() string { return s.subject }
func (s stubClaims) UserID() string  { return s.subject }
func (s stubClaims) Roles() []string { return s.roles }
func (s stubClaims) HasRole(role string) bool {
	for _, r := range s.roles {
		if r == role {
			return true
		}
	}
	return false
}

type stubValidator struct {
	tokens map[string]jwtware.AuthClaims
}

func (v stubValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	if claims, ok := v.tokens[tokenString]; ok {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

func newTestApp(cfg jwtware.Config) *fiber.App {
	app := fiber.New()
	app.Use(jwtware.New(cfg))
	app.Get("/protected", func(c *fiber.Ctx) error {
		claims := jwtware.ClaimsFromContext(c, "")
		if claims == nil {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(claims.Subject())
	})
	return app
}

func testValidator() stubValidator {
	return stubValidator{tokens: map[string]jwtware.AuthClaims{
		"admin-token": stubClaims{subject: "admin-1", roles: []string{"Admin", "User"}},
		"user-token":  stubClaims{subject: "user-1", roles: []string{"User"}},
	}}
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	app := newTestApp(jwtware.Config{Validator: testValidator()})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer user-token")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "user-1", string(body))
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	app := newTestApp(jwtware.Config{Validator: testValidator()})

	resp, err := app.Test(httptest.NewRequest("GET", "/protected", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestMiddlewareRejectsMalformedHeader(t *testing.T) {
	app := newTestApp(jwtware.Config{Validator: testValidator()})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, "user-token")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestMiddlewareRejectsInvalidToken(t *testing.T) {
	app := newTestApp(jwtware.Config{Validator: testValidator()})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer forged")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestMiddlewareEnforcesRequiredRole(t *testing.T) {
	app := newTestApp(jwtware.Config{Validator: testValidator(), RequiredRole: "Admin"})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer admin-token")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer user-token")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestMiddlewareFilterSkips(t *testing.T) {
	app := fiber.New()
	app.Use(jwtware.New(jwtware.Config{
		Validator: testValidator(),
		Filter: func(c *fiber.Ctx) bool {
			return c.Path() == "/open"
		},
	}))
	app.Get("/open", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/open", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestMiddlewareReadsCookieAndQuery(t *testing.T) {
	app := fiber.New()
	app.Use(jwtware.New(jwtware.Config{
		Validator:   testValidator(),
		TokenLookup: "cookie:jwt,query:auth_token",
	}))
	app.Get("/protected", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/protected?auth_token=user-token", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: "user-token"})
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
