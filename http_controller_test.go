package shelf_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shelf "github.com/openshelf/shelf"
	"github.com/openshelf/shelf/middleware/jwtware"
)

type testServer struct {
	app   *fiber.App
	store shelf.CredentialStore
}

func setupServer(t *testing.T) (*testServer, func()) {
	t.Helper()

	db, cleanup := setupDB(t)

	store := shelf.NewCredentialStore(db)
	require.NoError(t, shelf.EnsureDefaultRoles(context.Background(), store))

	tokens := newTokenService(t)
	auther := shelf.NewAuthService(store, tokens, shelf.WithFailureDelay(testDelay()))
	users := shelf.NewUserManager(store)
	products := shelf.NewProductService(db)

	app := fiber.New()

	shelf.RegisterAuthRoutes(app, shelf.NewAuthController(auther, nil))

	api := app.Group("/api", jwtware.New(jwtware.Config{
		Validator:    shelf.NewTokenValidator(tokens),
		ContextKey:   shelf.ClaimsContextKey,
		RequiredRole: shelf.RoleAdmin,
	}))

	shelf.RegisterAdminRoutes(api,
		shelf.NewUserController(users, nil),
		shelf.NewProductController(products, nil),
	)

	return &testServer{app: app, store: store}, cleanup
}

func (s *testServer) do(t *testing.T, method, path, token string, payload any) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, raw
}

// registerAdmin registers an account, promotes it, and signs it in again so
// the returned token carries the Admin role claim.
func (s *testServer) registerAdmin(t *testing.T) (*shelf.AuthResponse, string) {
	t.Helper()
	ctx := context.Background()

	resp, body := s.do(t, "POST", "/auth/register", "", fiber.Map{
		"username": "admin",
		"email":    "admin@example.com",
		"password": "Secret1",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))

	user, err := s.store.FindByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	require.NoError(t, s.store.AddToRole(ctx, user, shelf.RoleAdmin))

	resp, body = s.do(t, "POST", "/auth/login", "", fiber.Map{
		"email":    "admin@example.com",
		"password": "Secret1",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	auth := &shelf.AuthResponse{}
	require.NoError(t, json.Unmarshal(body, auth))
	require.Contains(t, auth.Roles, shelf.RoleAdmin)

	return auth, auth.Token
}

func TestRegisterEndpoint(t *testing.T) {
	server, cleanup := setupServer(t)
	defer cleanup()

	resp, body := server.do(t, "POST", "/auth/register", "", fiber.Map{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "Secret1",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))

	auth := &shelf.AuthResponse{}
	require.NoError(t, json.Unmarshal(body, auth))
	assert.NotEmpty(t, auth.Token)
	assert.Equal(t, []string{shelf.RoleUser}, auth.Roles)

	// duplicate registration surfaces the store detail
	resp, body = server.do(t, "POST", "/auth/register", "", fiber.Map{
		"username": "imposter",
		"email":    "alice@example.com",
		"password": "Secret1",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "DuplicateEmail")
}

func TestRegisterEndpointValidation(t *testing.T) {
	server, cleanup := setupServer(t)
	defer cleanup()

	resp, _ := server.do(t, "POST", "/auth/register", "", fiber.Map{
		"username": "alice",
		"email":    "not-an-email",
		"password": "Secret1",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestLoginEndpoint(t *testing.T) {
	server, cleanup := setupServer(t)
	defer cleanup()

	resp, _ := server.do(t, "POST", "/auth/register", "", fiber.Map{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "Secret1",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body := server.do(t, "POST", "/auth/login", "", fiber.Map{
		"email":    "alice@example.com",
		"password": "Secret1",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	auth := &shelf.AuthResponse{}
	require.NoError(t, json.Unmarshal(body, auth))
	assert.NotEmpty(t, auth.Token)

	// wrong credentials are a detail-free 401
	resp, body = server.do(t, "POST", "/auth/login", "", fiber.Map{
		"email":    "alice@example.com",
		"password": "Wrong1x",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.NotContains(t, string(body), "password")
	assert.NotContains(t, string(body), "lock")
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	server, cleanup := setupServer(t)
	defer cleanup()

	resp, body := server.do(t, "POST", "/auth/register", "", fiber.Map{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "Secret1",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	auth := &shelf.AuthResponse{}
	require.NoError(t, json.Unmarshal(body, auth))

	// no token
	resp, _ = server.do(t, "GET", "/api/users", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// non-admin token
	resp, _ = server.do(t, "GET", "/api/users", auth.Token, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestAdminUserLifecycle(t *testing.T) {
	server, cleanup := setupServer(t)
	defer cleanup()

	_, token := server.registerAdmin(t)

	// create
	resp, body := server.do(t, "POST", "/api/users", token, fiber.Map{
		"username": "bob",
		"email":    "bob@example.com",
		"password": "Secret1",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))

	created := &shelf.UserView{}
	require.NoError(t, json.Unmarshal(body, created))
	assert.Equal(t, []string{shelf.RoleUser}, created.Roles)

	// list
	resp, body = server.do(t, "GET", "/api/users", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "bob@example.com")

	// update
	resp, body = server.do(t, "PUT", "/api/users/"+created.ID.String(), token, fiber.Map{
		"username": "robert",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), "robert")

	// assign roles drops unknown names
	resp, body = server.do(t, "PUT", "/api/users/"+created.ID.String()+"/roles", token, fiber.Map{
		"roles": []string{shelf.RoleAdmin, "Bogus"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), shelf.RoleAdmin)
	assert.NotContains(t, string(body), "Bogus")

	// lock for 30 minutes
	resp, body = server.do(t, "POST", "/api/users/"+created.ID.String()+"/lock", token, fiber.Map{
		"minutes": 30,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"permanent":false`)

	// unlock
	resp, _ = server.do(t, "POST", "/api/users/"+created.ID.String()+"/unlock", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// reset password
	resp, _ = server.do(t, "POST", "/api/users/"+created.ID.String()+"/password", token, fiber.Map{
		"password": "Fresh2x",
	})
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	// the replacement credential signs in
	resp, _ = server.do(t, "POST", "/auth/login", "", fiber.Map{
		"email":    "bob@example.com",
		"password": "Fresh2x",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// delete
	resp, _ = server.do(t, "DELETE", "/api/users/"+created.ID.String(), token, nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, _ = server.do(t, "GET", "/api/users/"+created.ID.String(), token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAdminSelfProtection(t *testing.T) {
	server, cleanup := setupServer(t)
	defer cleanup()

	admin, token := server.registerAdmin(t)

	resp, body := server.do(t, "DELETE", "/api/users/"+admin.ID, token, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "SELF_ACTION_FORBIDDEN")

	resp, body = server.do(t, "POST", "/api/users/"+admin.ID+"/lock", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "SELF_ACTION_FORBIDDEN")
}

func TestAdminRolesAndStats(t *testing.T) {
	server, cleanup := setupServer(t)
	defer cleanup()

	_, token := server.registerAdmin(t)

	resp, body := server.do(t, "GET", "/api/roles", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), shelf.RoleAdmin)
	assert.Contains(t, string(body), shelf.RoleUser)

	resp, body = server.do(t, "GET", "/api/stats", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	stats := &shelf.UserStats{}
	require.NoError(t, json.Unmarshal(body, stats))
	assert.Equal(t, 1, stats.TotalUsers)
	assert.Equal(t, 1, stats.AdminCount)
	assert.Equal(t, 1, stats.ActiveUsers)
}

func TestAdminProductEndpoints(t *testing.T) {
	server, cleanup := setupServer(t)
	defer cleanup()

	_, token := server.registerAdmin(t)

	resp, body := server.do(t, "POST", "/api/products", token, fiber.Map{
		"sku":         "BOOK-001",
		"name":        "The Go Programming Language",
		"price_cents": 3999,
		"currency":    "USD",
		"stock":       3,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))

	created := &shelf.Product{}
	require.NoError(t, json.Unmarshal(body, created))

	resp, body = server.do(t, "GET", "/api/products/"+created.ID.String(), token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "BOOK-001")

	resp, body = server.do(t, "PUT", "/api/products/"+created.ID.String(), token, fiber.Map{
		"stock": 7,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"stock":7`)

	resp, _ = server.do(t, "DELETE", "/api/products/"+created.ID.String(), token, nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, _ = server.do(t, "GET", "/api/products/"+created.ID.String(), token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	server, cleanup := setupServer(t)
	defer cleanup()

	ts := newTokenService(t)
	impl, ok := ts.(*shelf.TokenServiceImpl)
	require.True(t, ok)

	claims := &shelf.JWTClaims{}
	claims.RegisteredClaims.Issuer = "shelf-test"
	claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	claims.RoleList = []string{shelf.RoleAdmin}

	token, err := impl.SignClaims(claims)
	require.NoError(t, err)

	resp, _ := server.do(t, "GET", "/api/users", token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
