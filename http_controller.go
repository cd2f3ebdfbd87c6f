package shelf

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/openshelf/shelf/middleware/jwtware"
)

// ClaimsContextKey is the Locals key the JWT middleware stores validated
// claims under.
const ClaimsContextKey = "user"

// NewTokenValidator bridges the TokenService to the middleware contract.
func NewTokenValidator(tokens TokenService) jwtware.TokenValidator {
	return tokenValidatorAdapter{tokens: tokens}
}

type tokenValidatorAdapter struct {
	tokens TokenService
}

func (a tokenValidatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := a.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// CurrentUserID reads the account id out of the claims the middleware
// stored for this request.
func CurrentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	claims, ok := c.Locals(ClaimsContextKey).(jwtware.AuthClaims)
	if !ok {
		return uuid.Nil, ErrTokenMalformed
	}
	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return uuid.Nil, ErrTokenMalformed
	}
	return id, nil
}

// RegisterAuthRoutes mounts the public authentication endpoints.
func RegisterAuthRoutes(app fiber.Router, controller *AuthController) {
	app.Post("/auth/register", controller.RegisterPost).Name("auth.register")
	app.Post("/auth/login", controller.LoginPost).Name("auth.login")
}

// RegisterAdminRoutes mounts the administrative endpoints. The caller is
// expected to guard the router group with the JWT middleware.
func RegisterAdminRoutes(api fiber.Router, users *UserController, products *ProductController) {
	api.Get("/users", users.List).Name("users.list")
	api.Post("/users", users.Create).Name("users.create")
	api.Get("/users/:id", users.Get).Name("users.get")
	api.Put("/users/:id", users.Update).Name("users.update")
	api.Delete("/users/:id", users.Delete).Name("users.delete")
	api.Put("/users/:id/roles", users.AssignRoles).Name("users.roles")
	api.Post("/users/:id/lock", users.Lock).Name("users.lock")
	api.Post("/users/:id/unlock", users.Unlock).Name("users.unlock")
	api.Post("/users/:id/password", users.ResetPassword).Name("users.password")
	api.Get("/roles", users.Roles).Name("roles.list")
	api.Get("/stats", users.Stats).Name("users.stats")

	api.Get("/products", products.List).Name("products.list")
	api.Post("/products", products.Create).Name("products.create")
	api.Get("/products/:id", products.Get).Name("products.get")
	api.Put("/products/:id", products.Update).Name("products.update")
	api.Delete("/products/:id", products.Delete).Name("products.delete")
}

// AuthController serves registration and login.
type AuthController struct {
	Auther Authenticator
	Logger Logger
}

// NewAuthController returns a new AuthController
func NewAuthController(auther Authenticator, logger Logger) *AuthController {
	if logger == nil {
		logger = defLogger{}
	}
	return &AuthController{Auther: auther, Logger: logger}
}

// RegisterPayload is the registration request body
type RegisterPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
	)
}

func (a *AuthController) RegisterPost(c *fiber.Ctx) error {
	payload := new(RegisterPayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("register parse payload: %v", err)
		return badRequest(c, "unable to parse request body")
	}

	if err := payload.Validate(); err != nil {
		return validationFailed(c, err)
	}

	result := a.Auther.Register(c.Context(), payload.Username, payload.Email, payload.Password)
	if resp, ok := result.Response(); ok {
		return c.Status(fiber.StatusCreated).JSON(resp)
	}

	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
		"errors": result.Errors(),
	})
}

// LoginPayload is the login request body
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginPayload)

	// malformed and invalid payloads take the same road as bad credentials
	if err := c.BodyParser(payload); err != nil {
		return unauthorized(c)
	}
	if err := payload.Validate(); err != nil {
		payload.Email = ""
		payload.Password = ""
	}

	result := a.Auther.Login(c.Context(), payload.Email, payload.Password)
	if resp, ok := result.Response(); ok {
		return c.JSON(resp)
	}

	return unauthorized(c)
}

// UserController serves the administrative account operations.
type UserController struct {
	Users  *UserManager
	Logger Logger
}

// NewUserController returns a new UserController
func NewUserController(users *UserManager, logger Logger) *UserController {
	if logger == nil {
		logger = defLogger{}
	}
	return &UserController{Users: users, Logger: logger}
}

func (u *UserController) List(c *fiber.Ctx) error {
	views, err := u.Users.List(c.Context())
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(fiber.Map{"users": views})
}

func (u *UserController) Get(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid account id")
	}

	view, err := u.Users.Get(c.Context(), id)
	if err != nil {
		return renderError(c, err)
	}
	if view == nil {
		return notFound(c, "account not found")
	}

	return c.JSON(view)
}

// Validate will run validation rules
func (r CreateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
	)
}

func (u *UserController) Create(c *fiber.Ctx) error {
	payload := new(CreateUserRequest)

	if err := c.BodyParser(payload); err != nil {
		return badRequest(c, "unable to parse request body")
	}
	if err := payload.Validate(); err != nil {
		return validationFailed(c, err)
	}

	view, err := u.Users.Create(c.Context(), *payload)
	if err != nil {
		return renderError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(view)
}

// Validate will run validation rules
func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Length(6, 100), is.Email),
	)
}

func (u *UserController) Update(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid account id")
	}

	payload := new(UpdateUserRequest)
	if err := c.BodyParser(payload); err != nil {
		return badRequest(c, "unable to parse request body")
	}
	if err := payload.Validate(); err != nil {
		return validationFailed(c, err)
	}

	view, err := u.Users.Update(c.Context(), id, *payload)
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(view)
}

func (u *UserController) Delete(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid account id")
	}

	current, err := CurrentUserID(c)
	if err != nil {
		return renderError(c, err)
	}

	if err := u.Users.Delete(c.Context(), id, current); err != nil {
		return renderError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// AssignRolesPayload is the role replacement request body
type AssignRolesPayload struct {
	Roles []string `json:"roles"`
}

func (u *UserController) AssignRoles(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid account id")
	}

	payload := new(AssignRolesPayload)
	if err := c.BodyParser(payload); err != nil {
		return badRequest(c, "unable to parse request body")
	}

	assigned, err := u.Users.AssignRoles(c.Context(), id, payload.Roles)
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(fiber.Map{"roles": assigned})
}

// LockPayload carries the optional lock duration; absent means indefinite.
type LockPayload struct {
	Minutes *int `json:"minutes"`
}

// Validate will run validation rules
func (r LockPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Minutes, validation.Min(1)),
	)
}

func (u *UserController) Lock(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid account id")
	}

	payload := new(LockPayload)
	if len(c.Body()) > 0 {
		if err := c.BodyParser(payload); err != nil {
			return badRequest(c, "unable to parse request body")
		}
		if err := payload.Validate(); err != nil {
			return validationFailed(c, err)
		}
	}

	current, err := CurrentUserID(c)
	if err != nil {
		return renderError(c, err)
	}

	lock, err := u.Users.Lock(c.Context(), id, current, payload.Minutes)
	if err != nil {
		return renderError(c, err)
	}

	return c.JSON(fiber.Map{
		"locked":      true,
		"permanent":   lock.Kind == LockoutPermanent,
		"lockout_end": lock.End(),
	})
}

func (u *UserController) Unlock(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid account id")
	}

	if err := u.Users.Unlock(c.Context(), id); err != nil {
		return renderError(c, err)
	}

	return c.JSON(fiber.Map{"locked": false})
}

// ResetPasswordPayload is the password replacement request body
type ResetPasswordPayload struct {
	Password string `json:"password"`
}

// Validate will run validation rules
func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
	)
}

func (u *UserController) ResetPassword(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid account id")
	}

	payload := new(ResetPasswordPayload)
	if err := c.BodyParser(payload); err != nil {
		return badRequest(c, "unable to parse request body")
	}
	if err := payload.Validate(); err != nil {
		return validationFailed(c, err)
	}

	if err := u.Users.ResetPassword(c.Context(), id, payload.Password); err != nil {
		return renderError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (u *UserController) Roles(c *fiber.Ctx) error {
	roles, err := u.Users.GetAllRoles(c.Context())
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(fiber.Map{"roles": roles})
}

func (u *UserController) Stats(c *fiber.Ctx) error {
	stats, err := u.Users.GetUserStats(c.Context())
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(stats)
}

// ProductController serves the catalog CRUD operations.
type ProductController struct {
	Products *ProductService
	Logger   Logger
}

// NewProductController returns a new ProductController
func NewProductController(products *ProductService, logger Logger) *ProductController {
	if logger == nil {
		logger = defLogger{}
	}
	return &ProductController{Products: products, Logger: logger}
}

func (p *ProductController) List(c *fiber.Ctx) error {
	records, err := p.Products.List(c.Context())
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(fiber.Map{"products": records})
}

func (p *ProductController) Get(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid product id")
	}

	record, err := p.Products.Get(c.Context(), id)
	if err != nil {
		return renderError(c, err)
	}
	if record == nil {
		return notFound(c, "product not found")
	}

	return c.JSON(record)
}

// Validate will run validation rules
func (r CreateProductRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SKU, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.PriceCents, validation.Min(0)),
		validation.Field(&r.Currency, validation.Length(3, 3), is.UpperCase),
		validation.Field(&r.Stock, validation.Min(0)),
	)
}

func (p *ProductController) Create(c *fiber.Ctx) error {
	payload := new(CreateProductRequest)

	if err := c.BodyParser(payload); err != nil {
		return badRequest(c, "unable to parse request body")
	}
	if err := payload.Validate(); err != nil {
		return validationFailed(c, err)
	}

	record, err := p.Products.Create(c.Context(), *payload)
	if err != nil {
		return renderError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(record)
}

func (p *ProductController) Update(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid product id")
	}

	payload := new(UpdateProductRequest)
	if err := c.BodyParser(payload); err != nil {
		return badRequest(c, "unable to parse request body")
	}

	record, err := p.Products.Update(c.Context(), id, *payload)
	if err != nil {
		return renderError(c, err)
	}
	if record == nil {
		return notFound(c, "product not found")
	}

	return c.JSON(record)
}

func (p *ProductController) Delete(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid product id")
	}

	deleted, err := p.Products.Delete(c.Context(), id)
	if err != nil {
		return renderError(c, err)
	}
	if !deleted {
		return notFound(c, "product not found")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func pathID(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("id"))
}

// renderError maps the service error taxonomy onto HTTP responses. Internal
// errors stay generic; the correlated detail is already in the logs.
func renderError(c *fiber.Ctx, err error) error {
	if credErr, ok := IsCredentialError(err); ok {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"errors": credErr.Details,
		})
	}

	if IsSelfActionForbidden(err) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": detailsFromError(err),
		})
	}

	if IsAccountNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"errors": detailsFromError(err),
		})
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Category == goerrors.CategoryAuth {
		return unauthorized(c)
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"errors": []ErrorDetail{{Code: textCodeInternal, Description: "an unexpected error occurred"}},
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"errors": []ErrorDetail{{Code: "BadRequest", Description: msg}},
	})
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"errors": []ErrorDetail{{Code: "NotFound", Description: msg}},
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"errors": []ErrorDetail{{Code: "AuthenticationError", Description: "invalid credentials"}},
	})
}

// validationFailed renders ozzo validation errors field by field.
func validationFailed(c *fiber.Ctx, err error) error {
	if fieldErrs, ok := err.(validation.Errors); ok {
		details := make([]ErrorDetail, 0, len(fieldErrs))
		for field, fieldErr := range fieldErrs {
			details = append(details, ErrorDetail{Code: field, Description: fieldErr.Error()})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": details})
	}
	return badRequest(c, err.Error())
}
