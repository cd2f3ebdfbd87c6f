package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	shelf "github.com/openshelf/shelf"
	"github.com/openshelf/shelf/middleware/jwtware"
)

// Config is the environment-driven server configuration.
type Config struct {
	Addr              string
	DSN               string
	SigningSecret     string
	Issuer            string
	Audience          string
	ExpirationMinutes int
}

func (c Config) GetSigningSecret() string { return c.SigningSecret }
func (c Config) GetIssuer() string        { return c.Issuer }
func (c Config) GetAudience() []string {
	if c.Audience == "" {
		return nil
	}
	return []string{c.Audience}
}
func (c Config) GetTokenExpirationMinutes() int { return c.ExpirationMinutes }

// Validate will run validation rules
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.SigningSecret, validation.Required, validation.Length(32, 0)),
		validation.Field(&c.ExpirationMinutes, validation.Required, validation.Min(1)),
	)
}

func configFromEnv() Config {
	cfg := Config{
		Addr:              envOr("SHELF_ADDR", ":3000"),
		DSN:               envOr("SHELF_DB", "file:shelf.db?cache=shared"),
		SigningSecret:     os.Getenv("SHELF_JWT_SECRET"),
		Issuer:            envOr("SHELF_JWT_ISSUER", "shelf"),
		Audience:          os.Getenv("SHELF_JWT_AUDIENCE"),
		ExpirationMinutes: 60,
	}

	if raw := os.Getenv("SHELF_JWT_EXPIRATION_MINUTES"); raw != "" {
		if minutes, err := strconv.Atoi(raw); err == nil {
			cfg.ExpirationMinutes = minutes
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	cfg := configFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer sqldb.Close()

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if err := shelf.Migrate(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	store := shelf.NewCredentialStore(db)

	if err := shelf.EnsureDefaultRoles(ctx, store); err != nil {
		log.Fatalf("seed roles: %v", err)
	}

	tokens, err := shelf.NewTokenServiceFromConfig(cfg, nil)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	auther := shelf.NewAuthService(store, tokens)
	users := shelf.NewUserManager(store)
	products := shelf.NewProductService(db)

	app := fiber.New(fiber.Config{
		AppName:      "shelf",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New())

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

	go func() {
		if err := app.Listen(cfg.Addr); err != nil {
			log.Printf("server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
