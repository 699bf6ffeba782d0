package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/text/language"

	"recordgrid/internal/admin"
	"recordgrid/internal/auth"
	"recordgrid/internal/config"
	"recordgrid/internal/engine"
	"recordgrid/internal/logging"
	"recordgrid/internal/metadata"
	"recordgrid/internal/store"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Logger
	lg, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer lg.Sync() //nolint:errcheck
	lg.Infow("config loaded", "port", cfg.Server.Port, "driver", cfg.Database.Driver, "db", cfg.Database.Name)

	// 3. Connect to database
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		lg.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	// 4. Bootstrap system tables
	if err := db.Bootstrap(ctx, cfg.AdminEmail, cfg.AdminPassword, lg); err != nil {
		lg.Fatalw("failed to bootstrap system tables", "error", err)
	}

	// 5. Create registry and load schemas
	reg := metadata.NewRegistry()
	if err := metadata.LoadAll(ctx, db.DB, reg, lg); err != nil {
		lg.Warnw("failed to load schemas", "error", err)
	}

	locale, err := language.Parse(cfg.Grid.Locale)
	if err != nil {
		lg.Warnw("unknown locale, using English", "locale", cfg.Grid.Locale)
		locale = language.English
	}
	workspaces := engine.NewWorkspaces(reg, store.NewRecordRepo(db), store.NewViewRepo(db), locale, cfg.Grid.CurrencySymbol, lg)

	// 6. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: engine.ErrorHandler(lg),
		UnescapePath: true,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 7. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 8. Auth routes (no auth required)
	tokens := auth.NewTokens(cfg.JWTSecret)
	auth.RegisterAuthRoutes(app, auth.NewAuthHandler(store.NewUserRepo(db), tokens, lg))

	authMW := auth.AuthMiddleware(tokens)
	adminMW := auth.RequireAdmin()

	// 9. Admin routes (auth + admin required)
	adminHandler := admin.NewHandler(store.NewSchemaRepo(db), reg, workspaces, lg)
	admin.RegisterAdminRoutes(app, adminHandler, authMW, adminMW)

	// 10. Grid routes (auth required)
	engine.RegisterGridRoutes(app, engine.NewHandler(workspaces, lg), authMW)

	// 11. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	lg.Infow("starting server", "addr", addr)
	if err := app.Listen(addr); err != nil {
		lg.Fatalw("server stopped", "error", err)
	}
}
