package admin

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"recordgrid/internal/engine"
	"recordgrid/internal/metadata"
	"recordgrid/internal/store"
)

type Handler struct {
	schemas    *store.SchemaRepo
	registry   *metadata.Registry
	workspaces *engine.Workspaces
	logger     *zap.SugaredLogger
}

func NewHandler(schemas *store.SchemaRepo, reg *metadata.Registry, ws *engine.Workspaces, logger *zap.SugaredLogger) *Handler {
	return &Handler{schemas: schemas, registry: reg, workspaces: ws, logger: logger}
}

func RegisterAdminRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	admin := app.Group("/api/_admin", middleware...)

	admin.Get("/schemas", h.ListSchemas)
	admin.Get("/schemas/:name", h.GetSchema)
	admin.Post("/schemas", h.CreateSchema)
	admin.Put("/schemas/:name", h.UpdateSchema)
	admin.Delete("/schemas/:name", h.DeleteSchema)
}

// --- Schema Endpoints ---

func (h *Handler) ListSchemas(c *fiber.Ctx) error {
	schemas, err := h.schemas.List(c.UserContext())
	if err != nil {
		return fmt.Errorf("list schemas: %w", err)
	}
	return c.JSON(fiber.Map{"data": schemas})
}

func (h *Handler) GetSchema(c *fiber.Ctx) error {
	name := c.Params("name")
	schema, err := h.schemas.Get(c.UserContext(), name)
	if errors.Is(err, store.ErrNotFound) {
		return engine.NotFoundError("Schema", name)
	}
	if err != nil {
		return fmt.Errorf("get schema %s: %w", name, err)
	}
	return c.JSON(fiber.Map{"data": schema})
}

func (h *Handler) CreateSchema(c *fiber.Ctx) error {
	var schema metadata.Schema
	if err := c.BodyParser(&schema); err != nil {
		return engine.InvalidPayloadError("Invalid JSON body")
	}
	if err := schema.Validate(); err != nil {
		return engine.ValidationError([]engine.ErrorDetail{{Message: err.Error()}})
	}
	if h.registry.GetSchema(schema.Name) != nil {
		return engine.ConflictError("Schema already exists: " + schema.Name)
	}

	if err := h.schemas.Put(c.UserContext(), &schema); err != nil {
		return fmt.Errorf("insert schema: %w", err)
	}
	h.registry.Put(&schema)
	h.logger.Infow("schema created", "schema", schema.Name, "fields", len(schema.Fields))

	return c.Status(201).JSON(fiber.Map{"data": schema})
}

func (h *Handler) UpdateSchema(c *fiber.Ctx) error {
	name := c.Params("name")
	if h.registry.GetSchema(name) == nil {
		return engine.NotFoundError("Schema", name)
	}

	var schema metadata.Schema
	if err := c.BodyParser(&schema); err != nil {
		return engine.InvalidPayloadError("Invalid JSON body")
	}
	schema.Name = name // ensure name matches URL

	if err := schema.Validate(); err != nil {
		return engine.ValidationError([]engine.ErrorDetail{{Message: err.Error()}})
	}

	if err := h.schemas.Put(c.UserContext(), &schema); err != nil {
		return fmt.Errorf("update schema: %w", err)
	}
	h.registry.Put(&schema)
	h.workspaces.Drop(name)
	h.logger.Infow("schema updated", "schema", name, "fields", len(schema.Fields))

	return c.JSON(fiber.Map{"data": schema})
}

func (h *Handler) DeleteSchema(c *fiber.Ctx) error {
	name := c.Params("name")
	err := h.schemas.Delete(c.UserContext(), name)
	if errors.Is(err, store.ErrNotFound) {
		return engine.NotFoundError("Schema", name)
	}
	if err != nil {
		return fmt.Errorf("delete schema: %w", err)
	}
	h.registry.Remove(name)
	h.workspaces.Drop(name)
	h.logger.Infow("schema deleted", "schema", name)

	return c.JSON(fiber.Map{"data": fiber.Map{"name": name}})
}
