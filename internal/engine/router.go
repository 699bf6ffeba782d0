package engine

import "github.com/gofiber/fiber/v2"

func RegisterGridRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	api := app.Group("/api/:schema", middleware...)

	api.Get("/grid", h.Grid)
	api.Put("/config", h.PutConfig)
	api.Post("/rows", h.AddRow)
	api.Patch("/rows/:id", h.EditRow)
	api.Delete("/rows/:id", h.DeleteRow)
	api.Post("/save", h.Save)
	api.Put("/aggregates", h.PutAggregates)
	api.Get("/export", h.Export)

	api.Get("/views", h.ListViews)
	api.Post("/views", h.SaveViewAs)
	api.Put("/views/active", h.UpdateActiveView)
	api.Post("/views/resolve", h.ResolveSwitch)
	api.Post("/views/:name/rename", h.RenameView)
	api.Post("/views/:name/duplicate", h.DuplicateView)
	api.Post("/views/:name/activate", h.ActivateView)
	api.Delete("/views/:name", h.DeleteView)
}
