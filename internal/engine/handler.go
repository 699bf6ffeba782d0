package engine

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"recordgrid/internal/export"
	"recordgrid/internal/grid"
	"recordgrid/internal/metadata"
	"recordgrid/internal/views"
	"recordgrid/internal/workspace"
)

type Handler struct {
	workspaces *Workspaces
	logger     *zap.SugaredLogger
}

func NewHandler(ws *Workspaces, logger *zap.SugaredLogger) *Handler {
	return &Handler{workspaces: ws, logger: logger}
}

// --- response shapes ---

type groupOut struct {
	Key       string      `json:"key"`
	Column    string      `json:"column,omitempty"`
	Count     int         `json:"count"`
	SubGroups []*groupOut `json:"sub_groups,omitempty"`
}

type aggregateOut struct {
	Func  grid.AggFunc `json:"func"`
	Value string       `json:"value"`
}

type viewOut struct {
	ID      string      `json:"id,omitempty"`
	Name    string      `json:"name"`
	Default bool        `json:"default"`
	Active  bool        `json:"active"`
	Config  grid.Config `json:"config"`
}

type guardOut struct {
	views.Guard
	Options []views.Resolution `json:"options,omitempty"`
}

func groupsOut(groups []*grid.Group) []*groupOut {
	out := make([]*groupOut, 0, len(groups))
	for _, g := range groups {
		out = append(out, &groupOut{
			Key:       g.Key,
			Column:    g.Column,
			Count:     g.Count(),
			SubGroups: subGroupsOut(g.SubGroups),
		})
	}
	return out
}

func subGroupsOut(groups []*grid.Group) []*groupOut {
	if len(groups) == 0 {
		return nil
	}
	return groupsOut(groups)
}

func guardOf(s *workspace.Session) guardOut {
	g := s.Views().Guard()
	return guardOut{Guard: g, Options: g.Options()}
}

func viewsOut(s *workspace.Session) []viewOut {
	active := s.Views().Active()
	list := s.Views().List()
	out := make([]viewOut, len(list))
	for i, v := range list {
		out[i] = viewOut{
			ID:      v.ID,
			Name:    v.Name,
			Default: v.IsDefault(),
			Active:  v.Name == active.Name,
			Config:  v.Config,
		}
	}
	return out
}

func stateOut(s *workspace.Session) fiber.Map {
	return fiber.Map{
		"active_view": s.Views().Active().Name,
		"dirty":       s.Views().Dirty(),
		"guard":       guardOf(s),
	}
}

// --- grid endpoints ---

// Grid handles GET /api/:schema/grid
func (h *Handler) Grid(c *fiber.Ctx) error {
	return h.with(c, func(s *workspace.Session) error {
		cfg, err := ApplyQueryOverrides(c, s.Schema(), s.Views().Working())
		if err != nil {
			return err
		}
		g := s.Compute(cfg)

		aggs := make(map[string]aggregateOut, len(g.Aggregates))
		for col, res := range g.Aggregates {
			aggs[col] = aggregateOut{Func: res.Func, Value: s.Formatter().Format(res, s.Schema().GetField(col))}
		}
		rows := g.Rows
		if rows == nil {
			rows = []*grid.Row{}
		}

		return c.JSON(fiber.Map{
			"data": fiber.Map{
				"columns":     g.Columns,
				"rows":        rows,
				"groups":      groupsOut(g.Groups),
				"aggregates":  aggs,
				"total":       g.Total,
				"visible":     len(g.Rows),
				"has_changes": s.Rows().HasChanges(),
				"active_view": s.Views().Active().Name,
				"dirty":       s.Views().Dirty(),
				"guard":       guardOf(s),
			},
		})
	})
}

// PutConfig handles PUT /api/:schema/config
// Settings the body omits keep their Default values.
func (h *Handler) PutConfig(c *fiber.Ctx) error {
	return h.with(c, func(s *workspace.Session) error {
		cfg := grid.DefaultConfig(s.Schema())
		if err := c.BodyParser(&cfg); err != nil {
			return InvalidPayloadError("Invalid JSON body")
		}
		s.Views().SetWorking(cfg)
		return c.JSON(fiber.Map{"data": stateOut(s)})
	})
}

// AddRow handles POST /api/:schema/rows
func (h *Handler) AddRow(c *fiber.Ctx) error {
	var values map[string]any
	if err := c.BodyParser(&values); err != nil {
		return InvalidPayloadError("Invalid JSON body")
	}
	return h.with(c, func(s *workspace.Session) error {
		row, err := s.AddRow(values)
		if err != nil {
			return err
		}
		return c.Status(201).JSON(fiber.Map{"data": row})
	})
}

// EditRow handles PATCH /api/:schema/rows/:id
func (h *Handler) EditRow(c *fiber.Ctx) error {
	var values map[string]any
	if err := c.BodyParser(&values); err != nil {
		return InvalidPayloadError("Invalid JSON body")
	}
	return h.with(c, func(s *workspace.Session) error {
		row, err := s.EditRow(c.Params("id"), values)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": row})
	})
}

// DeleteRow handles DELETE /api/:schema/rows/:id
func (h *Handler) DeleteRow(c *fiber.Ctx) error {
	return h.with(c, func(s *workspace.Session) error {
		id := c.Params("id")
		if err := s.DeleteRow(id); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": fiber.Map{"id": id}})
	})
}

// Save handles POST /api/:schema/save
func (h *Handler) Save(c *fiber.Ctx) error {
	return h.with(c, func(s *workspace.Session) error {
		res, err := s.Save(c.UserContext())
		if err != nil {
			return err
		}
		if user := getUser(c); user != nil {
			h.logger.Infow("rows saved", "schema", s.Schema().Name, "user", user.ID,
				"upserted", res.Upserted, "deleted", res.Deleted)
		}
		return c.JSON(fiber.Map{"data": res})
	})
}

// PutAggregates handles PUT /api/:schema/aggregates with a body of
// column → function assignments.
func (h *Handler) PutAggregates(c *fiber.Ctx) error {
	var body map[string]grid.AggFunc
	if err := c.BodyParser(&body); err != nil {
		return InvalidPayloadError("Invalid JSON body")
	}
	return h.with(c, func(s *workspace.Session) error {
		for col, fn := range body {
			if err := s.SetAggregate(col, fn); err != nil {
				return err
			}
		}
		return c.JSON(fiber.Map{"data": s.Aggregates()})
	})
}

// Export handles GET /api/:schema/export?format=text|json|msgpack
func (h *Handler) Export(c *fiber.Ctx) error {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		return InvalidPayloadError(err.Error())
	}
	return h.with(c, func(s *workspace.Session) error {
		var buf bytes.Buffer
		var opts []export.Option
		if c.QueryBool("summary") {
			opts = append(opts, export.SuppressDetails())
		}
		w := export.NewWriter(h.logger, &buf, format, s.Schema(), s.Formatter(), s.Aggregates(), opts...)
		if err := w.Write(s.Grid()); err != nil {
			return fmt.Errorf("export %s: %w", s.Schema().Name, err)
		}
		c.Set(fiber.HeaderContentType, format.ContentType())
		return c.Send(buf.Bytes())
	})
}

// --- view endpoints ---

// ListViews handles GET /api/:schema/views
func (h *Handler) ListViews(c *fiber.Ctx) error {
	return h.with(c, func(s *workspace.Session) error {
		return c.JSON(fiber.Map{"data": viewsOut(s), "meta": stateOut(s)})
	})
}

// SaveViewAs handles POST /api/:schema/views
func (h *Handler) SaveViewAs(c *fiber.Ctx) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return InvalidPayloadError("Invalid JSON body")
	}
	return h.with(c, func(s *workspace.Session) error {
		v, err := s.Views().SaveAs(c.UserContext(), body.Name)
		if err != nil {
			return err
		}
		return c.Status(201).JSON(fiber.Map{"data": v, "meta": stateOut(s)})
	})
}

// UpdateActiveView handles PUT /api/:schema/views/active
func (h *Handler) UpdateActiveView(c *fiber.Ctx) error {
	return h.with(c, func(s *workspace.Session) error {
		v, err := s.Views().UpdateActive(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": v, "meta": stateOut(s)})
	})
}

// RenameView handles POST /api/:schema/views/:name/rename
func (h *Handler) RenameView(c *fiber.Ctx) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return InvalidPayloadError("Invalid JSON body")
	}
	return h.with(c, func(s *workspace.Session) error {
		v, err := s.Views().Rename(c.UserContext(), c.Params("name"), body.Name)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": v})
	})
}

// DuplicateView handles POST /api/:schema/views/:name/duplicate. An empty
// body name takes the proposed "(copy)" name.
func (h *Handler) DuplicateView(c *fiber.Ctx) error {
	var body struct {
		Name string `json:"name"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return InvalidPayloadError("Invalid JSON body")
		}
	}
	return h.with(c, func(s *workspace.Session) error {
		v, err := s.Views().Duplicate(c.UserContext(), c.Params("name"), body.Name)
		if err != nil {
			return err
		}
		return c.Status(201).JSON(fiber.Map{"data": v})
	})
}

// DeleteView handles DELETE /api/:schema/views/:name
func (h *Handler) DeleteView(c *fiber.Ctx) error {
	return h.with(c, func(s *workspace.Session) error {
		if err := s.Views().Delete(c.UserContext(), c.Params("name")); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": viewsOut(s), "meta": stateOut(s)})
	})
}

// ActivateView handles POST /api/:schema/views/:name/activate. When the
// working configuration is dirty the switch is held and 409 SWITCH_PENDING
// lists the resolutions.
func (h *Handler) ActivateView(c *fiber.Ctx) error {
	return h.with(c, func(s *workspace.Session) error {
		switched, err := s.Views().Activate(c.Params("name"))
		if err != nil {
			return err
		}
		if !switched {
			g := guardOf(s)
			return c.Status(409).JSON(fiber.Map{
				"error": &AppError{
					Code:    "SWITCH_PENDING",
					Message: fmt.Sprintf("Unsaved changes to %s; choose how to continue", s.Views().Active().Name),
				},
				"guard": g,
			})
		}
		return c.JSON(fiber.Map{"data": stateOut(s)})
	})
}

// ResolveSwitch handles POST /api/:schema/views/resolve
func (h *Handler) ResolveSwitch(c *fiber.Ctx) error {
	var body struct {
		Resolution string `json:"resolution"`
	}
	if err := c.BodyParser(&body); err != nil {
		return InvalidPayloadError("Invalid JSON body")
	}
	r, err := views.ParseResolution(body.Resolution)
	if err != nil {
		return err
	}
	return h.with(c, func(s *workspace.Session) error {
		if err := s.Views().Resolve(c.UserContext(), r); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": stateOut(s)})
	})
}

// --- helpers ---

// with resolves the schema's session and runs fn under its lock. Domain
// errors become AppErrors for the central error handler.
func (h *Handler) with(c *fiber.Ctx, fn func(*workspace.Session) error) error {
	err := h.workspaces.With(c.UserContext(), c.Params("schema"), fn)
	if err == nil {
		return nil
	}
	if appErr := ToAppError(err); appErr != nil {
		return appErr
	}
	return err
}

func getUser(c *fiber.Ctx) *metadata.UserContext {
	user, _ := c.Locals("user").(*metadata.UserContext)
	return user
}

func respondError(c *fiber.Ctx, appErr *AppError) error {
	return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
}

// ErrorHandler is the fiber error handler: AppErrors and domain errors keep
// their status and code, fiber errors keep their status, everything else is
// a logged 500.
func ErrorHandler(logger *zap.SugaredLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if appErr := ToAppError(err); appErr != nil {
			return respondError(c, appErr)
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return respondError(c, &AppError{Code: "HTTP_ERROR", Status: fiberErr.Code, Message: fiberErr.Message})
		}

		logger.Errorw("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return respondError(c, &AppError{Code: "INTERNAL_ERROR", Status: fiber.StatusInternalServerError, Message: "Internal server error"})
	}
}
