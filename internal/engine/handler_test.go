package engine_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"recordgrid/internal/admin"
	"recordgrid/internal/config"
	"recordgrid/internal/engine"
	"recordgrid/internal/metadata"
	"recordgrid/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(ctx, config.DatabaseConfig{Driver: "sqlite", Name: "engine", Path: t.TempDir()})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.Bootstrap(ctx, "admin@localhost", "changeme", zap.NewNop().Sugar()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return s
}

func testApp(t *testing.T, s *store.Store) *fiber.App {
	t.Helper()
	logger := zap.NewNop().Sugar()
	reg := metadata.NewRegistry()
	if err := metadata.LoadAll(context.Background(), s.DB, reg, logger); err != nil {
		t.Fatalf("load registry: %v", err)
	}

	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler(logger), UnescapePath: true})
	ws := engine.NewWorkspaces(reg, store.NewRecordRepo(s), store.NewViewRepo(s), language.English, "$", logger)
	admin.RegisterAdminRoutes(app, admin.NewHandler(store.NewSchemaRepo(s), reg, ws, logger))
	engine.RegisterGridRoutes(app, engine.NewHandler(ws, logger))
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("execute request: %v", err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

// expect asserts the status code and decodes the body into out.
func expect(t *testing.T, resp *http.Response, status int, out any) {
	t.Helper()
	body := readBody(t, resp)
	if resp.StatusCode != status {
		t.Fatalf("expected %d, got %d: %s", status, resp.StatusCode, body)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("decode %s: %v", body, err)
		}
	}
}

type gridResponse struct {
	Data struct {
		Columns []string `json:"columns"`
		Rows    []struct {
			ID     string         `json:"id"`
			Values map[string]any `json:"values"`
			State  string         `json:"state"`
		} `json:"rows"`
		Groups []struct {
			Key   string `json:"key"`
			Count int    `json:"count"`
		} `json:"groups"`
		Aggregates map[string]struct {
			Value string `json:"value"`
		} `json:"aggregates"`
		Total      int    `json:"total"`
		Visible    int    `json:"visible"`
		HasChanges bool   `json:"has_changes"`
		ActiveView string `json:"active_view"`
		Dirty      bool   `json:"dirty"`
	} `json:"data"`
}

type rowResponse struct {
	Data struct {
		ID    string `json:"id"`
		State string `json:"state"`
	} `json:"data"`
}

var articleSchema = map[string]any{
	"name": "article",
	"fields": []map[string]any{
		{"key": "code", "label": "Code", "type": "text", "required": true},
		{"key": "status", "label": "Status", "type": "categorical", "options": []string{"Active", "Inactive"}},
		{"key": "price", "label": "Price", "type": "numeric", "currency": true},
	},
}

func setupArticles(t *testing.T) (*fiber.App, *store.Store) {
	t.Helper()
	s := testStore(t)
	app := testApp(t, s)
	expect(t, doRequest(t, app, "POST", "/api/_admin/schemas", articleSchema), 201, nil)
	return app, s
}

func addRow(t *testing.T, app *fiber.App, values map[string]any) string {
	t.Helper()
	var out rowResponse
	expect(t, doRequest(t, app, "POST", "/api/article/rows", values), 201, &out)
	if out.Data.State != "new" {
		t.Fatalf("added row should be new, got %s", out.Data.State)
	}
	return out.Data.ID
}

func TestUnknownSchema(t *testing.T) {
	app := testApp(t, testStore(t))
	var out engine.ErrorResponse
	expect(t, doRequest(t, app, "GET", "/api/nonexistent/grid", nil), 404, &out)
	if out.Error.Code != "UNKNOWN_SCHEMA" {
		t.Fatalf("expected UNKNOWN_SCHEMA, got %s", out.Error.Code)
	}
}

func TestAdmin_DuplicateSchema(t *testing.T) {
	app, _ := setupArticles(t)
	var out engine.ErrorResponse
	expect(t, doRequest(t, app, "POST", "/api/_admin/schemas", articleSchema), 409, &out)
	if out.Error.Code != "CONFLICT" {
		t.Fatalf("expected CONFLICT, got %s", out.Error.Code)
	}
	expect(t, doRequest(t, app, "POST", "/api/_admin/schemas", map[string]any{"name": "Bad Name"}), 422, nil)
}

func TestGrid_QueryOverrides(t *testing.T) {
	app, _ := setupArticles(t)
	addRow(t, app, map[string]any{"code": "A1", "status": "Active", "price": 10})
	addRow(t, app, map[string]any{"code": "B1", "status": "Inactive", "price": 5})
	addRow(t, app, map[string]any{"code": "A2", "status": "Active", "price": 2.5})
	addRow(t, app, map[string]any{"code": "C1"})

	expect(t, doRequest(t, app, "PUT", "/api/article/aggregates", map[string]string{"price": "sum"}), 200, nil)

	var out gridResponse
	expect(t, doRequest(t, app, "GET", "/api/article/grid?filter[status.is]=Active&sort=-price", nil), 200, &out)
	if out.Data.Total != 4 || out.Data.Visible != 2 {
		t.Fatalf("expected 2 of 4 rows, got %d of %d", out.Data.Visible, out.Data.Total)
	}
	if out.Data.Rows[0].Values["code"] != "A1" || out.Data.Rows[1].Values["code"] != "A2" {
		t.Fatalf("unexpected order: %v, %v", out.Data.Rows[0].Values, out.Data.Rows[1].Values)
	}
	if got := out.Data.Aggregates["price"].Value; got != "$12.50" {
		t.Fatalf("expected sum $12.50, got %s", got)
	}
	if !out.Data.HasChanges || out.Data.Dirty {
		t.Fatalf("rows are unsaved but the view is untouched: has_changes=%v dirty=%v", out.Data.HasChanges, out.Data.Dirty)
	}

	expect(t, doRequest(t, app, "GET", "/api/article/grid?group=status", nil), 200, &out)
	if len(out.Data.Groups) != 3 || out.Data.Groups[2].Key != "(blank)" || out.Data.Groups[0].Count != 2 {
		t.Fatalf("unexpected groups: %+v", out.Data.Groups)
	}

	var errOut engine.ErrorResponse
	expect(t, doRequest(t, app, "GET", "/api/article/grid?sort=nope", nil), 400, &errOut)
	if errOut.Error.Code != "UNKNOWN_FIELD" {
		t.Fatalf("expected UNKNOWN_FIELD, got %s", errOut.Error.Code)
	}
	expect(t, doRequest(t, app, "GET", "/api/article/grid?filter[price.starts_with]=1", nil), 400, nil)
}

func TestPutConfig_OmittedSettingsKeepDefaults(t *testing.T) {
	app, _ := setupArticles(t)
	addRow(t, app, map[string]any{"code": "A1", "price": 2})
	addRow(t, app, map[string]any{"code": "B1", "price": 10})
	addRow(t, app, map[string]any{"code": "C1", "price": 5})

	var state struct {
		Data struct {
			Dirty bool `json:"dirty"`
		} `json:"data"`
	}
	expect(t, doRequest(t, app, "PUT", "/api/article/config",
		map[string]any{"column_order": []string{"code", "status", "price"}}), 200, &state)
	if state.Data.Dirty {
		t.Fatal("a config equal to Default must not read dirty")
	}

	sorts := []map[string]string{{"column": "price", "direction": "desc", "comparison": "numeric"}}
	expect(t, doRequest(t, app, "PUT", "/api/article/config", map[string]any{"simple_sorts": sorts}), 200, &state)
	if !state.Data.Dirty {
		t.Fatal("a sorted config should read dirty against Default")
	}

	var out gridResponse
	expect(t, doRequest(t, app, "GET", "/api/article/grid", nil), 200, &out)
	var codes []any
	for _, r := range out.Data.Rows {
		codes = append(codes, r.Values["code"])
	}
	if len(codes) != 3 || codes[0] != "B1" || codes[1] != "C1" || codes[2] != "A1" {
		t.Fatalf("expected rows sorted by price desc without simple_sort_on, got %v", codes)
	}
}

func TestSave_AllOrNothing(t *testing.T) {
	app, s := setupArticles(t)
	good := addRow(t, app, map[string]any{"code": "A1", "status": "Active"})
	bad := addRow(t, app, map[string]any{"status": "Inactive"})

	var errOut engine.ErrorResponse
	expect(t, doRequest(t, app, "POST", "/api/article/save", nil), 422, &errOut)
	if errOut.Error.Code != "VALIDATION_FAILED" || len(errOut.Error.Details) != 1 {
		t.Fatalf("unexpected error: %+v", errOut.Error)
	}
	if d := errOut.Error.Details[0]; d.Row != bad || d.Field != "code" {
		t.Fatalf("unexpected detail: %+v", d)
	}

	rows, err := store.NewRecordRepo(s).Load(context.Background(), "article")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("nothing may be persisted after a rejected save, got %d rows", len(rows))
	}

	expect(t, doRequest(t, app, "PATCH", "/api/article/rows/"+bad, map[string]any{"code": "B1"}), 200, nil)

	var saved struct {
		Data struct {
			Upserted int `json:"upserted"`
		} `json:"data"`
	}
	expect(t, doRequest(t, app, "POST", "/api/article/save", nil), 200, &saved)
	if saved.Data.Upserted != 2 {
		t.Fatalf("expected 2 upserts, got %d", saved.Data.Upserted)
	}

	rows, err = store.NewRecordRepo(s).Load(context.Background(), "article")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != good {
		t.Fatalf("expected both rows persisted in order, got %d", len(rows))
	}

	var errNothing engine.ErrorResponse
	expect(t, doRequest(t, app, "POST", "/api/article/save", nil), 409, &errNothing)
	if errNothing.Error.Code != "NOTHING_TO_SAVE" {
		t.Fatalf("expected NOTHING_TO_SAVE, got %s", errNothing.Error.Code)
	}

	expect(t, doRequest(t, app, "DELETE", "/api/article/rows/"+good, nil), 200, nil)
	expect(t, doRequest(t, app, "POST", "/api/article/save", nil), 200, nil)
	rows, _ = store.NewRecordRepo(s).Load(context.Background(), "article")
	if len(rows) != 1 || rows[0].ID != bad {
		t.Fatalf("expected only %s to remain", bad)
	}
}

func TestViews_ReservedNameAndSwitchGuard(t *testing.T) {
	app, _ := setupArticles(t)

	var errOut engine.ErrorResponse
	expect(t, doRequest(t, app, "POST", "/api/article/views", map[string]string{"name": "default"}), 422, &errOut)
	if errOut.Error.Code != "RESERVED_NAME" {
		t.Fatalf("expected RESERVED_NAME, got %s", errOut.Error.Code)
	}

	cfg := map[string]any{"column_order": []string{"code", "status", "price"}, "group_by": "status", "simple_sort_on": true, "advanced_sort_on": true}
	expect(t, doRequest(t, app, "PUT", "/api/article/config", cfg), 200, nil)
	expect(t, doRequest(t, app, "POST", "/api/article/views", map[string]string{"name": "By status"}), 201, nil)

	var g gridResponse
	expect(t, doRequest(t, app, "GET", "/api/article/grid", nil), 200, &g)
	if g.Data.ActiveView != "By status" || g.Data.Dirty {
		t.Fatalf("saved view should be active and clean: %s dirty=%v", g.Data.ActiveView, g.Data.Dirty)
	}

	expect(t, doRequest(t, app, "POST", "/api/article/views", map[string]string{"name": "BY STATUS"}), 409, &errOut)
	if errOut.Error.Code != "NAME_CONFLICT" {
		t.Fatalf("expected NAME_CONFLICT, got %s", errOut.Error.Code)
	}

	cfg["group_by"] = ""
	expect(t, doRequest(t, app, "PUT", "/api/article/config", cfg), 200, nil)

	var pending struct {
		Error *engine.AppError `json:"error"`
		Guard struct {
			State   string   `json:"state"`
			Target  string   `json:"target"`
			Options []string `json:"options"`
		} `json:"guard"`
	}
	expect(t, doRequest(t, app, "POST", "/api/article/views/Default/activate", nil), 409, &pending)
	if pending.Error.Code != "SWITCH_PENDING" || pending.Guard.Target != "Default" {
		t.Fatalf("unexpected pending response: %+v", pending)
	}
	if strings.Join(pending.Guard.Options, ",") != "save,discard,cancel" {
		t.Fatalf("unexpected options: %v", pending.Guard.Options)
	}

	expect(t, doRequest(t, app, "POST", "/api/article/views/"+url.PathEscape("By status")+"/activate", nil), 409, &errOut)
	if errOut.Error.Code != "SWITCH_PENDING" {
		t.Fatalf("a second switch while pending must be refused, got %s", errOut.Error.Code)
	}

	expect(t, doRequest(t, app, "POST", "/api/article/views/resolve", map[string]string{"resolution": "discard"}), 200, nil)
	expect(t, doRequest(t, app, "GET", "/api/article/grid", nil), 200, &g)
	if g.Data.ActiveView != "Default" || g.Data.Dirty {
		t.Fatalf("discard should land on a clean Default, got %s dirty=%v", g.Data.ActiveView, g.Data.Dirty)
	}

	expect(t, doRequest(t, app, "PUT", "/api/article/views/active", nil), 409, &errOut)
	if errOut.Error.Code != "DEFAULT_READ_ONLY" {
		t.Fatalf("expected DEFAULT_READ_ONLY, got %s", errOut.Error.Code)
	}
}

func TestViews_DuplicateRenameDelete(t *testing.T) {
	app, _ := setupArticles(t)
	expect(t, doRequest(t, app, "POST", "/api/article/views", map[string]string{"name": "Mine"}), 201, nil)

	var dup struct {
		Data struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	expect(t, doRequest(t, app, "POST", "/api/article/views/Mine/duplicate", nil), 201, &dup)
	if dup.Data.Name != "Mine (copy)" {
		t.Fatalf("expected proposed copy name, got %s", dup.Data.Name)
	}

	expect(t, doRequest(t, app, "POST", "/api/article/views/"+url.PathEscape("Mine (copy)")+"/rename", map[string]string{"name": "Theirs"}), 200, nil)
	expect(t, doRequest(t, app, "DELETE", "/api/article/views/Mine", nil), 200, nil)

	var list struct {
		Data []struct {
			Name   string `json:"name"`
			Active bool   `json:"active"`
		} `json:"data"`
	}
	expect(t, doRequest(t, app, "GET", "/api/article/views", nil), 200, &list)
	if len(list.Data) != 2 || list.Data[0].Name != "Default" || list.Data[1].Name != "Theirs" {
		t.Fatalf("unexpected views: %+v", list.Data)
	}
	if !list.Data[0].Active {
		t.Fatal("deleting the active view reverts to Default")
	}

	expect(t, doRequest(t, app, "DELETE", "/api/article/views/Default", nil), 409, nil)
}

func TestExport_JSON(t *testing.T) {
	app, _ := setupArticles(t)
	addRow(t, app, map[string]any{"code": "A1", "status": "Active", "price": 10})
	addRow(t, app, map[string]any{"code": "B1", "status": "Inactive", "price": 5})
	expect(t, doRequest(t, app, "PUT", "/api/article/aggregates", map[string]string{"price": "sum"}), 200, nil)

	resp := doRequest(t, app, "GET", "/api/article/export?format=json", nil)
	body := readBody(t, resp)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	var last struct {
		Type   string   `json:"typ"`
		Count  int      `json:"qty"`
		Values []string `json:"val"`
	}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if last.Type != "TOT" || last.Count != 2 || last.Values[2] != "$15.00" {
		t.Fatalf("unexpected totals row: %+v", last)
	}

	expect(t, doRequest(t, app, "GET", "/api/article/export?format=xml", nil), 400, nil)
}
