package engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"recordgrid/internal/grid"
	"recordgrid/internal/metadata"
	"recordgrid/internal/views"
	"recordgrid/internal/workspace"
)

// RecordSource loads the rows of a schema and persists save batches.
type RecordSource interface {
	workspace.Backend
	Load(ctx context.Context, schema string) ([]*grid.Row, error)
}

// ViewSource lists and persists saved views.
type ViewSource interface {
	views.Store
	ListViews(ctx context.Context, schema string) ([]*views.View, error)
}

// Workspaces keeps one editing session per schema, opened lazily.
// Requests against the same schema are serialised; different schemas
// proceed in parallel.
type Workspaces struct {
	registry *metadata.Registry
	records  RecordSource
	views    ViewSource
	locale   language.Tag
	currency string
	logger   *zap.SugaredLogger

	mu   sync.Mutex
	open map[string]*slot
}

type slot struct {
	mu      sync.Mutex
	schema  *metadata.Schema
	session *workspace.Session
}

func NewWorkspaces(reg *metadata.Registry, records RecordSource, vs ViewSource,
	locale language.Tag, currency string, logger *zap.SugaredLogger) *Workspaces {
	return &Workspaces{
		registry: reg,
		records:  records,
		views:    vs,
		locale:   locale,
		currency: currency,
		logger:   logger,
		open:     make(map[string]*slot),
	}
}

// With runs fn against the session of the named schema while holding the
// schema's lock. A schema replaced in the registry since the session was
// opened gets a fresh session.
func (w *Workspaces) With(ctx context.Context, name string, fn func(*workspace.Session) error) error {
	schema := w.registry.GetSchema(name)
	if schema == nil {
		return UnknownSchemaError(name)
	}

	w.mu.Lock()
	s, ok := w.open[name]
	if !ok {
		s = &slot{}
		w.open[name] = s
	}
	w.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.schema != schema {
		session, err := w.openSession(ctx, schema)
		if err != nil {
			return err
		}
		s.schema, s.session = schema, session
	}
	return fn(s.session)
}

// Drop forgets the session of a schema; unsaved edits are lost. The slot
// stays so that requests already queued on it reopen a single session.
func (w *Workspaces) Drop(name string) {
	w.mu.Lock()
	s, ok := w.open[name]
	w.mu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	s.schema, s.session = nil, nil
	s.mu.Unlock()
}

func (w *Workspaces) openSession(ctx context.Context, schema *metadata.Schema) (*workspace.Session, error) {
	rows, err := w.records.Load(ctx, schema.Name)
	if err != nil {
		return nil, fmt.Errorf("load rows of %s: %w", schema.Name, err)
	}
	saved, err := w.views.ListViews(ctx, schema.Name)
	if err != nil {
		return nil, fmt.Errorf("load views of %s: %w", schema.Name, err)
	}
	session, err := workspace.New(workspace.Options{
		Schema:         schema,
		Rows:           rows,
		Views:          saved,
		ViewStore:      w.views,
		Backend:        w.records,
		Locale:         w.locale,
		CurrencySymbol: w.currency,
		Logger:         w.logger.With("schema", schema.Name),
	})
	if err != nil {
		return nil, err
	}
	w.logger.Infow("workspace opened", "schema", schema.Name, "rows", len(rows), "views", len(saved))
	return session, nil
}
