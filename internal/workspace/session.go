package workspace

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"recordgrid/internal/grid"
	"recordgrid/internal/metadata"
	"recordgrid/internal/views"
)

var (
	ErrUnknownAggregate = errors.New("unknown aggregate function")
	ErrNothingToSave    = errors.New("no pending changes")
)

// Options configures a Session.
type Options struct {
	Schema         *metadata.Schema
	Rows           []*grid.Row
	Views          []*views.View
	ViewStore      views.Store
	Backend        Backend
	Locale         language.Tag
	CurrencySymbol string
	Logger         *zap.SugaredLogger
}

// Session is one editing session over one schema: the row store and its
// editor, the view manager, and the aggregation assignments. A Session is
// not safe for concurrent use; callers serialise access.
type Session struct {
	schema    *metadata.Schema
	rows      *grid.RowStore
	editor    *grid.Editor
	views     *views.Manager
	engine    *grid.Engine
	formatter *grid.Formatter
	aggs      map[string]grid.AggFunc
	backend   Backend
	logger    *zap.SugaredLogger
}

// SaveResult summarises a successful save.
type SaveResult struct {
	Upserted int `json:"upserted"`
	Deleted  int `json:"deleted"`
}

func New(opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	computer, err := grid.NewComputer(opts.Schema, logger)
	if err != nil {
		return nil, err
	}
	locale := opts.Locale
	if locale == language.Und {
		locale = language.English
	}

	rows := grid.NewRowStore(opts.Rows)
	rows.SetComputer(computer.Apply)

	return &Session{
		schema:    opts.Schema,
		rows:      rows,
		editor:    grid.NewEditor(rows, opts.Schema),
		views:     views.NewManager(opts.Schema, opts.Views, opts.ViewStore),
		engine:    grid.NewEngine(opts.Schema, locale),
		formatter: grid.NewFormatter(locale, opts.CurrencySymbol),
		aggs:      make(map[string]grid.AggFunc),
		backend:   opts.Backend,
		logger:    logger.With("schema", opts.Schema.Name),
	}, nil
}

func (s *Session) Schema() *metadata.Schema  { return s.schema }
func (s *Session) Rows() *grid.RowStore       { return s.rows }
func (s *Session) Editor() *grid.Editor       { return s.editor }
func (s *Session) Views() *views.Manager      { return s.views }
func (s *Session) Formatter() *grid.Formatter { return s.formatter }

// Grid computes the working configuration over the current rows.
func (s *Session) Grid() *grid.Grid {
	return s.Compute(s.views.Working())
}

// Compute applies cfg to the current rows with the session's aggregates,
// leaving the working configuration alone.
func (s *Session) Compute(cfg grid.Config) *grid.Grid {
	return s.engine.Compute(s.rows.Rows(), cfg, s.aggs)
}

// Aggregates returns a copy of the column assignments.
func (s *Session) Aggregates() map[string]grid.AggFunc {
	out := make(map[string]grid.AggFunc, len(s.aggs))
	for k, v := range s.aggs {
		out[k] = v
	}
	return out
}

// SetAggregate assigns a summary function to a column. "none" clears it.
func (s *Session) SetAggregate(column string, fn grid.AggFunc) error {
	if !s.schema.HasField(column) {
		return fmt.Errorf("%s: %w", column, grid.ErrUnknownField)
	}
	if !fn.Valid() {
		return fmt.Errorf("%s: %w", fn, ErrUnknownAggregate)
	}
	if fn == grid.AggNone {
		delete(s.aggs, column)
		return nil
	}
	s.aggs[column] = fn
	return nil
}

// AddRow inserts a New row. Auto fields are ignored; unknown fields are
// rejected.
func (s *Session) AddRow(values map[string]any) (*grid.Row, error) {
	clean := make(map[string]any, len(values))
	for k, v := range values {
		f := s.schema.GetField(k)
		if f == nil {
			return nil, fmt.Errorf("%s: %w", k, grid.ErrUnknownField)
		}
		if f.Auto {
			continue
		}
		clean[k] = v
	}
	return s.rows.Insert(clean), nil
}

// EditRow applies cell edits through the editor, one cell at a time in key
// order. The first failing cell stops the edit; cells before it stay applied.
func (s *Session) EditRow(id string, values map[string]any) (*grid.Row, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.editor.Apply(id, k, values[k]); err != nil {
			s.editor.Cancel()
			return nil, err
		}
	}
	return s.rows.Get(id)
}

// DeleteRow removes a row; persisted rows are deleted on the next save.
func (s *Session) DeleteRow(id string) error {
	if ref, ok := s.editor.Active(); ok && ref.RowID == id {
		s.editor.Cancel()
	}
	return s.rows.Remove(id)
}

// Save validates every New and Dirty row and hands one batch to the
// backend. Any row missing a required field rejects the whole batch with a
// *grid.ValidationError and nothing is sent. Row tags are cleared only
// when the backend accepts the batch.
func (s *Session) Save(ctx context.Context) (SaveResult, error) {
	if _, open := s.editor.Active(); open {
		if err := s.editor.Commit(); err != nil {
			return SaveResult{}, err
		}
	}

	pending := s.rows.Pending()
	batch := Batch{Deletes: s.rows.Removed()}
	if len(pending) == 0 && len(batch.Deletes) == 0 {
		return SaveResult{}, ErrNothingToSave
	}

	if verr := grid.ValidateRequired(s.schema, pending); verr != nil {
		s.logger.Debugw("save rejected", "rows", len(verr.Rows))
		return SaveResult{}, verr
	}

	ids := make([]string, len(pending))
	for i, r := range pending {
		ids[i] = r.ID
		batch.Upserts = append(batch.Upserts, Record{ID: r.ID, Values: r.Populated()})
	}

	if err := s.backend.SaveBatch(ctx, s.schema, batch); err != nil {
		s.logger.Errorw("save failed", "upserts", len(batch.Upserts), "deletes", len(batch.Deletes), "error", err)
		return SaveResult{}, fmt.Errorf("save %s: %w", s.schema.Name, err)
	}

	s.rows.MarkSaved(ids)
	s.logger.Infow("saved", "upserts", len(batch.Upserts), "deletes", len(batch.Deletes))
	return SaveResult{Upserted: len(batch.Upserts), Deleted: len(batch.Deletes)}, nil
}
