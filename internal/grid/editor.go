package grid

import (
	"fmt"

	"recordgrid/internal/metadata"
)

// CellRef addresses one cell.
type CellRef struct {
	RowID string `json:"row_id"`
	Key   string `json:"key"`
}

// Editor serialises row mutation: at most one cell is in edit state, and an
// open edit is committed before another one begins.
type Editor struct {
	store  *RowStore
	schema *metadata.Schema
	open   *CellRef
	draft  any
}

func NewEditor(store *RowStore, schema *metadata.Schema) *Editor {
	return &Editor{store: store, schema: schema}
}

// Active returns the cell currently being edited.
func (e *Editor) Active() (CellRef, bool) {
	if e.open == nil {
		return CellRef{}, false
	}
	return *e.open, true
}

// Begin opens a cell for editing. If another cell is open it is committed
// first; a failed commit keeps that cell open and the new edit is refused.
func (e *Editor) Begin(rowID, key string) error {
	if e.open != nil {
		if *e.open == (CellRef{RowID: rowID, Key: key}) {
			return nil
		}
		if err := e.Commit(); err != nil {
			return err
		}
	}
	if err := e.checkField(key); err != nil {
		return err
	}
	r, err := e.store.Get(rowID)
	if err != nil {
		return err
	}
	e.open = &CellRef{RowID: rowID, Key: key}
	e.draft = r.Get(key)
	return nil
}

// Update replaces the draft value of the open cell.
func (e *Editor) Update(value any) error {
	if e.open == nil {
		return ErrNoActiveEdit
	}
	e.draft = value
	return nil
}

// Commit applies the draft to the row store and closes the edit.
func (e *Editor) Commit() error {
	if e.open == nil {
		return ErrNoActiveEdit
	}
	if err := e.checkValue(e.open.Key, e.draft); err != nil {
		return err
	}
	if err := e.store.Set(e.open.RowID, e.open.Key, e.draft); err != nil {
		return err
	}
	e.open = nil
	e.draft = nil
	return nil
}

// Cancel discards the draft.
func (e *Editor) Cancel() {
	e.open = nil
	e.draft = nil
}

// Apply is Begin + Update + Commit for callers that edit a whole cell at once.
func (e *Editor) Apply(rowID, key string, value any) error {
	if err := e.Begin(rowID, key); err != nil {
		return err
	}
	if err := e.Update(value); err != nil {
		return err
	}
	return e.Commit()
}

func (e *Editor) checkField(key string) error {
	if e.schema == nil {
		return nil
	}
	f := e.schema.GetField(key)
	if f == nil {
		return fmt.Errorf("%s: %w", key, ErrUnknownField)
	}
	if f.Auto {
		return fmt.Errorf("%s: %w", key, ErrAutoField)
	}
	return nil
}

func (e *Editor) checkValue(key string, value any) error {
	if e.schema == nil {
		return nil
	}
	f := e.schema.GetField(key)
	if f == nil || len(f.Options) == 0 || IsEmpty(value) {
		return nil
	}
	if !f.HasOption(Stringify(value)) {
		return fmt.Errorf("%s=%q: %w", key, Stringify(value), ErrInvalidOption)
	}
	return nil
}
