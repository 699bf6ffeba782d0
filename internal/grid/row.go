package grid

import (
	"fmt"

	"github.com/google/uuid"
)

// RowState is the lifecycle tag of a row relative to the last save.
type RowState int

const (
	Clean RowState = iota
	New
	Dirty
)

func (s RowState) String() string {
	switch s {
	case New:
		return "new"
	case Dirty:
		return "dirty"
	default:
		return "clean"
	}
}

func (s RowState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Row is one record. ID is stable and independent of any business key.
type Row struct {
	ID     string         `json:"id"`
	Values map[string]any `json:"values"`
	State  RowState       `json:"state"`
}

// Get returns the value of a field, or nil.
func (r *Row) Get(key string) any {
	return r.Values[key]
}

// Pending reports whether the row has unsaved changes.
func (r *Row) Pending() bool {
	return r.State != Clean
}

// Populated returns only the non-empty field values, the shape handed to
// the persistence backend.
func (r *Row) Populated() map[string]any {
	out := make(map[string]any, len(r.Values))
	for k, v := range r.Values {
		if !IsEmpty(v) {
			out[k] = v
		}
	}
	return out
}

// RowStore is the ordered in-memory collection of rows being viewed or edited.
type RowStore struct {
	rows    []*Row
	byID    map[string]*Row
	removed []string
	compute func(*Row)
}

// NewRowStore wraps an initial snapshot from the backend. Every row starts
// Clean; rows without an id are assigned one.
func NewRowStore(snapshot []*Row) *RowStore {
	s := &RowStore{byID: make(map[string]*Row, len(snapshot))}
	for _, r := range snapshot {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.Values == nil {
			r.Values = map[string]any{}
		}
		r.State = Clean
		s.rows = append(s.rows, r)
		s.byID[r.ID] = r
	}
	return s
}

// SetComputer installs the hook that recomputes auto fields after every
// insert or edit, and applies it to the current rows.
func (s *RowStore) SetComputer(fn func(*Row)) {
	s.compute = fn
	if fn == nil {
		return
	}
	for _, r := range s.rows {
		fn(r)
	}
}

// Rows returns the rows in store order. The slice is a copy; the rows are not.
func (s *RowStore) Rows() []*Row {
	out := make([]*Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// Len returns the number of rows.
func (s *RowStore) Len() int {
	return len(s.rows)
}

// Get returns the row with the given id.
func (s *RowStore) Get(id string) (*Row, error) {
	r, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrRowNotFound)
	}
	return r, nil
}

// Insert appends a New row.
func (s *RowStore) Insert(values map[string]any) *Row {
	r := &Row{ID: uuid.NewString(), Values: make(map[string]any, len(values)), State: New}
	for k, v := range values {
		r.Values[k] = v
	}
	if s.compute != nil {
		s.compute(r)
	}
	s.rows = append(s.rows, r)
	s.byID[r.ID] = r
	return r
}

// Set edits one cell. A Clean row becomes Dirty; a New row stays New.
// Writing the value a cell already holds is not an edit.
func (s *RowStore) Set(id, key string, value any) error {
	r, err := s.Get(id)
	if err != nil {
		return err
	}
	if old, ok := r.Values[key]; ok && Stringify(old) == Stringify(value) {
		return nil
	}
	r.Values[key] = value
	if r.State == Clean {
		r.State = Dirty
	}
	if s.compute != nil {
		s.compute(r)
	}
	return nil
}

// Remove deletes a row. Rows that were already persisted are remembered so
// the next save can delete them from the backend.
func (s *RowStore) Remove(id string) error {
	r, err := s.Get(id)
	if err != nil {
		return err
	}
	for i, row := range s.rows {
		if row.ID == id {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			break
		}
	}
	delete(s.byID, id)
	if r.State != New {
		s.removed = append(s.removed, id)
	}
	return nil
}

// Pending returns New and Dirty rows in store order.
func (s *RowStore) Pending() []*Row {
	var out []*Row
	for _, r := range s.rows {
		if r.Pending() {
			out = append(out, r)
		}
	}
	return out
}

// Removed returns the ids of persisted rows deleted since the last save.
func (s *RowStore) Removed() []string {
	return append([]string(nil), s.removed...)
}

// HasChanges reports whether a save would send anything.
func (s *RowStore) HasChanges() bool {
	return len(s.removed) > 0 || len(s.Pending()) > 0
}

// MarkSaved clears the lifecycle tags of the given rows and forgets removals.
// Called only after the backend accepted the batch.
func (s *RowStore) MarkSaved(ids []string) {
	for _, id := range ids {
		if r, ok := s.byID[id]; ok {
			r.State = Clean
		}
	}
	s.removed = nil
}
