package grid

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrRowNotFound   = errors.New("row not found")
	ErrUnknownField  = errors.New("unknown field")
	ErrNoActiveEdit  = errors.New("no cell is being edited")
	ErrAutoField     = errors.New("field is computed by the engine")
	ErrInvalidOption = errors.New("value is not one of the field options")
)

// ValidationError lists, per row id, the required fields that are empty.
// A save is rejected as a whole when any row fails.
type ValidationError struct {
	Rows map[string][]string
}

func (e *ValidationError) Error() string {
	ids := make([]string, 0, len(e.Rows))
	for id := range e.Rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s: missing %s", id, strings.Join(e.Rows[id], ", ")))
	}
	return fmt.Sprintf("validation failed for %d row(s): %s", len(ids), strings.Join(parts, "; "))
}

// Missing returns the missing required fields for a row, or nil.
func (e *ValidationError) Missing(rowID string) []string {
	return e.Rows[rowID]
}
