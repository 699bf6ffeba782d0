package workspace

import (
	"context"

	"recordgrid/internal/metadata"
)

// Record is the plain shape a row is persisted in: only populated fields.
type Record struct {
	ID     string         `json:"id"`
	Values map[string]any `json:"values"`
}

// Batch is everything one save sends to the backend.
type Batch struct {
	Upserts []Record `json:"upserts"`
	Deletes []string `json:"deletes"`
}

// Empty reports whether the batch carries nothing.
func (b Batch) Empty() bool {
	return len(b.Upserts) == 0 && len(b.Deletes) == 0
}

// Backend persists row batches. Implementations decide atomicity; the
// session only clears row tags after SaveBatch returns nil.
type Backend interface {
	SaveBatch(ctx context.Context, schema *metadata.Schema, batch Batch) error
}
