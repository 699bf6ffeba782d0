package store

import (
	"context"
	"encoding/json"
	"fmt"

	"recordgrid/internal/metadata"
)

// SchemaRepo persists field schema definitions in _schemas.
type SchemaRepo struct {
	store *Store
}

func NewSchemaRepo(s *Store) *SchemaRepo {
	return &SchemaRepo{store: s}
}

// List returns every stored schema, sorted by name.
func (r *SchemaRepo) List(ctx context.Context) ([]*metadata.Schema, error) {
	rows, err := QueryRows(ctx, r.store.DB, "SELECT name, definition FROM _schemas ORDER BY name")
	if err != nil {
		return nil, err
	}
	schemas := make([]*metadata.Schema, 0, len(rows))
	for _, row := range rows {
		s, err := decodeSchema(row)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}
	return schemas, nil
}

// Get returns one schema or ErrNotFound.
func (r *SchemaRepo) Get(ctx context.Context, name string) (*metadata.Schema, error) {
	pb := r.store.Dialect.NewParamBuilder()
	q := fmt.Sprintf("SELECT name, definition FROM _schemas WHERE name = %s", pb.Add(name))
	row, err := QueryRow(ctx, r.store.DB, q, pb.Params()...)
	if err != nil {
		return nil, err
	}
	return decodeSchema(row)
}

// Put inserts or replaces a schema definition.
func (r *SchemaRepo) Put(ctx context.Context, s *metadata.Schema) error {
	def, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	d := r.store.Dialect
	pb := d.NewParamBuilder()
	q := fmt.Sprintf(`INSERT INTO _schemas (name, definition) VALUES (%s, %s)
		ON CONFLICT (name) DO UPDATE SET definition = excluded.definition, updated_at = %s`,
		pb.Add(s.Name), pb.Add(string(def)), d.NowExpr())
	if _, err := r.store.DB.ExecContext(ctx, q, pb.Params()...); err != nil {
		return d.MapError(err)
	}
	return nil
}

// Delete removes a schema; its views and records cascade.
func (r *SchemaRepo) Delete(ctx context.Context, name string) error {
	pb := r.store.Dialect.NewParamBuilder()
	q := fmt.Sprintf("DELETE FROM _schemas WHERE name = %s", pb.Add(name))
	n, err := Exec(ctx, r.store.DB, q, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeSchema(row map[string]any) (*metadata.Schema, error) {
	var s metadata.Schema
	if err := json.Unmarshal([]byte(toString(row["definition"])), &s); err != nil {
		return nil, fmt.Errorf("decode schema %v: %w", row["name"], err)
	}
	return &s, nil
}
