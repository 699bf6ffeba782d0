package store

import (
	"context"
	"encoding/json"
	"fmt"

	"recordgrid/internal/grid"
	"recordgrid/internal/views"
)

// ViewRepo persists saved views in _views. It implements views.Store.
type ViewRepo struct {
	store *Store
}

var _ views.Store = (*ViewRepo)(nil)

func NewViewRepo(s *Store) *ViewRepo {
	return &ViewRepo{store: s}
}

// ListViews returns the saved views of a schema in creation order.
func (r *ViewRepo) ListViews(ctx context.Context, schema string) ([]*views.View, error) {
	pb := r.store.Dialect.NewParamBuilder()
	q := fmt.Sprintf(`SELECT id, name, config, created_at, updated_at FROM _views
		WHERE schema_name = %s ORDER BY created_at, name`, pb.Add(schema))
	rows, err := QueryRows(ctx, r.store.DB, q, pb.Params()...)
	if err != nil {
		return nil, err
	}
	out := make([]*views.View, 0, len(rows))
	for _, row := range rows {
		v := &views.View{
			ID:        toString(row["id"]),
			Name:      toString(row["name"]),
			CreatedAt: toTime(row["created_at"]),
			UpdatedAt: toTime(row["updated_at"]),
		}
		var cfg grid.Config
		if err := json.Unmarshal([]byte(toString(row["config"])), &cfg); err != nil {
			return nil, fmt.Errorf("decode view %s: %w", v.Name, err)
		}
		v.Config = cfg
		out = append(out, v)
	}
	return out, nil
}

// PutView inserts or replaces a view by id. A name clash within the schema
// surfaces as ErrUniqueViolation.
func (r *ViewRepo) PutView(ctx context.Context, schema string, v *views.View) error {
	cfg, err := json.Marshal(v.Config)
	if err != nil {
		return fmt.Errorf("marshal view config: %w", err)
	}
	d := r.store.Dialect
	pb := d.NewParamBuilder()
	q := fmt.Sprintf(`INSERT INTO _views (id, schema_name, name, config, created_at, updated_at)
		VALUES (%s, %s, %s, %s, %s, %s)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, config = excluded.config, updated_at = excluded.updated_at`,
		pb.Add(v.ID), pb.Add(schema), pb.Add(v.Name), pb.Add(string(cfg)),
		pb.Add(formatTimestamp(v.CreatedAt)), pb.Add(formatTimestamp(v.UpdatedAt)))
	if _, err := r.store.DB.ExecContext(ctx, q, pb.Params()...); err != nil {
		return d.MapError(err)
	}
	return nil
}

// DeleteView removes a view by id.
func (r *ViewRepo) DeleteView(ctx context.Context, schema string, id string) error {
	pb := r.store.Dialect.NewParamBuilder()
	q := fmt.Sprintf("DELETE FROM _views WHERE schema_name = %s AND id = %s", pb.Add(schema), pb.Add(id))
	n, err := Exec(ctx, r.store.DB, q, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
