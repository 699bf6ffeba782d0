package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"recordgrid/internal/grid"
	"recordgrid/internal/metadata"
	"recordgrid/internal/workspace"
)

// RecordRepo persists rows of every schema in _records. It is the SQL
// backend of a workspace session.
type RecordRepo struct {
	store *Store
}

var _ workspace.Backend = (*RecordRepo)(nil)

func NewRecordRepo(s *Store) *RecordRepo {
	return &RecordRepo{store: s}
}

// Load returns the stored rows of a schema in insertion order.
func (r *RecordRepo) Load(ctx context.Context, schema string) ([]*grid.Row, error) {
	pb := r.store.Dialect.NewParamBuilder()
	q := fmt.Sprintf("SELECT id, data FROM _records WHERE schema_name = %s ORDER BY position", pb.Add(schema))
	rows, err := QueryRows(ctx, r.store.DB, q, pb.Params()...)
	if err != nil {
		return nil, err
	}
	out := make([]*grid.Row, 0, len(rows))
	for _, row := range rows {
		values := map[string]any{}
		if err := json.Unmarshal([]byte(toString(row["data"])), &values); err != nil {
			return nil, fmt.Errorf("decode record %v: %w", row["id"], err)
		}
		out = append(out, &grid.Row{ID: toString(row["id"]), Values: values})
	}
	return out, nil
}

// SaveBatch writes every upsert and delete of the batch in one transaction:
// either the whole batch is persisted or nothing is.
func (r *RecordRepo) SaveBatch(ctx context.Context, schema *metadata.Schema, batch workspace.Batch) error {
	return r.store.InTx(ctx, func(tx *sql.Tx) error {
		for _, rec := range batch.Upserts {
			if err := r.upsert(ctx, tx, schema.Name, rec); err != nil {
				return err
			}
		}
		if len(batch.Deletes) > 0 {
			if err := r.delete(ctx, tx, schema.Name, batch.Deletes); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *RecordRepo) upsert(ctx context.Context, q Querier, schema string, rec workspace.Record) error {
	data, err := json.Marshal(rec.Values)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.ID, err)
	}
	d := r.store.Dialect
	pb := d.NewParamBuilder()
	idPh, schemaPh, dataPh := pb.Add(rec.ID), pb.Add(schema), pb.Add(string(data))
	stmt := fmt.Sprintf(`INSERT INTO _records (id, schema_name, position, data)
		VALUES (%s, %s, (SELECT COALESCE(MAX(position), 0) + 1 FROM _records WHERE schema_name = %s), %s)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = %s`,
		idPh, schemaPh, schemaPh, dataPh, d.NowExpr())
	if _, err := q.ExecContext(ctx, stmt, pb.Params()...); err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.ID, d.MapError(err))
	}
	return nil
}

func (r *RecordRepo) delete(ctx context.Context, q Querier, schema string, ids []string) error {
	d := r.store.Dialect
	pb := d.NewParamBuilder()
	stmt := fmt.Sprintf("DELETE FROM _records WHERE schema_name = %s AND %s",
		pb.Add(schema), d.InExpr("id", pb, ids))
	if _, err := Exec(ctx, q, stmt, pb.Params()...); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}
