package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Querier is the subset of *sql.DB used to read schema definitions.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// LoadAll reads all schemas from the _schemas table and populates the registry.
func LoadAll(ctx context.Context, db Querier, reg *Registry, logger *zap.SugaredLogger) error {
	schemas, err := loadSchemas(ctx, db, logger)
	if err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}

	reg.Load(schemas)

	logger.Infof("Loaded %d schemas into registry", len(schemas))
	return nil
}

// Reload is an alias for LoadAll, called after admin mutations.
func Reload(ctx context.Context, db Querier, reg *Registry, logger *zap.SugaredLogger) error {
	return LoadAll(ctx, db, reg, logger)
}

func loadSchemas(ctx context.Context, db Querier, logger *zap.SugaredLogger) ([]*Schema, error) {
	rows, err := db.QueryContext(ctx, "SELECT name, definition FROM _schemas ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schemas []*Schema
	for rows.Next() {
		var name string
		var defJSON []byte
		if err := rows.Scan(&name, &defJSON); err != nil {
			return nil, fmt.Errorf("scan schema row: %w", err)
		}

		var schema Schema
		if err := json.Unmarshal(defJSON, &schema); err != nil {
			logger.Warnf("skipping schema %s (invalid JSON): %v", name, err)
			continue
		}
		if err := schema.Validate(); err != nil {
			logger.Warnf("skipping schema %s: %v", name, err)
			continue
		}
		schemas = append(schemas, &schema)
	}
	return schemas, rows.Err()
}
