package grid

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.uber.org/zap"

	"recordgrid/internal/metadata"
)

type computedField struct {
	key  string
	prog *vm.Program
}

// Computer evaluates the expressions of auto-computed fields. Programs are
// compiled once per schema.
type Computer struct {
	schema *metadata.Schema
	fields []computedField
	logger *zap.SugaredLogger
}

// NewComputer compiles every computed field of the schema. A schema without
// computed fields yields a Computer whose Apply is a no-op.
func NewComputer(schema *metadata.Schema, logger *zap.SugaredLogger) (*Computer, error) {
	c := &Computer{schema: schema, logger: logger}
	for _, f := range schema.ComputedFields() {
		prog, err := expr.Compile(f.Expression)
		if err != nil {
			return nil, fmt.Errorf("compile %s.%s: %w", schema.Name, f.Key, err)
		}
		c.fields = append(c.fields, computedField{key: f.Key, prog: prog})
	}
	return c, nil
}

// Apply recomputes the auto fields of r in schema order, so a computed
// field may refer to one defined before it. Evaluation failures leave the
// field empty.
func (c *Computer) Apply(r *Row) {
	if len(c.fields) == 0 {
		return
	}
	env := c.env(r)
	for _, cf := range c.fields {
		out, err := expr.Run(cf.prog, env)
		if err != nil {
			c.logger.Debugw("computed field failed", "field", cf.key, "row", r.ID, "error", err)
			out = nil
		}
		r.Values[cf.key] = out
		env[cf.key] = out
	}
}

// env exposes each field under its key, numbers coerced for numeric fields,
// and the raw values under "record".
func (c *Computer) env(r *Row) map[string]any {
	env := make(map[string]any, len(c.schema.Fields)+1)
	for _, f := range c.schema.Fields {
		v := r.Values[f.Key]
		if f.IsNumeric() {
			if n, ok := ParseNumber(v); ok {
				v = n
			}
		}
		env[f.Key] = v
	}
	record := make(map[string]any, len(r.Values))
	for k, v := range r.Values {
		record[k] = v
	}
	env["record"] = record
	return env
}
