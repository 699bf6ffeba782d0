package grid

import (
	"golang.org/x/text/language"

	"recordgrid/internal/metadata"
)

// Grid is the computed state of a view over a row set.
type Grid struct {
	Columns    []string          `json:"columns"`
	Rows       []*Row            `json:"rows"`
	Groups     []*Group          `json:"groups"`
	Aggregates map[string]Result `json:"aggregates"`
	Total      int               `json:"total"`
}

// Engine runs filter, sort, group and aggregate over a row set for one
// schema. Every Compute is a pure function of its arguments. An Engine is not
// safe for concurrent use.
type Engine struct {
	schema *metadata.Schema
	sorter *Sorter
}

func NewEngine(schema *metadata.Schema, tag language.Tag) *Engine {
	return &Engine{schema: schema, sorter: NewSorter(schema, NewComparer(tag))}
}

// Schema returns the schema the engine was built for.
func (e *Engine) Schema() *metadata.Schema {
	return e.schema
}

// Compute applies cfg to rows. Rows in the result are in group order, which
// equals the sorted order when nothing is grouped. Aggregates are taken over
// those visible rows.
func (e *Engine) Compute(rows []*Row, cfg Config, aggs map[string]AggFunc) *Grid {
	cfg = cfg.Normalized()

	filtered := Filter(rows, Rules(e.schema, cfg))
	sorted := e.sorter.Sort(filtered, rows, cfg)

	groupBy, subGroupBy := cfg.GroupBy, cfg.SubGroupBy
	if !e.schema.HasField(groupBy) {
		groupBy, subGroupBy = "", ""
	}
	if !e.schema.HasField(subGroupBy) {
		subGroupBy = ""
	}
	groups := GroupRows(sorted, groupBy, subGroupBy)
	visible := Flatten(groups)

	return &Grid{
		Columns:    cfg.VisibleColumns(e.schema),
		Rows:       visible,
		Groups:     groups,
		Aggregates: AggregateAll(visible, aggs),
		Total:      len(rows),
	}
}
