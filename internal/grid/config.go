package grid

import (
	"github.com/gohugoio/hashstructure"

	"recordgrid/internal/metadata"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type NullPlacement string

const (
	NullsFirst NullPlacement = "first"
	NullsLast  NullPlacement = "last"
)

// SimpleSort is one level of the multi-level column sort.
type SimpleSort struct {
	Column     string        `json:"column"`
	Direction  Direction     `json:"direction,omitempty"`
	Comparison Comparison    `json:"comparison,omitempty"`
	Nulls      NullPlacement `json:"nulls,omitempty"`
}

// AdvancedSort is one rule of the multi-mode sort layer. Value is only read
// by the pin modes.
type AdvancedSort struct {
	ID    string   `json:"id" hash:"ignore"`
	Field string   `json:"field"`
	Mode  SortMode `json:"mode"`
	Value string   `json:"value,omitempty"`
}

// AdvancedFilter is one operator-based condition.
type AdvancedFilter struct {
	ID       string   `json:"id" hash:"ignore"`
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// Config is the column, filter, sort and grouping configuration of a grid.
// It is what a saved view stores and what the working state holds.
type Config struct {
	ColumnOrder     []string          `json:"column_order"`
	Hidden          []string          `json:"hidden"`
	SimpleFilters   map[string]string `json:"simple_filters"`
	AdvancedFilters []AdvancedFilter  `json:"advanced_filters"`
	SimpleSorts     []SimpleSort      `json:"simple_sorts"`
	AdvancedSorts   []AdvancedSort    `json:"advanced_sorts"`
	SimpleSortOn    bool              `json:"simple_sort_on"`
	AdvancedSortOn  bool              `json:"advanced_sort_on"`
	GroupBy         string            `json:"group_by"`
	SubGroupBy      string            `json:"sub_group_by"`
}

// DefaultConfig is the synthetic configuration of the Default view: every
// column in schema order, nothing filtered, sorted or grouped.
func DefaultConfig(schema *metadata.Schema) Config {
	return Config{
		ColumnOrder:     schema.FieldKeys(),
		Hidden:          []string{},
		SimpleFilters:   map[string]string{},
		AdvancedFilters: []AdvancedFilter{},
		SimpleSorts:     []SimpleSort{},
		AdvancedSorts:   []AdvancedSort{},
		SimpleSortOn:    true,
		AdvancedSortOn:  true,
	}
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	out := c
	out.ColumnOrder = append([]string{}, c.ColumnOrder...)
	out.Hidden = append([]string{}, c.Hidden...)
	out.SimpleFilters = make(map[string]string, len(c.SimpleFilters))
	for k, v := range c.SimpleFilters {
		out.SimpleFilters[k] = v
	}
	out.AdvancedFilters = append([]AdvancedFilter{}, c.AdvancedFilters...)
	out.SimpleSorts = append([]SimpleSort{}, c.SimpleSorts...)
	out.AdvancedSorts = append([]AdvancedSort{}, c.AdvancedSorts...)
	return out
}

// Normalized returns a copy with defaults spelled out, so that configurations
// that behave identically compare equal. Empty simple filters are dropped.
func (c Config) Normalized() Config {
	out := c.Clone()
	for k, v := range out.SimpleFilters {
		if v == "" {
			delete(out.SimpleFilters, k)
		}
	}
	for i := range out.SimpleSorts {
		s := &out.SimpleSorts[i]
		if s.Direction == "" {
			s.Direction = Asc
		}
		if s.Comparison == "" {
			s.Comparison = CompareAuto
		}
		if s.Nulls == "" {
			s.Nulls = NullsLast
		}
	}
	if out.SubGroupBy == out.GroupBy {
		out.SubGroupBy = ""
	}
	return out
}

// Fingerprint hashes the normalized configuration. Rule ids are ignored.
func (c Config) Fingerprint() uint64 {
	h, err := hashstructure.Hash(c.Normalized(), nil)
	if err != nil {
		// Config holds only strings, bools, slices and maps; Hash cannot fail.
		panic(err)
	}
	return h
}

// Equal reports structural equality of two configurations.
func (c Config) Equal(o Config) bool {
	return c.Fingerprint() == o.Fingerprint()
}

// VisibleColumns resolves the displayed columns: the configured order, then
// any schema fields the order does not mention, minus hidden and unknown ones.
func (c Config) VisibleColumns(schema *metadata.Schema) []string {
	hidden := make(map[string]bool, len(c.Hidden))
	for _, h := range c.Hidden {
		hidden[h] = true
	}
	seen := make(map[string]bool, len(schema.Fields))
	var cols []string
	add := func(key string) {
		if seen[key] || hidden[key] || !schema.HasField(key) {
			return
		}
		seen[key] = true
		cols = append(cols, key)
	}
	for _, key := range c.ColumnOrder {
		add(key)
	}
	for _, key := range schema.FieldKeys() {
		add(key)
	}
	return cols
}
