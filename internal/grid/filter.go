package grid

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"recordgrid/internal/metadata"
)

// Operator is an advanced filter operator.
type Operator string

const (
	OpIs          Operator = "is"
	OpIsNot       Operator = "is_not"
	OpEq          Operator = "eq"
	OpNe          Operator = "ne"
	OpGt          Operator = "gt"
	OpLt          Operator = "lt"
	OpGte         Operator = "gte"
	OpLte         Operator = "lte"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "starts_with"
)

// FilterKind is the operator family a field's type maps to.
type FilterKind string

const (
	KindCategorical FilterKind = "categorical"
	KindNumeric     FilterKind = "numeric"
	KindText        FilterKind = "text"
)

var operatorSets = map[FilterKind][]Operator{
	KindCategorical: {OpIs, OpIsNot},
	KindNumeric:     {OpEq, OpNe, OpGt, OpLt, OpGte, OpLte},
	KindText:        {OpContains, OpNotContains, OpStartsWith},
}

// FilterKindOf infers the operator family of a field.
func FilterKindOf(field *metadata.Field) FilterKind {
	switch {
	case field == nil:
		return KindText
	case field.IsCategorical():
		return KindCategorical
	case field.IsNumeric():
		return KindNumeric
	default:
		return KindText
	}
}

// OperatorsFor returns the operators offered for a filter kind.
func OperatorsFor(kind FilterKind) []Operator {
	return append([]Operator(nil), operatorSets[kind]...)
}

// Allows reports whether op belongs to the kind's operator set.
func (k FilterKind) Allows(op Operator) bool {
	for _, o := range operatorSets[k] {
		if o == op {
			return true
		}
	}
	return false
}

// Rule is the one filter shape both mechanisms are evaluated through.
// Legacy rules carry the simple filter's substring semantics; the others
// carry an operator.
type Rule struct {
	Field  string
	Kind   FilterKind
	Op     Operator
	Value  string
	Legacy bool
}

// Rules normalises the simple and advanced filters of a configuration into
// one list. Rules that can never constrain a row are left out: empty values,
// unknown fields, operators outside the field's set.
func Rules(schema *metadata.Schema, cfg Config) []Rule {
	var rules []Rule

	cols := make([]string, 0, len(cfg.SimpleFilters))
	for col := range cfg.SimpleFilters {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		v := cfg.SimpleFilters[col]
		if v == "" || !schema.HasField(col) {
			continue
		}
		rules = append(rules, Rule{Field: col, Kind: KindText, Op: OpContains, Value: v, Legacy: true})
	}

	for _, af := range cfg.AdvancedFilters {
		if strings.TrimSpace(af.Value) == "" {
			continue
		}
		field := schema.GetField(af.Field)
		if field == nil {
			continue
		}
		kind := FilterKindOf(field)
		if !kind.Allows(af.Operator) {
			continue
		}
		rules = append(rules, Rule{Field: af.Field, Kind: kind, Op: af.Operator, Value: af.Value})
	}
	return rules
}

// Filter returns the rows that satisfy every rule, in their original order.
func Filter(rows []*Row, rules []Rule) []*Row {
	if len(rules) == 0 {
		return append([]*Row(nil), rows...)
	}
	m := newMatcher()
	out := make([]*Row, 0, len(rows))
	for _, r := range rows {
		if m.matchAll(r, rules) {
			out = append(out, r)
		}
	}
	return out
}

type matcher struct {
	fold cases.Caser
}

func newMatcher() *matcher {
	return &matcher{fold: cases.Fold()}
}

func (m *matcher) matchAll(r *Row, rules []Rule) bool {
	for _, rule := range rules {
		if !m.match(r, rule) {
			return false
		}
	}
	return true
}

// match evaluates one rule. Numeric rules whose sides do not both parse are
// inert and pass.
func (m *matcher) match(r *Row, rule Rule) bool {
	cell := Stringify(r.Get(rule.Field))

	switch rule.Op {
	case OpContains:
		return strings.Contains(m.fold.String(cell), m.fold.String(rule.Value))
	case OpNotContains:
		return !strings.Contains(m.fold.String(cell), m.fold.String(rule.Value))
	case OpStartsWith:
		return strings.HasPrefix(m.fold.String(cell), m.fold.String(rule.Value))
	case OpIs:
		return m.fold.String(cell) == m.fold.String(rule.Value)
	case OpIsNot:
		return m.fold.String(cell) != m.fold.String(rule.Value)
	}

	a, okA := ParseNumber(r.Get(rule.Field))
	b, okB := ParseNumber(rule.Value)
	if !okA || !okB {
		return true
	}
	switch rule.Op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpGt:
		return a > b
	case OpLt:
		return a < b
	case OpGte:
		return a >= b
	case OpLte:
		return a <= b
	}
	return true
}
