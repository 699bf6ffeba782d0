package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordgrid/internal/metadata"
)

func filterRows() []*Row {
	return []*Row{
		row("1", "code", "A1", "status", "Active", "amount", 10, "note", "Straße"),
		row("2", "code", "A2", "status", "Inactive", "amount", "20"),
		row("3", "code", "A3", "status", "Active", "amount", ""),
		row("4", "code", "b4", "status", "", "amount", "n/a"),
	}
}

func TestFilter_SimpleContainsCaseInsensitive(t *testing.T) {
	cfg := DefaultConfig(testSchema())
	cfg.SimpleFilters["code"] = "a"

	got := Filter(filterRows(), Rules(testSchema(), cfg))
	assert.Equal(t, []string{"1", "2", "3"}, ids(got))
}

func TestFilter_SimpleUsesSubstringNotEquality(t *testing.T) {
	cfg := DefaultConfig(testSchema())
	cfg.SimpleFilters["status"] = "Active"

	got := Filter(filterRows(), Rules(testSchema(), cfg))
	assert.Equal(t, []string{"1", "2", "3"}, ids(got), "Inactive contains active")
}

func TestFilter_CaseFolding(t *testing.T) {
	cfg := DefaultConfig(testSchema())
	cfg.SimpleFilters["note"] = "STRASSE"

	got := Filter(filterRows(), Rules(testSchema(), cfg))
	assert.Equal(t, []string{"1"}, ids(got))
}

func TestFilter_EmptyAndUnknownSimpleFiltersIgnored(t *testing.T) {
	cfg := DefaultConfig(testSchema())
	cfg.SimpleFilters["code"] = ""
	cfg.SimpleFilters["nope"] = "x"

	assert.Empty(t, Rules(testSchema(), cfg))
	assert.Len(t, Filter(filterRows(), Rules(testSchema(), cfg)), 4)
}

func TestFilter_SimpleIsMonotonic(t *testing.T) {
	schema := testSchema()
	rows := filterRows()
	prev := len(rows)
	for _, s := range []string{"", "a", "a1"} {
		cfg := DefaultConfig(schema)
		cfg.SimpleFilters["code"] = s
		got := Filter(rows, Rules(schema, cfg))
		assert.LessOrEqual(t, len(got), prev, "filter %q grew the visible set", s)
		prev = len(got)

		again := Filter(got, Rules(schema, cfg))
		assert.Equal(t, ids(got), ids(again), "filter %q is not idempotent", s)
	}
}

func TestFilter_AdvancedCategorical(t *testing.T) {
	cfg := DefaultConfig(testSchema())
	cfg.AdvancedFilters = []AdvancedFilter{{Field: "status", Operator: OpIs, Value: "active"}}
	assert.Equal(t, []string{"1", "3"}, ids(Filter(filterRows(), Rules(testSchema(), cfg))))

	cfg.AdvancedFilters = []AdvancedFilter{{Field: "status", Operator: OpIsNot, Value: "Active"}}
	assert.Equal(t, []string{"2", "4"}, ids(Filter(filterRows(), Rules(testSchema(), cfg))))
}

func TestFilter_AdvancedNumeric(t *testing.T) {
	cases := []struct {
		op   Operator
		val  string
		want []string
	}{
		{OpEq, "10", []string{"1", "3", "4"}},
		{OpNe, "10", []string{"2", "3", "4"}},
		{OpGt, "10", []string{"2", "3", "4"}},
		{OpLt, "20", []string{"1", "3", "4"}},
		{OpGte, "20", []string{"2", "3", "4"}},
		{OpLte, "10", []string{"1", "3", "4"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.op), func(t *testing.T) {
			cfg := DefaultConfig(testSchema())
			cfg.AdvancedFilters = []AdvancedFilter{{Field: "amount", Operator: tc.op, Value: tc.val}}
			// rows 3 and 4 never parse, so the rule is inert for them
			assert.Equal(t, tc.want, ids(Filter(filterRows(), Rules(testSchema(), cfg))))
		})
	}
}

func TestFilter_AdvancedNumericNonNumericValueIsInert(t *testing.T) {
	cfg := DefaultConfig(testSchema())
	cfg.AdvancedFilters = []AdvancedFilter{{Field: "amount", Operator: OpGt, Value: "lots"}}
	assert.Len(t, Filter(filterRows(), Rules(testSchema(), cfg)), 4)
}

func TestFilter_AdvancedNumericRejectsNaNAndInfinity(t *testing.T) {
	rows := []*Row{
		row("ok", "qty", 5),
		row("nan", "qty", "NaN"),
		row("inf", "qty", "Infinity"),
		row("txt", "qty", "n/a"),
	}
	cases := []struct {
		op   Operator
		want []string
	}{
		{OpEq, []string{"ok", "nan", "inf", "txt"}},
		{OpLt, []string{"nan", "inf", "txt"}},
		{OpGt, []string{"nan", "inf", "txt"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.op), func(t *testing.T) {
			cfg := DefaultConfig(testSchema())
			cfg.AdvancedFilters = []AdvancedFilter{{Field: "qty", Operator: tc.op, Value: "5"}}
			assert.Equal(t, tc.want, ids(Filter(rows, Rules(testSchema(), cfg))))
		})
	}

	cfg := DefaultConfig(testSchema())
	cfg.AdvancedFilters = []AdvancedFilter{{Field: "qty", Operator: OpGt, Value: "-Inf"}}
	assert.Len(t, Filter(rows, Rules(testSchema(), cfg)), 4)
}

func TestFilter_AdvancedEmptyValueIsInert(t *testing.T) {
	cfg := DefaultConfig(testSchema())
	cfg.AdvancedFilters = []AdvancedFilter{
		{Field: "amount", Operator: OpEq, Value: ""},
		{Field: "code", Operator: OpContains, Value: "  "},
		{Field: "status", Operator: OpIs, Value: ""},
	}
	assert.Empty(t, Rules(testSchema(), cfg))
}

func TestFilter_AdvancedOperatorOutsideSetIsInert(t *testing.T) {
	cfg := DefaultConfig(testSchema())
	cfg.AdvancedFilters = []AdvancedFilter{
		{Field: "code", Operator: OpGt, Value: "A"},
		{Field: "missing", Operator: OpContains, Value: "A"},
	}
	assert.Empty(t, Rules(testSchema(), cfg))
}

func TestFilter_AdvancedText(t *testing.T) {
	cfg := DefaultConfig(testSchema())
	cfg.AdvancedFilters = []AdvancedFilter{{Field: "code", Operator: OpStartsWith, Value: "B"}}
	assert.Equal(t, []string{"4"}, ids(Filter(filterRows(), Rules(testSchema(), cfg))))

	cfg.AdvancedFilters = []AdvancedFilter{{Field: "code", Operator: OpNotContains, Value: "a"}}
	assert.Equal(t, []string{"4"}, ids(Filter(filterRows(), Rules(testSchema(), cfg))))
}

func TestFilter_MechanismsComposeWithAnd(t *testing.T) {
	cfg := DefaultConfig(testSchema())
	cfg.SimpleFilters["code"] = "a"
	cfg.AdvancedFilters = []AdvancedFilter{{Field: "status", Operator: OpIs, Value: "Active"}}
	assert.Equal(t, []string{"1", "3"}, ids(Filter(filterRows(), Rules(testSchema(), cfg))))
}

func TestFilter_SimpleEqualsAdvancedContains(t *testing.T) {
	schema := testSchema()
	simple := DefaultConfig(schema)
	simple.SimpleFilters["code"] = "A"
	advanced := DefaultConfig(schema)
	advanced.AdvancedFilters = []AdvancedFilter{{Field: "code", Operator: OpContains, Value: "A"}}

	a := Filter(filterRows(), Rules(schema, simple))
	b := Filter(filterRows(), Rules(schema, advanced))
	assert.Equal(t, ids(a), ids(b))

	rules := Rules(schema, simple)
	require.Len(t, rules, 1)
	assert.True(t, rules[0].Legacy)
	assert.Equal(t, OpContains, rules[0].Op)
}

func TestFilterKindOf(t *testing.T) {
	assert.Equal(t, KindCategorical, FilterKindOf(&metadata.Field{Type: metadata.TypeCategorical}))
	assert.Equal(t, KindText, FilterKindOf(&metadata.Field{Type: metadata.TypeText, Options: []string{"x"}}))
	assert.Equal(t, KindNumeric, FilterKindOf(&metadata.Field{Type: metadata.TypeNumeric, Options: []string{"1", "2"}}))
	assert.Equal(t, KindNumeric, FilterKindOf(&metadata.Field{Type: metadata.TypeComputed}))
	assert.Equal(t, KindText, FilterKindOf(&metadata.Field{Type: metadata.TypeDate}))
	assert.Equal(t, []Operator{OpEq, OpNe, OpGt, OpLt, OpGte, OpLte}, OperatorsFor(KindNumeric))
}
