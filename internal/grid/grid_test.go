package grid

import (
	"fmt"

	"golang.org/x/text/language"

	"recordgrid/internal/metadata"
)

func testSchema() *metadata.Schema {
	return &metadata.Schema{
		Name: "articles",
		Fields: []metadata.Field{
			{Key: "code", Type: metadata.TypeText, Required: true},
			{Key: "status", Type: metadata.TypeCategorical, Options: []string{"Active", "Inactive"}},
			{Key: "amount", Type: metadata.TypeNumeric, Currency: true},
			{Key: "qty", Type: metadata.TypeNumeric},
			{Key: "total", Type: metadata.TypeComputed, Auto: true, Expression: "amount * qty"},
			{Key: "due", Type: metadata.TypeDate},
			{Key: "note", Type: metadata.TypeText},
		},
	}
}

func row(id string, kv ...any) *Row {
	r := &Row{ID: id, Values: map[string]any{}}
	for i := 0; i+1 < len(kv); i += 2 {
		r.Values[kv[i].(string)] = kv[i+1]
	}
	return r
}

func ids(rows []*Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

// isSubsequence reports whether sub appears in seq in the same relative order.
func isSubsequence(sub, seq []string) bool {
	i := 0
	for _, s := range seq {
		if i < len(sub) && sub[i] == s {
			i++
		}
	}
	return i == len(sub)
}

func newTestEngine() *Engine {
	return NewEngine(testSchema(), language.English)
}

func statusRows(statuses ...string) []*Row {
	rows := make([]*Row, len(statuses))
	for i, s := range statuses {
		rows[i] = row(fmt.Sprintf("r%d", i+1), "code", fmt.Sprintf("C%d", i+1), "status", s)
	}
	return rows
}
