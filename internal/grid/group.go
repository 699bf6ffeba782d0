package grid

import "strings"

// BlankKey labels the bucket of rows whose group-by value is empty.
const BlankKey = "(blank)"

// Group is one bucket of the grouping partition. Rows keep the relative
// order they had in the input; SubGroups is set only when sub-grouping.
type Group struct {
	Key       string   `json:"key"`
	Column    string   `json:"column,omitempty"`
	Rows      []*Row   `json:"-"`
	SubGroups []*Group `json:"sub_groups,omitempty"`
}

// Count returns the number of rows in the bucket.
func (g *Group) Count() int {
	return len(g.Rows)
}

// GroupKey is the bucket key of a value.
func GroupKey(v any) string {
	s := Stringify(v)
	if strings.TrimSpace(s) == "" {
		return BlankKey
	}
	return s
}

// GroupRows partitions rows by groupBy and, when set and different,
// subGroupBy. Buckets appear in order of first occurrence. Without groupBy
// the whole set is one bucket.
func GroupRows(rows []*Row, groupBy, subGroupBy string) []*Group {
	if groupBy == "" {
		return []*Group{{Rows: append([]*Row(nil), rows...)}}
	}
	groups := partition(rows, groupBy)
	if subGroupBy != "" && subGroupBy != groupBy {
		for _, g := range groups {
			g.SubGroups = partition(g.Rows, subGroupBy)
		}
	}
	return groups
}

func partition(rows []*Row, column string) []*Group {
	var groups []*Group
	index := make(map[string]*Group)
	for _, r := range rows {
		key := GroupKey(r.Get(column))
		g, ok := index[key]
		if !ok {
			g = &Group{Key: key, Column: column}
			index[key] = g
			groups = append(groups, g)
		}
		g.Rows = append(g.Rows, r)
	}
	return groups
}

// Flatten lists the rows of all buckets, bucket by bucket.
func Flatten(groups []*Group) []*Row {
	var out []*Row
	for _, g := range groups {
		if len(g.SubGroups) > 0 {
			out = append(out, Flatten(g.SubGroups)...)
			continue
		}
		out = append(out, g.Rows...)
	}
	return out
}
