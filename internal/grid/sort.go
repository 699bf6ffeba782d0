package grid

import (
	"sort"

	"recordgrid/internal/metadata"
)

// SortMode is the ordering applied by one advanced sort rule.
type SortMode string

const (
	ModeAlphaAsc      SortMode = "alpha_asc"
	ModeAlphaDesc     SortMode = "alpha_desc"
	ModeNilFirst      SortMode = "nil_first"
	ModeNilLast       SortMode = "nil_last"
	ModeMostFrequent  SortMode = "most_frequent"
	ModeLeastFrequent SortMode = "least_frequent"
	ModeNumericAsc    SortMode = "numeric_asc"
	ModeNumericDesc   SortMode = "numeric_desc"
	ModePinFirst      SortMode = "pin_first"
	ModePinLast       SortMode = "pin_last"
)

// SortModes lists every advanced sort mode.
func SortModes() []SortMode {
	return []SortMode{
		ModeAlphaAsc, ModeAlphaDesc,
		ModeNilFirst, ModeNilLast,
		ModeMostFrequent, ModeLeastFrequent,
		ModeNumericAsc, ModeNumericDesc,
		ModePinFirst, ModePinLast,
	}
}

// Sorter orders rows with the simple multi-level layer followed by the
// advanced layer. Both sorts are stable, so the advanced rules dominate and
// the simple order survives among rows they consider equal.
type Sorter struct {
	schema *metadata.Schema
	cmp    *Comparer
}

func NewSorter(schema *metadata.Schema, cmp *Comparer) *Sorter {
	return &Sorter{schema: schema, cmp: cmp}
}

// Sort returns visible in sorted order. all is the full unfiltered row set;
// frequency ranks are counted over it, once per call.
func (s *Sorter) Sort(visible, all []*Row, cfg Config) []*Row {
	out := append([]*Row(nil), visible...)

	if cfg.SimpleSortOn {
		rules := s.simpleRules(cfg.SimpleSorts)
		if len(rules) > 0 {
			sort.SliceStable(out, func(i, j int) bool {
				return s.compareSimple(out[i], out[j], rules) < 0
			})
		}
	}

	if cfg.AdvancedSortOn {
		rules := s.advancedRules(cfg.AdvancedSorts)
		if len(rules) > 0 {
			freq := frequencies(all, rules)
			sort.SliceStable(out, func(i, j int) bool {
				return s.compareAdvanced(out[i], out[j], rules, freq) < 0
			})
		}
	}
	return out
}

type resolvedSimple struct {
	SimpleSort
	kind Comparison
}

func (s *Sorter) simpleRules(sorts []SimpleSort) []resolvedSimple {
	var rules []resolvedSimple
	for _, ss := range sorts {
		field := s.schema.GetField(ss.Column)
		if field == nil {
			continue
		}
		rules = append(rules, resolvedSimple{SimpleSort: ss, kind: EffectiveComparison(field, ss.Comparison)})
	}
	return rules
}

func (s *Sorter) advancedRules(sorts []AdvancedSort) []AdvancedSort {
	var rules []AdvancedSort
	for _, as := range sorts {
		if !s.schema.HasField(as.Field) {
			continue
		}
		rules = append(rules, as)
	}
	return rules
}

// compareSimple walks the rules until one decides. Empty cells go first or
// last per the rule regardless of direction.
func (s *Sorter) compareSimple(a, b *Row, rules []resolvedSimple) int {
	for _, rule := range rules {
		va, vb := a.Get(rule.Column), b.Get(rule.Column)
		ea, eb := IsEmpty(va), IsEmpty(vb)
		switch {
		case ea && eb:
			continue
		case ea:
			if rule.Nulls == NullsFirst {
				return -1
			}
			return 1
		case eb:
			if rule.Nulls == NullsFirst {
				return 1
			}
			return -1
		}
		c := s.cmp.Compare(rule.kind, va, vb)
		if rule.Direction == Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func (s *Sorter) compareAdvanced(a, b *Row, rules []AdvancedSort, freq map[string]map[string]int) int {
	for _, rule := range rules {
		if c := s.compareMode(a, b, rule, freq[rule.Field]); c != 0 {
			return c
		}
	}
	return 0
}

func (s *Sorter) compareMode(a, b *Row, rule AdvancedSort, counts map[string]int) int {
	va, vb := Stringify(a.Get(rule.Field)), Stringify(b.Get(rule.Field))

	switch rule.Mode {
	case ModeAlphaAsc:
		return s.cmp.Alpha(va, vb)
	case ModeAlphaDesc:
		return -s.cmp.Alpha(va, vb)

	case ModeNilFirst, ModeNilLast:
		ea, eb := IsEmpty(va), IsEmpty(vb)
		if ea && eb {
			return 0
		}
		if ea != eb {
			c := 1
			if ea {
				c = -1
			}
			if rule.Mode == ModeNilLast {
				c = -c
			}
			return c
		}
		return s.cmp.Alpha(va, vb)

	case ModeMostFrequent, ModeLeastFrequent:
		fa, fb := counts[va], counts[vb]
		if fa != fb {
			if rule.Mode == ModeMostFrequent {
				return fb - fa
			}
			return fa - fb
		}
		return s.cmp.Alpha(va, vb)

	case ModeNumericAsc:
		return sign(toNumberOrZero(va) - toNumberOrZero(vb))
	case ModeNumericDesc:
		return sign(toNumberOrZero(vb) - toNumberOrZero(va))

	case ModePinFirst, ModePinLast:
		pa, pb := va == rule.Value, vb == rule.Value
		if pa && pb {
			return 0
		}
		if pa != pb {
			c := 1
			if pa {
				c = -1
			}
			if rule.Mode == ModePinLast {
				c = -c
			}
			return c
		}
		return s.cmp.Alpha(va, vb)
	}
	return 0
}

// frequencies counts value occurrences per frequency-ranked field.
func frequencies(all []*Row, rules []AdvancedSort) map[string]map[string]int {
	freq := make(map[string]map[string]int)
	for _, rule := range rules {
		if rule.Mode != ModeMostFrequent && rule.Mode != ModeLeastFrequent {
			continue
		}
		if _, done := freq[rule.Field]; done {
			continue
		}
		counts := make(map[string]int)
		for _, r := range all {
			counts[Stringify(r.Get(rule.Field))]++
		}
		freq[rule.Field] = counts
	}
	return freq
}
