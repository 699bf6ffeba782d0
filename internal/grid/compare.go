package grid

import (
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"recordgrid/internal/metadata"
)

// Comparison selects how two cell values are ordered.
type Comparison string

const (
	CompareAuto    Comparison = "auto"
	CompareAlpha   Comparison = "alpha"
	CompareNumeric Comparison = "numeric"
	CompareDate    Comparison = "date"
	CompareLength  Comparison = "length"
)

// EffectiveComparison resolves the comparison a rule actually uses. An
// explicit choice wins; "auto" (or empty) is inferred from field metadata.
func EffectiveComparison(field *metadata.Field, explicit Comparison) Comparison {
	switch explicit {
	case CompareAlpha, CompareNumeric, CompareDate, CompareLength:
		return explicit
	}
	if field == nil {
		return CompareAlpha
	}
	switch {
	case field.IsNumeric():
		return CompareNumeric
	case field.Type == metadata.TypeDate:
		return CompareDate
	default:
		return CompareAlpha
	}
}

// Comparer holds the locale collator used for alphabetical ordering.
// A Comparer is not safe for concurrent use.
type Comparer struct {
	collator *collate.Collator
}

// NewComparer builds a case-insensitive comparer for the given locale.
func NewComparer(tag language.Tag) *Comparer {
	return &Comparer{collator: collate.New(tag, collate.IgnoreCase)}
}

// Compare orders a and b with the given comparison strategy.
func (c *Comparer) Compare(kind Comparison, a, b any) int {
	return c.strategy(kind)(a, b)
}

func (c *Comparer) strategy(kind Comparison) func(a, b any) int {
	switch kind {
	case CompareNumeric:
		return compareNumeric
	case CompareDate:
		return compareDate
	case CompareLength:
		return compareLength
	default:
		return c.compareAlpha
	}
}

// Alpha compares two strings with the locale collator.
func (c *Comparer) Alpha(a, b string) int {
	return c.collator.CompareString(a, b)
}

func (c *Comparer) compareAlpha(a, b any) int {
	return c.collator.CompareString(Stringify(a), Stringify(b))
}

func compareNumeric(a, b any) int {
	return sign(toNumberOrZero(a) - toNumberOrZero(b))
}

// compareDate treats a pair with any unparseable side as equal.
func compareDate(a, b any) int {
	ta, okA := ParseDate(a)
	tb, okB := ParseDate(b)
	if !okA || !okB {
		return 0
	}
	return ta.Compare(tb)
}

func compareLength(a, b any) int {
	return utf8.RuneCountInString(Stringify(a)) - utf8.RuneCountInString(Stringify(b))
}

func sign(f float64) int {
	switch {
	case f < 0:
		return -1
	case f > 0:
		return 1
	}
	return 0
}
