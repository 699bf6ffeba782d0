package grid

import (
	"math"
	"sort"
	"strings"
)

// AggFunc identifies a column summary function.
type AggFunc string

const (
	AggCountAll      AggFunc = "count_all"
	AggCountNonEmpty AggFunc = "count_non_empty"
	AggCountEmpty    AggFunc = "count_empty"
	AggCountUnique   AggFunc = "count_unique"
	AggSum           AggFunc = "sum"
	AggAverage       AggFunc = "average"
	AggMin           AggFunc = "min"
	AggMax           AggFunc = "max"
	AggRange         AggFunc = "range"
	AggMedian        AggFunc = "median"
	AggPercentFilled AggFunc = "percent_filled"
	AggPercentEmpty  AggFunc = "percent_empty"
	AggNone          AggFunc = "none"
)

// AggFuncs lists the thirteen summary functions.
func AggFuncs() []AggFunc {
	return []AggFunc{
		AggCountAll, AggCountNonEmpty, AggCountEmpty, AggCountUnique,
		AggSum, AggAverage, AggMin, AggMax, AggRange, AggMedian,
		AggPercentFilled, AggPercentEmpty, AggNone,
	}
}

// Valid reports whether f is a known function id.
func (f AggFunc) Valid() bool {
	for _, known := range AggFuncs() {
		if f == known {
			return true
		}
	}
	return false
}

// ResultKind tells the formatter how to render a Result.
type ResultKind int

const (
	ResultNone ResultKind = iota
	ResultCount
	ResultNumber
	ResultText
	ResultPercent
)

// Result is the value of one aggregate. Kind ResultNone means "no value",
// which is different from zero.
type Result struct {
	Func   AggFunc    `json:"func"`
	Kind   ResultKind `json:"-"`
	Number float64    `json:"number,omitempty"`
	Text   string     `json:"text,omitempty"`
}

// Defined reports whether the aggregate produced a value.
func (r Result) Defined() bool {
	return r.Kind != ResultNone
}

// columnState gathers what every aggregate of one column needs in a single
// pass over the rows.
type columnState struct {
	total    int
	nonEmpty int
	numbers  []float64
	texts    []string
	unique   map[string]struct{}
}

func collect(rows []*Row, column string) *columnState {
	st := &columnState{total: len(rows), unique: make(map[string]struct{})}
	for _, r := range rows {
		v := r.Get(column)
		if IsEmpty(v) {
			continue
		}
		st.nonEmpty++
		s := Stringify(v)
		st.texts = append(st.texts, s)
		st.unique[s] = struct{}{}
		if f, ok := ParseNumber(v); ok {
			st.numbers = append(st.numbers, f)
		}
	}
	return st
}

// Aggregate computes fn over one column of rows. Numeric functions use only
// the values that parse as numbers; when none do, min and max fall back to
// the lexicographic extremes of the raw strings and the rest have no value.
func Aggregate(rows []*Row, column string, fn AggFunc) Result {
	st := collect(rows, column)
	res := Result{Func: fn}

	count := func(n int) Result {
		res.Kind = ResultCount
		res.Number = float64(n)
		return res
	}
	number := func(f float64) Result {
		res.Kind = ResultNumber
		res.Number = f
		return res
	}
	percent := func(part int) Result {
		if st.total == 0 {
			return res
		}
		res.Kind = ResultPercent
		res.Number = float64(part) / float64(st.total) * 100
		return res
	}

	switch fn {
	case AggCountAll:
		return count(st.total)
	case AggCountNonEmpty:
		return count(st.nonEmpty)
	case AggCountEmpty:
		return count(st.total - st.nonEmpty)
	case AggCountUnique:
		return count(len(st.unique))
	case AggPercentFilled:
		return percent(st.nonEmpty)
	case AggPercentEmpty:
		return percent(st.total - st.nonEmpty)
	}

	if len(st.numbers) == 0 {
		switch fn {
		case AggMin, AggMax:
			if len(st.texts) == 0 {
				return res
			}
			res.Kind = ResultText
			res.Text = lexicalExtreme(st.texts, fn == AggMax)
		}
		return res
	}

	switch fn {
	case AggSum:
		return number(sum(st.numbers))
	case AggAverage:
		return number(sum(st.numbers) / float64(len(st.numbers)))
	case AggMin:
		lo, _ := bounds(st.numbers)
		return number(lo)
	case AggMax:
		_, hi := bounds(st.numbers)
		return number(hi)
	case AggRange:
		lo, hi := bounds(st.numbers)
		return number(hi - lo)
	case AggMedian:
		return number(median(st.numbers))
	}
	return res
}

// AggregateAll computes every assigned aggregate over rows. Columns assigned
// "none" are omitted.
func AggregateAll(rows []*Row, assignments map[string]AggFunc) map[string]Result {
	out := make(map[string]Result, len(assignments))
	for col, fn := range assignments {
		if fn == AggNone || !fn.Valid() {
			continue
		}
		out[col] = Aggregate(rows, col, fn)
	}
	return out
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

func bounds(values []float64) (float64, float64) {
	lo, hi := math.MaxFloat64, -math.MaxFloat64
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// median averages the two middle values of an even-sized set.
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func lexicalExtreme(values []string, max bool) string {
	best := values[0]
	for _, v := range values[1:] {
		c := strings.Compare(v, best)
		if (max && c > 0) || (!max && c < 0) {
			best = v
		}
	}
	return best
}
