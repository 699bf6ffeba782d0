package grid

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"recordgrid/internal/metadata"
)

// NoValue is what an aggregate without a value renders as.
const NoValue = "-"

// Formatter renders aggregate results for display.
type Formatter struct {
	printer  *message.Printer
	currency string
}

func NewFormatter(tag language.Tag, currencySymbol string) *Formatter {
	return &Formatter{printer: message.NewPrinter(tag), currency: currencySymbol}
}

// Format renders res for a column. Percentages get one decimal; currency
// columns get the symbol and two decimals; other numbers render as grouped
// integers or with up to two decimals.
func (f *Formatter) Format(res Result, field *metadata.Field) string {
	switch res.Kind {
	case ResultNone:
		return NoValue
	case ResultCount:
		return f.printer.Sprintf("%d", int64(res.Number))
	case ResultPercent:
		return fmt.Sprintf("%.1f%%", res.Number)
	case ResultText:
		return res.Text
	}

	if field != nil && field.Currency {
		return f.Currency(res.Number)
	}
	return f.Number(res.Number)
}

// Number renders a plain numeric value.
func (f *Formatter) Number(v float64) string {
	if v == math.Trunc(v) {
		return f.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(0)))
	}
	return f.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}

// Currency renders a monetary value with the configured symbol.
func (f *Formatter) Currency(v float64) string {
	s := f.printer.Sprint(number.Decimal(math.Abs(v), number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	if v < 0 {
		return "-" + f.currency + s
	}
	return f.currency + s
}

// FormatAll renders a set of aggregates keyed by column.
func (f *Formatter) FormatAll(results map[string]Result, schema *metadata.Schema) map[string]string {
	out := make(map[string]string, len(results))
	for col, res := range results {
		out[col] = f.Format(res, schema.GetField(col))
	}
	return out
}
