// Package export writes a computed grid as a grouped report: group headers,
// detail rows, per-group summaries and grand totals.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"recordgrid/internal/grid"
	"recordgrid/internal/metadata"
)

// Format selects the encoding of report rows.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatMsgPack
)

// ParseFormat maps "text", "json" and "msgpack" to a Format. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "msgpack":
		return FormatMsgPack, nil
	}
	return 0, fmt.Errorf("unknown export format %q", s)
}

// ContentType is the MIME type of a report in the given format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/x-ndjson"
	case FormatMsgPack:
		return "application/x-msgpack"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Row types.
const (
	TypeHeader  = "HDR"
	TypeDetail  = "DET"
	TypeSummary = "SUM"
	TypeTotal   = "TOT"
)

// Row is one line of the report. Level 0 is the whole grid, 1 the group and
// 2 the sub-group.
type Row struct {
	Type   string   `json:"typ" msgpack:"typ"`
	Level  int      `json:"lvl" msgpack:"lvl"`
	Name   string   `json:"nam" msgpack:"nam"`
	Count  int64    `json:"qty" msgpack:"qty"`
	Values []string `json:"val" msgpack:"val"`
}

// Writer emits report rows for a grid.
type Writer struct {
	logger          *zap.SugaredLogger
	out             io.Writer
	tw              *tabwriter.Writer
	format          Format
	schema          *metadata.Schema
	formatter       *grid.Formatter
	aggs            map[string]grid.AggFunc
	suppressDetails bool
	wantDashes      bool
}

// Option tweaks a Writer.
type Option func(*Writer)

// SuppressDetails drops detail rows and group column headers, leaving only
// summaries and totals.
func SuppressDetails() Option {
	return func(w *Writer) { w.suppressDetails = true }
}

func NewWriter(logger *zap.SugaredLogger, out io.Writer, format Format, schema *metadata.Schema,
	formatter *grid.Formatter, aggs map[string]grid.AggFunc, opts ...Option) *Writer {
	w := &Writer{
		logger:    logger,
		out:       out,
		format:    format,
		schema:    schema,
		formatter: formatter,
		aggs:      aggs,
	}
	if format == FormatText {
		// minwidth, tabwidth, padding, padchar
		w.tw = tabwriter.NewWriter(out, 12, 8, 2, ' ', tabwriter.AlignRight)
		w.out = w.tw
		w.wantDashes = true
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write emits the whole report for g.
func (w *Writer) Write(g *grid.Grid) error {
	if !grouped(g) {
		if err := w.columnHeaders(0, g.Columns); err != nil {
			return err
		}
		if err := w.details(0, g.Rows, g.Columns); err != nil {
			return err
		}
	} else {
		for _, grp := range g.Groups {
			if err := w.group(1, grp, g.Columns); err != nil {
				return err
			}
		}
	}
	if err := w.summary(TypeTotal, 0, "Grand Totals", g.Rows, g.Columns); err != nil {
		return err
	}
	w.logger.Debugw("report written", "rows", len(g.Rows), "groups", len(g.Groups))
	return w.flush()
}

func (w *Writer) group(level int, grp *grid.Group, columns []string) error {
	if !w.suppressDetails {
		if err := w.emit(Row{Type: TypeHeader, Level: level, Name: grp.Key, Values: []string{}}); err != nil {
			return err
		}
	}
	if len(grp.SubGroups) > 0 {
		for _, sub := range grp.SubGroups {
			if err := w.group(level+1, sub, columns); err != nil {
				return err
			}
		}
	} else {
		if err := w.columnHeaders(level, columns); err != nil {
			return err
		}
		if err := w.details(level, grp.Rows, columns); err != nil {
			return err
		}
	}
	return w.summary(TypeSummary, level, grp.Key, grp.Rows, columns)
}

func (w *Writer) columnHeaders(level int, columns []string) error {
	if w.suppressDetails {
		return nil
	}
	titles := make([]string, len(columns))
	for i, col := range columns {
		titles[i] = col
		if f := w.schema.GetField(col); f != nil {
			titles[i] = f.DisplayLabel()
		}
	}
	if err := w.emit(Row{Type: TypeHeader, Level: level, Values: titles}); err != nil {
		return err
	}
	if w.wantDashes {
		return w.emit(Row{Type: TypeHeader, Level: level, Values: allToChar(titles, '-')})
	}
	return nil
}

func (w *Writer) details(level int, rows []*grid.Row, columns []string) error {
	if w.suppressDetails {
		return nil
	}
	for _, r := range rows {
		values := make([]string, len(columns))
		for i, col := range columns {
			values[i] = w.cell(r.Get(col), w.schema.GetField(col))
		}
		if err := w.emit(Row{Type: TypeDetail, Level: level, Values: values}); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) summary(typ string, level int, name string, rows []*grid.Row, columns []string) error {
	results := grid.AggregateAll(rows, w.aggs)
	sums := make([]string, len(columns))
	for i, col := range columns {
		if res, ok := results[col]; ok {
			sums[i] = w.formatter.Format(res, w.schema.GetField(col))
		}
	}
	if w.wantDashes {
		if err := w.emit(Row{Type: typ, Level: level, Values: allToChar(sums, '-')}); err != nil {
			return err
		}
	}
	if err := w.emit(Row{Type: typ, Level: level, Name: name, Count: int64(len(rows)), Values: sums}); err != nil {
		return err
	}
	if w.wantDashes {
		if err := w.emit(Row{Type: typ, Level: level, Values: allToChar(sums, '=')}); err != nil {
			return err
		}
	}
	return nil
}

// cell renders a detail value; currency columns share the aggregate format.
func (w *Writer) cell(v any, field *metadata.Field) string {
	if field != nil && field.Currency && !grid.IsEmpty(v) {
		if n, ok := grid.ParseNumber(v); ok {
			return w.formatter.Currency(n)
		}
	}
	return grid.Stringify(v)
}

func (w *Writer) emit(r Row) error {
	switch w.format {
	case FormatText:
		name := r.Name
		if r.Count > 0 {
			name = fmt.Sprintf("%s [%d]", r.Name, r.Count)
		}
		_, err := fmt.Fprintf(w.out, "%s-%d\t%s\t%s\t\n", r.Type, r.Level, name, strings.Join(r.Values, "\t"))
		return err
	case FormatJSON:
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w.out, "%s\n", data)
		return err
	case FormatMsgPack:
		data, err := msgpack.Marshal(r)
		if err != nil {
			return err
		}
		_, err = w.out.Write(data)
		return err
	}
	return fmt.Errorf("unknown export format %d", w.format)
}

func (w *Writer) flush() error {
	if w.tw != nil {
		return w.tw.Flush()
	}
	return nil
}

// grouped reports whether g was partitioned by a column. An ungrouped grid
// carries a single bucket without a column.
func grouped(g *grid.Grid) bool {
	return len(g.Groups) > 0 && g.Groups[0].Column != ""
}

// allToChar returns one run of ch per value, as wide as the value.
func allToChar(values []string, ch rune) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.Repeat(string(ch), len([]rune(v)))
	}
	return out
}
