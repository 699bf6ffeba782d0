package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"recordgrid/internal/export"
	"recordgrid/internal/grid"
	"recordgrid/internal/metadata"
	"recordgrid/internal/workspace"
)

type renderOptions struct {
	schemaPath string
	rowsPath   string
	viewPath   string
	aggs       []string
	format     string
	locale     string
	currency   string
	summary    bool
}

var renderOpts renderOptions

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Compute a grid and print the grouped report",
	Long: `Compute a grid from a schema file and a rows file and print the report.

The rows file holds a JSON array. Each element is either {"id":..., "values":{...}}
or a plain object of field values. A view file holds a saved view
({"name":..., "config":{...}}); settings it omits keep their Default values.`,
	Example: `  gridctl render --schema article.json --rows articles.json
  gridctl render --schema article.json --rows articles.json --view by-season.json --agg price=sum --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		color.NoColor = color.NoColor || noColor
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck
		return render(cmd.OutOrStdout(), renderOpts, logger)
	},
}

func init() {
	f := renderCmd.Flags()
	f.StringVar(&renderOpts.schemaPath, "schema", "", "schema JSON file (required)")
	f.StringVar(&renderOpts.rowsPath, "rows", "", "rows JSON file (required)")
	f.StringVar(&renderOpts.viewPath, "view", "", "saved view JSON file")
	f.StringArrayVar(&renderOpts.aggs, "agg", nil, "column aggregate as column=function (repeatable)")
	f.StringVar(&renderOpts.format, "format", "text", "output format (text, json, msgpack)")
	f.StringVar(&renderOpts.locale, "locale", "en", "locale for sorting and number formatting")
	f.StringVar(&renderOpts.currency, "currency", "$", "currency symbol")
	f.BoolVar(&renderOpts.summary, "summary", false, "print summaries only")
	_ = renderCmd.MarkFlagRequired("schema")
	_ = renderCmd.MarkFlagRequired("rows")
	rootCmd.AddCommand(renderCmd)
}

func render(out io.Writer, opts renderOptions, logger *zap.SugaredLogger) error {
	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	locale, err := language.Parse(opts.locale)
	if err != nil {
		return fmt.Errorf("locale %q: %w", opts.locale, err)
	}

	schema, err := loadSchema(opts.schemaPath)
	if err != nil {
		return err
	}
	rows, err := loadRows(opts.rowsPath)
	if err != nil {
		return err
	}
	cfg := grid.DefaultConfig(schema)
	if opts.viewPath != "" {
		if cfg, err = loadView(opts.viewPath, cfg); err != nil {
			return err
		}
	}

	session, err := workspace.New(workspace.Options{
		Schema:         schema,
		Rows:           rows,
		Locale:         locale,
		CurrencySymbol: opts.currency,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	for _, a := range opts.aggs {
		column, fn, ok := strings.Cut(a, "=")
		if !ok {
			return fmt.Errorf("--agg %q: expected column=function", a)
		}
		if err := session.SetAggregate(column, grid.AggFunc(fn)); err != nil {
			return err
		}
	}

	g := session.Compute(cfg)
	logger.Debugw("grid computed", "schema", schema.Name, "rows", len(rows), "visible", len(g.Rows))

	var wopts []export.Option
	if opts.summary {
		wopts = append(wopts, export.SuppressDetails())
	}
	if format == export.FormatText {
		title := schema.Label
		if title == "" {
			title = schema.Name
		}
		fmt.Fprintf(out, "%s %s\n\n", color.New(color.FgCyan, color.Bold).Sprint(title),
			color.New(color.Faint).Sprintf("(%d of %d rows)", len(g.Rows), len(rows)))
	}
	w := export.NewWriter(logger, out, format, schema, session.Formatter(), session.Aggregates(), wopts...)
	return w.Write(g)
}

func loadSchema(path string) (*metadata.Schema, error) {
	var s metadata.Schema
	if err := readJSON(path, &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return &s, nil
}

func loadRows(path string) ([]*grid.Row, error) {
	var raw []map[string]json.RawMessage
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}
	rows := make([]*grid.Row, 0, len(raw))
	for i, obj := range raw {
		r := &grid.Row{Values: map[string]any{}}
		if id, ok := obj["id"]; ok {
			if err := json.Unmarshal(id, &r.ID); err != nil {
				return nil, fmt.Errorf("%s: row %d: id: %w", path, i, err)
			}
		}
		if values, ok := obj["values"]; ok {
			if err := json.Unmarshal(values, &r.Values); err != nil {
				return nil, fmt.Errorf("%s: row %d: values: %w", path, i, err)
			}
		} else {
			for k, v := range obj {
				if k == "id" {
					continue
				}
				var val any
				if err := json.Unmarshal(v, &val); err != nil {
					return nil, fmt.Errorf("%s: row %d: %s: %w", path, i, k, err)
				}
				r.Values[k] = val
			}
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// loadView overlays the view's config onto base.
func loadView(path string, base grid.Config) (grid.Config, error) {
	var v struct {
		Name   string          `json:"name"`
		Config json.RawMessage `json:"config"`
	}
	if err := readJSON(path, &v); err != nil {
		return base, err
	}
	if len(v.Config) == 0 {
		return base, fmt.Errorf("view %s: missing config", path)
	}
	cfg := base.Clone()
	if err := json.Unmarshal(v.Config, &cfg); err != nil {
		return base, fmt.Errorf("view %s: %w", path, err)
	}
	return cfg, nil
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
