package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"recordgrid/internal/grid"
	"recordgrid/internal/metadata"
)

var operatorsCmd = &cobra.Command{
	Use:   "operators",
	Short: "List the advanced filter operators of a field type",
	Long: `List the advanced filter operators offered for a field type.

Categorical fields take is/is_not, numeric fields take the comparison
operators, and every other type falls back to the text operators.`,
	Example: "  gridctl operators --type numeric",
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		color.NoColor = color.NoColor || noColor
		return listOperators(cmd.OutOrStdout(), metadata.FieldType(typ))
	},
}

func init() {
	operatorsCmd.Flags().String("type", string(metadata.TypeText), "field type (categorical, numeric, text, date, computed)")
	rootCmd.AddCommand(operatorsCmd)
}

func listOperators(out io.Writer, typ metadata.FieldType) error {
	if !typ.Valid() {
		return fmt.Errorf("unknown field type %q", typ)
	}
	kind := grid.FilterKindOf(&metadata.Field{Type: typ})
	fmt.Fprintf(out, "%s %s\n", color.CyanString("%s", typ), color.New(color.Faint).Sprintf("(%s)", kind))
	for _, op := range grid.OperatorsFor(kind) {
		fmt.Fprintf(out, "  • %s\n", color.GreenString("%s", op))
	}
	return nil
}
