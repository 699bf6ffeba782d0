package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"recordgrid/internal/config"
	"recordgrid/internal/logging"
)

var (
	logLevel string
	noColor  bool
)

var rootCmd = &cobra.Command{
	Use:   "gridctl",
	Short: "Render tabular views from JSON files",
	Long: `gridctl runs the grid engine offline. It reads a schema, a row set and
optionally a saved view from JSON files, applies filter, sort, grouping and
column aggregates, and prints the grouped report.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured output")
}

func newLogger() (*zap.SugaredLogger, error) {
	return logging.New(config.LogConfig{Level: logLevel, Development: true})
}
