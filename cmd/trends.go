// File: cmd/trends.go
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remend/internal/config"
	"github.com/xkilldash9x/remend/internal/observability"
	"github.com/xkilldash9x/remend/internal/pattern"
)

// newTrendsCmd creates and returns the trends command.
func newTrendsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trends <snapshot>",
		Short: "Summarize the learned state of a pattern snapshot.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appConfig
			if cfg == nil {
				return errors.New("configuration was not initialized")
			}
			return runTrends(cfg, observability.GetLogger(), args[0], cmd.OutOrStdout())
		},
	}
	return cmd
}

// runTrends contains the testable business logic for the command.
func runTrends(cfg *config.Config, logger *zap.Logger, snapshotPath string, out io.Writer) error {
	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		return fmt.Errorf("failed to read pattern snapshot: %w", err)
	}

	store := pattern.NewStore(cfg.Pattern, pattern.NewMatcher(cfg.Matcher), pattern.NewExtractor(), logger)
	if err := store.ImportSnapshot(data); err != nil {
		return fmt.Errorf("failed to import pattern snapshot: %w", err)
	}

	report := store.AnalyzeTrends()

	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode trend report: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(newTrendsCmd())
}
