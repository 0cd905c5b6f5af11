// File: cmd/correct.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remend/api/schemas"
	"github.com/xkilldash9x/remend/internal/analysis"
	"github.com/xkilldash9x/remend/internal/config"
	"github.com/xkilldash9x/remend/internal/generator"
	"github.com/xkilldash9x/remend/internal/llmclient"
	"github.com/xkilldash9x/remend/internal/observability"
	"github.com/xkilldash9x/remend/internal/orchestrator"
	"github.com/xkilldash9x/remend/internal/pattern"
	"github.com/xkilldash9x/remend/internal/selector"
)

var (
	patternsFile string
	outputFile   string
	jsonOutput   bool
)

// newCorrectCmd creates and returns the correct command.
func newCorrectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correct <file>",
		Short: "Validate a Python source file and iteratively repair its defects.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appConfig
			if cfg == nil {
				return errors.New("configuration was not initialized")
			}
			logger := observability.GetLogger()
			return runCorrect(cmd.Context(), cfg, logger, args[0], patternsFile, outputFile, jsonOutput, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&patternsFile, "patterns", "", "Path to a pattern snapshot; loaded before the run and saved after.")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the corrected source to this file instead of stdout.")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the full correction result as JSON.")

	return cmd
}

// runCorrect contains the testable business logic for the command.
func runCorrect(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	sourcePath string,
	patternsPath string,
	outputPath string,
	asJSON bool,
	out io.Writer,
) error {
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to read source file: %w", err)
	}

	store, err := buildPatternStore(cfg, logger, patternsPath)
	if err != nil {
		return err
	}

	var llm schemas.LLMClient
	if cfg.Generator.UseLLM {
		llm, err = llmclient.NewFromConfig(cfg.LLM, logger)
		if err != nil {
			logger.Warn("LLM client unavailable; falling back to rule-based alternatives", zap.Error(err))
		}
	}

	validator := analysis.NewPythonValidator(logger)
	applier := analysis.NewLineApplier(logger)
	mapper := analysis.NewHeuristicMapper(logger)

	gen := generator.New(cfg.Generator, mapper, applier, validator, llm, logger)
	sel := selector.New(cfg.Selector, store, logger)
	orch := orchestrator.New(cfg.Correction, validator, applier, gen, sel, store, logger)

	result := orch.Correct(ctx, string(source))

	logger.Info("Correction run finished",
		zap.String("run_id", result.Metrics.RunID),
		zap.String("state", string(result.Metrics.TerminalState)),
		zap.Int("iterations", result.Metrics.Iterations),
		zap.Int("resolved", result.Metrics.DefectsResolved),
		zap.Int("remaining", len(result.RemainingDefects)),
	)

	if patternsPath != "" {
		if err := savePatternSnapshot(store, patternsPath); err != nil {
			logger.Warn("Failed to save pattern snapshot", zap.Error(err))
		}
	}

	if err := writeResult(result, outputPath, asJSON, out); err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("correction incomplete: %d defects remain after %d iterations",
			len(result.RemainingDefects), result.Metrics.Iterations)
	}
	return nil
}

// buildPatternStore assembles the learning store, seeded from a snapshot
// when one exists at patternsPath.
func buildPatternStore(cfg *config.Config, logger *zap.Logger, patternsPath string) (*pattern.Store, error) {
	store := pattern.NewStore(cfg.Pattern, pattern.NewMatcher(cfg.Matcher), pattern.NewExtractor(), logger)

	if patternsPath == "" {
		return store, nil
	}
	data, err := os.ReadFile(patternsPath)
	if err != nil {
		if os.IsNotExist(err) {
			// First run against this snapshot path; it will be created on save.
			return store, nil
		}
		return nil, fmt.Errorf("failed to read pattern snapshot: %w", err)
	}
	if err := store.ImportSnapshot(data); err != nil {
		return nil, fmt.Errorf("failed to import pattern snapshot: %w", err)
	}
	return store, nil
}

func savePatternSnapshot(store *pattern.Store, path string) error {
	data, err := store.ExportSnapshot()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// writeResult renders the run outcome. JSON mode always goes to out; plain
// mode writes the corrected source either to outputPath or to out.
func writeResult(result *schemas.CorrectionResult, outputPath string, asJSON bool, out io.Writer) error {
	if asJSON {
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		return nil
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, []byte(result.FinalCode), 0o644); err != nil {
			return fmt.Errorf("failed to write corrected source: %w", err)
		}
		return nil
	}

	_, err := io.WriteString(out, result.FinalCode)
	return err
}

func init() {
	rootCmd.AddCommand(newCorrectCmd())
}
