package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"assetid-workers/internal/assetid/abbreviation"
	"assetid-workers/internal/assetid/codetable"
	"assetid-workers/internal/assetid/engine"
	"assetid-workers/internal/assetid/mapping"
	"assetid-workers/internal/common/config"
	"assetid-workers/internal/common/database"
	"assetid-workers/internal/common/errors"
	"assetid-workers/internal/common/genai"
	"assetid-workers/internal/common/logger"
	"assetid-workers/internal/models"
	"assetid-workers/internal/spreadsheet"
	"assetid-workers/pkg/registry"
)

var (
	genInput      string
	genSheet      string
	genOutput     string
	genMap        []string
	genLevels     []string
	genPolicy     string
	genSeed       string
	genTableOut   string
	genVocabulary string
	genAI         bool
)

// generateCmd is the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "generate asset IDs for a spreadsheet",
	Long: `Read a workbook, assign location, space, subspace and equipment IDs to every
row and write a workbook with the ID columns appended, a Report sheet and
the resulting Code Table.

When no --map is given the mapping is inferred from the header row. A code
table saved with --table-out can be passed back as --seed so later runs reuse
the same codes.`,
	Example: `  # Inferred mapping, default levels
  $ assetid generate -i register.xlsx -o register-ids.xlsx

  # Explicit mapping and strict policy
  $ assetid generate -i register.xlsx -o out.xlsx \
      --map building=Facility --map floor=Level --map room=Room \
      --levels location,space --policy strict

  # Reuse codes from a previous run
  $ assetid generate -i batch2.xlsx -o out.xlsx --seed table.json --table-out table.json`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genInput, "input", "i", "", "input workbook (.xlsx)")
	generateCmd.Flags().StringVar(&genSheet, "sheet", "", "sheet to read (default: first sheet)")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "output workbook (.xlsx)")
	generateCmd.Flags().StringArrayVar(&genMap, "map", nil, "field=Column mapping, repeatable")
	generateCmd.Flags().StringSliceVar(&genLevels, "levels", nil, "levels to output: location,space,subspace,equipment")
	generateCmd.Flags().StringVar(&genPolicy, "policy", "", "strict or lenient")
	generateCmd.Flags().StringVar(&genSeed, "seed", "", "code table JSON from an earlier run")
	generateCmd.Flags().StringVar(&genTableOut, "table-out", "", "write the resulting code table JSON here")
	generateCmd.Flags().StringVar(&genVocabulary, "vocabulary", "", "vocabulary file (.json or .yaml) merged over the built-in terms")
	generateCmd.Flags().BoolVar(&genAI, "ai", false, "ask the configured model for unknown equipment codes")

	_ = generateCmd.MarkFlagRequired("input")
	_ = generateCmd.MarkFlagRequired("output")

	generateCmd.SilenceUsage = true
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := newLogger(cfg)

	ds, err := spreadsheet.ReadFile(genInput, genSheet)
	if err != nil {
		return err
	}

	fieldMapping, err := resolveMapping(cmd.OutOrStdout(), ds.Headers)
	if err != nil {
		return err
	}

	var levels []models.Level
	if len(genLevels) > 0 {
		if levels, err = models.ParseLevels(genLevels); err != nil {
			return err
		}
	}

	seed, err := readSnapshot(genSeed)
	if err != nil {
		return err
	}

	eng, err := buildEngine(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := eng.Generate(ctx, engine.Request{
		Dataset: ds,
		Mapping: fieldMapping,
		Levels:  levels,
		Policy:  models.Policy(genPolicy),
		Seed:    seed,
	})
	if result == nil {
		return runErr
	}

	// A cancelled run still writes what was processed.
	report := engine.Report(result)
	if err := spreadsheet.WriteFile(genOutput, spreadsheet.Output{
		Dataset: engine.Annotate(ds, result),
		Report:  report,
		Table:   result.Table,
	}); err != nil {
		return err
	}
	if runErr == nil && genTableOut != "" {
		if err := writeSnapshot(genTableOut, result.Table); err != nil {
			return err
		}
	}

	printSummary(cmd.OutOrStdout(), result, report)
	return runErr
}

func resolveMapping(out io.Writer, headers []string) (models.FieldMapping, error) {
	if len(genMap) > 0 {
		return mapping.ParseMapping(genMap)
	}
	inferred := mapping.Infer(headers)
	fmt.Fprintln(out, "Inferred mapping:")
	for _, line := range mapping.Describe(inferred) {
		fmt.Fprintf(out, "  %s\n", line)
	}
	return inferred, nil
}

func buildEngine(cfg *config.Config, log logger.Logger) (*engine.Engine, error) {
	engineCfg, err := engine.ConfigFromSettings(cfg.Generation)
	if err != nil {
		return nil, fmt.Errorf("invalid generation settings: %w", err)
	}

	deps := engine.Dependencies{Logger: log}

	vocabPath := genVocabulary
	if vocabPath == "" {
		vocabPath = cfg.Generation.VocabularyPath
	}
	if vocabPath != "" {
		file, err := registry.LoadVocabulary(vocabPath)
		if err != nil {
			return nil, err
		}
		deps.Equipment = file.EquipmentVocabulary()
		deps.Locations = file.LocationVocabulary()
	}

	if genAI {
		ai, err := newAbbreviator(cfg, engineCfg.Rules.MaxLengths[models.LevelEquipment], log)
		if err != nil {
			return nil, err
		}
		deps.Abbreviator = ai
	}

	return engine.New(deps, engineCfg)
}

// newAbbreviator returns the model client, wrapped in the Redis cache when one is configured.
func newAbbreviator(cfg *config.Config, maxLength int, log logger.Logger) (abbreviation.Abbreviator, error) {
	client, err := genai.NewClient(cfg.APIs.GenAI, maxLength, log)
	if err != nil {
		return nil, fmt.Errorf("--ai needs apis.genai.api_key or OPENAI_API_KEY: %w", err)
	}
	if cfg.Database.Redis.Address == "" {
		return client, nil
	}

	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx); err != nil {
		log.Warn("Redis unavailable, abbreviations will not be cached", map[string]interface{}{"error": err.Error()})
		_ = rdb.Close()
		return client, nil
	}
	ttl := time.Duration(cfg.Database.Redis.AbbreviationTTL) * time.Second
	return database.NewAbbreviationCache(rdb.Client, client, ttl, log), nil
}

func readSnapshot(path string) (*codetable.CodeTable, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewCodeTableLoadFailedError(path, err)
	}
	var snap codetable.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.NewCodeTableLoadFailedError(path, err)
	}
	table, err := codetable.FromSnapshot(snap)
	if err != nil {
		return nil, errors.NewCodeTableLoadFailedError(path, err)
	}
	return table, nil
}

func writeSnapshot(path string, table *codetable.CodeTable) error {
	data, err := json.MarshalIndent(table.Snapshot(), "", "  ")
	if err != nil {
		return errors.NewCodeTableSaveFailedError(path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewCodeTableSaveFailedError(path, err)
	}
	return nil
}

func printSummary(out io.Writer, result *engine.Result, report []string) {
	s := result.Summary
	fmt.Fprintf(out, "Run %s: %d rows, %d succeeded, %d failed", result.RunID, s.Total, s.Succeeded, s.Failed)
	if s.Cancelled > 0 {
		fmt.Fprintf(out, ", %d cancelled", s.Cancelled)
	}
	fmt.Fprintf(out, ", %d warnings, %d AI calls (%s)\n", s.Warnings, s.AICalls, s.Duration.Round(time.Millisecond))
	for _, line := range report {
		fmt.Fprintf(out, "  %s\n", line)
	}
}
