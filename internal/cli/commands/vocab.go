package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"assetid-workers/internal/assetid/abbreviation"
	"assetid-workers/internal/assetid/mapping"
	"assetid-workers/internal/models"
	"assetid-workers/internal/spreadsheet"
	"assetid-workers/pkg/registry"
)

var (
	vocabPath  string
	vocabKind  string
	vocabText  string
	vocabCode  string
	checkInput string
	checkSheet string
	checkMap   []string
)

var vocabCmd = &cobra.Command{
	Use:   "vocab",
	Short: "maintain the abbreviation vocabulary file",
}

var vocabValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "check a vocabulary file",
	Long: `Load a vocabulary file and report empty codes or terms that collide once
normalized. With --input, also list equipment names and systems in a
workbook that the vocabulary does not know.`,
	Example: `  $ assetid vocab validate --path vocab.yaml
  $ assetid vocab validate --path vocab.yaml --input register.xlsx`,
	RunE: runVocabValidate,
}

var vocabAddCmd = &cobra.Command{
	Use:   "add",
	Short: "add or replace a vocabulary term",
	Example: `  $ assetid vocab add --path vocab.yaml --kind equipment --text "Kitchen Hood" --code KH
  $ assetid vocab add --path vocab.json --kind location --text "Plant Room" --code PR`,
	RunE: runVocabAdd,
}

func init() {
	vocabCmd.PersistentFlags().StringVar(&vocabPath, "path", "", "vocabulary file (.json, .yaml or .yml)")
	_ = vocabCmd.MarkPersistentFlagRequired("path")

	vocabValidateCmd.Flags().StringVarP(&checkInput, "input", "i", "", "workbook whose equipment values are checked")
	vocabValidateCmd.Flags().StringVar(&checkSheet, "sheet", "", "sheet to read (default: first sheet)")
	vocabValidateCmd.Flags().StringArrayVar(&checkMap, "map", nil, "field=Column mapping, repeatable")
	vocabValidateCmd.SilenceUsage = true

	vocabAddCmd.Flags().StringVar(&vocabKind, "kind", string(registry.KindEquipment), "equipment or location")
	vocabAddCmd.Flags().StringVar(&vocabText, "text", "", "term as it appears in spreadsheets")
	vocabAddCmd.Flags().StringVar(&vocabCode, "code", "", "abbreviation")
	_ = vocabAddCmd.MarkFlagRequired("text")
	_ = vocabAddCmd.MarkFlagRequired("code")
	vocabAddCmd.SilenceUsage = true

	vocabCmd.AddCommand(vocabValidateCmd)
	vocabCmd.AddCommand(vocabAddCmd)
}

func runVocabValidate(cmd *cobra.Command, args []string) error {
	file, err := registry.LoadVocabulary(vocabPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d equipment terms, %d location terms\n", vocabPath, len(file.Equipment), len(file.Locations))

	if checkInput == "" {
		return nil
	}

	ds, err := spreadsheet.ReadFile(checkInput, checkSheet)
	if err != nil {
		return err
	}
	declared := mapping.Infer(ds.Headers)
	if len(checkMap) > 0 {
		if declared, err = mapping.ParseMapping(checkMap); err != nil {
			return err
		}
	}
	resolved, _, err := mapping.New(mapping.Options{}).Resolve(ds.Headers, declared)
	if err != nil {
		return err
	}

	records := make([]models.AssetRecord, len(ds.Rows))
	for i, cells := range ds.Rows {
		records[i] = resolved.Record(i, cells)
	}
	vocab := abbreviation.DefaultEquipment().Merge(file.EquipmentVocabulary())
	report := abbreviation.Validate(vocab, records)
	if report.Valid() {
		fmt.Fprintln(out, "All equipment values are standard.")
		return nil
	}
	for _, line := range report.Lines() {
		fmt.Fprintln(out, line)
	}
	return nil
}

func runVocabAdd(cmd *cobra.Command, args []string) error {
	file := &registry.VocabularyFile{}
	if _, err := os.Stat(vocabPath); err == nil {
		if file, err = registry.LoadVocabulary(vocabPath); err != nil {
			return err
		}
	}

	if err := file.Add(registry.Kind(vocabKind), vocabText, vocabCode); err != nil {
		return err
	}
	if err := registry.SaveVocabulary(vocabPath, file); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s %q to %s\n", vocabKind, vocabText, vocabPath)
	return nil
}
