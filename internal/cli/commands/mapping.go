package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"assetid-workers/internal/assetid/mapping"
	"assetid-workers/internal/models"
	"assetid-workers/internal/spreadsheet"
)

var (
	mappingInput string
	mappingSheet string
)

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "inspect column mappings",
}

var mappingInferCmd = &cobra.Command{
	Use:   "infer",
	Short: "propose a mapping from the header row",
	Long: `Match the header row of a workbook against the known header spellings and
print the proposed field=Column pairs. The output can be passed to
'assetid generate' as --map flags.`,
	Example: `  $ assetid mapping infer --input register.xlsx`,
	RunE:    runMappingInfer,
}

func init() {
	mappingInferCmd.Flags().StringVarP(&mappingInput, "input", "i", "", "input workbook (.xlsx)")
	mappingInferCmd.Flags().StringVar(&mappingSheet, "sheet", "", "sheet to read (default: first sheet)")
	_ = mappingInferCmd.MarkFlagRequired("input")
	mappingInferCmd.SilenceUsage = true

	mappingCmd.AddCommand(mappingInferCmd)
}

func runMappingInfer(cmd *cobra.Command, args []string) error {
	ds, err := spreadsheet.ReadFile(mappingInput, mappingSheet)
	if err != nil {
		return err
	}

	inferred := mapping.Infer(ds.Headers)
	out := cmd.OutOrStdout()
	for _, line := range mapping.Describe(inferred) {
		fmt.Fprintln(out, line)
	}
	for _, f := range models.Fields {
		if _, ok := inferred[f]; !ok {
			fmt.Fprintf(out, "# %s: no matching header\n", f)
		}
	}
	return nil
}
