package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"assetid-workers/internal/common/config"
	"assetid-workers/internal/common/logger"
)

const version = "0.1.0"

var (
	configPath string
	verbose    bool
)

// rootCmd is the root command
var rootCmd = &cobra.Command{
	Use:     "assetid",
	Short:   "Asset ID generation for facility spreadsheets",
	Version: version,
	Long: `Generate hierarchical asset IDs (location, space, subspace, equipment) for
facility-management spreadsheets, infer column mappings and maintain the
abbreviation vocabulary.`,
	Example: `  # Generate IDs with an inferred mapping
  $ assetid generate --input register.xlsx --output register-ids.xlsx

  # Show the mapping that would be inferred
  $ assetid mapping infer --input register.xlsx

  # Add a vocabulary term
  $ assetid vocab add --path vocab.yaml --kind equipment --text "Kitchen Hood" --code KH`,
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("assetid version %s\n", version))

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: configs/config.yaml when present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine progress to stderr")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(mappingCmd)
	rootCmd.AddCommand(vocabCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func newLogger(cfg *config.Config) logger.Logger {
	if !verbose {
		return logger.NewNoOpLogger()
	}
	return logger.NewStructured(cfg.Logging.Level, "console")
}
