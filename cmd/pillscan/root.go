package main

import (
	"github.com/spf13/cobra"

	"github.com/carepill/pillscan/internal/api"
	"github.com/carepill/pillscan/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "pillscan",
	Short: "Medication envelope scanner with multi-shot consensus extraction",
	Long: `Pillscan turns photos of medication envelopes into a reconciled,
per-user medication list.

The pipeline includes:
  - Vision-model extraction of each envelope photo
  - Multi-shot consensus merging with per-field confidence
  - Fuzzy matching against the medicine catalog
  - Idempotent reconciliation into the user's medication list`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.pillscan/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "pillscan home directory (default: ~/.pillscan)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
