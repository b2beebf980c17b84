package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove everything the pipeline wrote under the working directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := newLogger()
		defer logger.Sync()

		orch := newPipeline(logger, pipelineConfig(nil), "")
		if err := orch.Clean(); err != nil {
			return err
		}

		fmt.Printf("✅ Cleaned %s\n", workDir)
		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture
func init() {
	rootCmd.AddCommand(cleanCmd)
}
