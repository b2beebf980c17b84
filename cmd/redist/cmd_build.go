package main

import (
	"fmt"

	"github.com/spf13/cobra"

	orchestrators "github.com/ochairo/redist/internal/domain-orchestrators"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Stage the fetched binaries by wheel platform",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		result, err := runStage(cmd.Context(), orchestrators.StageBuild, nil)
		if err != nil {
			return err
		}

		build := result.Build
		fmt.Printf("✅ Staged %d binaries for %s\n", len(build.Staged), build.Tag)
		for _, artifact := range build.Staged {
			fmt.Printf("  ✓ %s -> %s\n", artifact.Name, artifact.Platform)
		}
		if len(build.Skipped) > 0 {
			fmt.Printf("⏭️  Skipped %d assets without a platform mapping\n", len(build.Skipped))
		}
		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture
func init() {
	addStageFlags(buildCmd)
	rootCmd.AddCommand(buildCmd)
}
