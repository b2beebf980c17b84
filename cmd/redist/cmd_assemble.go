package main

import (
	"fmt"

	"github.com/spf13/cobra"

	orchestrators "github.com/ochairo/redist/internal/domain-orchestrators"
)

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Assemble one wheel per staged platform",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		result, err := runStage(cmd.Context(), orchestrators.StageAssemble, nil)
		if err != nil {
			return err
		}

		assemble := result.Assemble
		fmt.Printf("✅ Assembled %d wheels for version %s\n", len(assemble.Wheels), assemble.Version)
		for _, wheel := range assemble.Wheels {
			fmt.Printf("  📦 %s\n", wheel.Name)
		}
		if assemble.Skipped > 0 {
			fmt.Printf("⏭️  %d wheels already existed\n", assemble.Skipped)
		}
		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture
func init() {
	addStageFlags(assembleCmd)
	addDevFlag(assembleCmd)
	rootCmd.AddCommand(assembleCmd)
}
