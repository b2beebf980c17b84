package main

import (
	"fmt"

	"github.com/spf13/cobra"

	orchestrators "github.com/ochairo/redist/internal/domain-orchestrators"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Prepare the working directory and import signing keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		result, err := runStage(cmd.Context(), orchestrators.StageBootstrap, nil)
		if err != nil {
			return err
		}

		boot := result.Bootstrap
		if boot.Reused {
			fmt.Printf("✅ Working directory already bootstrapped: %s\n", boot.WorkDir)
		} else {
			fmt.Printf("✅ Working directory ready: %s\n", boot.WorkDir)
		}
		if boot.Keys > 0 {
			fmt.Printf("🔒 Signing keys imported: %d\n", boot.Keys)
		}
		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture
func init() {
	rootCmd.AddCommand(bootstrapCmd)
}
