package main

import (
	"fmt"

	"github.com/spf13/cobra"

	orchestrators "github.com/ochairo/redist/internal/domain-orchestrators"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the assembled wheels against the fetch manifest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		result, err := runStage(cmd.Context(), orchestrators.StageVerify, nil)
		if err != nil {
			return err
		}

		verify := result.Verify
		fmt.Printf("✅ Verified %d wheels\n", verify.Checked)
		if verify.HostChecked {
			fmt.Printf("  ✓ executed %s\n", verify.HostWheel)
		} else {
			fmt.Printf("⚠️  No wheel matches this host, executable check skipped\n")
		}
		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture
func init() {
	addStageFlags(verifyCmd)
	addDevFlag(verifyCmd)
	rootCmd.AddCommand(verifyCmd)
}
