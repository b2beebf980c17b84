package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	orchestrators "github.com/ochairo/redist/internal/domain-orchestrators"
)

var smokeCmd = &cobra.Command{
	Use:   "test [args...]",
	Short: "Install the host wheel into a throwaway environment and run it",
	Long: `Install the packaged executable of the wheel matching this host into a
throwaway environment, confirm it is discoverable on the search path and
invoke it. Without arguments the version output is checked against the
packaged release; any extra arguments replace the default invocation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := runStage(cmd.Context(), orchestrators.StageTest, args)
		if err != nil {
			if onGitHubActions() {
				fmt.Printf("::error::smoke test failed: %v\n", err)
			}
			return err
		}

		smoke := result.Smoke
		if onGitHubActions() {
			fmt.Printf("::notice::smoke test passed: %s (%s)\n", smoke.Wheel, smoke.Output)
		} else {
			fmt.Printf("✅ Smoke test passed: %s (%.1fs)\n", smoke.Wheel, result.SmokeDuration.Seconds())
			fmt.Printf("  ✓ %s %s\n", smoke.Path, strings.Join(smoke.Args, " "))
			if smoke.Output != "" {
				fmt.Printf("  %s\n", smoke.Output)
			}
		}
		if smoke.Kept {
			fmt.Printf("📦 Environment kept: %s\n", smoke.EnvDir)
		}
		return nil
	},
}

func onGitHubActions() bool {
	return os.Getenv("GITHUB_ACTIONS") != ""
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture
func init() {
	addStageFlags(smokeCmd)
	addDevFlag(smokeCmd)
	rootCmd.AddCommand(smokeCmd)
}
