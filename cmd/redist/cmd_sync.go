package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "List the upstream releases not yet repackaged",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := newLogger()
		defer logger.Sync()
		warnIfUnauthenticated()

		orch := newPipeline(logger, pipelineConfig(nil), "")
		report, err := orch.Sync(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("📊 Release backlog for %s\n", report.Project.Name)
		fmt.Printf("  upstream %s: %d releases\n", report.Project.Upstream.Slug(), len(report.UpstreamTags))
		fmt.Printf("  origin   %s: %d releases\n", report.Project.Origin.Slug(), len(report.OriginTags))

		if len(report.Missing) == 0 {
			fmt.Println("✅ Origin is up to date")
			return nil
		}
		fmt.Printf("⚠️  %d releases not yet repackaged:\n", len(report.Missing))
		for _, tag := range report.Missing {
			fmt.Printf("  ✗ %s\n", tag)
		}
		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture
func init() {
	rootCmd.AddCommand(syncCmd)
}
