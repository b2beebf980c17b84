package main

import (
	"fmt"

	"github.com/spf13/cobra"

	orchestrators "github.com/ochairo/redist/internal/domain-orchestrators"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the release assets into the cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		result, err := runStage(cmd.Context(), orchestrators.StageFetch, nil)
		if err != nil {
			return err
		}

		fetch := result.Fetch
		fmt.Printf("✅ Fetched %s: %d downloaded, %d reused (%.1fs)\n",
			fetch.Release.TagName, fetch.Downloaded, fetch.Reused, result.FetchDuration.Seconds())
		fmt.Printf("📦 Cache: %s\n", fetch.CacheDir)
		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture
func init() {
	addStageFlags(fetchCmd)
	rootCmd.AddCommand(fetchCmd)
}
