package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/external-adapters/yaml"
)

var (
	forceUpload bool
	repository  string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload the assembled wheels to the package index",
	Long: `Run the full pipeline and upload every assembled wheel to the package
index. Refuses to upload from a worktree with uncommitted changes unless
--force is given. The index token is read from REDIST_INDEX_TOKEN.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := newLogger()
		defer logger.Sync()
		warnIfUnauthenticated()

		if os.Getenv("REDIST_INDEX_TOKEN") == "" {
			return fmt.Errorf("publish requires REDIST_INDEX_TOKEN to be set")
		}

		project, err := yaml.NewProjectRepository(configPath).LoadProject(cmd.Context())
		if err != nil {
			return err
		}
		uploadURL, indexName, err := resolveIndex(project)
		if err != nil {
			return err
		}

		orch := newPipeline(logger, pipelineConfig(nil), uploadURL)
		result, err := orch.Publish(cmd.Context(), forceUpload)
		if err != nil {
			return err
		}

		fmt.Printf("✅ Uploaded %d wheels to %s\n", result.Published, indexName)
		return nil
	},
}

// resolveIndex picks the upload endpoint: the --repository flag wins over
// the configured index, which defaults to TestPyPI.
func resolveIndex(project *entities.Project) (uploadURL, name string, err error) {
	if repository != "" {
		uploadURL, err = repositoryURL(repository)
		return uploadURL, repository, err
	}
	return project.Index.UploadURL, project.Index.Repository, nil
}

// repositoryURL maps the well-known repository names to their legacy upload
// endpoints; anything else must be a full URL
func repositoryURL(name string) (string, error) {
	switch name {
	case "pypi":
		return "https://upload.pypi.org/legacy/", nil
	case "testpypi":
		return "https://test.pypi.org/legacy/", nil
	}
	if strings.Contains(name, "://") {
		return name, nil
	}
	return "", fmt.Errorf("unknown repository %q, use pypi, testpypi or an upload URL", name)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture
func init() {
	publishCmd.Flags().StringVarP(&tagFlag, "tag", "t", "latest", "upstream release tag to package")
	publishCmd.Flags().BoolVar(&devBuild, "dev", false, "append a .dev suffix derived from the last commit time")
	publishCmd.Flags().BoolVar(&forceUpload, "force", false, "upload even when the worktree has uncommitted changes")
	publishCmd.Flags().StringVarP(&repository, "repository", "r", "", "package index to upload to (pypi, testpypi or an upload URL)")
	rootCmd.AddCommand(publishCmd)
}
