// Package main provides the redist CLI for repackaging upstream release
// binaries as Python wheels.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ochairo/redist/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/redist/internal/domain-orchestrators"
	"github.com/ochairo/redist/internal/domain/interfaces"
	domainGateways "github.com/ochairo/redist/internal/domain/interfaces/gateways"
	"github.com/ochairo/redist/internal/external-adapters/gpg"
	"github.com/ochairo/redist/internal/external-adapters/yaml"
	"github.com/ochairo/redist/internal/external-adapters/zaplog"
	"github.com/ochairo/redist/internal/version"
)

var (
	// Global flags shared by every subcommand
	configPath string
	workDir    string
	verbose    bool
	jsonLogs   bool

	// Flags shared by the pipeline stage subcommands
	tagFlag    string
	cleanStage bool
	devBuild   bool

	rootCmd = &cobra.Command{
		Use:   "redist",
		Short: "Package upstream release binaries as Python wheels",
		Long: `redist downloads the prebuilt binaries of an upstream GitHub release,
verifies them against the upstream checksum manifest and repackages them
as Python wheels, one per platform. Later stages implicitly run the
earlier ones: "redist test" bootstraps, fetches, builds, assembles and
verifies before the smoke test.`,
		SilenceUsage: true,
	}
)

func main() {
	// Setup graceful shutdown handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "redist.yaml", "path to the project configuration file")
	rootCmd.PersistentFlags().StringVarP(&workDir, "workdir", "w", ".", "working directory for cache, build and dist output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "log diagnostics as JSON instead of console lines")

	version.AttachCobraVersionCommand(rootCmd)
}

// addStageFlags registers the flags every pipeline stage command shares
func addStageFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&tagFlag, "tag", "t", "latest", "upstream release tag to package")
	cmd.Flags().BoolVar(&cleanStage, "clean", false, "wipe this stage's directory before running")
}

// addDevFlag registers --dev on the commands that include the assemble stage
func addDevFlag(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&devBuild, "dev", false, "append a .dev suffix derived from the last commit time")
}

func pipelineConfig(smokeArgs []string) orchestrators.Config {
	return orchestrators.Config{
		WorkDir:   workDir,
		Tag:       tagFlag,
		DevBuild:  devBuild,
		Clean:     cleanStage,
		SmokeArgs: smokeArgs,
	}
}

func newLogger() *zaplog.Logger {
	return zaplog.New(zaplog.Options{Verbose: verbose, JSON: jsonLogs})
}

// newPipeline wires the gateways into an orchestrator. indexURL may be empty
// for commands that never upload.
func newPipeline(logger interfaces.Logger, config orchestrators.Config, indexURL string) *orchestrators.PipelineOrchestrator {
	keys := gpg.NewVerifier()
	states := yaml.NewStateStore()
	host := gateways.NewHTTPGitHubGateway(githubToken())
	var index domainGateways.PackageIndex = gateways.NewHTTPIndexGateway(indexURL, os.Getenv("REDIST_INDEX_TOKEN"), logger)

	return orchestrators.NewPipelineOrchestrator(
		yaml.NewProjectRepository(configPath),
		gateways.NewEnvironment(keys, states, logger),
		gateways.NewDownloader(host, keys, states, logger),
		gateways.NewBuilder(logger),
		gateways.NewAssembler(logger),
		gateways.NewPackageVerifier(logger),
		gateways.NewSmokeRunner(logger),
		index,
		gateways.NewVCSGateway(),
		host,
		config,
	)
}

// githubToken resolves the release host token. Public repositories are
// readable without one, only at a lower rate limit.
func githubToken() string {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return token
	}
	return os.Getenv("GH_TOKEN")
}

func warnIfUnauthenticated() {
	if githubToken() == "" {
		fmt.Fprintf(os.Stderr, "⚠️  No GITHUB_TOKEN/GH_TOKEN set, using the unauthenticated rate limit\n")
	}
}

// runStage executes the pipeline up to and including target. The command
// files print their own stage summaries.
func runStage(ctx context.Context, target orchestrators.Stage, smokeArgs []string) (*orchestrators.PipelineResult, error) {
	logger := newLogger()
	defer logger.Sync()
	warnIfUnauthenticated()

	orch := newPipeline(logger, pipelineConfig(smokeArgs), "")
	return orch.RunTo(ctx, target)
}
