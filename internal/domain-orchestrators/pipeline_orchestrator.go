// Package orchestrators coordinates the packaging pipeline across the
// domain gateways.
package orchestrators

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ochairo/redist/internal/domain-adapters/gateways"
	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/domain/interfaces/repositories"
	"github.com/ochairo/redist/internal/domain/services"
)

// Stage identifies one pipeline stage in execution order
type Stage int

// Pipeline stages, in the order they run
const (
	StageBootstrap Stage = iota
	StageFetch
	StageBuild
	StageAssemble
	StageVerify
	StageTest
)

// String returns the stage name as used in messages and logs
func (s Stage) String() string {
	switch s {
	case StageBootstrap:
		return "bootstrap"
	case StageFetch:
		return "fetch"
	case StageBuild:
		return "build"
	case StageAssemble:
		return "assemble"
	case StageVerify:
		return "verify"
	case StageTest:
		return "test"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// State is the pipeline state after a run. States advance strictly forward;
// any failure is terminal for the run.
type State string

// Pipeline states
const (
	StateBootstrapped State = "bootstrapped"
	StateFetched      State = "fetched"
	StateBuilt        State = "built"
	StateAssembled    State = "assembled"
	StateVerified     State = "verified"
	StateTested       State = "tested"
	StateFailed       State = "failed"
)

// Bootstrapper interface for preparing and cleaning the working directory
type Bootstrapper interface {
	Bootstrap(ctx context.Context, project *entities.Project, workDir string) (*gateways.BootstrapResult, error)
	Release() error
	Clean(workDir string) error
}

// Fetcher interface for downloading release artifacts into the cache
type Fetcher interface {
	Fetch(ctx context.Context, project *entities.Project, tag, cacheRoot string) (*gateways.FetchResult, error)
}

// Stager interface for staging cached assets by wheel platform
type Stager interface {
	Stage(project *entities.Project, fetch *gateways.FetchResult, buildRoot string) (*gateways.BuildResult, error)
}

// WheelAssembler interface for producing wheels from staged binaries
type WheelAssembler interface {
	Assemble(project *entities.Project, build *gateways.BuildResult, distRoot, devSuffix string) (*gateways.AssembleResult, error)
}

// Verifier interface for checking assembled wheels
type Verifier interface {
	Verify(ctx context.Context, project *entities.Project, assemble *gateways.AssembleResult, manifest *entities.FetchManifest) (*gateways.VerifyResult, error)
}

// SmokeTester interface for exercising the host-platform wheel end to end
type SmokeTester interface {
	Run(ctx context.Context, project *entities.Project, assemble *gateways.AssembleResult, manifest *entities.FetchManifest, argsOverride []string) (*gateways.SmokeReport, error)
}

// Publisher interface for uploading wheels to the package index
type Publisher interface {
	UploadWheel(ctx context.Context, wheelPath string) error
}

// VersionControl interface for reading repository state
type VersionControl interface {
	CommitTime(ctx context.Context, dir string) (time.Time, error)
	HasUncommittedChanges(ctx context.Context, dir string) (bool, error)
}

// ReleaseLister interface for listing published releases
type ReleaseLister interface {
	ListReleases(ctx context.Context, repo entities.RemoteRepo) ([]*entities.Release, error)
}

// PipelineOrchestrator drives the pipeline stages in order. Every run starts
// from the configuration file; later stages implicitly run the earlier ones.
type PipelineOrchestrator struct {
	projects     repositories.ProjectRepository
	bootstrapper Bootstrapper
	fetcher      Fetcher
	stager       Stager
	assembler    WheelAssembler
	verifier     Verifier
	smokeTester  SmokeTester
	publisher    Publisher
	vcs          VersionControl
	releases     ReleaseLister
	config       Config
}

// Config holds the per-run settings resolved by the command layer
type Config struct {
	WorkDir   string
	Tag       string   // release tag; empty or "latest" resolves the newest release
	DevBuild  bool     // append the .dev suffix derived from the last commit time
	Clean     bool     // wipe the target stage's directory before running it
	SmokeArgs []string // override for the smoke invocation arguments
}

// NewPipelineOrchestrator creates a new pipeline orchestrator
func NewPipelineOrchestrator(
	projects repositories.ProjectRepository,
	bootstrapper Bootstrapper,
	fetcher Fetcher,
	stager Stager,
	assembler WheelAssembler,
	verifier Verifier,
	smokeTester SmokeTester,
	publisher Publisher,
	vcs VersionControl,
	releases ReleaseLister,
	config Config,
) *PipelineOrchestrator {
	if config.WorkDir == "" {
		config.WorkDir = "."
	}

	return &PipelineOrchestrator{
		projects:     projects,
		bootstrapper: bootstrapper,
		fetcher:      fetcher,
		stager:       stager,
		assembler:    assembler,
		verifier:     verifier,
		smokeTester:  smokeTester,
		publisher:    publisher,
		vcs:          vcs,
		releases:     releases,
		config:       config,
	}
}

// PipelineResult contains the outcome of a pipeline run
type PipelineResult struct {
	Project   *entities.Project
	State     State
	Bootstrap *gateways.BootstrapResult
	Fetch     *gateways.FetchResult
	Build     *gateways.BuildResult
	Assemble  *gateways.AssembleResult
	Verify    *gateways.VerifyResult
	Smoke     *gateways.SmokeReport
	Published int

	FetchDuration time.Duration
	SmokeDuration time.Duration
	TotalDuration time.Duration
	Success       bool
	Error         error
}

// RunTo executes the pipeline from the beginning up to and including the
// target stage. The run lock is held for the duration of the call.
func (o *PipelineOrchestrator) RunTo(ctx context.Context, target Stage) (*PipelineResult, error) {
	defer o.release()
	return o.run(ctx, target)
}

// Publish runs the full pipeline and uploads every assembled wheel to the
// package index. Publication requires a clean worktree unless force is set.
func (o *PipelineOrchestrator) Publish(ctx context.Context, force bool) (*PipelineResult, error) {
	defer o.release()

	result, err := o.run(ctx, StageTest)
	if err != nil {
		return result, err
	}

	if !force {
		dirty, err := o.vcs.HasUncommittedChanges(ctx, projectDir(result.Project))
		if err != nil {
			result.Error = &PublishError{Err: err}
			return result, result.Error
		}
		if dirty {
			result.Error = &PublishError{Err: fmt.Errorf("worktree has uncommitted changes, commit them or force the upload")}
			return result, result.Error
		}
	}

	for _, wheelArtifact := range result.Assemble.Wheels {
		if err := o.publisher.UploadWheel(ctx, wheelArtifact.Path); err != nil {
			result.Error = &PublishError{Err: err}
			return result, result.Error
		}
		result.Published++
	}

	return result, nil
}

// SyncReport lists the repackaging backlog between upstream and origin
type SyncReport struct {
	Project      *entities.Project
	UpstreamTags []string
	OriginTags   []string
	Missing      []string // tags upstream has published that origin has not, oldest first
}

// Sync compares the published releases of the upstream and origin
// repositories. The missing tags come back oldest first so the backlog
// reads in publish order. It never touches the working directory.
func (o *PipelineOrchestrator) Sync(ctx context.Context) (*SyncReport, error) {
	project, err := o.projects.LoadProject(ctx)
	if err != nil {
		return nil, &SetupError{Err: err}
	}

	upstream, err := o.releases.ListReleases(ctx, project.Upstream)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	origin, err := o.releases.ListReleases(ctx, project.Origin)
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	report := &SyncReport{Project: project}
	published := make(map[string]struct{}, len(origin))
	for _, release := range origin {
		report.OriginTags = append(report.OriginTags, release.TagName)
		published[release.TagName] = struct{}{}
	}
	for _, release := range upstream {
		report.UpstreamTags = append(report.UpstreamTags, release.TagName)
		if _, ok := published[release.TagName]; !ok {
			report.Missing = append(report.Missing, release.TagName)
		}
	}

	sort.Slice(report.Missing, func(i, j int) bool {
		return services.CompareVersions(report.Missing[i], report.Missing[j]) < 0
	})

	return report, nil
}

// Clean removes everything the pipeline wrote under the working directory
func (o *PipelineOrchestrator) Clean() error {
	return o.bootstrapper.Clean(o.config.WorkDir)
}

//nolint:funlen // The stage sequence reads best as one linear function
func (o *PipelineOrchestrator) run(ctx context.Context, target Stage) (*PipelineResult, error) {
	startTime := time.Now()
	result := &PipelineResult{State: StateFailed}
	defer func() {
		result.TotalDuration = time.Since(startTime)
	}()

	// Step 1: Load the project configuration
	project, err := o.projects.LoadProject(ctx)
	if err != nil {
		result.Error = &SetupError{Err: err}
		return result, result.Error
	}
	result.Project = project

	// Step 2: Bootstrap the working directory
	boot, err := o.bootstrapper.Bootstrap(ctx, project, o.config.WorkDir)
	if err != nil {
		result.Error = &SetupError{Err: err}
		return result, result.Error
	}
	result.Bootstrap = boot
	result.State = StateBootstrapped
	if target == StageBootstrap {
		result.Success = true
		return result, nil
	}

	if o.config.Clean {
		if err := o.cleanStageDir(target, boot); err != nil {
			result.State = StateFailed
			result.Error = &SetupError{Err: err}
			return result, result.Error
		}
	}

	// Step 3: Fetch the release into the cache
	fetchStart := time.Now()
	fetch, err := o.fetcher.Fetch(ctx, project, o.config.Tag, boot.CacheDir)
	if err != nil {
		result.State = StateFailed
		result.Error = &FetchError{Err: err}
		return result, result.Error
	}
	result.Fetch = fetch
	result.FetchDuration = time.Since(fetchStart)
	result.State = StateFetched
	if target == StageFetch {
		result.Success = true
		return result, nil
	}

	// Step 4: Stage the cached assets by wheel platform
	build, err := o.stager.Stage(project, fetch, boot.BuildDir)
	if err != nil {
		result.State = StateFailed
		result.Error = &AssemblyError{Err: err}
		return result, result.Error
	}
	result.Build = build
	result.State = StateBuilt
	if target == StageBuild {
		result.Success = true
		return result, nil
	}

	// Step 5: Assemble one wheel per staged platform
	devSuffix := ""
	if o.config.DevBuild {
		commitTime, err := o.vcs.CommitTime(ctx, projectDir(project))
		if err != nil {
			result.State = StateFailed
			result.Error = &AssemblyError{Err: err}
			return result, result.Error
		}
		devSuffix = services.DevSuffix(commitTime)
	}
	assemble, err := o.assembler.Assemble(project, build, boot.DistDir, devSuffix)
	if err != nil {
		result.State = StateFailed
		result.Error = &AssemblyError{Err: err}
		return result, result.Error
	}
	result.Assemble = assemble
	result.State = StateAssembled
	if target == StageAssemble {
		result.Success = true
		return result, nil
	}

	// Step 6: Verify every wheel against the fetch manifest
	verify, err := o.verifier.Verify(ctx, project, assemble, fetch.Manifest)
	if err != nil {
		result.State = StateFailed
		result.Error = &VerificationError{Err: err}
		return result, result.Error
	}
	result.Verify = verify
	result.State = StateVerified
	if target == StageVerify {
		result.Success = true
		return result, nil
	}

	// Step 7: Smoke-test the host-platform wheel
	smokeStart := time.Now()
	smoke, err := o.smokeTester.Run(ctx, project, assemble, fetch.Manifest, o.config.SmokeArgs)
	if err != nil {
		result.State = StateFailed
		result.Error = &SmokeTestError{Err: err}
		return result, result.Error
	}
	result.Smoke = smoke
	result.SmokeDuration = time.Since(smokeStart)
	result.State = StateTested

	result.Success = true
	return result, nil
}

// cleanStageDir wipes the directory owned by the target stage
func (o *PipelineOrchestrator) cleanStageDir(target Stage, boot *gateways.BootstrapResult) error {
	var dir string
	switch target {
	case StageFetch:
		dir = boot.CacheDir
	case StageBuild:
		dir = boot.BuildDir
	case StageAssemble:
		dir = boot.DistDir
	default:
		return nil
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clean %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to recreate %s: %w", dir, err)
	}
	return nil
}

func (o *PipelineOrchestrator) release() {
	//nolint:errcheck // Lock release failures leave a stale lock the next run reclaims
	o.bootstrapper.Release()
}

// projectDir is the directory holding the project configuration, where git
// commands run
func projectDir(project *entities.Project) string {
	if project.SourcePath == "" {
		return "."
	}
	return filepath.Dir(project.SourcePath)
}
