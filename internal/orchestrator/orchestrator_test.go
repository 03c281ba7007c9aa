package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/provisio/provisio/internal/cleanup"
	"github.com/provisio/provisio/internal/config"
	"github.com/provisio/provisio/internal/credentials"
	"github.com/provisio/provisio/internal/models"
	"github.com/provisio/provisio/internal/state"
	"github.com/provisio/provisio/internal/terraform"
	"github.com/provisio/provisio/internal/workspace"
)

type fakeRunner struct {
	initRes  terraform.Result
	applyRes terraform.Result
	// destroyResults are consumed one per attempt.
	destroyResults []terraform.Result
	destroyErrs    []error
	refreshRes     terraform.Result

	initCalls    int
	applyCalls   int
	destroyCalls int
	refreshCalls int
}

func (f *fakeRunner) Init(ctx context.Context, dir string, env []string) (terraform.Result, error) {
	f.initCalls++
	return f.initRes, nil
}

func (f *fakeRunner) Apply(ctx context.Context, dir string, env []string) (terraform.Result, error) {
	f.applyCalls++
	return f.applyRes, nil
}

func (f *fakeRunner) Destroy(ctx context.Context, dir string, env []string) (terraform.Result, error) {
	i := f.destroyCalls
	f.destroyCalls++
	var err error
	if i < len(f.destroyErrs) {
		err = f.destroyErrs[i]
	}
	if i < len(f.destroyResults) {
		return f.destroyResults[i], err
	}
	return terraform.Result{}, err
}

func (f *fakeRunner) Refresh(ctx context.Context, dir string, env []string) (terraform.Result, error) {
	f.refreshCalls++
	return f.refreshRes, nil
}

type fakeBroker struct {
	set Set
	err error
}

// Set aliases the credentials type to keep test literals short.
type Set = credentials.Set

func (f *fakeBroker) Resolve(ctx context.Context, userID, projectID string) (credentials.Set, error) {
	return f.set, f.err
}

type fakeCleaner struct {
	runs        int
	seenClients []*cleanup.Clients
	log         cleanup.Log
}

func (f *fakeCleaner) Run(ctx context.Context, doc *state.Document, clients *cleanup.Clients) cleanup.Log {
	f.runs++
	f.seenClients = append(f.seenClients, clients)
	return f.log
}

type fixture struct {
	service    *Service
	runner     *fakeRunner
	broker     *fakeBroker
	cleaner    *fakeCleaner
	workspaces *workspace.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	runner := &fakeRunner{}
	broker := &fakeBroker{set: Set{AccessKeyID: "AKIA", SecretAccessKey: "shh"}}
	cleaner := &fakeCleaner{log: cleanup.Log{"bucket b1 emptied (2 objects/versions removed)"}}
	workspaces := workspace.NewManager(t.TempDir(), zerolog.Nop())

	cfg := &config.Config{Region: "us-east-1", Environment: config.EnvDevelopment}
	service := NewService(cfg, broker, workspaces, runner, cleaner, zerolog.Nop())
	service.retryWait = time.Millisecond
	service.newClients = func(ctx context.Context, set credentials.Set, region string) (*cleanup.Clients, error) {
		return &cleanup.Clients{}, nil
	}
	return &fixture{service: service, runner: runner, broker: broker, cleaner: cleaner, workspaces: workspaces}
}

func (f *fixture) writeState(t *testing.T, projectID, content string) {
	t.Helper()
	dir, err := f.workspaces.Resolve(projectID)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, workspace.StateFileName), []byte(content), 0o644))
}

const bucketState = `{"resources": [{"type": "aws_s3_bucket", "instances": [{"attributes": {"bucket": "b1"}}]}]}`

func TestDestroy_NoWorkspaceIsIdempotentSuccess(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		outcome, err := f.service.Destroy(context.Background(), "ghost", "")
		require.NoError(t, err)
		require.Equal(t, StatusSuccess, outcome.Status)
		require.Contains(t, outcome.Stdout, "No infrastructure to destroy")
		require.Empty(t, outcome.CleanupLogs)
	}
	require.Zero(t, f.runner.destroyCalls, "engine must not be invoked")
	require.Zero(t, f.cleaner.runs)
}

func TestDestroy_EmptyStateIsSuccess(t *testing.T) {
	f := newFixture(t)
	f.writeState(t, "p1", "")

	outcome, err := f.service.Destroy(context.Background(), "p1", "")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, outcome.Status)
	require.Empty(t, outcome.CleanupLogs)
	require.Zero(t, f.runner.destroyCalls)
}

func TestDestroy_SuccessRunsCleanupAndRemovesWorkspace(t *testing.T) {
	f := newFixture(t)
	f.writeState(t, "p1", bucketState)
	f.runner.destroyResults = []terraform.Result{{ExitCode: 0, Stdout: "Destroy complete!"}}

	outcome, err := f.service.Destroy(context.Background(), "p1", "u1")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, outcome.Status)
	require.Equal(t, 1, f.cleaner.runs, "pre-cleanup must run before destroy")
	require.NotNil(t, f.cleaner.seenClients[0])
	require.Contains(t, outcome.CleanupLogs[0], "emptied")
	require.False(t, f.workspaces.Exists("p1"), "workspace must be removed on success")
}

func TestDestroy_RetriesOnceOnGenericFailure(t *testing.T) {
	f := newFixture(t)
	f.writeState(t, "p1", bucketState)
	f.runner.destroyResults = []terraform.Result{
		{ExitCode: 1, Stderr: "Error: waiting for resource deletion"},
		{ExitCode: 0},
	}

	outcome, err := f.service.Destroy(context.Background(), "p1", "")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, outcome.Status)
	require.Equal(t, 2, f.runner.destroyCalls)
	require.Equal(t, 1, f.runner.refreshCalls)
	require.False(t, f.workspaces.Exists("p1"))
}

func TestDestroy_NoRetryOnBucketNotEmpty(t *testing.T) {
	f := newFixture(t)
	f.writeState(t, "p1", bucketState)
	f.runner.destroyResults = []terraform.Result{
		{ExitCode: 1, Stderr: "Error: BucketNotEmpty: the bucket you tried to delete is not empty"},
	}

	outcome, err := f.service.Destroy(context.Background(), "p1", "")
	require.NoError(t, err)
	require.Equal(t, StatusError, outcome.Status)
	require.Equal(t, 1, f.runner.destroyCalls, "bucket-not-empty must suppress the retry")
	require.Zero(t, f.runner.refreshCalls)
	require.True(t, f.workspaces.Exists("p1"), "workspace must stay intact for inspection")
}

func TestDestroy_SecondFailureIsFinal(t *testing.T) {
	f := newFixture(t)
	f.writeState(t, "p1", bucketState)
	f.runner.destroyResults = []terraform.Result{
		{ExitCode: 1, Stderr: "Error: transient"},
		{ExitCode: 1, Stderr: "Error: still broken"},
	}

	outcome, err := f.service.Destroy(context.Background(), "p1", "")
	require.NoError(t, err)
	require.Equal(t, StatusError, outcome.Status)
	require.Equal(t, 2, f.runner.destroyCalls, "at most one retry")
	require.Contains(t, outcome.Stderr, "still broken")
	require.True(t, f.workspaces.Exists("p1"))
}

func TestDestroy_TimeoutTakesRetryPath(t *testing.T) {
	f := newFixture(t)
	f.writeState(t, "p1", bucketState)
	f.runner.destroyErrs = []error{
		&models.EngineError{Phase: "destroy", Timeout: true, Cause: context.DeadlineExceeded},
	}
	f.runner.destroyResults = []terraform.Result{{}, {ExitCode: 0}}

	outcome, err := f.service.Destroy(context.Background(), "p1", "")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, outcome.Status)
	require.Equal(t, 2, f.runner.destroyCalls)
	require.Equal(t, 1, f.runner.refreshCalls)
}

func TestDestroy_CredentialFailureSkipsCleanupOnly(t *testing.T) {
	f := newFixture(t)
	f.writeState(t, "p1", bucketState)
	f.broker.err = &models.ConfigurationError{Detail: "no source"}
	f.runner.destroyResults = []terraform.Result{{ExitCode: 0}}

	outcome, err := f.service.Destroy(context.Background(), "p1", "")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, outcome.Status)
	require.Equal(t, 1, f.cleaner.runs)
	require.Nil(t, f.cleaner.seenClients[0], "cleanup engine must see nil clients")
	require.Equal(t, 1, f.runner.destroyCalls, "destroy proceeds without pre-cleanup")
}

func TestDestroy_MalformedStateSurfaces(t *testing.T) {
	f := newFixture(t)
	f.writeState(t, "p1", "{broken")

	_, err := f.service.Destroy(context.Background(), "p1", "")
	var stateErr *models.MalformedStateError
	require.ErrorAs(t, err, &stateErr)
	require.Zero(t, f.runner.destroyCalls)
}

func TestDeploy_Success(t *testing.T) {
	f := newFixture(t)
	f.runner.initRes = terraform.Result{ExitCode: 0}
	f.runner.applyRes = terraform.Result{ExitCode: 0, Stdout: "Apply complete!"}

	outcome, err := f.service.Deploy(context.Background(), "p1", "u1")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, outcome.Status)
	require.Contains(t, outcome.Stdout, "Apply complete!")
	require.True(t, f.workspaces.Exists("p1"), "deploy creates the workspace")
}

func TestDeploy_InitFailureIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.runner.initRes = terraform.Result{ExitCode: 1, Stderr: "Error: no configuration files"}

	outcome, err := f.service.Deploy(context.Background(), "p1", "")
	require.NoError(t, err)
	require.Equal(t, StatusError, outcome.Status)
	require.Contains(t, outcome.Stderr, "no configuration files")
	require.Zero(t, f.runner.applyCalls, "apply must not be attempted after init failure")
}

func TestDeploy_CredentialErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.broker.err = &models.ConfigurationError{Detail: "no source"}

	_, err := f.service.Deploy(context.Background(), "p1", "")
	var confErr *models.ConfigurationError
	require.ErrorAs(t, err, &confErr)
	require.Zero(t, f.runner.initCalls)
}

func TestOutputs(t *testing.T) {
	f := newFixture(t)

	outputs, err := f.service.Outputs(context.Background(), "p1")
	require.NoError(t, err)
	require.Empty(t, outputs)

	f.writeState(t, "p1", `{"outputs": {"api_url": {"value": "https://x.example"}}}`)
	outputs, err = f.service.Outputs(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "https://x.example", outputs["api_url"])
}

func TestState(t *testing.T) {
	f := newFixture(t)

	raw, err := f.service.State(context.Background(), "p1")
	require.NoError(t, err)
	require.Nil(t, raw)

	f.writeState(t, "p1", bucketState)
	raw, err = f.service.State(context.Background(), "p1")
	require.NoError(t, err)
	require.JSONEq(t, bucketState, string(raw))

	f.writeState(t, "p1", "{broken")
	_, err = f.service.State(context.Background(), "p1")
	require.Error(t, err)
}
