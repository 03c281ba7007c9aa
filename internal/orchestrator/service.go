// Package orchestrator runs the per-project lifecycle pipelines: deploy,
// destroy with pre-cleanup and retry, and the state/outputs reads.
package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/provisio/provisio/internal/cleanup"
	"github.com/provisio/provisio/internal/config"
	"github.com/provisio/provisio/internal/credentials"
	"github.com/provisio/provisio/internal/state"
	"github.com/provisio/provisio/internal/terraform"
	"github.com/provisio/provisio/internal/workspace"
)

// Status values reported to callers.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// retryWait separates the best-effort refresh from the second destroy
// attempt, giving eventually-consistent deletions a moment to settle.
const retryWait = 5 * time.Second

type engineRunner interface {
	Init(ctx context.Context, dir string, env []string) (terraform.Result, error)
	Apply(ctx context.Context, dir string, env []string) (terraform.Result, error)
	Destroy(ctx context.Context, dir string, env []string) (terraform.Result, error)
	Refresh(ctx context.Context, dir string, env []string) (terraform.Result, error)
}

type credentialResolver interface {
	Resolve(ctx context.Context, userID, projectID string) (credentials.Set, error)
}

type cleanupEngine interface {
	Run(ctx context.Context, doc *state.Document, clients *cleanup.Clients) cleanup.Log
}

// DeployOutcome is the result of one deploy pipeline.
type DeployOutcome struct {
	Status string
	Stdout string
	Stderr string
}

// DestroyOutcome is the result of one destroy pipeline.
type DestroyOutcome struct {
	Status      string
	Stdout      string
	Stderr      string
	CleanupLogs cleanup.Log
}

// Service wires the lifecycle components together.
type Service struct {
	cfg        *config.Config
	broker     credentialResolver
	workspaces *workspace.Manager
	runner     engineRunner
	cleaner    cleanupEngine
	locks      *projectLocks
	logger     zerolog.Logger

	retryWait  time.Duration
	newClients func(ctx context.Context, set credentials.Set, region string) (*cleanup.Clients, error)
}

// NewService creates the orchestrator.
func NewService(cfg *config.Config, broker credentialResolver, workspaces *workspace.Manager,
	runner engineRunner, cleaner cleanupEngine, logger zerolog.Logger) *Service {
	return &Service{
		cfg:        cfg,
		broker:     broker,
		workspaces: workspaces,
		runner:     runner,
		cleaner:    cleaner,
		locks:      newProjectLocks(),
		logger:     logger.With().Str("component", "orchestrator").Logger(),
		retryWait:  retryWait,
		newClients: awsCleanupClients,
	}
}

func awsCleanupClients(ctx context.Context, set credentials.Set, region string) (*cleanup.Clients, error) {
	awsCfg, err := set.AWSConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return cleanup.NewAWSClients(awsCfg), nil
}

// Deploy provisions a project's infrastructure: resolve credentials, init,
// apply. An init failure is terminal and apply is never attempted.
func (s *Service) Deploy(ctx context.Context, projectID, userID string) (DeployOutcome, error) {
	defer s.locks.acquire(projectID)()

	dir, err := s.workspaces.Resolve(projectID)
	if err != nil {
		return DeployOutcome{}, err
	}
	set, err := s.broker.Resolve(ctx, userID, projectID)
	if err != nil {
		return DeployOutcome{}, err
	}
	env := s.engineEnv(set)

	initRes, err := s.runner.Init(ctx, dir, env)
	if err != nil {
		return DeployOutcome{}, err
	}
	if initRes.ExitCode != 0 {
		s.logger.Error().Str("project", projectID).Msg("engine init failed")
		return DeployOutcome{Status: StatusError, Stdout: initRes.Stdout, Stderr: initRes.Stderr}, nil
	}

	applyRes, err := s.runner.Apply(ctx, dir, env)
	if err != nil {
		return DeployOutcome{}, err
	}
	outcome := DeployOutcome{Stdout: applyRes.Stdout, Stderr: applyRes.Stderr}
	if applyRes.ExitCode == 0 {
		outcome.Status = StatusSuccess
		s.logger.Info().Str("project", projectID).Msg("deploy succeeded")
	} else {
		outcome.Status = StatusError
		s.logger.Error().Str("project", projectID).Msg("engine apply failed")
	}
	return outcome, nil
}

// Outputs returns the project's terraform outputs as name → value.
func (s *Service) Outputs(ctx context.Context, projectID string) (map[string]any, error) {
	defer s.locks.acquire(projectID)()

	doc, err := s.workspaces.ReadState(projectID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return map[string]any{}, nil
	}
	return doc.OutputValues(), nil
}

// State returns the project's raw state document, or nil when none exists.
func (s *Service) State(ctx context.Context, projectID string) (json.RawMessage, error) {
	defer s.locks.acquire(projectID)()

	// Validate parseability first so a corrupt file surfaces as an error
	// instead of being passed through.
	if _, err := s.workspaces.ReadState(projectID); err != nil {
		return nil, err
	}
	data, err := s.workspaces.ReadStateBytes(projectID)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// engineEnv builds the subprocess environment for engine invocations.
func (s *Service) engineEnv(set credentials.Set) []string {
	env := set.Env()
	if s.cfg.Region != "" {
		env = append(env, "AWS_REGION="+s.cfg.Region, "AWS_DEFAULT_REGION="+s.cfg.Region)
	}
	return env
}
