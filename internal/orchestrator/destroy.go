package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/provisio/provisio/internal/cleanup"
	"github.com/provisio/provisio/internal/models"
	"github.com/provisio/provisio/internal/terraform"
)

// noInfraMessage is returned when destroy is a no-op. Destroy is idempotent:
// an already-torn-down project always reports success.
const noInfraMessage = "No infrastructure to destroy for this project"

// Destroy tears down a project's infrastructure.
//
// The pipeline: no state → immediate success; otherwise best-effort
// pre-cleanup, a first destroy attempt, at most one refresh-and-retry cycle
// when the failure is not bucket-not-empty, and workspace removal only after
// a fully successful destroy.
func (s *Service) Destroy(ctx context.Context, projectID, userID string) (DestroyOutcome, error) {
	defer s.locks.acquire(projectID)()

	if !s.workspaces.Exists(projectID) {
		return DestroyOutcome{Status: StatusSuccess, Stdout: noInfraMessage}, nil
	}
	doc, err := s.workspaces.ReadState(projectID)
	if err != nil {
		return DestroyOutcome{}, err
	}
	if doc == nil {
		return DestroyOutcome{Status: StatusSuccess, Stdout: noInfraMessage}, nil
	}

	dir, err := s.workspaces.Resolve(projectID)
	if err != nil {
		return DestroyOutcome{}, err
	}

	// Credential failure degrades: pre-cleanup is skipped and the engine
	// runs with whatever its default environment can resolve.
	var env []string
	var clients *cleanup.Clients
	set, err := s.broker.Resolve(ctx, userID, projectID)
	if err != nil {
		s.logger.Warn().Str("project", projectID).Err(err).Msg("credential resolution failed; proceeding without pre-cleanup")
	} else {
		env = s.engineEnv(set)
		clients, err = s.newClients(ctx, set, s.cfg.Region)
		if err != nil {
			s.logger.Warn().Str("project", projectID).Err(err).Msg("cloud client construction failed; proceeding without pre-cleanup")
			clients = nil
		}
	}

	log := s.cleaner.Run(ctx, doc, clients)

	res, runErr := s.runner.Destroy(ctx, dir, env)
	if runErr != nil {
		var engineErr *models.EngineError
		if errors.As(runErr, &engineErr) && engineErr.Timeout {
			// A timed-out attempt is a failed attempt; its classification has
			// no stderr to match, so it takes the retry path.
			res = terraform.Result{ExitCode: -1}
		} else {
			return DestroyOutcome{CleanupLogs: log}, runErr
		}
	}

	if res.ExitCode != 0 && terraform.ClassifyDestroyFailure(res.Stderr) == terraform.FailureBucketNotEmpty {
		s.logger.Error().Str("project", projectID).Msg("destroy failed with non-empty bucket; not retrying")
		log = log.Add("destroy failed: bucket not empty; retry suppressed")
		return DestroyOutcome{Status: StatusError, Stdout: res.Stdout, Stderr: res.Stderr, CleanupLogs: log}, nil
	}

	if res.ExitCode != 0 {
		res, runErr = s.retryDestroy(ctx, projectID, dir, env, &log)
		if runErr != nil {
			return DestroyOutcome{CleanupLogs: log}, runErr
		}
	}

	if res.ExitCode != 0 {
		s.logger.Error().Str("project", projectID).Msg("destroy failed")
		return DestroyOutcome{Status: StatusError, Stdout: res.Stdout, Stderr: res.Stderr, CleanupLogs: log}, nil
	}

	// Teardown: the workspace goes away only after a fully successful
	// destroy. A removal failure is a warning, not an error result.
	if err := s.workspaces.Remove(projectID); err != nil {
		s.logger.Warn().Str("project", projectID).Err(err).Msg("workspace removal failed")
		log = log.Add("warning: workspace removal failed: %v", err)
	}
	s.logger.Info().Str("project", projectID).Msg("destroy succeeded")
	return DestroyOutcome{Status: StatusSuccess, Stdout: res.Stdout, Stderr: res.Stderr, CleanupLogs: log}, nil
}

// retryDestroy runs the single refresh-and-retry cycle. The refresh is best
// effort; the second attempt's result is final either way.
func (s *Service) retryDestroy(ctx context.Context, projectID, dir string, env []string, log *cleanup.Log) (terraform.Result, error) {
	s.logger.Warn().Str("project", projectID).Msg("destroy failed; refreshing state and retrying once")
	*log = log.Add("first destroy attempt failed; refreshing and retrying")

	if refreshRes, err := s.runner.Refresh(ctx, dir, env); err != nil {
		*log = log.Add("warning: refresh failed: %v", err)
	} else if refreshRes.ExitCode != 0 {
		*log = log.Add("warning: refresh exited %d", refreshRes.ExitCode)
	}

	select {
	case <-time.After(s.retryWait):
	case <-ctx.Done():
		return terraform.Result{}, fmt.Errorf("destroy retry cancelled: %w", ctx.Err())
	}

	res, err := s.runner.Destroy(ctx, dir, env)
	if err != nil {
		var engineErr *models.EngineError
		if errors.As(err, &engineErr) && engineErr.Timeout {
			return terraform.Result{ExitCode: -1, Stderr: engineErr.Error()}, nil
		}
		return terraform.Result{}, err
	}
	return res, nil
}
