// Package terraform invokes the provisioning engine's CLI as subprocesses
// with per-operation timeouts and injected credentials.
package terraform

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/provisio/provisio/internal/models"
)

// Per-operation timeouts. Destroy runs longest because it waits on AWS
// resource deletion; init and apply share the engine default.
const (
	versionTimeout = 10 * time.Second
	refreshTimeout = 300 * time.Second
	destroyTimeout = 600 * time.Second
	defaultTimeout = 600 * time.Second
)

// Result captures one finished engine subcommand.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes engine subcommands inside a workspace directory.
type Runner struct {
	binary string
	logger zerolog.Logger
}

// NewRunner creates a runner for the given engine binary ("terraform" when
// empty).
func NewRunner(binary string, logger zerolog.Logger) *Runner {
	if binary == "" {
		binary = "terraform"
	}
	return &Runner{
		binary: binary,
		logger: logger.With().Str("component", "terraform").Logger(),
	}
}

// Init runs terraform init in dir.
func (r *Runner) Init(ctx context.Context, dir string, env []string) (Result, error) {
	return r.run(ctx, "init", dir, env, defaultTimeout, "init", "-input=false", "-no-color")
}

// Apply runs terraform apply without a separate plan step.
func (r *Runner) Apply(ctx context.Context, dir string, env []string) (Result, error) {
	return r.run(ctx, "apply", dir, env, defaultTimeout, "apply", "-auto-approve", "-input=false", "-no-color")
}

// Destroy runs terraform destroy.
func (r *Runner) Destroy(ctx context.Context, dir string, env []string) (Result, error) {
	return r.run(ctx, "destroy", dir, env, destroyTimeout, "destroy", "-auto-approve", "-input=false", "-no-color")
}

// Refresh reconciles state with live resources before a destroy retry.
func (r *Runner) Refresh(ctx context.Context, dir string, env []string) (Result, error) {
	return r.run(ctx, "refresh", dir, env, refreshTimeout, "refresh", "-input=false", "-no-color")
}

// Version reports the installed engine version line, e.g. for the startup
// preflight log.
func (r *Runner) Version(ctx context.Context) (string, error) {
	res, err := r.run(ctx, "version", "", nil, versionTimeout, "version")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", &models.EngineError{Phase: "version", Stderr: res.Stderr,
			Cause: errors.New("terraform version exited non-zero")}
	}
	line, _, _ := strings.Cut(res.Stdout, "\n")
	return strings.TrimSpace(line), nil
}

// run executes one subcommand and captures its output. A non-zero exit is
// reported through Result, not as an error; errors mean the command could
// not run to completion (missing binary, timeout).
func (r *Runner) run(ctx context.Context, phase, dir string, env []string, timeout time.Duration, args ...string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binary, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), "TF_IN_AUTOMATION=1")
	cmd.Env = append(cmd.Env, env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.logger.Debug().
		Str("phase", phase).
		Dur("elapsed", time.Since(start)).
		Msg("engine subcommand finished")

	if ctx.Err() == context.DeadlineExceeded {
		// Partial output from a killed attempt is discarded.
		return Result{}, &models.EngineError{Phase: phase, Timeout: true, Cause: ctx.Err()}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
			}, nil
		}
		return Result{}, &models.EngineError{Phase: phase, Cause: err}
	}

	return Result{ExitCode: 0, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}
