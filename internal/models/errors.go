package models

import "fmt"

// ConfigurationError represents missing or contradictory credential
// configuration. It is fatal for the request and never retried.
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("credential configuration error: %s", e.Detail)
}

// DelegationError represents a failed role-assumption exchange.
type DelegationError struct {
	RoleARN string
	Cause   error
}

func (e *DelegationError) Error() string {
	return fmt.Sprintf("role assumption failed for '%s': %v", e.RoleARN, e.Cause)
}

func (e *DelegationError) Unwrap() error {
	return e.Cause
}

// MalformedStateError represents a state file that exists and is non-empty
// but cannot be parsed. Surfaced to the caller, never a crash.
type MalformedStateError struct {
	Path  string
	Cause error
}

func (e *MalformedStateError) Error() string {
	return fmt.Sprintf("state file '%s' is not parseable: %v", e.Path, e.Cause)
}

func (e *MalformedStateError) Unwrap() error {
	return e.Cause
}

// EngineError represents a provisioning engine subcommand failure.
// Phase is one of "init", "apply", "destroy", "refresh", "version".
// Timeout marks attempts killed by their per-operation deadline.
type EngineError struct {
	Phase   string
	Stderr  string
	Timeout bool
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("terraform %s timed out: %v", e.Phase, e.Cause)
	}
	return fmt.Sprintf("terraform %s failed: %v", e.Phase, e.Cause)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}
