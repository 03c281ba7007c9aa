// Package workspace maps project identifiers to their isolated working
// directories and persisted state files.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/provisio/provisio/internal/models"
	"github.com/provisio/provisio/internal/state"
)

// StateFileName is the engine's persisted state document within a workspace.
const StateFileName = "terraform.tfstate"

var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// Manager owns the workspace root directory.
type Manager struct {
	root   string
	logger zerolog.Logger
}

// NewManager creates a workspace manager rooted at dir.
func NewManager(root string, logger zerolog.Logger) *Manager {
	return &Manager{
		root:   root,
		logger: logger.With().Str("component", "workspace").Logger(),
	}
}

// Resolve maps a project to its workspace directory, creating it if absent.
func (m *Manager) Resolve(projectID string) (string, error) {
	if !projectIDPattern.MatchString(projectID) {
		return "", fmt.Errorf("invalid project id %q", projectID)
	}
	dir := filepath.Join(m.root, projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create workspace for %q: %w", projectID, err)
	}
	return dir, nil
}

// StatePath returns the state file path for a project without touching disk.
func (m *Manager) StatePath(projectID string) string {
	return filepath.Join(m.root, projectID, StateFileName)
}

// Exists reports whether the project's workspace directory is present.
func (m *Manager) Exists(projectID string) bool {
	if !projectIDPattern.MatchString(projectID) {
		return false
	}
	info, err := os.Stat(filepath.Join(m.root, projectID))
	return err == nil && info.IsDir()
}

// ReadState loads the project's state document. An absent or zero-length
// file means no infrastructure exists and yields (nil, nil). A non-empty but
// unparseable file is a MalformedStateError.
func (m *Manager) ReadState(projectID string) (*state.Document, error) {
	path := m.StatePath(projectID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state for %q: %w", projectID, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	doc, err := state.Parse(data)
	if err != nil {
		return nil, &models.MalformedStateError{Path: path, Cause: err}
	}
	return doc, nil
}

// ReadStateBytes returns the raw state document, or nil when it is absent or
// zero-length.
func (m *Manager) ReadStateBytes(projectID string) ([]byte, error) {
	data, err := os.ReadFile(m.StatePath(projectID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state for %q: %w", projectID, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

// Remove deletes the project's workspace directory entirely.
func (m *Manager) Remove(projectID string) error {
	if !projectIDPattern.MatchString(projectID) {
		return fmt.Errorf("invalid project id %q", projectID)
	}
	dir := filepath.Join(m.root, projectID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove workspace %q: %w", dir, err)
	}
	m.logger.Info().Str("project", projectID).Msg("workspace removed")
	return nil
}
