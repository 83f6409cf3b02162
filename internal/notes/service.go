package notes

import (
	"context"
	"errors"

	"github.com/covestack/covestack/pkg/metrics"
)

// Publisher delivers accepted writes to live viewers. *socket.Hub satisfies it.
type Publisher interface {
	PublishNoteUpdate(workspaceID, editorID, content string, version int)
}

// Service is the document version store: one versioned note per workspace,
// lazily created, mutated only through conditional updates.
type Service struct {
	Repo Repository
	Hub  Publisher
}

func NewService(repo Repository, hub Publisher) *Service {
	return &Service{Repo: repo, Hub: hub}
}

// Get returns the workspace note, creating an empty one at version 1 on
// first access. Two racing first reads converge on the same row.
func (s *Service) Get(ctx context.Context, workspaceID string) (*Note, error) {
	n, err := s.Repo.GetByWorkspace(ctx, workspaceID)
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	n, err = s.Repo.Create(ctx, workspaceID, "", "")
	if errors.Is(err, ErrAlreadyExists) {
		// Lost the creation race; read what the winner wrote.
		return s.Repo.GetByWorkspace(ctx, workspaceID)
	}
	return n, err
}

// Save replaces the note content. With expected set, the write is accepted
// only if expected equals the stored version at the moment of the write;
// otherwise a *ConflictError carries the untouched server state. Without
// expected the write always lands (last writer wins) but the version bump
// still serializes on the row. A workspace with no note yet gets one at
// version 1 regardless of expected.
func (s *Service) Save(ctx context.Context, workspaceID, content string, expected *int, editorID string) (*Note, error) {
	// Create-on-write: the insert is atomic, so exactly one first writer
	// wins and everyone else proceeds against the existing row.
	created, err := s.Repo.Create(ctx, workspaceID, content, editorID)
	if err == nil {
		s.accepted(created, expected != nil)
		return created, nil
	}
	if !errors.Is(err, ErrAlreadyExists) {
		return nil, err
	}

	if expected == nil {
		n, err := s.Repo.ForceUpdate(ctx, workspaceID, content, editorID)
		if err != nil {
			return nil, err
		}
		s.accepted(n, false)
		return n, nil
	}

	n, err := s.Repo.CompareAndSwap(ctx, workspaceID, content, *expected, editorID)
	if err == nil {
		s.accepted(n, true)
		return n, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// No row matched the expected version: report the current server state.
	current, gerr := s.Repo.GetByWorkspace(ctx, workspaceID)
	if gerr != nil {
		return nil, gerr
	}
	metrics.NoteConflicts.Inc()
	return nil, &ConflictError{Expected: *expected, Current: current}
}

func (s *Service) accepted(n *Note, conditional bool) {
	mode := "unconditional"
	if conditional {
		mode = "conditional"
	}
	metrics.NoteSaves.WithLabelValues(mode).Inc()
	if s.Hub != nil {
		s.Hub.PublishNoteUpdate(n.WorkspaceID, n.UpdatedByID, n.Content, n.Version)
	}
}
