package githubsync

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/go-git/go-billy/v5/memfs"
)

// PushRequest describes one file to create or update on a branch.
type PushRequest struct {
	Owner   string `json:"owner" validate:"required,min=1"`
	Repo    string `json:"repo" validate:"required,min=1"`
	Branch  string `json:"branch"`
	Path    string `json:"path" validate:"required,min=1"`
	Content string `json:"content" validate:"required"`
	Message string `json:"message"`
}

// Service pushes workspace files to GitHub. The repository is cloned into
// memory, the file written, committed and pushed; nothing touches disk.
type Service struct {
	Token string
}

func NewService(token string) *Service {
	return &Service{Token: token}
}

// Push creates or updates the file and returns the commit hash.
func (s *Service) Push(ctx context.Context, req PushRequest) (string, error) {
	if s.Token == "" {
		return "", errors.New("githubsync: GITHUB_TOKEN not configured")
	}

	branch := req.Branch
	if branch == "" {
		branch = "main"
	}
	message := req.Message
	if message == "" {
		message = fmt.Sprintf("Update %s from CoveStack", req.Path)
	}

	auth := &githttp.BasicAuth{Username: "x-access-token", Password: s.Token}
	cloneURL := fmt.Sprintf("https://github.com/%s/%s.git", req.Owner, req.Repo)
	branchRef := plumbing.NewBranchReferenceName(branch)

	fs := memfs.New()
	repo, err := git.CloneContext(ctx, memory.NewStorage(), fs, &git.CloneOptions{
		URL:           cloneURL,
		ReferenceName: branchRef,
		SingleBranch:  true,
		Auth:          auth,
	})
	createBranch := false
	if errors.Is(err, plumbing.ErrReferenceNotFound) || errors.Is(err, git.NoMatchingRefSpecError{}) {
		// Branch does not exist yet; clone the default branch and fork it.
		fs = memfs.New()
		repo, err = git.CloneContext(ctx, memory.NewStorage(), fs, &git.CloneOptions{
			URL:  cloneURL,
			Auth: auth,
		})
		createBranch = true
	}
	if err != nil {
		return "", fmt.Errorf("githubsync: clone %s: %w", cloneURL, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", err
	}
	if createBranch {
		if err := wt.Checkout(&git.CheckoutOptions{Branch: branchRef, Create: true}); err != nil {
			return "", fmt.Errorf("githubsync: create branch %s: %w", branch, err)
		}
	}

	if dir := path.Dir(req.Path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	f, err := fs.Create(req.Path)
	if err != nil {
		return "", err
	}
	if _, err := f.Write([]byte(req.Content)); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	if _, err := wt.Add(req.Path); err != nil {
		return "", err
	}
	commit, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "CoveStack",
			Email: "no-reply@covestack.dev",
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("githubsync: commit: %w", err)
	}

	if err := repo.PushContext(ctx, &git.PushOptions{Auth: auth}); err != nil {
		return "", fmt.Errorf("githubsync: push: %w", err)
	}
	return commit.String(), nil
}
