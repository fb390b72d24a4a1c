package adapter

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	m "memoscope.dev/pkg/memoscope/internal/model"
)

// GitAdapter is the minimal version-control surface the mutation session
// needs. Any VCS exposing these operations would do; the local
// implementation shells out to git.
type GitAdapter interface {
	// IsRepository reports whether dir is inside a git work tree.
	IsRepository(ctx context.Context, dir m.Path) bool

	// CurrentBranch returns the checked-out branch name.
	CurrentBranch(ctx context.Context, dir m.Path) (string, error)

	// IsClean reports whether the working tree has no staged, unstaged or
	// untracked changes.
	IsClean(ctx context.Context, dir m.Path) (bool, error)

	// CreateBranch creates and checks out a new branch.
	CreateBranch(ctx context.Context, dir m.Path, name string) error

	// Commit stages the given files and commits them with message.
	Commit(ctx context.Context, dir m.Path, message string, files ...m.Path) error

	// ForceCheckout checks out branch, discarding working-tree changes.
	ForceCheckout(ctx context.Context, dir m.Path, branch string) error

	// DeleteBranch force-deletes a branch.
	DeleteBranch(ctx context.Context, dir m.Path, name string) error
}

// LocalGitAdapter runs git commands via os/exec.
type LocalGitAdapter struct{}

// NewLocalGitAdapter constructs a LocalGitAdapter.
func NewLocalGitAdapter() *LocalGitAdapter {
	return &LocalGitAdapter{}
}

func (a *LocalGitAdapter) run(ctx context.Context, dir m.Path, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = string(dir)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

// IsRepository reports whether dir is inside a git work tree.
func (a *LocalGitAdapter) IsRepository(ctx context.Context, dir m.Path) bool {
	_, err := a.run(ctx, dir, "rev-parse", "--git-dir")

	return err == nil
}

// CurrentBranch returns the checked-out branch name.
func (a *LocalGitAdapter) CurrentBranch(ctx context.Context, dir m.Path) (string, error) {
	out, err := a.run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out), nil
}

// IsClean reports whether `git status --porcelain` is empty.
func (a *LocalGitAdapter) IsClean(ctx context.Context, dir m.Path) (bool, error) {
	out, err := a.run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}

	return strings.TrimSpace(out) == "", nil
}

// CreateBranch creates and checks out a new branch.
func (a *LocalGitAdapter) CreateBranch(ctx context.Context, dir m.Path, name string) error {
	_, err := a.run(ctx, dir, "checkout", "-b", name)

	return err
}

// Commit stages files and commits them with message.
func (a *LocalGitAdapter) Commit(ctx context.Context, dir m.Path, message string, files ...m.Path) error {
	addArgs := []string{"add", "--"}
	for _, f := range files {
		addArgs = append(addArgs, string(f))
	}

	if _, err := a.run(ctx, dir, addArgs...); err != nil {
		return err
	}

	_, err := a.run(ctx, dir, "commit", "-m", message)

	return err
}

// ForceCheckout checks out branch, discarding working-tree changes.
func (a *LocalGitAdapter) ForceCheckout(ctx context.Context, dir m.Path, branch string) error {
	_, err := a.run(ctx, dir, "checkout", "-f", branch)

	return err
}

// DeleteBranch force-deletes a branch.
func (a *LocalGitAdapter) DeleteBranch(ctx context.Context, dir m.Path, name string) error {
	_, err := a.run(ctx, dir, "branch", "-D", name)

	return err
}
