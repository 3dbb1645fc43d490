package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Git defines the repository operations needed to keep a local clone current.
type Git interface {
	// Clone clones url into path. An empty branch uses the remote default.
	Clone(ctx context.Context, url, path, branch string) error
	// Pull fetches and merges the upstream of the checked-out branch in path.
	Pull(ctx context.Context, path string) error
}

// IsRepository reports whether path holds git metadata. A .git file
// (worktrees, submodules) counts as well as a .git directory.
func IsRepository(path string) bool {
	_, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil
}

// ExecGit shells out to the git binary through a Runner.
type ExecGit struct {
	runner Runner
	out    io.Writer
}

// NewExecGit creates a Git that runs the git CLI. Command stdout is copied to out.
func NewExecGit(runner Runner, out io.Writer) *ExecGit {
	return &ExecGit{runner: runner, out: out}
}

func (g *ExecGit) Clone(ctx context.Context, url, path, branch string) error {
	args := []string{"clone"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, path)
	return g.run(ctx, Command{Name: "git", Args: args})
}

func (g *ExecGit) Pull(ctx context.Context, path string) error {
	return g.run(ctx, Command{Name: "git", Args: []string{"pull"}, Dir: path})
}

func (g *ExecGit) run(ctx context.Context, c Command) error {
	out, err := g.runner.Run(ctx, c)
	if out != "" {
		fmt.Fprint(g.out, out)
	}
	return err
}

// GoGit performs clone and pull in-process with go-git.
type GoGit struct {
	progress io.Writer
	logger   *log.Logger
}

// NewGoGit creates a Git backed by go-git. Transfer progress is written to progress.
func NewGoGit(progress io.Writer, logger *log.Logger) *GoGit {
	return &GoGit{progress: progress, logger: logger}
}

func (g *GoGit) Clone(ctx context.Context, url, path, branch string) error {
	opts := &git.CloneOptions{
		URL:      url,
		Progress: g.progress,
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		opts.SingleBranch = true
	}
	g.logger.Printf("GoGit: cloning %s into %s", url, path)
	if _, err := git.PlainCloneContext(ctx, path, false, opts); err != nil {
		return fmt.Errorf("failed to clone repository %s: %w", url, err)
	}
	return nil
}

func (g *GoGit) Pull(ctx context.Context, path string) error {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("failed to open repository %s: %w", path, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree of %s: %w", path, err)
	}
	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: git.DefaultRemoteName, Progress: g.progress})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		g.logger.Printf("GoGit: %s already up to date", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to pull %s: %w", path, err)
	}
	return nil
}
