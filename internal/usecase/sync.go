package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/naka-gawa/ashe-stats/internal/gateway"
)

// RepositorySync keeps a local clone of a repository present and current.
type RepositorySync struct {
	git      gateway.Git
	resolver gateway.UpstreamResolver
	out      io.Writer
	logger   *log.Logger
}

// NewRepositorySync creates a new RepositorySync. resolver may be nil.
// Progress messages are printed to out.
func NewRepositorySync(git gateway.Git, resolver gateway.UpstreamResolver, out io.Writer, logger *log.Logger) *RepositorySync {
	return &RepositorySync{
		git:      git,
		resolver: resolver,
		out:      out,
		logger:   logger,
	}
}

// Ensure clones repoURL into localPath when it is missing or not a git
// repository, and pulls when it already is one. Cloning into an existing
// non-empty directory is left to the git backend, which refuses it.
func (s *RepositorySync) Ensure(ctx context.Context, repoURL, localPath string) error {
	_, err := os.Stat(localPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		fmt.Fprintln(s.out, "Cloning the repository...")
		return s.clone(ctx, repoURL, localPath)
	case err != nil:
		return &FileAccessError{Op: "stat", Path: localPath, Err: err}
	}

	fmt.Fprintln(s.out, "Repository exists. Checking if it's a Git repository...")
	if !gateway.IsRepository(localPath) {
		fmt.Fprintf(s.out, "The directory %s is not a Git repository.\n", localPath)
		return s.clone(ctx, repoURL, localPath)
	}

	fmt.Fprintln(s.out, "Updating the repository...")
	return s.git.Pull(ctx, localPath)
}

// clone pins the clone to the resolved upstream when a resolver is set and
// resolution succeeds; otherwise it clones repoURL at the remote default.
func (s *RepositorySync) clone(ctx context.Context, repoURL, localPath string) error {
	url, branch := repoURL, ""
	if s.resolver != nil {
		upstream, err := s.resolver.Resolve(ctx, repoURL)
		if err != nil {
			s.logger.Printf("Upstream lookup for %s failed, cloning the remote default: %v", repoURL, err)
		} else {
			s.logger.Printf("Upstream %s/%s: default branch %s at %s", upstream.Owner, upstream.Name, upstream.DefaultBranch, upstream.HeadOID)
			if upstream.CloneURL != "" {
				url = upstream.CloneURL
			}
			branch = upstream.DefaultBranch
			if upstream.HeadOID != "" {
				fmt.Fprintf(s.out, "Cloning %s at %s (%s)\n", branch, upstream.HeadOID, url)
			}
		}
	}
	return s.git.Clone(ctx, url, localPath, branch)
}
