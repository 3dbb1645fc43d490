// Package gateway provides access to everything outside the process:
// external commands, git repositories and the GitHub API.
package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/naka-gawa/ashe-stats/internal/domain"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
)

// UpstreamResolver looks up a remote repository before it is cloned or pulled.
type UpstreamResolver interface {
	Resolve(ctx context.Context, repoURL string) (*domain.Upstream, error)
}

// GitHubGateway is the concrete implementation of the UpstreamResolver interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *log.Logger
}

// headCommitQuery fetches the commit at the tip of the default branch.
type headCommitQuery struct {
	Repository struct {
		DefaultBranchRef struct {
			Name   string
			Target struct {
				Oid githubv4.GitObjectID
			}
		}
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(token string, logger *log.Logger) (UpstreamResolver, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		logger:        logger,
	}, nil
}

// ParseGitHubURL extracts owner and repository name from an https, ssh or
// scp-style GitHub URL.
func ParseGitHubURL(repoURL string) (owner, name string, err error) {
	var path string
	switch {
	case strings.HasPrefix(repoURL, "git@github.com:"):
		path = strings.TrimPrefix(repoURL, "git@github.com:")
	default:
		u, perr := url.Parse(repoURL)
		if perr != nil {
			return "", "", fmt.Errorf("failed to parse repository URL %q: %w", repoURL, perr)
		}
		if !strings.EqualFold(u.Hostname(), "github.com") {
			return "", "", fmt.Errorf("not a GitHub URL: %q", repoURL)
		}
		path = u.Path
	}
	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("could not find owner/name in %q", repoURL)
	}
	return parts[0], parts[1], nil
}

// Resolve fetches the clone URL and default branch with the REST API and the
// head commit of that branch with GraphQL.
func (g *GitHubGateway) Resolve(ctx context.Context, repoURL string) (*domain.Upstream, error) {
	owner, name, err := ParseGitHubURL(repoURL)
	if err != nil {
		return nil, err
	}

	g.logger.Printf("[1/2] Fetching repository %s/%s using REST API...", owner, name)
	repo, _, err := g.restClient.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository with REST API: %w", err)
	}
	upstream := &domain.Upstream{
		Owner:         owner,
		Name:          name,
		CloneURL:      repo.GetCloneURL(),
		DefaultBranch: repo.GetDefaultBranch(),
	}

	g.logger.Println("[2/2] Fetching head commit using GraphQL...")
	var q headCommitQuery
	variables := map[string]interface{}{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(name),
	}
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return nil, fmt.Errorf("failed to execute GraphQL query for head commit: %w", err)
	}
	upstream.HeadOID = string(q.Repository.DefaultBranchRef.Target.Oid)
	if upstream.DefaultBranch == "" {
		upstream.DefaultBranch = q.Repository.DefaultBranchRef.Name
	}

	g.logger.Printf("Completed resolving %s/%s: branch=%s head=%s", owner, name, upstream.DefaultBranch, upstream.HeadOID)
	return upstream, nil
}
