package zedupdate

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/google/go-github/v72/github"
	"golang.org/x/oauth2"
)

// GitHubConfig is an object to pass to NewGitHubSource
type GitHubConfig struct {
	// APIToken represents GitHub API token. If it's not empty, it will be used for authentication of GitHub API
	APIToken string
	// EnterpriseBaseURL is a base URL of GitHub API. If you want to use this library with GitHub Enterprise,
	// please set "https://{your-organization-address}/api/v3/" to this field.
	EnterpriseBaseURL string
	// EnterpriseUploadURL is a URL to upload stuffs to GitHub Enterprise instance. This is often the same as an API base URL.
	// So if this field is not set and EnterpriseBaseURL is set, EnterpriseBaseURL is also set to this field.
	EnterpriseUploadURL string
	// HTTPClient is the client the API calls go through (proxy, timeout). Defaults to a new http.Client.
	HTTPClient *http.Client
}

// GitHubSource is used to load release information from GitHub
type GitHubSource struct {
	api *github.Client
}

// NewGitHubSource creates a new GitHubSource from a config object.
// It initializes a GitHub API client.
// If you set your API token to the $GITHUB_TOKEN environment variable, the client will use it.
// You can pass an empty GitHubConfig{} to use the default configuration
// The function will return an error if the GitHub Enterprise URLs in the config object cannot be parsed
func NewGitHubSource(config GitHubConfig) (*GitHubSource, error) {
	token := config.APIToken
	if token == "" {
		// try the environment variable
		token = os.Getenv("GITHUB_TOKEN")
	}
	client := github.NewClient(newHTTPClient(config.HTTPClient, token))

	if config.EnterpriseBaseURL == "" {
		// public (or private) repository on standard GitHub offering
		return &GitHubSource{api: client}, nil
	}

	u := config.EnterpriseUploadURL
	if u == "" {
		u = config.EnterpriseBaseURL
	}
	client, err := client.WithEnterpriseURLs(config.EnterpriseBaseURL, u)
	if err != nil {
		return nil, fmt.Errorf("cannot parse GitHub enterprise URL: %w", err)
	}
	return &GitHubSource{api: client}, nil
}

// LatestRelease returns the most recent published release, as decided by GitHub:
// drafts and pre-releases are never returned.
func (s *GitHubSource) LatestRelease(ctx context.Context, repository Repository) (SourceRelease, error) {
	owner, repo, err := repository.GetSlug()
	if err != nil {
		return nil, err
	}
	rel, res, err := s.api.Repositories.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		if res != nil && res.StatusCode == http.StatusNotFound {
			// 404 means repository not found or no release published
			return nil, fmt.Errorf("%w: no release in repository %s/%s", ErrNotFound, owner, repo)
		}
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return NewGitHubRelease(rel), nil
}

// newHTTPClient wraps base with an oauth2 transport when a token is given.
func newHTTPClient(base *http.Client, token string) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	if token == "" {
		return base
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := oauth2.NewClient(ctx, src)
	client.Timeout = base.Timeout
	return client
}

// Verify interface
var _ Source = &GitHubSource{}
