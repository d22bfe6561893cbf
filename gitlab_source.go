package zedupdate

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/xanzy/go-gitlab"
)

// GitLabConfig is an object to pass to NewGitLabSource
type GitLabConfig struct {
	// APIToken represents GitLab API token. If it's not empty, it will be used for authentication for the API
	APIToken string
	// BaseURL is a base URL of your private GitLab instance
	BaseURL string
	// HTTPClient is the client the API calls go through (proxy, timeout). Defaults to a new http.Client.
	HTTPClient *http.Client
}

// GitLabSource is used to load release information from GitLab
type GitLabSource struct {
	api     *gitlab.Client
	token   string
	baseURL string
}

// NewGitLabSource creates a new GitLabSource from a config object.
// It initializes a GitLab API client.
// If you set your API token to the $GITLAB_TOKEN environment variable, the client will use it.
// You can pass an empty GitLabConfig{} to use the default configuration
// The function will return an error if the GitLab Enterprise URLs in the config object cannot be parsed
func NewGitLabSource(config GitLabConfig) (*GitLabSource, error) {
	token := config.APIToken
	if token == "" {
		// try the environment variable
		token = os.Getenv("GITLAB_TOKEN")
	}
	option := make([]gitlab.ClientOptionFunc, 0, 2)
	if config.BaseURL != "" {
		option = append(option, gitlab.WithBaseURL(config.BaseURL))
	}
	if config.HTTPClient != nil {
		option = append(option, gitlab.WithHTTPClient(config.HTTPClient))
	}
	client, err := gitlab.NewClient(token, option...)
	if err != nil {
		return nil, fmt.Errorf("cannot create GitLab client: %w", err)
	}
	return &GitLabSource{
		api:     client,
		token:   token,
		baseURL: config.BaseURL,
	}, nil
}

// LatestRelease returns the most recent release of the project (GitLab lists them newest first).
func (s *GitLabSource) LatestRelease(ctx context.Context, repository Repository) (SourceRelease, error) {
	owner, repo, err := repository.GetSlug()
	if err != nil {
		return nil, err
	}
	pid := owner + "/" + repo

	rels, res, err := s.api.Releases.ListReleases(pid, &gitlab.ListReleasesOptions{
		ListOptions: gitlab.ListOptions{Page: 1, PerPage: 1},
	}, gitlab.WithContext(ctx))
	if err != nil {
		if res != nil && res.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: project %s not found", ErrNotFound, pid)
		}
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	if len(rels) == 0 {
		return nil, fmt.Errorf("%w: no release in project %s", ErrNotFound, pid)
	}
	return NewGitLabRelease(rels[0]), nil
}

// AuthorizeDownload adds the API token to asset requests going to the GitLab instance only,
// so the token never leaks to a third party host.
func (s *GitLabSource) AuthorizeDownload(req *http.Request) {
	if s.token == "" {
		return
	}
	ok, err := canUseTokenForDomain(s.baseURL, req.URL.String())
	if err != nil || !ok {
		return
	}
	req.Header.Set("PRIVATE-TOKEN", s.token)
}

// Verify interface
var (
	_ Source             = &GitLabSource{}
	_ DownloadAuthorizer = &GitLabSource{}
)
