package zedupdate

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"code.gitea.io/sdk/gitea"
)

// GiteaConfig is an object to pass to NewGiteaSource
type GiteaConfig struct {
	// APIToken represents Gitea API token. If it's not empty, it will be used for authentication for the API
	APIToken string
	// BaseURL is a base URL of your gitea instance
	BaseURL string
	// HTTPClient is the client the API calls go through (proxy, timeout). Defaults to a new http.Client.
	HTTPClient *http.Client
}

// GiteaSource is used to load release information from Gitea
type GiteaSource struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewGiteaSource creates a new GiteaSource from a config object.
// If you set your API token to the $GITEA_TOKEN environment variable, the client will use it.
func NewGiteaSource(config GiteaConfig) (*GiteaSource, error) {
	token := config.APIToken
	if token == "" {
		// try the environment variable
		token = os.Getenv("GITEA_TOKEN")
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("gitea base url must be set")
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &GiteaSource{
		baseURL:    config.BaseURL,
		token:      token,
		httpClient: httpClient,
	}, nil
}

// LatestRelease returns the most recent release which is neither a draft nor a pre-release.
func (s *GiteaSource) LatestRelease(ctx context.Context, repository Repository) (SourceRelease, error) {
	owner, repo, err := repository.GetSlug()
	if err != nil {
		return nil, err
	}

	// the client asks the server for its version when created: it is bound to this call's context
	client, err := gitea.NewClient(s.baseURL,
		gitea.SetContext(ctx),
		gitea.SetToken(s.token),
		gitea.SetHTTPClient(s.httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot connect to gitea: %w", ErrNetwork, err)
	}

	rels, res, err := client.ListReleases(owner, repo, gitea.ListReleasesOptions{
		ListOptions: gitea.ListOptions{Page: 1, PageSize: 20},
	})
	if err != nil {
		if res != nil && res.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: repository %s/%s not found", ErrNotFound, owner, repo)
		}
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	for _, rel := range rels {
		if rel.IsDraft || rel.IsPrerelease {
			log.Printf("Skip draft or pre-release version %s", rel.TagName)
			continue
		}
		return NewGiteaRelease(rel), nil
	}
	return nil, fmt.Errorf("%w: no release in repository %s/%s", ErrNotFound, owner, repo)
}

// Verify interface
var _ Source = &GiteaSource{}
