package zedupdate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	yaml "gopkg.in/yaml.v3"
)

// HttpConfig is an object to pass to NewHttpSource
type HttpConfig struct {
	// BaseURL is a base URL of your release registry. This parameter has NO default value.
	// The latest release of owner/repo is read from {BaseURL}/{owner}/{repo}/releases/latest,
	// so "https://api.github.com/repos" is a valid base URL.
	BaseURL string
	// HTTPClient is the client the requests go through (proxy, timeout). Defaults to a new http.Client.
	HTTPClient *http.Client
	// Additional headers
	Headers http.Header
}

// HttpSource is used to load release information from an http registry
type HttpSource struct {
	baseURL string
	client  *http.Client
	headers http.Header
}

// NewHttpSource creates a new HttpSource from a config object.
func NewHttpSource(config HttpConfig) (*HttpSource, error) {
	// Validate Base URL.
	if config.BaseURL == "" {
		return nil, fmt.Errorf("http base url must be set")
	}
	_, perr := url.ParseRequestURI(config.BaseURL)
	if perr != nil {
		return nil, perr
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &HttpSource{
		baseURL: config.BaseURL,
		client:  client,
		headers: config.Headers,
	}, nil
}

// Returns a full URI for a relative path URI.
func (s *HttpSource) uriRelative(uri, owner, repo string) string {
	// If URI is blank, its blank.
	if uri != "" {
		// If we're able to parse the URI, a full URI is already defined.
		_, perr := url.ParseRequestURI(uri)
		if perr != nil {
			// Join the paths if possible to make a full URI.
			newURL, jerr := url.JoinPath(s.baseURL, owner, repo, uri)
			if jerr == nil {
				uri = newURL
			}
		}
	}
	return uri
}

// LatestRelease fetches and decodes the latest release document.
// The document can be JSON or YAML.
func (s *HttpSource) LatestRelease(ctx context.Context, repository Repository) (SourceRelease, error) {
	owner, repo, err := repository.GetSlug()
	if err != nil {
		return nil, err
	}

	uri, err := url.JoinPath(s.baseURL, owner, repo, "releases", "latest")
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, http.NoBody)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9")

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: no release at %s", ErrNotFound, uri)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP request failed with status code %d", ErrNetwork, res.StatusCode)
	}

	release := new(HttpRelease)
	if err = yaml.NewDecoder(res.Body).Decode(release); err != nil {
		return nil, fmt.Errorf("%w: cannot decode release document: %w", ErrNotFound, err)
	}

	// Update URLs to relative path with repository.
	release.URL = s.uriRelative(release.URL, owner, repo)
	for _, asset := range release.Assets {
		if asset == nil {
			continue
		}
		asset.URL = s.uriRelative(asset.URL, owner, repo)
		asset.BrowserDownloadURL = s.uriRelative(asset.BrowserDownloadURL, owner, repo)
	}
	return release, nil
}

// Verify interface
var _ Source = &HttpSource{}
