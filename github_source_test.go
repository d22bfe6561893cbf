package zedupdate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const githubLatestRelease = `{
	"id": 1,
	"tag_name": "v20240115",
	"name": "Zed 20240115",
	"html_url": "https://github.com/TC999/zed-loc/releases/tag/v20240115",
	"body": "localized build",
	"draft": false,
	"prerelease": false,
	"published_at": "2024-01-15T10:00:00Z",
	"assets": [
		{
			"id": 11,
			"name": "zed-windows.zip",
			"size": 1024,
			"browser_download_url": "https://github.com/TC999/zed-loc/releases/download/v20240115/zed-windows.zip"
		}
	]
}`

func newGitHubTestServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/TC999/zed-loc/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(githubLatestRelease))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestGitHubTokenIsNotSet(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")

	if _, err := NewGitHubSource(GitHubConfig{}); err != nil {
		t.Error("Failed to initialize GitHub source with empty config")
	}
}

func TestGitHubEnterpriseClientInvalidURL(t *testing.T) {
	_, err := NewGitHubSource(GitHubConfig{APIToken: "my_token", EnterpriseBaseURL: ":this is not a URL"})
	if err == nil {
		t.Fatal("Invalid URL should raise an error")
	}
}

func TestGitHubEnterpriseClientValidURL(t *testing.T) {
	_, err := NewGitHubSource(GitHubConfig{APIToken: "my_token", EnterpriseBaseURL: "http://localhost"})
	if err != nil {
		t.Fatal("Failed to initialize GitHub source with valid URL")
	}
}

func TestGitHubLatestRelease(t *testing.T) {
	server := newGitHubTestServer(t, "my_token")
	source, err := NewGitHubSource(GitHubConfig{APIToken: "my_token", EnterpriseBaseURL: server.URL})
	require.NoError(t, err)

	rel, err := source.LatestRelease(context.Background(), ParseSlug("TC999/zed-loc"))
	require.NoError(t, err)
	assert.Equal(t, "v20240115", rel.GetTagName())
	assert.Equal(t, "Zed 20240115", rel.GetName())
	assert.Equal(t, "localized build", rel.GetReleaseNotes())
	assert.Equal(t, 2024, rel.GetPublishedAt().Year())
	require.Len(t, rel.GetAssets(), 1)
	asset := rel.GetAssets()[0]
	assert.Equal(t, "zed-windows.zip", asset.GetName())
	assert.Equal(t, 1024, asset.GetSize())
	assert.Contains(t, asset.GetBrowserDownloadURL(), "zed-windows.zip")
}

func TestGitHubLatestReleaseNotFound(t *testing.T) {
	server := newGitHubTestServer(t, "")
	source, err := NewGitHubSource(GitHubConfig{EnterpriseBaseURL: server.URL})
	require.NoError(t, err)

	_, err = source.LatestRelease(context.Background(), ParseSlug("TC999/unknown"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGitHubLatestReleaseServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	source, err := NewGitHubSource(GitHubConfig{EnterpriseBaseURL: server.URL})
	require.NoError(t, err)

	_, err = source.LatestRelease(context.Background(), ParseSlug("TC999/zed-loc"))
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestGitHubLatestReleaseContextCancelled(t *testing.T) {
	server := newGitHubTestServer(t, "")
	source, err := NewGitHubSource(GitHubConfig{EnterpriseBaseURL: server.URL})
	require.NoError(t, err)

	ctx, cancelFn := context.WithCancel(context.Background())
	cancelFn()

	_, err = source.LatestRelease(ctx, ParseSlug("TC999/zed-loc"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGitHubLatestReleaseInvalidSlug(t *testing.T) {
	source, err := NewGitHubSource(GitHubConfig{})
	require.NoError(t, err)

	_, err = source.LatestRelease(context.Background(), ParseSlug("invalid"))
	assert.ErrorIs(t, err, ErrInvalidSlug)
}
