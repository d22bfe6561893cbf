package zedupdate

import (
	"fmt"
	"net/http"
	"time"

	"github.com/zedloc/zed-updater/settings"
)

// Release sources accepted by the "release_source" setting.
const (
	SourceGitHub = "github"
	SourceGitea  = "gitea"
	SourceGitLab = "gitlab"
	SourceHTTP   = "http"
)

// Config represents the configuration of the updater. Settings is mandatory, the other fields are derived from it when empty.
type Config struct {
	// Settings is the configuration store shared with the scheduler and the command line
	Settings *settings.Store
	// Source where to load the releases from (example: GitHubSource). Defaults to the "release_source" setting.
	Source Source
	// Repository defaults to the "github_repo" setting
	Repository Repository
	// Process stops the running editor before an install and starts it afterwards. Nil skips both.
	Process ProcessService
	// HTTPClient is used for downloads. It defaults to a client going through the configured proxy.
	HTTPClient *http.Client
	// VersionDetectors find the version of the installed executable, first answer wins.
	// Defaults to DefaultVersionDetectors.
	VersionDetectors []VersionDetector
	// OS is set to the value of runtime.GOOS by default, but you can force another value here
	OS string
	// Arch is set to the value of runtime.GOARCH by default, but you can force another value here
	Arch string
	// UniversalArch is the name used by the releases for a macOS binary running on every architecture
	UniversalArch string
	// BackoffBase is the wait before the second download attempt (default one second)
	BackoffBase time.Duration
}

// NewHTTPClient returns a client going through the proxy when proxy_enabled is set.
// A zero timeout means no timeout, which suits downloads bounded by their own context.
func NewHTTPClient(s settings.Settings, timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if s.ProxyEnabled && s.ProxyURL != "" {
		proxy, err := settings.ParseProxyURL(s.ProxyURL)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(proxy)
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}

// SourceFromSettings creates the release source named by the "release_source" setting.
// The API calls go through client.
func SourceFromSettings(s settings.Settings, client *http.Client) (Source, error) {
	switch s.ReleaseSource {
	case SourceGitHub, "":
		return NewGitHubSource(GitHubConfig{
			APIToken:          s.APIToken,
			EnterpriseBaseURL: s.ReleaseAPIURL,
			HTTPClient:        client,
		})
	case SourceGitea:
		return NewGiteaSource(GiteaConfig{
			APIToken:   s.APIToken,
			BaseURL:    s.ReleaseAPIURL,
			HTTPClient: client,
		})
	case SourceGitLab:
		return NewGitLabSource(GitLabConfig{
			APIToken:   s.APIToken,
			BaseURL:    s.ReleaseAPIURL,
			HTTPClient: client,
		})
	case SourceHTTP:
		var headers http.Header
		if s.APIToken != "" {
			headers = http.Header{"Authorization": []string{"Bearer " + s.APIToken}}
		}
		source, err := NewHttpSource(HttpConfig{
			BaseURL:    s.ReleaseAPIURL,
			HTTPClient: client,
			Headers:    headers,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		return source, nil
	default:
		return nil, fmt.Errorf("%w: unknown release source %q", ErrConfiguration, s.ReleaseSource)
	}
}
