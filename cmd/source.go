// Package cmd holds helpers shared by the command line tools.
package cmd

import (
	"fmt"
	"net/url"
	"strings"

	zedupdate "github.com/zedloc/zed-updater"
	"github.com/zedloc/zed-updater/settings"
)

// SplitDomainSlug tries to make sense of the repository string
// and returns a domain name (if present) and a slug.
//
// Example of valid entries:
//
//   - "owner/name"
//   - "github.com/owner/name"
//   - "https://gitea.example.com/owner/name"
func SplitDomainSlug(repo string) (domain, slug string, err error) {
	// simple case first => only a slug
	parts := strings.Split(repo, "/")
	if len(parts) == 2 {
		if parts[0] == "" || parts[1] == "" {
			return "", "", fmt.Errorf("invalid slug or URL %q", repo)
		}
		return "", repo, nil
	}
	repo = strings.TrimSuffix(repo, "/")

	if !strings.Contains(repo, "://") && !strings.HasPrefix(repo, "/") {
		repo = "https://" + repo
	}

	repoURL, err := url.Parse(repo)
	if err != nil {
		return "", "", err
	}

	// make sure hostname looks like a real domain name
	if !strings.Contains(repoURL.Hostname(), ".") {
		return "", "", fmt.Errorf("invalid domain name %q", repoURL.Hostname())
	}
	domain = repoURL.Scheme + "://" + repoURL.Host
	slug = strings.TrimPrefix(repoURL.Path, "/")

	if slug == "" || strings.Count(slug, "/") != 1 {
		return "", "", fmt.Errorf("invalid URL %q", repo)
	}
	return domain, slug, nil
}

// OverrideRepository returns a copy of s pointing at another repository.
// repo is anything SplitDomainSlug accepts. kind is a release source name, or "auto"
// (or empty) to guess it from the domain. An empty repo only changes the source.
func OverrideRepository(s settings.Settings, repo, kind string) (settings.Settings, error) {
	var domain string
	if repo != "" {
		var slug string
		var err error
		domain, slug, err = SplitDomainSlug(repo)
		if err != nil {
			return s, fmt.Errorf("%w: %w", zedupdate.ErrConfiguration, err)
		}
		s.Repository = slug
	}

	if kind == "" || kind == "auto" {
		if domain == "" {
			return s, nil
		}
		kind = sourceFromDomain(domain)
	}

	switch kind {
	case zedupdate.SourceGitHub:
		s.ReleaseSource = zedupdate.SourceGitHub
		if domain != "" {
			s.ReleaseAPIURL = gitHubAPIURL(domain)
		}
	case zedupdate.SourceGitea, zedupdate.SourceGitLab, zedupdate.SourceHTTP:
		s.ReleaseSource = kind
		if domain != "" {
			s.ReleaseAPIURL = domain
		}
	default:
		return s, fmt.Errorf("%w: unknown release source %q", zedupdate.ErrConfiguration, kind)
	}
	return s, nil
}

func sourceFromDomain(domain string) string {
	if strings.Contains(domain, "gitea") {
		return zedupdate.SourceGitea
	}
	if strings.Contains(domain, "gitlab") {
		return zedupdate.SourceGitLab
	}
	return zedupdate.SourceGitHub
}

// gitHubAPIURL is empty for github.com, which needs no enterprise URL.
func gitHubAPIURL(domain string) string {
	if strings.HasSuffix(domain, "://github.com") || strings.HasSuffix(domain, "://www.github.com") {
		return ""
	}
	return domain + "/api/v3/"
}
