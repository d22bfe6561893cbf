package zedupdate

import (
	"time"
)

// HttpAsset accepts both the short form ({name, url, size}) and the GitHub REST form (browser_download_url).
type HttpAsset struct {
	ID                 int64  `yaml:"id"`
	Name               string `yaml:"name"`
	Size               int    `yaml:"size"`
	URL                string `yaml:"url"`
	BrowserDownloadURL string `yaml:"browser_download_url"`
	Checksum           string `yaml:"sha256"`
}

func (a *HttpAsset) GetID() int64 {
	return a.ID
}

func (a *HttpAsset) GetName() string {
	return a.Name
}

func (a *HttpAsset) GetSize() int {
	return a.Size
}

func (a *HttpAsset) GetBrowserDownloadURL() string {
	if a.BrowserDownloadURL != "" {
		return a.BrowserDownloadURL
	}
	return a.URL
}

func (a *HttpAsset) GetChecksum() string {
	return a.Checksum
}

var _ SourceAsset = &HttpAsset{}

type HttpRelease struct {
	ID           int64        `yaml:"id"`
	Name         string       `yaml:"name"`
	TagName      string       `yaml:"tag_name"`
	Version      string       `yaml:"version"`
	URL          string       `yaml:"html_url"`
	Draft        bool         `yaml:"draft"`
	Prerelease   bool         `yaml:"prerelease"`
	PublishedAt  string       `yaml:"published_at"`
	ReleaseNotes string       `yaml:"body"`
	Assets       []*HttpAsset `yaml:"assets"`
}

func (r *HttpRelease) GetTagName() string {
	if r.TagName != "" {
		return r.TagName
	}
	return r.Version
}

func (r *HttpRelease) GetDraft() bool {
	return r.Draft
}

func (r *HttpRelease) GetPrerelease() bool {
	return r.Prerelease
}

// GetPublishedAt parses published_at as RFC 3339; an invalid date is the zero time.
func (r *HttpRelease) GetPublishedAt() time.Time {
	published, err := time.Parse(time.RFC3339, r.PublishedAt)
	if err != nil {
		return time.Time{}
	}
	return published
}

func (r *HttpRelease) GetReleaseNotes() string {
	return r.ReleaseNotes
}

func (r *HttpRelease) GetName() string {
	return r.Name
}

func (r *HttpRelease) GetURL() string {
	return r.URL
}

// GetAssets skips the null entries a document may contain.
func (r *HttpRelease) GetAssets() []SourceAsset {
	assets := make([]SourceAsset, 0, len(r.Assets))
	for _, asset := range r.Assets {
		if asset != nil {
			assets = append(assets, asset)
		}
	}
	return assets
}

var (
	_ SourceRelease = &HttpRelease{}
	_ checksumAsset = &HttpAsset{}
)
