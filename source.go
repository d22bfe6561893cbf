package zedupdate

import (
	"context"
	"time"
)

// SourceRelease is a release as published by a release registry.
type SourceRelease interface {
	GetTagName() string
	GetDraft() bool
	GetPrerelease() bool
	GetPublishedAt() time.Time
	GetReleaseNotes() string
	GetName() string
	GetURL() string

	GetAssets() []SourceAsset
}

// SourceAsset is one file attached to a release.
type SourceAsset interface {
	GetID() int64
	GetName() string
	GetSize() int
	GetBrowserDownloadURL() string
}

// checksumAsset is implemented by assets whose registry publishes a sha256 digest.
type checksumAsset interface {
	GetChecksum() string
}

// Source interface to load the latest release from (GitHubSource for example).
// LatestRelease returns an error wrapping ErrNotFound when the repository has no usable release.
type Source interface {
	LatestRelease(ctx context.Context, repository Repository) (SourceRelease, error)
}
