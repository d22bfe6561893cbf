package zedupdate

import (
	"time"
)

// ReleaseInfo describes the latest release found for the current platform.
// A ReleaseInfo is never modified once returned.
type ReleaseInfo struct {
	// Version is the normalized version: "1.2.3" or a "20240115" date stamp
	Version string
	// TagName is the tag as published on the registry
	TagName string
	// Name represents a name of the release
	Name string
	// PublishedAt is the time when the release was published
	PublishedAt time.Time
	// DownloadURL is a URL to the asset selected for this platform
	DownloadURL string
	// AssetName is the filename of the selected asset
	AssetName string
	// SizeBytes is the size of the asset as reported by the registry (0 when unknown)
	SizeBytes int64
	// Checksum is the sha256 of the asset as reported by the registry (empty when unknown)
	Checksum string
	// ChecksumURL is a checksum file published with the release, read when Checksum is empty
	ChecksumURL string
	// Notes is the release description
	Notes string
	// URL is a URL to the release page for browsing
	URL string
}
