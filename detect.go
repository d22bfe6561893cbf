package zedupdate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var (
	reVersion = regexp.MustCompile(`\d+\.\d+\.\d+`)

	// assets that accompany a release but are never the build itself
	ignoredAssetSuffixes = []string{".sha256", ".sha256sum", ".sha512", ".md5", ".sig", ".asc", ".txt", ".json", ".yml", ".yaml"}

	knownOS = []string{"windows", "darwin", "linux"}
)

// GetLatest asks the release source for the latest release and selects the asset for the running platform.
// Any failure (unreachable registry, unexpected payload, no asset) is logged and reported as false:
// callers take it as "no information available".
func (up *Updater) GetLatest(ctx context.Context) (*ReleaseInfo, bool) {
	release, err := up.DetectLatest(ctx)
	if err != nil {
		log.Printf("no release information: %s", err)
		return nil, false
	}
	return release, true
}

// DetectLatest is GetLatest returning the reason why no release could be found.
// The error wraps ErrNotFound or ErrNetwork.
func (up *Updater) DetectLatest(ctx context.Context) (*ReleaseInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, up.requestTimeout())
	defer cancel()

	rel, err := up.source.LatestRelease(ctx, up.repository)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, ErrNotFound
	}

	asset, ok := up.selectAsset(rel.GetAssets())
	if !ok {
		return nil, fmt.Errorf("%w: no asset in release %s", ErrNotFound, rel.GetTagName())
	}
	url := asset.GetBrowserDownloadURL()
	if url == "" {
		return nil, fmt.Errorf("%w: asset %s has no download URL", ErrNotFound, asset.GetName())
	}

	version := normalizeVersion(rel.GetTagName())
	if version == "" {
		version = normalizeVersion(rel.GetName())
	}
	if version == "" {
		return nil, fmt.Errorf("%w: release has no version", ErrNotFound)
	}

	info := &ReleaseInfo{
		Version:     version,
		TagName:     rel.GetTagName(),
		Name:        rel.GetName(),
		PublishedAt: rel.GetPublishedAt(),
		DownloadURL: url,
		AssetName:   asset.GetName(),
		SizeBytes:   int64(asset.GetSize()),
		Notes:       rel.GetReleaseNotes(),
		URL:         rel.GetURL(),
	}
	if withChecksum, ok := asset.(checksumAsset); ok {
		info.Checksum = withChecksum.GetChecksum()
	}
	if checksum, ok := findChecksumAsset(rel.GetAssets(), asset.GetName()); ok && info.Checksum == "" {
		info.ChecksumURL = checksum.GetBrowserDownloadURL()
	}
	log.Printf("Successfully fetched the latest release. tag: %s, name: %s, URL: %s, Asset: %s", rel.GetTagName(), rel.GetName(), rel.GetURL(), url)
	return info, nil
}

// normalizeVersion turns a release tag into a version CompareVersions understands:
// "v1.2.3" and "release-1.2.3" give "1.2.3", "20240115" and "v20240115" stay date stamps.
func normalizeVersion(tag string) string {
	tag = strings.TrimSpace(tag)
	trimmed := strings.TrimPrefix(strings.TrimPrefix(tag, "v"), "V")
	if IsDateVersion(trimmed) {
		return trimmed
	}
	if indices := reVersion.FindStringIndex(tag); indices != nil {
		// If semver cannot parse the version text, it means that the text is not adopting
		// the semantic versioning: the tag is kept mostly as is.
		if ver, err := semver.NewVersion(tag[indices[0]:]); err == nil {
			return ver.String()
		}
		return tag[indices[0]:indices[1]]
	}
	return trimmed
}

// selectAsset prefers an asset named after the running OS (and arch), or carrying the
// native executable extension. Without any match the first asset is used.
func (up *Updater) selectAsset(assets []SourceAsset) (SourceAsset, bool) {
	if len(assets) == 0 {
		return nil, false
	}

	var (
		best      SourceAsset
		bestScore int
		first     SourceAsset
	)
	for _, asset := range assets {
		name := strings.ToLower(asset.GetName())
		if isIgnoredAsset(name) {
			log.Printf("Skipping asset %q", asset.GetName())
			continue
		}
		if first == nil {
			first = asset
		}
		score := up.assetScore(name)
		if score > bestScore {
			best, bestScore = asset, score
		}
	}
	if best != nil {
		log.Printf("Selected asset: %s", best.GetName())
		return best, true
	}
	if first == nil {
		first = assets[0]
	}
	log.Printf("No asset is named for %s/%s, using %s", up.os, up.arch, first.GetName())
	return first, true
}

func (up *Updater) assetScore(name string) int {
	for _, other := range knownOS {
		if other == up.os {
			continue
		}
		for _, hint := range osHints(other) {
			if containsWord(name, hint) {
				return 0
			}
		}
	}

	score := 0
	for _, hint := range osHints(up.os) {
		if containsWord(name, hint) {
			score += 4
			break
		}
	}
	for _, hint := range archHints(up.arch, up.universalArch) {
		if containsWord(name, hint) {
			score += 2
			break
		}
	}
	if ext := nativeExecutableExt(up.os); ext != "" && (strings.HasSuffix(name, ext) || strings.Contains(name, ext+".")) {
		score++
	}
	return score
}

func isIgnoredAsset(name string) bool {
	for _, checksumFile := range checksumFileNames {
		if name == checksumFile {
			return true
		}
	}
	for _, suffix := range ignoredAssetSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// containsWord reports whether word appears in name between non alphanumeric characters,
// so that "win" is found in "zed-win.zip" but not in "zed-darwin.zip".
func containsWord(name, word string) bool {
	for offset := 0; offset < len(name); {
		index := strings.Index(name[offset:], word)
		if index < 0 {
			return false
		}
		start := offset + index
		end := start + len(word)
		if (start == 0 || !isAlphanumeric(name[start-1])) && (end == len(name) || !isAlphanumeric(name[end])) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isAlphanumeric(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
