package zedupdate

import (
	"context"
	"sync/atomic"
)

// MockSource is a Source in memory used for unit tests
type MockSource struct {
	release SourceRelease
	err     error
	calls   atomic.Int32
}

// NewMockSource instantiates a new MockSource returning release, or err when release is nil
func NewMockSource(release SourceRelease, err error) *MockSource {
	return &MockSource{
		release: release,
		err:     err,
	}
}

// LatestRelease returns the release given to NewMockSource. repository parameter is only validated.
func (s *MockSource) LatestRelease(ctx context.Context, repository Repository) (SourceRelease, error) {
	s.calls.Add(1)
	if _, _, err := repository.GetSlug(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.release == nil {
		return nil, s.err
	}
	return s.release, nil
}

// Verify interface
var _ Source = &MockSource{}

// mockRelease builds a release with one asset per name, all downloaded from baseURL
func mockRelease(tag, baseURL string, names ...string) *HttpRelease {
	release := &HttpRelease{
		TagName:     tag,
		Name:        "Zed " + tag,
		PublishedAt: "2024-01-15T10:00:00Z",
		Assets:      make([]*HttpAsset, len(names)),
	}
	for i, name := range names {
		release.Assets[i] = &HttpAsset{
			ID:   int64(i + 1),
			Name: name,
			URL:  baseURL + "/" + name,
		}
	}
	return release
}
