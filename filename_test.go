package zedupdate

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilenameFromURL(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	fallback := "download_20240115_103000"
	testData := []struct {
		url      string
		expected string
	}{
		{"https://github.com/TC999/zed-loc/releases/download/v20240115/Zed.exe", "Zed.exe"},
		{"https://cdn.example.com/zed-linux.tar.gz?token=abc", "zed-linux.tar.gz"},
		{"https://cdn.example.com/zed%20loc.zip", "zed loc.zip"},
		{"https://cdn.example.com/", fallback},
		{"https://cdn.example.com", fallback},
		{"https://cdn.example.com/../../etc/passwd", "passwd"},
		{"https://cdn.example.com/download/..%2F..%2Fetc%2Fpasswd", fallback},
		{"https://cdn.example.com/%2E%2E", fallback},
		{"https://cdn.example.com/a%5Cb.exe", fallback},
		{"https://cdn.example.com/zed%3A.exe", fallback},
		{"https://cdn.example.com/zed%3F.exe", fallback},
		{"https://cdn.example.com/CON.exe", fallback},
		{"https://cdn.example.com/zed.", fallback},
		{"https://cdn.example.com/zed%00.exe", fallback},
		{"https://cdn.example.com/" + strings.Repeat("z", 300), fallback},
		{"::not a url", fallback},
	}
	for _, testItem := range testData {
		t.Run(testItem.url, func(t *testing.T) {
			name := filenameFromURL(testItem.url, now)
			assert.Equal(t, testItem.expected, name)
			assert.NotContains(t, name, "..")
			assert.NotContains(t, name, "/")
			assert.NotContains(t, name, `\`)
		})
	}
}

func TestDestinationPathStaysInDirectory(t *testing.T) {
	dir := t.TempDir()

	dest, err := destinationPath(dir, "Zed.exe")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Zed.exe"), dest)

	for _, name := range []string{"../Zed.exe", "sub/Zed.exe", "..", ""} {
		_, err := destinationPath(dir, name)
		assert.ErrorIs(t, err, ErrInvalidFilename, name)
	}
}
