package zedupdate

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

var (
	testExecutable = []byte("MZ\x90\x00 new version of zed")
	testReadme     = []byte("# zed\n")
)

type archiveEntry struct {
	name    string
	content []byte
}

func zipArchive(t *testing.T, entries ...archiveEntry) []byte {
	t.Helper()
	buffer := &bytes.Buffer{}
	w := zip.NewWriter(buffer)
	for _, entry := range entries {
		f, err := w.Create(entry.name)
		require.NoError(t, err)
		_, err = f.Write(entry.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buffer.Bytes()
}

func tarArchive(t *testing.T, entries ...archiveEntry) []byte {
	t.Helper()
	buffer := &bytes.Buffer{}
	w := tar.NewWriter(buffer)
	require.NoError(t, w.WriteHeader(&tar.Header{Name: "zed/", Typeflag: tar.TypeDir, Mode: 0o755}))
	for _, entry := range entries {
		require.NoError(t, w.WriteHeader(&tar.Header{
			Name:     entry.name,
			Typeflag: tar.TypeReg,
			Mode:     0o755,
			Size:     int64(len(entry.content)),
		}))
		_, err := w.Write(entry.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buffer.Bytes()
}

func gzipData(t *testing.T, data []byte) []byte {
	t.Helper()
	buffer := &bytes.Buffer{}
	w := gzip.NewWriter(buffer)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buffer.Bytes()
}

func xzData(t *testing.T, data []byte) []byte {
	t.Helper()
	buffer := &bytes.Buffer{}
	w, err := xz.NewWriter(buffer)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buffer.Bytes()
}

func zstdData(t *testing.T, data []byte) []byte {
	t.Helper()
	encoder, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer encoder.Close()
	return encoder.EncodeAll(data, nil)
}

func writeArchive(t *testing.T, data []byte) (string, Signature) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "download")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	signature, ok, err := FileSignature(path)
	require.NoError(t, err)
	require.True(t, ok)
	return path, signature
}

func TestExtractExecutable(t *testing.T) {
	entries := []archiveEntry{
		{"zed/README.md", testReadme},
		{"zed/bin/zed", testExecutable},
	}
	testData := []struct {
		name      string
		archive   []byte
		signature string
	}{
		{"zip", zipArchive(t, entries...), "zip"},
		{"tar", tarArchive(t, entries...), "tar"},
		{"tar.gz", gzipData(t, tarArchive(t, entries...)), "gzip"},
		{"tar.xz", xzData(t, tarArchive(t, entries...)), "xz"},
		{"tar.zst", zstdData(t, tarArchive(t, entries...)), "zstd"},
		{"gz", gzipData(t, testExecutable), "gzip"},
		{"xz", xzData(t, testExecutable), "xz"},
	}
	for _, testItem := range testData {
		t.Run(testItem.name, func(t *testing.T) {
			path, signature := writeArchive(t, testItem.archive)
			assert.Equal(t, testItem.signature, signature.Name)

			destDir := t.TempDir()
			extracted, err := extractExecutable(path, signature, "zed", destDir, "linux")
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(destDir, "zed.extracted"), extracted)

			content, err := os.ReadFile(extracted)
			require.NoError(t, err)
			assert.Equal(t, testExecutable, content)
		})
	}
}

func TestExtractPrefersExactName(t *testing.T) {
	path, signature := writeArchive(t, zipArchive(t,
		archiveEntry{"zed-cli.exe", []byte("MZ cli")},
		archiveEntry{"Zed.exe", testExecutable},
	))

	extracted, err := extractExecutable(path, signature, "Zed.exe", t.TempDir(), "windows")
	require.NoError(t, err)
	content, err := os.ReadFile(extracted)
	require.NoError(t, err)
	assert.Equal(t, testExecutable, content)
}

func TestExtractPartialNameOnWindowsNeedsExe(t *testing.T) {
	path, signature := writeArchive(t, zipArchive(t,
		archiveEntry{"zed-localized.txt", testReadme},
		archiveEntry{"zed-localized.exe", testExecutable},
	))

	extracted, err := extractExecutable(path, signature, "zed.exe", t.TempDir(), "windows")
	require.NoError(t, err)
	content, err := os.ReadFile(extracted)
	require.NoError(t, err)
	assert.Equal(t, testExecutable, content)
}

func TestExtractExecutableNotFound(t *testing.T) {
	for name, archive := range map[string][]byte{
		"zip": zipArchive(t, archiveEntry{"README.md", testReadme}),
		"tar": gzipData(t, tarArchive(t, archiveEntry{"README.md", testReadme})),
	} {
		t.Run(name, func(t *testing.T) {
			path, signature := writeArchive(t, archive)
			_, err := extractExecutable(path, signature, "zed", t.TempDir(), "linux")
			assert.ErrorIs(t, err, ErrExecutableNotFound)
		})
	}
}

func TestExtractInvalidArchive(t *testing.T) {
	data := append([]byte{0x1f, 0x8b}, []byte("not really gzip")...)
	path, signature := writeArchive(t, data)
	_, err := extractExecutable(path, signature, "zed", t.TempDir(), "linux")
	assert.Error(t, err)
}

func TestExtractUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "download")
	require.NoError(t, os.WriteFile(path, testReadme, 0o644))
	_, err := extractExecutable(path, Signature{Name: "rar"}, "zed", t.TempDir(), "linux")
	assert.Error(t, err)
}
