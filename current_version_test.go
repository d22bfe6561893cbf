package zedupdate

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zedloc/zed-updater/settings"
)

func fixedFileInfo(major, minor, patch, build uint16) []byte {
	data := make([]byte, 0, 64)
	data = append(data, []byte("VS_VERSION_INFO padding")...)
	data = append(data, fixedFileInfoSignature...)
	data = binary.LittleEndian.AppendUint32(data, 0x00010000)
	data = binary.LittleEndian.AppendUint32(data, uint32(major)<<16|uint32(minor))
	data = binary.LittleEndian.AppendUint32(data, uint32(patch)<<16|uint32(build))
	return append(data, make([]byte, 36)...)
}

func TestParseFixedFileInfo(t *testing.T) {
	version, ok := parseFixedFileInfo(fixedFileInfo(0, 120, 4, 1))
	assert.True(t, ok)
	assert.Equal(t, "0.120.4.1", version)

	_, ok = parseFixedFileInfo(fixedFileInfo(0, 0, 0, 0))
	assert.False(t, ok)

	_, ok = parseFixedFileInfo([]byte("no version resource"))
	assert.False(t, ok)

	truncated := fixedFileInfo(1, 2, 3, 4)
	_, ok = parseFixedFileInfo(truncated[:len(truncated)-40])
	assert.False(t, ok)
}

func TestResourceVersionDetectorNotPE(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zed")
	require.NoError(t, os.WriteFile(path, testExecutable, 0o755))

	_, ok := ResourceVersionDetector()(context.Background(), path)
	assert.False(t, ok)
}

func TestCommandVersionDetector(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script")
	}
	testData := []struct {
		output   string
		expected string
		ok       bool
	}{
		{"Zed 0.120.4 (stable)", "0.120.4", true},
		{"zed-loc 20240115", "20240115", true},
		{"zed 1.2.3.4", "1.2.3.4", true},
		{"no version here", "", false},
	}
	for _, testItem := range testData {
		t.Run(testItem.output, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "zed")
			script := "#!/bin/sh\necho '" + testItem.output + "'\n"
			require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

			version, ok := CommandVersionDetector(5*time.Second)(context.Background(), path)
			assert.Equal(t, testItem.ok, ok)
			assert.Equal(t, testItem.expected, version)
		})
	}
}

func TestCommandVersionDetectorMissingFile(t *testing.T) {
	_, ok := CommandVersionDetector(time.Second)(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.False(t, ok)
}

func TestGetCurrentVersionFirstAnswerWins(t *testing.T) {
	store := newTestStore(t, map[string]any{settings.KeyCurrentVersion: "20240101"})
	calls := 0
	failing := func(context.Context, string) (string, bool) {
		calls++
		return "", false
	}
	up, err := NewUpdater(Config{
		Settings:         store,
		Source:           NewMockSource(nil, ErrNotFound),
		VersionDetectors: []VersionDetector{failing, SettingsVersionDetector(store), failing},
	})
	require.NoError(t, err)
	assert.Equal(t, "20240101", up.GetCurrentVersion(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestGetCurrentVersionUnknown(t *testing.T) {
	store := newTestStore(t, nil)
	up, err := NewUpdater(Config{
		Settings:         store,
		Source:           NewMockSource(nil, ErrNotFound),
		VersionDetectors: []VersionDetector{SettingsVersionDetector(store)},
	})
	require.NoError(t, err)
	assert.Equal(t, UnknownVersion, up.GetCurrentVersion(context.Background()))
}
