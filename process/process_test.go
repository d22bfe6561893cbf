package process

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameExecutable(t *testing.T) {
	assert.True(t, sameExecutable("/usr/bin/zed", "zed"))
	assert.False(t, sameExecutable("/usr/bin/zeditor", "zed"))
	assert.False(t, sameExecutable("", ""))
	if runtime.GOOS == "windows" {
		assert.True(t, sameExecutable(`C:\Zed\Zed.EXE`, "zed.exe"))
		assert.True(t, sameExecutable("zed.exe", "zed"))
	}
}

func TestFindCurrentProcess(t *testing.T) {
	executable, err := os.Executable()
	require.NoError(t, err)

	pids, err := New().FindByName(filepath.Base(executable))
	require.NoError(t, err)
	assert.Contains(t, pids, os.Getpid())
}

func TestAlive(t *testing.T) {
	service := New()
	assert.True(t, service.Alive(os.Getpid()))
}
