package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	store, err := Open(path)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, "TC999/zed-loc", store.GetString(KeyRepository))
	assert.Equal(t, 3, store.GetInt(KeyBackupCount))
	assert.True(t, store.GetBool(KeyBackupEnabled))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	values := make(map[string]any)
	require.NoError(t, json.Unmarshal(data, &values))
	assert.Equal(t, "09:00", values[KeyCheckTime])
}

func TestOpenCorruptedFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"backup_count": 7,`), 0o600))

	store, err := Open(path)
	assert.ErrorIs(t, err, ErrConfiguration)
	require.NotNil(t, store)
	assert.Equal(t, 3, store.GetInt(KeyBackupCount))
	assert.Equal(t, 24, store.Snapshot().CheckIntervalHours)
}

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	store, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 3, store.GetInt(KeyRetryCount))
}

func TestOpenPartialFileKeepsOtherDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"backup_count": 5, "current_version": "20240101"}`), 0o600))

	store, err := Open(path)
	require.NoError(t, err)
	snapshot := store.Snapshot()
	assert.Equal(t, 5, snapshot.BackupCount)
	assert.Equal(t, "20240101", snapshot.CurrentVersion)
	assert.Equal(t, 300, snapshot.DownloadTimeout)
}

func TestSetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, store.Set(KeyCurrentVersion, "20240115"))

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "20240115", reopened.GetString(KeyCurrentVersion))
}

func TestUpdateRejectsUnknownKey(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	for range 20 {
		err = store.Update(map[string]any{KeyBackupCount: 9, "no_such_key": true})
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Equal(t, 3, store.GetInt(KeyBackupCount))
	}

	reopened, err := Open(store.Path())
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.GetInt(KeyBackupCount))
}

func TestUpdateRestoresValuesWhenSaveFails(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "config.json"))
	require.NoError(t, err)

	// a directory in the way of the temporary file makes the write fail
	require.NoError(t, os.Mkdir(filepath.Join(dir, "config.json.tmp"), 0o755))

	err = store.Update(map[string]any{KeyBackupCount: 9, KeyRetryCount: 7})
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, 3, store.GetInt(KeyBackupCount))
	assert.Equal(t, 3, store.GetInt(KeyRetryCount))
}

func TestConcurrentUpdates(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	wg := sync.WaitGroup{}
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Update(map[string]any{
				KeyBackupCount: i,
				KeyRetryCount:  i,
			}))
			snapshot := store.Snapshot()
			assert.Equal(t, snapshot.BackupCount, snapshot.RetryCount)
		}(i)
	}
	wg.Wait()
}

func TestReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(KeyBackupCount, 10))

	require.NoError(t, store.Reset())
	assert.Equal(t, 3, store.GetInt(KeyBackupCount))

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.GetInt(KeyBackupCount))
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("ZEDUP_GITHUB_REPO", "someone/zed-fork")

	store, err := Open(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, "someone/zed-fork", store.Snapshot().Repository)
}

func TestDirectories(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	require.NoError(t, store.Update(map[string]any{
		KeyInstallPath: filepath.Join(dir, "zed", "zed.exe"),
		KeyTempDir:     filepath.Join(dir, "temp"),
	}))

	assert.Equal(t, filepath.Join(dir, "zed", "backups"), store.BackupDir())
	assert.Equal(t, filepath.Join(dir, "temp"), store.TempDir())

	store.EnsureDirectories()
	assert.DirExists(t, filepath.Join(dir, "zed", "backups"))
	assert.DirExists(t, filepath.Join(dir, "temp"))
}
