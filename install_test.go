package zedupdate

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zedloc/zed-updater/backup"
	"github.com/zedloc/zed-updater/update"
)

var testOldExecutable = []byte("MZ\x90\x00 old version of zed")

// fakeProcess is a ProcessService in memory
type fakeProcess struct {
	mu             sync.Mutex
	alive          map[int]bool
	dieOnTerminate bool
	dieOnKill      bool
	terminated     []int
	killed         []int
	started        []string
}

func newFakeProcess(pids ...int) *fakeProcess {
	p := &fakeProcess{alive: make(map[int]bool), dieOnTerminate: true, dieOnKill: true}
	for _, pid := range pids {
		p.alive[pid] = true
	}
	return p
}

func (p *fakeProcess) FindByName(name string) ([]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pids := make([]int, 0, len(p.alive))
	for pid, alive := range p.alive {
		if alive {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

func (p *fakeProcess) Terminate(pid int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminated = append(p.terminated, pid)
	if p.dieOnTerminate {
		p.alive[pid] = false
	}
	return nil
}

func (p *fakeProcess) Kill(pid int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killed = append(p.killed, pid)
	if p.dieOnKill {
		p.alive[pid] = false
	}
	return nil
}

func (p *fakeProcess) Alive(pid int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive[pid]
}

func (p *fakeProcess) Start(path string, args ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = append(p.started, path)
	return nil
}

var _ ProcessService = &fakeProcess{}

type failingBackup struct{}

func (failingBackup) Create(string, string) (*backup.Record, error) {
	return nil, errors.New("disk full")
}

func newTestInstaller(process ProcessService, backups BackupCreator) *Installer {
	installer := NewInstaller(process, backups, nil)
	installer.stopTimeout = 50 * time.Millisecond
	installer.killTimeout = 50 * time.Millisecond
	installer.pollInterval = 5 * time.Millisecond
	installer.goos = "windows"
	return installer
}

// installFixture writes the installed executable and a download next to it
func installFixture(t *testing.T, download []byte) (string, *DownloadResult) {
	t.Helper()
	dir := t.TempDir()
	target := filepath.Join(dir, "Zed.exe")
	require.NoError(t, os.WriteFile(target, testOldExecutable, 0o755))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "temp"), 0o755))
	path := filepath.Join(dir, "temp", "download")
	require.NoError(t, os.WriteFile(path, download, 0o644))
	signature, ok, err := FileSignature(path)
	require.NoError(t, err)
	if !ok {
		signature = Signature{Name: "pe"}
	}
	return target, &DownloadResult{Path: path, SizeBytes: int64(len(download)), Signature: signature}
}

func assertFileContent(t *testing.T, path string, expected []byte) {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, expected, content)
}

func TestInstallExecutable(t *testing.T) {
	target, download := installFixture(t, testExecutable)
	backups := backup.NewManager(filepath.Join(filepath.Dir(target), "backups"), 3, true)
	var recorded string
	installer := newTestInstaller(nil, backups)
	installer.record = func(version string, installedAt time.Time) error {
		recorded = version
		return nil
	}

	result := installer.Install(context.Background(), download, target, "20240101", "20240115")
	require.True(t, result.Success, result.Message)
	assert.Equal(t, "20240115", result.InstalledVersion)
	assert.Equal(t, "20240115", recorded)
	assertFileContent(t, target, testExecutable)
	assert.NoFileExists(t, target+".old")

	records, err := backups.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assertFileContent(t, records[0].Path, testOldExecutable)
}

func TestInstallFromArchive(t *testing.T) {
	target, download := installFixture(t, zipArchive(t,
		archiveEntry{"README.md", testReadme},
		archiveEntry{"zed/Zed.exe", testExecutable},
	))
	installer := newTestInstaller(nil, nil)

	result := installer.Install(context.Background(), download, target, "20240101", "20240115")
	require.True(t, result.Success, result.Message)
	assertFileContent(t, target, testExecutable)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(download.Path), "zed.extracted"))
}

func TestInstallArchiveWithoutExecutable(t *testing.T) {
	target, download := installFixture(t, zipArchive(t, archiveEntry{"README.md", testReadme}))
	installer := newTestInstaller(nil, nil)

	result := installer.Install(context.Background(), download, target, "20240101", "20240115")
	assert.False(t, result.Success)
	assert.Equal(t, CodeInstallation, result.ErrorCode)
	assert.ErrorIs(t, result.Err, ErrExecutableNotFound)
	assertFileContent(t, target, testOldExecutable)
}

func TestInstallRejectsInvalidSignature(t *testing.T) {
	target, download := installFixture(t, []byte("<html>not an executable</html>"))
	installer := newTestInstaller(nil, nil)

	result := installer.Install(context.Background(), download, target, "20240101", "20240115")
	assert.False(t, result.Success)
	assert.Equal(t, CodeInstallation, result.ErrorCode)
	assert.ErrorIs(t, result.Err, ErrInvalidSignature)
	assertFileContent(t, target, testOldExecutable)
}

func TestInstallFailureDuringCopyKeepsPreviousVersion(t *testing.T) {
	target, download := installFixture(t, testExecutable)
	installer := newTestInstaller(nil, nil)
	installer.apply = func(r io.Reader, opts update.Options) error {
		return update.Apply(newErrorReader(r, 4), opts)
	}

	result := installer.Install(context.Background(), download, target, "20240101", "20240115")
	assert.False(t, result.Success)
	assert.Equal(t, CodeInstallation, result.ErrorCode)
	assert.ErrorIs(t, result.Err, errTestRead)
	assertFileContent(t, target, testOldExecutable)
	assert.NoFileExists(t, target+".old")
}

func TestInstallVerifiesWrittenChecksum(t *testing.T) {
	target, download := installFixture(t, testExecutable)
	installer := newTestInstaller(nil, nil)
	var checksum []byte
	installer.apply = func(r io.Reader, opts update.Options) error {
		checksum = opts.Checksum
		content, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		content[len(content)-1] ^= 0x01
		return update.Apply(bytes.NewReader(content), opts)
	}

	result := installer.Install(context.Background(), download, target, "20240101", "20240115")
	assert.False(t, result.Success)
	assert.Equal(t, CodeInstallation, result.ErrorCode)
	assert.ErrorIs(t, result.Err, update.ErrChecksumMismatch)
	expected := sha256.Sum256(testExecutable)
	assert.Equal(t, expected[:], checksum)
	assertFileContent(t, target, testOldExecutable)
	assert.NoFileExists(t, target+".old")
}

func TestInstallDetectsMissingSignature(t *testing.T) {
	target, download := installFixture(t, testExecutable)
	download.Signature = Signature{}
	installer := newTestInstaller(nil, nil)

	result := installer.Install(context.Background(), download, target, "20240101", "20240115")
	require.True(t, result.Success, result.Message)
	assertFileContent(t, target, testExecutable)
}

func TestInstallDetectsMissingSignatureOfArchive(t *testing.T) {
	target, download := installFixture(t, zipArchive(t, archiveEntry{"zed/Zed.exe", testExecutable}))
	download.Signature = Signature{}
	installer := newTestInstaller(nil, nil)

	result := installer.Install(context.Background(), download, target, "20240101", "20240115")
	require.True(t, result.Success, result.Message)
	assertFileContent(t, target, testExecutable)
}

func TestInstallUnknownFileWithoutSignature(t *testing.T) {
	target, download := installFixture(t, []byte("<html>not an executable</html>"))
	download.Signature = Signature{}
	installer := newTestInstaller(nil, nil)

	result := installer.Install(context.Background(), download, target, "20240101", "20240115")
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrInvalidSignature)
	assertFileContent(t, target, testOldExecutable)
}

func TestInstallBackupFailureIsNotFatal(t *testing.T) {
	target, download := installFixture(t, testExecutable)
	installer := newTestInstaller(nil, failingBackup{})

	result := installer.Install(context.Background(), download, target, "20240101", "20240115")
	assert.True(t, result.Success, result.Message)
	assertFileContent(t, target, testExecutable)
}

func TestInstallRecordFailureIsNotFatal(t *testing.T) {
	target, download := installFixture(t, testExecutable)
	installer := newTestInstaller(nil, nil)
	installer.record = func(string, time.Time) error {
		return errors.New("read-only configuration")
	}

	result := installer.Install(context.Background(), download, target, "20240101", "20240115")
	assert.True(t, result.Success, result.Message)
}

func TestInstallNilDownload(t *testing.T) {
	installer := newTestInstaller(nil, nil)
	result := installer.Install(context.Background(), nil, filepath.Join(t.TempDir(), "Zed.exe"), "", "20240115")
	assert.False(t, result.Success)
	assert.Equal(t, CodeInstallation, result.ErrorCode)
}

func TestInstallStopsRunningTarget(t *testing.T) {
	target, download := installFixture(t, testExecutable)
	process := newFakeProcess(101, 102)
	installer := newTestInstaller(process, nil)

	result := installer.Install(context.Background(), download, target, "20240101", "20240115")
	require.True(t, result.Success, result.Message)
	assert.ElementsMatch(t, []int{101, 102}, process.terminated)
	assert.Empty(t, process.killed)
}

func TestInstallKillsTargetIgnoringTerminate(t *testing.T) {
	target, download := installFixture(t, testExecutable)
	process := newFakeProcess(101)
	process.dieOnTerminate = false
	installer := newTestInstaller(process, nil)

	result := installer.Install(context.Background(), download, target, "20240101", "20240115")
	require.True(t, result.Success, result.Message)
	assert.Equal(t, []int{101}, process.terminated)
	assert.Equal(t, []int{101}, process.killed)
}

func TestInstallCannotStopTarget(t *testing.T) {
	target, download := installFixture(t, testExecutable)
	process := newFakeProcess(101)
	process.dieOnTerminate = false
	process.dieOnKill = false
	installer := newTestInstaller(process, nil)

	result := installer.Install(context.Background(), download, target, "20240101", "20240115")
	assert.False(t, result.Success)
	assert.Equal(t, CodeProcess, result.ErrorCode)
	assertFileContent(t, target, testOldExecutable)
}
