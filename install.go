package zedupdate

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/zedloc/zed-updater/backup"
	"github.com/zedloc/zed-updater/update"
)

const (
	DefaultStopTimeout = 10 * time.Second
	defaultKillTimeout = 2 * time.Second
)

// ProcessService enumerates, stops and starts processes by executable name.
// The process package provides the implementation for the running OS.
type ProcessService interface {
	FindByName(name string) ([]int, error)
	Terminate(pid int) error
	Kill(pid int) error
	Alive(pid int) bool
	Start(path string, args ...string) error
}

// BackupCreator saves the current executable before it is replaced. A nil record means "skipped".
type BackupCreator interface {
	Create(sourcePath, version string) (*backup.Record, error)
}

// InstallRecorder persists the version installed.
type InstallRecorder func(version string, installedAt time.Time) error

// Installer replaces the installed executable with a downloaded release.
type Installer struct {
	process      ProcessService
	backups      BackupCreator
	record       InstallRecorder
	goos         string
	stopTimeout  time.Duration
	killTimeout  time.Duration
	pollInterval time.Duration
	apply        func(update io.Reader, opts update.Options) error
	now          func() time.Time
}

// NewInstaller creates an installer. Any of process, backups and record can be nil to skip that step.
func NewInstaller(process ProcessService, backups BackupCreator, record InstallRecorder) *Installer {
	return &Installer{
		process:      process,
		backups:      backups,
		record:       record,
		goos:         runtime.GOOS,
		stopTimeout:  DefaultStopTimeout,
		killTimeout:  defaultKillTimeout,
		pollInterval: 200 * time.Millisecond,
		apply:        update.Apply,
		now:          time.Now,
	}
}

// Install replaces targetPath with the downloaded file (or the executable it contains):
//
// 1. stops the running instances of the target,
//
// 2. backs up the current target (a failed backup is only a warning),
//
// 3. extracts the executable when the download is an archive,
//
// 4. verifies the new file starts with an executable signature,
//
// 5. swaps the files, restoring the previous target on failure,
//
// 6. records newVersion as the installed version.
//
// The target is never left missing or half written: on failure the previous executable is in place.
func (i *Installer) Install(ctx context.Context, download *DownloadResult, targetPath, currentVersion, newVersion string) *UpdateResult {
	if download == nil {
		return failureResult(fmt.Errorf("%w: %w", ErrInstallation, ErrInvalidRelease))
	}
	if err := i.stopTarget(ctx, targetPath); err != nil {
		return failureResult(err)
	}

	if i.backups != nil {
		record, err := i.backups.Create(targetPath, currentVersion)
		switch {
		case err != nil:
			log.Printf("warning: backup failed, installing anyway: %s", err)
		case record != nil:
			log.Printf("previous version saved to %q", record.Path)
		}
	}

	signature := download.Signature
	if signature.Name == "" {
		detected, ok, err := FileSignature(download.Path)
		if err != nil {
			return failureResult(fmt.Errorf("%w: %w", ErrInstallation, err))
		}
		if ok {
			signature = detected
		}
	}

	source := download.Path
	// an unrecognised file goes straight to verifyExecutable which rejects it
	if signature.Name != "" && !isExecutableSignature(signature) {
		extracted, err := extractExecutable(download.Path, signature, filepath.Base(targetPath), filepath.Dir(download.Path), i.goos)
		if err != nil {
			return failureResult(fmt.Errorf("%w: %w", ErrInstallation, err))
		}
		defer os.Remove(extracted)
		source = extracted
	}

	if err := verifyExecutable(source); err != nil {
		return failureResult(err)
	}

	if err := i.swap(source, targetPath); err != nil {
		return failureResult(err)
	}
	log.Printf("%q updated to version %s", targetPath, newVersion)

	if i.record != nil {
		if err := i.record(newVersion, i.now()); err != nil {
			log.Printf("warning: cannot record installed version: %s", err)
		}
	}
	return successResult(fmt.Sprintf("updated to version %s", newVersion), newVersion)
}

func verifyExecutable(path string) error {
	header, err := readHeader(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInstallation, err)
	}
	if _, ok := MatchSignature(header, ExecutableSignatures); !ok {
		return fmt.Errorf("%w: %w: %q", ErrInstallation, ErrInvalidSignature, filepath.Base(path))
	}
	return nil
}

func (i *Installer) swap(source, targetPath string) error {
	file, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInstallation, err)
	}
	defer file.Close()
	hash := sha256.New()
	size, err := io.Copy(hash, file)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInstallation, err)
	}
	if _, err = file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", ErrInstallation, err)
	}

	err = i.apply(file, update.Options{
		TargetPath: targetPath,
		TargetMode: 0o755,
		Size:       size,
		Checksum:   hash.Sum(nil),
	})
	if err != nil {
		if rerr := update.RollbackError(err); rerr != nil {
			log.Printf("rollback failed, the previous version is left at %q: %s", targetPath+".old", rerr)
			return fmt.Errorf("%w: %w (rollback failed: %s)", ErrInstallation, err, rerr)
		}
		return fmt.Errorf("%w: previous version restored: %w", ErrInstallation, err)
	}
	return nil
}

// stopTarget terminates the processes running the target, killing those still alive after the stop timeout.
func (i *Installer) stopTarget(ctx context.Context, targetPath string) error {
	if i.process == nil {
		return nil
	}
	name := filepath.Base(targetPath)
	pids, err := i.process.FindByName(name)
	if err != nil {
		log.Printf("cannot list processes: %s", err)
		return nil
	}
	self := os.Getpid()
	failed := make([]string, 0)
	for _, pid := range pids {
		if pid == self {
			continue
		}
		log.Printf("stopping %s (pid %d)", name, pid)
		if err := i.process.Terminate(pid); err != nil {
			log.Printf("cannot terminate pid %d: %s", pid, err)
		}
		if i.waitExit(ctx, pid, i.stopTimeout) {
			continue
		}
		log.Printf("pid %d still running after %s, killing it", pid, i.stopTimeout)
		if err := i.process.Kill(pid); err != nil {
			log.Printf("cannot kill pid %d: %s", pid, err)
		}
		if !i.waitExit(ctx, pid, i.killTimeout) {
			failed = append(failed, fmt.Sprint(pid))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: cannot stop %s (pid %s)", ErrProcess, name, strings.Join(failed, ", "))
	}
	return nil
}

func (i *Installer) waitExit(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for i.process.Alive(pid) {
		if time.Now().After(deadline) {
			return false
		}
		if err := sleepContext(ctx, i.pollInterval); err != nil {
			return !i.process.Alive(pid)
		}
	}
	return true
}
