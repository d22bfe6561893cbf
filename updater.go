package zedupdate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/zedloc/zed-updater/backup"
	"github.com/zedloc/zed-updater/settings"
)

const (
	downloadBand   = 80.0
	tempFileMaxAge = 24 * time.Hour
)

// Updater runs the update pipeline: look up the latest release, compare it with the
// installed version, download it and install it.
type Updater struct {
	settings      *settings.Store
	source        Source
	repository    Repository
	process       ProcessService
	httpClient    *http.Client
	detectors     []VersionDetector
	os            string
	arch          string
	universalArch string
	backoffBase   time.Duration
	mu            sync.Mutex
}

// NewUpdater creates a new updater instance.
// If you don't specify a source in the config object, the one named in the settings is used.
func NewUpdater(config Config) (*Updater, error) {
	if config.Settings == nil {
		return nil, fmt.Errorf("%w: no settings", ErrConfiguration)
	}
	current := config.Settings.Snapshot()

	client := config.HTTPClient
	if client == nil {
		var err error
		client, err = NewHTTPClient(current, 0)
		if err != nil {
			return nil, err
		}
	}

	source := config.Source
	if source == nil {
		apiClient, err := NewHTTPClient(current, time.Duration(current.RequestTimeout)*time.Second)
		if err != nil {
			return nil, err
		}
		source, err = SourceFromSettings(current, apiClient)
		if err != nil {
			return nil, err
		}
	}

	repository := config.Repository
	if repository == nil {
		slug := ParseSlug(current.Repository)
		if _, _, err := slug.GetSlug(); err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrConfiguration, current.Repository, err)
		}
		repository = slug
	}

	detectors := config.VersionDetectors
	if detectors == nil {
		detectors = DefaultVersionDetectors(config.Settings)
	}

	os := config.OS
	arch := config.Arch
	if os == "" {
		os = runtime.GOOS
	}
	if arch == "" {
		arch = runtime.GOARCH
	}

	return &Updater{
		settings:      config.Settings,
		source:        source,
		repository:    repository,
		process:       config.Process,
		httpClient:    client,
		detectors:     detectors,
		os:            os,
		arch:          arch,
		universalArch: config.UniversalArch,
		backoffBase:   config.BackoffBase,
	}, nil
}

func (up *Updater) requestTimeout() time.Duration {
	seconds := up.settings.GetInt(settings.KeyRequestTimeout)
	if seconds < 1 {
		return 30 * time.Second
	}
	return time.Duration(seconds) * time.Second
}

// GetCurrentVersion returns the version of the installed executable, or UnknownVersion.
// The detectors are tried in order and the first answer wins.
func (up *Updater) GetCurrentVersion(ctx context.Context) string {
	path := up.settings.GetString(settings.KeyInstallPath)
	for _, detect := range up.detectors {
		if version, ok := detect(ctx, path); ok && version != "" {
			return version
		}
	}
	return UnknownVersion
}

// CheckForUpdates returns the latest release when it is newer than the installed version
// (or always, with force_download_latest). It returns false when there is nothing to install
// or no information could be found.
func (up *Updater) CheckForUpdates(ctx context.Context) (*ReleaseInfo, bool) {
	latest, ok := up.GetLatest(ctx)
	if !ok {
		return nil, false
	}
	current := up.GetCurrentVersion(ctx)
	if up.settings.GetBool(settings.KeyForceDownloadLatest) || IsNewer(current, latest.Version) {
		log.Printf("update available: %s -> %s", current, latest.Version)
		return latest, true
	}
	log.Printf("current version %s is up to date (latest %s)", current, latest.Version)
	return nil, false
}

// CheckAndUpdate runs the whole pipeline once. Progress is reported from 0 to 80% while
// downloading, then up to 100% while installing. The result is never nil, and a panic
// anywhere in the pipeline is returned as a failed result with CodeUpdate.
//
// Only one run happens at a time: a concurrent call fails with ErrUpdateInProgress.
func (up *Updater) CheckAndUpdate(ctx context.Context, progress ProgressFunc) (result *UpdateResult) {
	if !up.mu.TryLock() {
		return failureResult(ErrUpdateInProgress)
	}
	defer up.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("update aborted: %v", r)
			result = &UpdateResult{
				Message:   fmt.Sprintf("update failed: %v", r),
				ErrorCode: CodeUpdate,
				Err:       fmt.Errorf("%v", r),
			}
		}
	}()

	if progress == nil {
		progress = func(float64, string) {}
	}
	progress = monotonic(progress)
	return up.checkAndUpdate(ctx, progress)
}

func (up *Updater) checkAndUpdate(ctx context.Context, progress ProgressFunc) *UpdateResult {
	current := up.settings.Snapshot()
	progress(0, "checking for updates")

	latest, err := up.DetectLatest(ctx)
	if err != nil {
		// an unreachable registry is no different from a registry without release
		log.Printf("no release information: %s", err)
		progress(100, MessageNoUpdate)
		return successResult(MessageNoUpdate, "")
	}

	currentVersion := up.GetCurrentVersion(ctx)
	if !current.ForceDownloadLatest && !IsNewer(currentVersion, latest.Version) {
		log.Printf("current version %s is up to date (latest %s)", currentVersion, latest.Version)
		progress(100, MessageUpToDate)
		return successResult(MessageUpToDate, "")
	}
	log.Printf("installing version %s over %s", latest.Version, currentVersion)

	if latest.Checksum == "" && latest.ChecksumURL != "" {
		checksum, err := fetchChecksum(ctx, up.httpClient, latest.ChecksumURL, latest.AssetName)
		if err != nil {
			log.Printf("checksum not verified: %s", err)
		} else {
			latest.Checksum = checksum
		}
	}

	downloader := NewDownloader(DownloaderConfig{
		HTTPClient:    up.httpClient,
		Retries:       current.RetryCount,
		BackoffFactor: current.BackoffFactor,
		BackoffBase:   up.backoffBase,
		Timeout:       time.Duration(current.DownloadTimeout) * time.Second,
		Authorizer:    up.authorizer(),
	})
	download, err := downloader.DownloadAsset(ctx, DownloadRequest{
		URL:      latest.DownloadURL,
		Size:     latest.SizeBytes,
		Checksum: latest.Checksum,
	}, up.settings.TempDir(), func(percent float64, message string) {
		progress(percent*downloadBand/100, message)
	})
	if err != nil {
		return failureResult(err)
	}
	progress(downloadBand, "installing")

	var backups BackupCreator
	if current.BackupEnabled {
		backups = backup.NewManager(up.settings.BackupDir(), current.BackupCount, true)
	}
	installer := NewInstaller(up.process, backups, up.recordInstall)
	installer.goos = up.os
	result := installer.Install(ctx, download, current.InstallPath, currentVersion, latest.Version)
	_ = os.Remove(download.Path)
	if !result.Success {
		return result
	}
	progress(100, result.Message)

	if current.AutoStartAfterUpdate {
		if err := up.StartTarget(); err != nil {
			log.Printf("cannot start %q: %s", current.InstallPath, err)
		}
	}
	return result
}

func (up *Updater) authorizer() DownloadAuthorizer {
	if authorizer, ok := up.source.(DownloadAuthorizer); ok {
		return authorizer
	}
	return nil
}

func (up *Updater) recordInstall(version string, installedAt time.Time) error {
	return up.settings.Update(map[string]any{
		settings.KeyCurrentVersion: version,
		settings.KeyLastUpdateTime: installedAt.Format(time.RFC3339),
	})
}

// StartTarget launches the installed executable, detached from the updater.
func (up *Updater) StartTarget() error {
	if up.process == nil {
		return fmt.Errorf("%w: no process service", ErrProcess)
	}
	path := up.settings.GetString(settings.KeyInstallPath)
	if err := up.process.Start(path); err != nil {
		return fmt.Errorf("%w: %w", ErrProcess, err)
	}
	log.Printf("started %q", path)
	return nil
}

// CleanupTempFiles removes the files of the download directory older than a day.
// It returns the number of files removed.
func (up *Updater) CleanupTempFiles() (int, error) {
	return cleanupDir(up.settings.TempDir(), time.Now().Add(-tempFileMaxAge))
}

func cleanupDir(dir string, before time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(before) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Printf("cannot remove %q: %s", path, err)
			continue
		}
		removed++
	}
	return removed, nil
}
