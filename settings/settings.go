// Package settings persists the updater configuration as a JSON document.
//
// Values are layered: defaults < file < ZEDUP_* environment variables < runtime Set calls.
// Every mutation is written back to the file immediately.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"github.com/zedloc/zed-updater/internal"
)

const (
	KeyInstallPath          = "zed_install_path"
	KeyRepository           = "github_repo"
	KeyReleaseSource        = "release_source"
	KeyReleaseAPIURL        = "release_api_url"
	KeyAPIToken             = "api_token"
	KeyBackupEnabled        = "backup_enabled"
	KeyBackupCount          = "backup_count"
	KeyBackupDir            = "backup_dir"
	KeyTempDir              = "temp_dir"
	KeyAutoCheckEnabled     = "auto_check_enabled"
	KeyCheckOnStartup       = "check_on_startup"
	KeyCheckIntervalHours   = "check_interval_hours"
	KeyCheckTime            = "check_time"
	KeyCheckDays            = "check_days"
	KeyCheckCron            = "check_cron"
	KeyForceDownloadLatest  = "force_download_latest"
	KeyAutoStartAfterUpdate = "auto_start_after_update"
	KeyDownloadTimeout      = "download_timeout"
	KeyRequestTimeout       = "request_timeout"
	KeyRetryCount           = "retry_count"
	KeyBackoffFactor        = "backoff_factor"
	KeyProxyEnabled         = "proxy_enabled"
	KeyProxyURL             = "proxy_url"
	KeyCurrentVersion       = "current_version"
	KeyLastUpdateTime       = "last_update_time"
)

const (
	DefaultFileName = "config.json"
	envPrefix       = "ZEDUP"
)

// ErrConfiguration is returned when the configuration file cannot be read, parsed or written.
var ErrConfiguration = errors.New("configuration error")

var log = internal.Log

// Settings is a typed snapshot of the configuration.
type Settings struct {
	InstallPath          string   `mapstructure:"zed_install_path" json:"zed_install_path"`
	Repository           string   `mapstructure:"github_repo" json:"github_repo"`
	ReleaseSource        string   `mapstructure:"release_source" json:"release_source"`
	ReleaseAPIURL        string   `mapstructure:"release_api_url" json:"release_api_url"`
	APIToken             string   `mapstructure:"api_token" json:"api_token"`
	BackupEnabled        bool     `mapstructure:"backup_enabled" json:"backup_enabled"`
	BackupCount          int      `mapstructure:"backup_count" json:"backup_count"`
	BackupDir            string   `mapstructure:"backup_dir" json:"backup_dir"`
	TempDir              string   `mapstructure:"temp_dir" json:"temp_dir"`
	AutoCheckEnabled     bool     `mapstructure:"auto_check_enabled" json:"auto_check_enabled"`
	CheckOnStartup       bool     `mapstructure:"check_on_startup" json:"check_on_startup"`
	CheckIntervalHours   int      `mapstructure:"check_interval_hours" json:"check_interval_hours"`
	CheckTime            string   `mapstructure:"check_time" json:"check_time"`
	CheckDays            []string `mapstructure:"check_days" json:"check_days"`
	CheckCron            string   `mapstructure:"check_cron" json:"check_cron"`
	ForceDownloadLatest  bool     `mapstructure:"force_download_latest" json:"force_download_latest"`
	AutoStartAfterUpdate bool     `mapstructure:"auto_start_after_update" json:"auto_start_after_update"`
	DownloadTimeout      int      `mapstructure:"download_timeout" json:"download_timeout"`
	RequestTimeout       int      `mapstructure:"request_timeout" json:"request_timeout"`
	RetryCount           int      `mapstructure:"retry_count" json:"retry_count"`
	BackoffFactor        float64  `mapstructure:"backoff_factor" json:"backoff_factor"`
	ProxyEnabled         bool     `mapstructure:"proxy_enabled" json:"proxy_enabled"`
	ProxyURL             string   `mapstructure:"proxy_url" json:"proxy_url"`
	CurrentVersion       string   `mapstructure:"current_version" json:"current_version"`
	LastUpdateTime       string   `mapstructure:"last_update_time" json:"last_update_time"`
}

// Defaults returns the built-in configuration.
func Defaults() map[string]any {
	return map[string]any{
		KeyInstallPath:          defaultInstallPath(),
		KeyRepository:           "TC999/zed-loc",
		KeyReleaseSource:        "github",
		KeyReleaseAPIURL:        "",
		KeyAPIToken:             "",
		KeyBackupEnabled:        true,
		KeyBackupCount:          3,
		KeyBackupDir:            "",
		KeyTempDir:              "",
		KeyAutoCheckEnabled:     true,
		KeyCheckOnStartup:       true,
		KeyCheckIntervalHours:   24,
		KeyCheckTime:            "09:00",
		KeyCheckDays:            []string{},
		KeyCheckCron:            "",
		KeyForceDownloadLatest:  false,
		KeyAutoStartAfterUpdate: true,
		KeyDownloadTimeout:      300,
		KeyRequestTimeout:       30,
		KeyRetryCount:           3,
		KeyBackoffFactor:        2.0,
		KeyProxyEnabled:         false,
		KeyProxyURL:             "",
		KeyCurrentVersion:       "",
		KeyLastUpdateTime:       "",
	}
}

func defaultInstallPath() string {
	if runtime.GOOS == "windows" {
		return `D:\Zed.exe`
	}
	return "/usr/local/bin/zed"
}

// Store is the thread-safe handle to the configuration file.
type Store struct {
	mu   sync.RWMutex
	path string
	v    *viper.Viper
}

// Open loads the configuration at path, writing the defaults when the file does not exist yet.
//
// A file that cannot be parsed does not prevent Open from succeeding: the store keeps the
// defaults and the error (wrapping ErrConfiguration) is returned alongside it.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultFileName
	}
	s := &Store{
		path: path,
		v:    newViper(),
	}
	err := s.load()
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("configuration file %q not found, using defaults", path)
		return s, s.save()
	}
	if err != nil {
		log.Printf("cannot load configuration, using defaults: %s", err)
		return s, err
	}
	return s, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := s.v.MergeConfig(bytes.NewReader(data)); err != nil {
		s.v = newViper()
		return fmt.Errorf("%w: parse %s: %w", ErrConfiguration, s.path, err)
	}
	return nil
}

// save must be called with the lock held (or before the store is shared).
func (s *Store) save() error {
	values := make(map[string]any, len(Defaults()))
	for key := range Defaults() {
		values[key] = s.v.Get(key)
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrConfiguration, err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrConfiguration, tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return nil
}

// Path returns the location of the configuration file.
func (s *Store) Path() string {
	return s.path
}

// Get returns the raw value of key, or nil when the key is unknown.
func (s *Store) Get(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.Get(key)
}

func (s *Store) GetString(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetString(key)
}

func (s *Store) GetInt(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetInt(key)
}

func (s *Store) GetBool(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetBool(key)
}

func (s *Store) GetFloat(key string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetFloat64(key)
}

func (s *Store) GetStringSlice(key string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetStringSlice(key)
}

// Set changes one value and writes the file.
func (s *Store) Set(key string, value any) error {
	return s.Update(map[string]any{key: value})
}

// Update changes several values at once and writes the file a single time.
// Readers never observe a partially applied batch.
func (s *Store) Update(values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defaults := Defaults()
	for key := range values {
		if _, known := defaults[key]; !known {
			return fmt.Errorf("%w: unknown key %q", ErrConfiguration, key)
		}
	}

	previous := make(map[string]any, len(values))
	for key, value := range values {
		previous[key] = s.v.Get(key)
		s.v.Set(key, value)
	}
	if err := s.save(); err != nil {
		// memory keeps matching the file
		for key, value := range previous {
			s.v.Set(key, value)
		}
		return err
	}
	return nil
}

// Snapshot decodes the current configuration into a Settings value.
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snapshot Settings
	if err := s.v.Unmarshal(&snapshot); err != nil {
		log.Printf("cannot decode configuration: %s", err)
	}
	return snapshot
}

// Reset restores the defaults and writes them to the file.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.v = newViper()
	return s.save()
}

// BackupDir returns the configured backup directory, or a "backups" folder next to the installed executable.
func (s *Store) BackupDir() string {
	snapshot := s.Snapshot()
	if snapshot.BackupDir != "" {
		return snapshot.BackupDir
	}
	return filepath.Join(filepath.Dir(snapshot.InstallPath), "backups")
}

// TempDir returns the configured download directory, or ~/.zed_updater/temp.
func (s *Store) TempDir() string {
	snapshot := s.Snapshot()
	if snapshot.TempDir != "" {
		return snapshot.TempDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "zed_updater")
	}
	return filepath.Join(home, ".zed_updater", "temp")
}

// EnsureDirectories creates the backup and temporary directories.
// A directory that cannot be created is logged and skipped.
func (s *Store) EnsureDirectories() {
	for _, dir := range []string{s.BackupDir(), s.TempDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("cannot create directory %q: %s", dir, err)
		}
	}
}
