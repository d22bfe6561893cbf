// Package backup keeps timestamped copies of the installed executable.
package backup

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/zedloc/zed-updater/internal"
)

const (
	// DefaultKeepCount is the default number of backups to retain.
	DefaultKeepCount = 3

	filePrefix = "zed_backup_"
	timeLayout = "20060102_150405"
)

var (
	log = internal.Log

	reUnsafeVersion = regexp.MustCompile(`[^0-9A-Za-z.\-]+`)
)

// Record describes one backup file.
type Record struct {
	Path      string
	Version   string
	CreatedAt time.Time
	Size      int64
}

// Manager handles backup operations.
type Manager struct {
	dir     string
	keep    int
	enabled bool
	now     func() time.Time
}

// NewManager creates a backup manager storing its files in dir and keeping the most recent keep backups.
// A disabled manager never creates anything.
func NewManager(dir string, keep int, enabled bool) *Manager {
	if keep < 1 {
		keep = DefaultKeepCount
	}
	return &Manager{
		dir:     dir,
		keep:    keep,
		enabled: enabled,
		now:     time.Now,
	}
}

// Create copies sourcePath into the backup directory then prunes the older backups.
//
// Create returns a nil record and no error when backups are disabled or when there
// is nothing to back up (sourcePath does not exist).
func (m *Manager) Create(sourcePath, version string) (*Record, error) {
	if !m.enabled {
		log.Print("backup disabled, skipping")
		return nil, nil
	}
	info, err := os.Stat(sourcePath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("nothing to back up at %q", sourcePath)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("cannot back up %q: is a directory", sourcePath)
	}
	if err = os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create backup directory: %w", err)
	}

	createdAt := m.now()
	path := m.nextName(version, createdAt, filepath.Ext(sourcePath))
	size, err := copyFile(sourcePath, path, info.Mode())
	if err != nil {
		return nil, err
	}
	_ = os.Chtimes(path, createdAt, createdAt)
	log.Printf("backup of %q created at %q", sourcePath, path)

	if _, err = m.Prune(m.keep); err != nil {
		log.Printf("cannot prune backups: %s", err)
	}
	return &Record{
		Path:      path,
		Version:   version,
		CreatedAt: createdAt,
		Size:      size,
	}, nil
}

func (m *Manager) nextName(version string, createdAt time.Time, ext string) string {
	version = strings.Trim(reUnsafeVersion.ReplaceAllString(version, "-"), "-")
	if version == "" {
		version = "unknown"
	}
	base := filePrefix + version + "_" + createdAt.Format(timeLayout)
	path := filepath.Join(m.dir, base+ext)
	for i := 1; ; i++ {
		if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
			return path
		}
		path = filepath.Join(m.dir, fmt.Sprintf("%s_%d%s", base, i, ext))
	}
}

func copyFile(sourcePath, destPath string, mode fs.FileMode) (int64, error) {
	src, err := os.Open(sourcePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open %q: %w", sourcePath, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.OpenFile(destPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, mode.Perm())
	if err != nil {
		return 0, fmt.Errorf("failed to create backup file: %w", err)
	}
	size, err := io.Copy(dst, src)
	if err == nil {
		err = dst.Sync()
	}
	if errClose := dst.Close(); err == nil {
		err = errClose
	}
	if err != nil {
		_ = os.Remove(destPath)
		return 0, fmt.Errorf("failed to copy %q to backup: %w", sourcePath, err)
	}
	return size, nil
}

// List returns the existing backups, newest first.
// A missing backup directory is an empty list.
func (m *Manager) List() ([]Record, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), filePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		records = append(records, Record{
			Path:      filepath.Join(m.dir, entry.Name()),
			Version:   versionFromName(entry.Name()),
			CreatedAt: info.ModTime(),
			Size:      info.Size(),
		})
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].Path > records[j].Path
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// versionFromName extracts the version from zed_backup_<version>_<date>_<time>[_n].ext
func versionFromName(name string) string {
	name = strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), filepath.Ext(name))
	parts := strings.Split(name, "_")
	if len(parts) < 3 {
		return ""
	}
	return parts[0]
}
