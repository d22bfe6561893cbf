// Package process finds, stops and starts operating system processes by executable name.
package process

import (
	"errors"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/zedloc/zed-updater/internal"
)

// ErrNotFound is returned when acting on a process that no longer exists.
var ErrNotFound = errors.New("process not found")

var log = internal.Log

// Service is the default process service of the updater.
type Service struct{}

// New returns a process service for the current operating system.
func New() *Service {
	return &Service{}
}

// FindByName returns the IDs of the running processes whose executable is named name.
// The comparison ignores the directory, and on Windows the case and the ".exe" extension.
func (s *Service) FindByName(name string) ([]int, error) {
	procs, err := list()
	if err != nil {
		return nil, err
	}
	pids := make([]int, 0, 1)
	for _, proc := range procs {
		if sameExecutable(proc.name, name) {
			pids = append(pids, proc.pid)
		}
	}
	return pids, nil
}

// Start launches the executable at path in the background, without waiting for it.
func (s *Service) Start(path string, args ...string) error {
	cmd := exec.Command(path, args...)
	cmd.Dir = filepath.Dir(path)
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}
	log.Printf("started %q with pid %d", path, cmd.Process.Pid)
	return cmd.Process.Release()
}

type processEntry struct {
	pid  int
	name string
}

func sameExecutable(a, b string) bool {
	a, b = filepath.Base(a), filepath.Base(b)
	if runtime.GOOS == "windows" {
		a = strings.TrimSuffix(strings.ToLower(a), ".exe")
		b = strings.TrimSuffix(strings.ToLower(b), ".exe")
	}
	return a != "" && a == b
}
