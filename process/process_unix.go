//go:build !windows

package process

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// Terminate asks the process to exit (SIGTERM).
func (s *Service) Terminate(pid int) error {
	return signal(pid, unix.SIGTERM)
}

// Kill stops the process immediately (SIGKILL).
func (s *Service) Kill(pid int) error {
	return signal(pid, unix.SIGKILL)
}

// Alive reports whether the process still exists.
func (s *Service) Alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func signal(pid int, sig unix.Signal) error {
	err := unix.Kill(pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return ErrNotFound
	}
	return err
}

func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

func list() ([]processEntry, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return listFromPS()
	}
	procs := make([]processEntry, 0, len(entries))
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || !entry.IsDir() {
			continue
		}
		name := executableName(pid)
		if name == "" {
			continue
		}
		procs = append(procs, processEntry{pid: pid, name: name})
	}
	return procs, nil
}

func executableName(pid int) string {
	dir := filepath.Join("/proc", strconv.Itoa(pid))
	if exe, err := os.Readlink(filepath.Join(dir, "exe")); err == nil {
		return filepath.Base(strings.TrimSuffix(exe, " (deleted)"))
	}
	cmdline, err := os.ReadFile(filepath.Join(dir, "cmdline"))
	if err != nil || len(cmdline) == 0 {
		return ""
	}
	argv0, _, _ := bytes.Cut(cmdline, []byte{0})
	return filepath.Base(string(argv0))
}

// listFromPS is used where /proc is not available (macOS, BSD).
func listFromPS() ([]processEntry, error) {
	output, err := exec.Command("ps", "-axo", "pid=,comm=").Output()
	if err != nil {
		return nil, err
	}
	procs := make([]processEntry, 0, 64)
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		procs = append(procs, processEntry{pid: pid, name: filepath.Base(strings.Join(fields[1:], " "))})
	}
	return procs, nil
}
