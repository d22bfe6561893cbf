package zedupdate

import (
	"bytes"
	"context"
	"debug/pe"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"time"

	"github.com/zedloc/zed-updater/settings"
)

// VersionDetector is one way of finding the version of the executable at path.
// It returns false when it cannot tell, so that the next detector is tried.
type VersionDetector func(ctx context.Context, path string) (string, bool)

var reOutputVersion = regexp.MustCompile(`\b(\d{8}|\d+\.\d+\.\d+(?:\.\d+)?)\b`)

// vsFixedFileInfo signature, little endian
var fixedFileInfoSignature = []byte{0xbd, 0x04, 0xef, 0xfe}

// CommandVersionDetector runs "<path> --version" and looks for a version number in its output.
func CommandVersionDetector(timeout time.Duration) VersionDetector {
	return func(ctx context.Context, path string) (string, bool) {
		if _, err := os.Stat(path); err != nil {
			return "", false
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		output, err := exec.CommandContext(ctx, path, "--version").Output()
		if err != nil {
			log.Printf("cannot run %q --version: %s", path, err)
			return "", false
		}
		match := reOutputVersion.FindSubmatch(output)
		if match == nil {
			return "", false
		}
		return string(match[1]), true
	}
}

// ResourceVersionDetector reads the file version stored in the resources of a Windows executable.
func ResourceVersionDetector() VersionDetector {
	return func(_ context.Context, path string) (string, bool) {
		file, err := pe.Open(path)
		if err != nil {
			return "", false
		}
		defer file.Close()

		section := file.Section(".rsrc")
		if section == nil {
			return "", false
		}
		data, err := section.Data()
		if err != nil {
			return "", false
		}
		return parseFixedFileInfo(data)
	}
}

// parseFixedFileInfo finds a VS_FIXEDFILEINFO structure and formats its file version as a.b.c.d
func parseFixedFileInfo(data []byte) (string, bool) {
	index := bytes.Index(data, fixedFileInfoSignature)
	// signature, struct version, file version MS, file version LS
	if index < 0 || len(data) < index+16 {
		return "", false
	}
	ms := binary.LittleEndian.Uint32(data[index+8:])
	ls := binary.LittleEndian.Uint32(data[index+12:])
	if ms == 0 && ls == 0 {
		return "", false
	}
	return fmt.Sprintf("%d.%d.%d.%d", ms>>16, ms&0xffff, ls>>16, ls&0xffff), true
}

// SettingsVersionDetector returns the version recorded after the last successful update.
func SettingsVersionDetector(store *settings.Store) VersionDetector {
	return func(_ context.Context, _ string) (string, bool) {
		version := store.GetString(settings.KeyCurrentVersion)
		return version, version != "" && version != UnknownVersion
	}
}

// DefaultVersionDetectors are tried in order: the executable output, its file resources, then the configuration.
func DefaultVersionDetectors(store *settings.Store) []VersionDetector {
	detectors := []VersionDetector{
		CommandVersionDetector(10 * time.Second),
		ResourceVersionDetector(),
	}
	if store != nil {
		detectors = append(detectors, SettingsVersionDetector(store))
	}
	return detectors
}
