package zedupdate

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	reservedCharacters = `:*?"<>|\/`
	maxFilenameLength  = 255
)

// Windows refuses these names whatever the extension
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// filenameFromURL returns the last segment of the URL path when it is a safe file name,
// or a name made from the time otherwise. The result is always a single path segment.
func filenameFromURL(rawURL string, now time.Time) string {
	fallback := "download_" + now.Format("20060102_150405")

	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	// the escaped path keeps an encoded "/" (%2F) inside its segment
	escaped := u.EscapedPath()
	segment := escaped[strings.LastIndex(escaped, "/")+1:]
	name, err := url.PathUnescape(segment)
	if err != nil || !isSafeFilename(name) {
		log.Printf("no safe file name in %q, using %q", rawURL, fallback)
		return fallback
	}
	return name
}

func isSafeFilename(name string) bool {
	if name == "" || name == "." || len(name) > maxFilenameLength {
		return false
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, reservedCharacters) {
		return false
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	if strings.HasSuffix(name, " ") || strings.HasSuffix(name, ".") {
		return false
	}
	base := strings.ToUpper(strings.TrimSuffix(name, path.Ext(name)))
	return !reservedNames[base]
}

// destinationPath joins name to dir, making sure the result stays inside dir.
func destinationPath(dir, name string) (string, error) {
	dir = filepath.Clean(dir)
	dest := filepath.Join(dir, name)
	if filepath.Dir(dest) != dir || filepath.Base(dest) != name {
		return "", fmt.Errorf("%w: %q escapes %q", ErrInvalidFilename, name, dir)
	}
	return dest, nil
}
