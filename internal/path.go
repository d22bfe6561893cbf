package internal

import (
	"os"
)

// ResolveTarget returns the path of the file to update: when path is a symlink,
// the final path of the file it points to; otherwise path itself.
// A missing file is not an error: path is returned unchanged.
func ResolveTarget(path string) (string, error) {
	stat, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return path, nil
		}
		return "", err
	}
	if stat.Mode()&os.ModeSymlink == 0 {
		return path, nil
	}
	return ResolvePath(path)
}
