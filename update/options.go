package update

import (
	"errors"
	"os"
)

var (
	// ErrSizeMismatch is returned by Apply when the written file does not have the expected size.
	ErrSizeMismatch = errors.New("size mismatch")
	// ErrChecksumMismatch is returned by Apply when the written file does not read back as expected.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Options for Apply update
type Options struct {
	// TargetPath defines the path to the file to update. It cannot be empty.
	// A symbolic link is followed and its destination is updated.
	TargetPath string

	// Create TargetPath replacement with this file mode. If zero, defaults to 0755.
	TargetMode os.FileMode

	// Size is the expected number of bytes of the new file. Zero skips the check.
	Size int64

	// Checksum is the sha256 of the new file. When set, the written target is read back
	// and compared with it.
	Checksum []byte
}
