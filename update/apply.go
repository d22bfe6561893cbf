package update

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zedloc/zed-updater/internal"
)

type targetFile interface {
	io.Writer
	Sync() error
	Close() error
}

var (
	openFile = func(name string, flag int, perm os.FileMode) (targetFile, error) {
		return os.OpenFile(name, flag, perm)
	}
	log = internal.Log
)

// Apply replaces opts.TargetPath with the contents of the given io.Reader.
//
// Apply performs the following actions:
//
// 1. Removes any stale /path/to/target.old left by a previous run.
//
// 2. Renames /path/to/target to /path/to/target.old (when the target exists).
//
// 3. Copies the update into /path/to/target and flushes it to disk.
//
// 4. Verifies the number of bytes written against opts.Size, then reads the target back and compares
// its sha256 with opts.Checksum (when set).
//
// 5. On success deletes /path/to/target.old. On Windows the removal may fail while the old
// executable is still mapped by a process, so Apply hides the old file instead.
//
// 6. If any of steps 3 or 4 fails, Apply removes the partial copy and renames /path/to/target.old
// back to /path/to/target.
//
// If the roll back operation fails, the file system is left in an inconsistent state where the target
// is missing and the previous version sits at /path/to/target.old. Applications can determine whether
// the rollback failed by calling RollbackError, see the documentation on that function for additional detail.
func Apply(update io.Reader, opts Options) error {
	if opts.TargetPath == "" {
		return errors.New("no target path to update")
	}
	if opts.TargetMode == 0 {
		opts.TargetMode = 0o755
	}
	targetPath, err := internal.ResolveTarget(opts.TargetPath)
	if err != nil {
		return err
	}

	oldPath := targetPath + ".old"
	// a leftover .old would make the rename fail on Windows
	_ = os.Remove(oldPath)

	hasOld := false
	if _, err = os.Stat(targetPath); err == nil {
		if err = os.Rename(targetPath, oldPath); err != nil {
			return fmt.Errorf("cannot move %q aside: %w", targetPath, err)
		}
		hasOld = true
	}

	err = writeTarget(targetPath, update, opts)
	if err == nil && opts.Checksum != nil {
		err = verifyChecksum(targetPath, opts.Checksum)
	}
	if err != nil {
		return rollback(targetPath, oldPath, hasOld, err)
	}

	if !hasOld {
		return nil
	}
	if errRemove := os.Remove(oldPath); errRemove != nil {
		log.Printf("cannot remove %q: %s", oldPath, errRemove)
		_ = hideFile(oldPath)
	}
	return nil
}

func writeTarget(targetPath string, update io.Reader, opts Options) error {
	fp, err := openFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, opts.TargetMode)
	if err != nil {
		return err
	}
	written, err := io.Copy(fp, update)
	if err != nil {
		fp.Close()
		return err
	}
	if err = fp.Sync(); err != nil {
		fp.Close()
		return err
	}
	// Windows keeps the file "in use" until it is closed
	if err = fp.Close(); err != nil {
		return err
	}

	if opts.Size > 0 && written != opts.Size {
		return fmt.Errorf("%w: wrote %d bytes, expected %d", ErrSizeMismatch, written, opts.Size)
	}
	info, err := os.Stat(targetPath)
	if err != nil {
		return err
	}
	if info.Size() != written {
		return fmt.Errorf("%w: %q is %d bytes after writing %d", ErrSizeMismatch, targetPath, info.Size(), written)
	}
	return nil
}

func verifyChecksum(path string, expected []byte) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err = io.Copy(hash, file); err != nil {
		return err
	}
	if sum := hash.Sum(nil); !bytes.Equal(expected, sum) {
		return fmt.Errorf("%w: expected %x, got %x", ErrChecksumMismatch, expected, sum)
	}
	return nil
}

func rollback(targetPath, oldPath string, hasOld bool, cause error) error {
	log.Printf("update of %q failed, rolling back: %s", targetPath, cause)
	_ = os.Remove(targetPath)
	if !hasOld {
		return cause
	}
	if rerr := os.Rename(oldPath, targetPath); rerr != nil {
		return &rollbackError{cause, rerr}
	}
	return cause
}

// RollbackError takes an error value returned by Apply and returns the error, if any,
// that occurred when attempting to roll back from a failed update. Applications should
// always call this function on any non-nil errors returned by Apply.
//
// If no rollback was needed or if the rollback was successful, RollbackError returns nil,
// otherwise it returns the error encountered when trying to roll back.
func RollbackError(err error) error {
	if err == nil {
		return nil
	}
	var rerr *rollbackError
	if errors.As(err, &rerr) {
		return rerr.rollbackErr
	}
	return nil
}

type rollbackError struct {
	error             // original error
	rollbackErr error // error encountered while rolling back
}

func (e *rollbackError) Unwrap() error {
	return e.error
}
