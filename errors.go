package zedupdate

import (
	"errors"

	"github.com/zedloc/zed-updater/settings"
)

// Error kinds. Every error returned by the package wraps one of them.
var (
	ErrNetwork       = errors.New("network error")
	ErrDownload      = errors.New("download error")
	ErrInstallation  = errors.New("installation error")
	ErrConfiguration = settings.ErrConfiguration
	ErrProcess       = errors.New("process error")
	ErrValidation    = errors.New("validation error")
)

// Error
var (
	ErrNotFound                = errors.New("no usable release found")
	ErrInvalidRelease          = errors.New("invalid release (nil argument)")
	ErrInvalidSlug             = errors.New("invalid slug format, expected 'owner/name'")
	ErrIncorrectParameterOwner = errors.New("incorrect parameter \"owner\"")
	ErrIncorrectParameterRepo  = errors.New("incorrect parameter \"repo\"")
	ErrInvalidFilename         = errors.New("no safe file name in URL")
	ErrInvalidSignature        = errors.New("file does not start with a known executable or archive signature")
	ErrSizeMismatch            = errors.New("downloaded size does not match content length")
	ErrChecksumMismatch        = errors.New("sha256 checksum mismatch")
	ErrExecutableNotFound      = errors.New("executable not found in archive")
	ErrUpdateInProgress        = errors.New("an update is already running")
)

// ErrorCode is the machine readable code attached to a failed UpdateResult.
type ErrorCode string

const (
	CodeNetwork       ErrorCode = "NETWORK_ERROR"
	CodeDownload      ErrorCode = "DOWNLOAD_FAILED"
	CodeInstallation  ErrorCode = "INSTALL_FAILED"
	CodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	CodeProcess       ErrorCode = "PROCESS_ERROR"
	CodeValidation    ErrorCode = "VALIDATION_ERROR"
	CodeUpdate        ErrorCode = "UPDATE_FAILED"
)

var errorCodes = []struct {
	kind error
	code ErrorCode
}{
	{ErrInstallation, CodeInstallation},
	{ErrDownload, CodeDownload},
	{ErrProcess, CodeProcess},
	{ErrConfiguration, CodeConfiguration},
	{ErrValidation, CodeValidation},
	{ErrNetwork, CodeNetwork},
}

// CodeOf returns the code of the error kind wrapped by err. A failed download or
// installation keeps its own code even when it wraps a network error.
// It returns an empty code for a nil error and CodeUpdate for any other error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	for _, item := range errorCodes {
		if errors.Is(err, item.kind) {
			return item.code
		}
	}
	return CodeUpdate
}
