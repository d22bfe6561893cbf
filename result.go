package zedupdate

import (
	"fmt"
)

// Messages of the successful results without installation.
const (
	MessageNoUpdate = "no updates available"
	MessageUpToDate = "already up to date"
)

// UpdateResult is the outcome of one pipeline run. It is never nil.
type UpdateResult struct {
	Success bool
	Message string
	// InstalledVersion is set when a new version has been installed
	InstalledVersion string
	// ErrorCode is set when Success is false
	ErrorCode ErrorCode
	// Err is the error behind a failed result
	Err error
}

func (r *UpdateResult) String() string {
	if r.Success {
		return r.Message
	}
	return fmt.Sprintf("%s [%s]", r.Message, r.ErrorCode)
}

func successResult(message, installedVersion string) *UpdateResult {
	return &UpdateResult{
		Success:          true,
		Message:          message,
		InstalledVersion: installedVersion,
	}
}

func failureResult(err error) *UpdateResult {
	return &UpdateResult{
		Success:   false,
		Message:   err.Error(),
		ErrorCode: CodeOf(err),
		Err:       err,
	}
}
