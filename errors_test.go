package zedupdate

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	testData := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{"nil", nil, ""},
		{"network", fmt.Errorf("%w: connection refused", ErrNetwork), CodeNetwork},
		{"download wrapping network", fmt.Errorf("%w: %w", ErrDownload, fmt.Errorf("%w: timeout", ErrNetwork)), CodeDownload},
		{"installation", fmt.Errorf("%w: %w", ErrInstallation, ErrInvalidSignature), CodeInstallation},
		{"process", fmt.Errorf("%w: cannot stop zed", ErrProcess), CodeProcess},
		{"configuration", fmt.Errorf("%w: bad file", ErrConfiguration), CodeConfiguration},
		{"validation", fmt.Errorf("%w: bad version", ErrValidation), CodeValidation},
		{"anything else", errors.New("boom"), CodeUpdate},
	}
	for _, testItem := range testData {
		t.Run(testItem.name, func(t *testing.T) {
			assert.Equal(t, testItem.expected, CodeOf(testItem.err))
		})
	}
}

func TestFailureResult(t *testing.T) {
	err := fmt.Errorf("%w: disk full", ErrInstallation)
	result := failureResult(err)
	assert.False(t, result.Success)
	assert.Equal(t, CodeInstallation, result.ErrorCode)
	assert.ErrorIs(t, result.Err, ErrInstallation)
	assert.Equal(t, "installation error: disk full [INSTALL_FAILED]", result.String())

	result = successResult("updated to version 20240115", "20240115")
	assert.True(t, result.Success)
	assert.Empty(t, result.ErrorCode)
	assert.Equal(t, "updated to version 20240115", result.String())
}
