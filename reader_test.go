package zedupdate

import (
	"errors"
	"io"
)

var (
	errTestRead = errors.New("read error")
)

// errorReader is a reader that will throw an error after reading n characters
type errorReader struct {
	r         io.Reader
	failAfter int
	read      int
}

// newErrorReader creates a new reader that will thrown an error after reading n characters
func newErrorReader(r io.Reader, failAfterBytes int) *errorReader {
	return &errorReader{
		r:         r,
		failAfter: failAfterBytes,
	}
}

// Read will throw an error after reading n characters
func (r *errorReader) Read(p []byte) (int, error) {
	remaining := r.failAfter - r.read
	if remaining <= 0 {
		return 0, errTestRead
	}
	if len(p) > remaining {
		p = p[:remaining]
	}
	n, err := r.r.Read(p)
	r.read += n
	return n, err
}

// Verify interface
var _ io.Reader = &errorReader{}
