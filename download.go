package zedupdate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	DefaultRetries         = 3
	DefaultBackoffFactor   = 2.0
	DefaultBackoffBase     = time.Second
	DefaultDownloadTimeout = 300 * time.Second
	downloadChunkSize      = 32 * 1024
)

// ProgressFunc receives the progress of an operation in percent (0 to 100) with a short message.
// It is called zero or more times with non-decreasing percentages, and must not block.
type ProgressFunc func(percent float64, message string)

// DownloadAuthorizer can add credentials to an asset request (implemented by sources needing it).
type DownloadAuthorizer interface {
	AuthorizeDownload(req *http.Request)
}

// DownloaderConfig is an object to pass to NewDownloader. Zero values take the defaults.
type DownloaderConfig struct {
	HTTPClient *http.Client
	// Retries is the maximum number of attempts
	Retries int
	// BackoffFactor: the wait before attempt n+1 is BackoffBase * BackoffFactor^(n-1)
	BackoffFactor float64
	BackoffBase   time.Duration
	// Timeout applies to each attempt, not to the download as a whole
	Timeout    time.Duration
	Authorizer DownloadAuthorizer
}

// DownloadRequest is an asset to download. Size and Checksum are verified when present.
type DownloadRequest struct {
	URL      string
	Size     int64
	Checksum string
}

// DownloadResult is a fully written and verified file.
type DownloadResult struct {
	Path      string
	SizeBytes int64
	// Signature is the kind of file (executable or archive) recognized from its first bytes
	Signature Signature
}

// Downloader retrieves one asset at a time with retries.
type Downloader struct {
	client        *http.Client
	retries       int
	backoffFactor float64
	backoffBase   time.Duration
	timeout       time.Duration
	authorizer    DownloadAuthorizer
	sleep         func(ctx context.Context, d time.Duration) error
	now           func() time.Time
}

// NewDownloader creates a Downloader from a config object.
func NewDownloader(config DownloaderConfig) *Downloader {
	d := &Downloader{
		client:        config.HTTPClient,
		retries:       config.Retries,
		backoffFactor: config.BackoffFactor,
		backoffBase:   config.BackoffBase,
		timeout:       config.Timeout,
		authorizer:    config.Authorizer,
		sleep:         sleepContext,
		now:           time.Now,
	}
	if d.client == nil {
		d.client = &http.Client{}
	}
	if d.retries < 1 {
		d.retries = DefaultRetries
	}
	if d.backoffFactor < 1 {
		d.backoffFactor = DefaultBackoffFactor
	}
	if d.backoffBase <= 0 {
		d.backoffBase = DefaultBackoffBase
	}
	if d.timeout <= 0 {
		d.timeout = DefaultDownloadTimeout
	}
	return d
}

// Download retrieves url into destDir. See DownloadAsset.
func (d *Downloader) Download(ctx context.Context, url, destDir string, progress ProgressFunc) (*DownloadResult, error) {
	return d.DownloadAsset(ctx, DownloadRequest{URL: url}, destDir, progress)
}

// DownloadAsset retrieves the asset into destDir, under a file name taken from the URL.
//
// Each attempt downloads the whole file again. An attempt fails when the request fails, when
// the number of bytes received differs from the announced size, when the file does not start
// with an executable or archive signature, or when the checksum does not match. The file of a
// failed attempt is deleted: on error no file is left behind.
func (d *Downloader) DownloadAsset(ctx context.Context, asset DownloadRequest, destDir string, progress ProgressFunc) (*DownloadResult, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: cannot create download directory: %w", ErrDownload, err)
	}
	dest, err := destinationPath(destDir, filenameFromURL(asset.URL, d.now()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	progress = monotonic(progress)

	var lastErr error
	for attempt := 1; attempt <= d.retries; attempt++ {
		if attempt > 1 {
			delay := d.backoff(attempt)
			log.Printf("download attempt %d/%d failed: %s; retrying in %s", attempt-1, d.retries, lastErr, delay)
			if err := d.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrDownload, err)
			}
		}
		result, err := d.attempt(ctx, asset, dest, progress)
		if err == nil {
			log.Printf("downloaded %s (%d bytes) to %q", asset.URL, result.SizeBytes, result.Path)
			return result, nil
		}
		_ = os.Remove(dest)
		lastErr = err
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrDownload, ctx.Err())
		}
	}
	return nil, fmt.Errorf("%w: %d attempts failed, last error: %w", ErrDownload, d.retries, lastErr)
}

// backoff is the wait before the given attempt (the second attempt waits BackoffBase).
func (d *Downloader) backoff(attempt int) time.Duration {
	return time.Duration(float64(d.backoffBase) * math.Pow(d.backoffFactor, float64(attempt-2)))
}

func (d *Downloader) attempt(ctx context.Context, asset DownloadRequest, dest string, progress ProgressFunc) (*DownloadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.URL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/octet-stream")
	if d.authorizer != nil {
		d.authorizer.AuthorizeDownload(req)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP request failed with status code %d", ErrNetwork, resp.StatusCode)
	}

	expected := resp.ContentLength
	if expected <= 0 {
		expected = asset.Size
	}

	file, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	var checksum hash.Hash = sha256.New()
	written, err := copyChunks(io.MultiWriter(file, checksum), resp.Body, expected, progress)
	if err == nil {
		err = file.Sync()
	}
	if errClose := file.Close(); err == nil {
		err = errClose
	}
	if err != nil {
		return nil, err
	}

	if resp.ContentLength > 0 && written != resp.ContentLength {
		return nil, fmt.Errorf("%w: received %d bytes, announced %d", ErrSizeMismatch, written, resp.ContentLength)
	}
	if asset.Size > 0 && written != asset.Size {
		return nil, fmt.Errorf("%w: received %d bytes, release lists %d", ErrSizeMismatch, written, asset.Size)
	}

	header, err := readHeader(dest)
	if err != nil {
		return nil, err
	}
	signature, ok := MatchSignature(header, ExecutableSignatures)
	if !ok {
		signature, ok = MatchSignature(header, ArchiveSignatures)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q is neither an executable nor a known archive", ErrInvalidSignature, dest)
	}

	if err = verifyChecksum(asset.Checksum, checksum.Sum(nil)); err != nil {
		return nil, err
	}
	return &DownloadResult{
		Path:      dest,
		SizeBytes: written,
		Signature: signature,
	}, nil
}

func copyChunks(dst io.Writer, src io.Reader, total int64, progress ProgressFunc) (int64, error) {
	buffer := make([]byte, downloadChunkSize)
	var written int64
	for {
		n, err := src.Read(buffer)
		if n > 0 {
			if _, errWrite := dst.Write(buffer[:n]); errWrite != nil {
				return written, errWrite
			}
			written += int64(n)
			if total > 0 && progress != nil {
				progress(math.Min(100, float64(written)*100/float64(total)), "downloading")
			}
		}
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, fmt.Errorf("%w: %w", ErrNetwork, err)
		}
	}
}

// verifyChecksum compares an optional "sha256:"-prefixed hex digest with the computed one.
func verifyChecksum(expected string, actual []byte) error {
	expected = strings.ToLower(strings.TrimSpace(expected))
	expected = strings.TrimPrefix(expected, "sha256:")
	if expected == "" {
		return nil
	}
	if expected != hex.EncodeToString(actual) {
		return fmt.Errorf("%w: expected %s, got %x", ErrChecksumMismatch, expected, actual)
	}
	return nil
}

// monotonic drops the progress updates going backwards (a retry starting from zero again).
func monotonic(progress ProgressFunc) ProgressFunc {
	if progress == nil {
		return nil
	}
	last := -1.0
	return func(percent float64, message string) {
		if percent < last {
			return
		}
		last = percent
		progress(percent, message)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
