package zedupdate

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// checksum files published next to the assets, one "<sha256>  <file name>" per line
var checksumFileNames = []string{"checksums.txt", "sha256sums", "sha256sums.txt", "checksums.sha256"}

const maxChecksumFileSize = 1 << 20

// findChecksumAsset returns the asset holding the checksum of assetName:
// "<assetName>.sha256" or a global checksum file.
func findChecksumAsset(assets []SourceAsset, assetName string) (SourceAsset, bool) {
	for _, asset := range assets {
		if strings.EqualFold(asset.GetName(), assetName+".sha256") {
			return asset, true
		}
	}
	for _, asset := range assets {
		for _, name := range checksumFileNames {
			if strings.EqualFold(asset.GetName(), name) {
				return asset, true
			}
		}
	}
	return nil, false
}

// parseChecksumFile extracts the checksum of filename. A file holding a single
// checksum without file name (the usual "<asset>.sha256") applies to any file.
func parseChecksumFile(filename string, content []byte) (string, error) {
	// check if the file has windows line ending (probably better than just testing the platform)
	eol := []byte("\n")
	if bytes.Contains(content, []byte("\r\n")) {
		eol = []byte("\r\n")
	}
	lines := bytes.Split(bytes.TrimSpace(content), eol)
	for _, line := range lines {
		fields := strings.Fields(string(line))
		if len(fields) == 0 {
			continue
		}
		if !isSHA256(fields[0]) {
			return "", errors.New("incorrect checksum file format")
		}
		if len(fields) == 1 && len(lines) == 1 {
			return fields[0], nil
		}
		// "*" marks a binary mode entry in sha256sum output
		if len(fields) >= 2 && strings.TrimPrefix(fields[len(fields)-1], "*") == filename {
			return fields[0], nil
		}
	}
	return "", fmt.Errorf("hash for file %q not found in checksum file", filename)
}

func isSHA256(value string) bool {
	decoded, err := hex.DecodeString(value)
	return err == nil && len(decoded) == 32
}

// fetchChecksum downloads and parses a checksum file.
func fetchChecksum(ctx context.Context, client *http.Client, url, filename string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: HTTP request failed with status code %d", ErrNetwork, resp.StatusCode)
	}
	content, err := io.ReadAll(io.LimitReader(resp.Body, maxChecksumFileSize))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return parseChecksumFile(filename, content)
}
