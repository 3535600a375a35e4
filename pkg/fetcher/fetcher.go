// Package fetcher retrieves problem-package and submission archives from a
// URL or local path, with optional SHA-256 verification (§2, §4.1).
package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cuemby/judgehost/pkg/jherrors"
)

// Fetcher downloads archives over HTTP, with a local-file fallback for
// file:// and bare filesystem paths.
type Fetcher struct {
	client *http.Client
}

// New creates a Fetcher with the given per-request timeout.
func New(timeout time.Duration) *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch retrieves the content at url and returns it as a byte buffer. When
// checksum is non-empty, the downloaded bytes' SHA-256 must match it
// (case-insensitive hex), or ChecksumMismatch is returned.
func (f *Fetcher) Fetch(ctx context.Context, url, checksum string) ([]byte, error) {
	data, err := f.fetchBytes(ctx, url)
	if err != nil {
		return nil, err
	}

	if checksum != "" {
		sum := sha256.Sum256(data)
		got := hex.EncodeToString(sum[:])
		if !strings.EqualFold(got, checksum) {
			return nil, jherrors.ChecksumMismatch(checksum, got)
		}
	}

	return data, nil
}

func (f *Fetcher) fetchBytes(ctx context.Context, url string) ([]byte, error) {
	if path, ok := localPath(url); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, jherrors.Wrap(jherrors.CodeInvalidInput, "reading local package file", err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, jherrors.InvalidInput("archive_url", err.Error())
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, jherrors.TransientNetworkError("fetch "+url, err)
	}
	defer resp.Body.Close()

	if isRetryableStatus(resp.StatusCode) {
		return nil, jherrors.TransientNetworkError("fetch "+url, httpStatusError(resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, jherrors.InvalidPackage(httpStatusError(resp.StatusCode).Error())
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, jherrors.TransientNetworkError("read body "+url, err)
	}
	return data, nil
}

func localPath(url string) (string, bool) {
	if strings.HasPrefix(url, "file://") {
		return strings.TrimPrefix(url, "file://"), true
	}
	if !strings.Contains(url, "://") {
		return url, true
	}
	return "", false
}

// isRetryableStatus matches the network-like failure classes called out
// in §4.2's retry policy (404 is included there alongside connection-level
// errors since a package may not yet be visible to the fetch endpoint).
func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusNotFound, http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

type statusError struct {
	code int
}

func (e statusError) Error() string {
	return fmt.Sprintf("%d %s", e.code, http.StatusText(e.code))
}

func httpStatusError(code int) error {
	return statusError{code: code}
}
