package update

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sha256 "github.com/minio/sha256-simd"
)

const (
	// DefaultChunkSize bounds each read from the response body.
	DefaultChunkSize = 32 * 1024
	// DefaultSizeSlack is how far the on-disk size may drift from the
	// advertised size before the download is rejected.
	DefaultSizeSlack = 1024
	// DefaultDownloadTimeout limits connect, response headers and any
	// stretch of time without receiving body bytes.
	DefaultDownloadTimeout = 30 * time.Second
)

// HTTPDownloader downloads binaries over HTTP
type HTTPDownloader struct {
	client    *http.Client
	timeout   time.Duration
	sizeSlack int64
	chunkSize int
}

// NewHTTPDownloader creates a new HTTP downloader
func NewHTTPDownloader() *HTTPDownloader {
	d := &HTTPDownloader{
		sizeSlack: DefaultSizeSlack,
		chunkSize: DefaultChunkSize,
	}
	return d.WithTimeout(DefaultDownloadTimeout)
}

// WithTimeout sets the network timeout. It is not a cap on total download
// time: a transfer that keeps receiving bytes is never cut off.
func (d *HTTPDownloader) WithTimeout(timeout time.Duration) *HTTPDownloader {
	if timeout <= 0 {
		return d
	}
	d.timeout = timeout
	d.client = &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
		},
	}
	return d
}

// WithSizeSlack sets the tolerated byte difference for the size check.
func (d *HTTPDownloader) WithSizeSlack(slack int64) *HTTPDownloader {
	if slack >= 0 {
		d.sizeSlack = slack
	}
	return d
}

// Download streams url into dst.
//
// Any stale file at dst is removed first. When expectedSize is positive the
// result must be within the size slack of it, otherwise dst is removed and
// an *IntegrityError is returned. Transport and HTTP failures return a
// *DownloadError and also leave no file behind.
func (d *HTTPDownloader) Download(ctx context.Context, url, dst string, expectedSize int64, onProgress ProgressFunc) (int64, error) {
	if url == "" {
		return 0, &DownloadError{URL: url, Err: errors.New("no download URL")}
	}

	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return 0, &DownloadError{URL: url, Err: fmt.Errorf("remove stale download: %w", err)}
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &DownloadError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, &DownloadError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, &DownloadError{URL: url, StatusCode: resp.StatusCode}
	}

	// Progress falls back to Content-Length; integrity never does.
	total := expectedSize
	if total <= 0 && resp.ContentLength > 0 {
		total = resp.ContentLength
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return 0, &DownloadError{URL: url, Err: fmt.Errorf("create %s: %w", dst, err)}
	}

	body := newStallReader(resp.Body, d.timeout, cancel)
	written, copyErr := d.copyChunks(out, body, total, onProgress)
	body.stop()
	closeErr := out.Close()

	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(dst)
		if cause := context.Cause(ctx); errors.Is(cause, errStalled) {
			copyErr = cause
		}
		return written, &DownloadError{URL: url, Err: copyErr}
	}

	if expectedSize > 0 {
		if err := d.checkSize(dst, expectedSize); err != nil {
			_ = os.Remove(dst)
			return written, err
		}
	}

	if onProgress != nil && total > 0 {
		onProgress(1)
	}

	return written, nil
}

// copyChunks copies src to dst in bounded chunks, reporting progress after
// each one when the total is known.
func (d *HTTPDownloader) copyChunks(dst io.Writer, src io.Reader, total int64, onProgress ProgressFunc) (int64, error) {
	buf := make([]byte, d.chunkSize)
	var written int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
			if onProgress != nil && total > 0 {
				onProgress(fraction(written, total))
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// checkSize compares the file on disk with the advertised size.
func (d *HTTPDownloader) checkSize(path string, expected int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return &IntegrityError{Path: path, Reason: "size", Expected: strconv.FormatInt(expected, 10), Actual: "missing"}
	}

	diff := info.Size() - expected
	if diff < 0 {
		diff = -diff
	}
	if diff > d.sizeSlack {
		return &IntegrityError{
			Path:     path,
			Reason:   "size",
			Expected: strconv.FormatInt(expected, 10),
			Actual:   strconv.FormatInt(info.Size(), 10),
		}
	}
	return nil
}

func fraction(done, total int64) float64 {
	f := float64(done) / float64(total)
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}

// VerifyChecksum verifies the downloaded file against a sha256sum-style list.
// name is the entry to look up, normally the release asset name; when empty
// the file's own base name is used. A mismatch removes the file.
func (d *HTTPDownloader) VerifyChecksum(ctx context.Context, file, name, checksumURL string) error {
	checksums, err := d.downloadChecksums(ctx, checksumURL)
	if err != nil {
		return fmt.Errorf("failed to download checksums: %w", err)
	}

	filename := name
	if filename == "" {
		filename = getFilename(file)
	}
	expected, ok := checksums[filename]
	if !ok {
		return fmt.Errorf("checksum for %s not found in checksums file", filename)
	}

	actual, err := calculateSHA256(file)
	if err != nil {
		return fmt.Errorf("failed to calculate checksum: %w", err)
	}

	if !strings.EqualFold(actual, expected) {
		_ = os.Remove(file)
		return &IntegrityError{Path: file, Reason: "checksum", Expected: expected, Actual: actual}
	}

	return nil
}

// downloadChecksums fetches and parses "<hex>  <filename>" lines.
// Lines that do not have exactly two fields are skipped.
func (d *HTTPDownloader) downloadChecksums(ctx context.Context, url string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("checksums request returned status %d", resp.StatusCode)
	}

	checksums := make(map[string]string)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		// sha256sum marks binary mode with a leading '*'
		checksums[strings.TrimPrefix(fields[1], "*")] = fields[0]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return checksums, nil
}

// calculateSHA256 returns the hex sha256 of a file.
func calculateSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// getFilename returns the base name of a path.
func getFilename(path string) string {
	return filepath.Base(path)
}

var errStalled = errors.New("no data received within timeout")

// stallReader cancels the request when no bytes arrive for timeout.
type stallReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
}

func newStallReader(r io.Reader, timeout time.Duration, cancel context.CancelCauseFunc) *stallReader {
	s := &stallReader{r: r, timeout: timeout}
	if timeout > 0 {
		s.timer = time.AfterFunc(timeout, func() { cancel(errStalled) })
	}
	return s
}

func (s *stallReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if n > 0 && s.timer != nil {
		s.timer.Reset(s.timeout)
	}
	return n, err
}

func (s *stallReader) stop() {
	if s.timer != nil {
		s.timer.Stop()
	}
}
