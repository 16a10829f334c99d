package update

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestNewHTTPDownloader(t *testing.T) {
	downloader := NewHTTPDownloader()

	if downloader.client == nil {
		t.Error("HTTP client should not be nil")
	}
	if downloader.sizeSlack != DefaultSizeSlack {
		t.Errorf("sizeSlack = %d, want %d", downloader.sizeSlack, DefaultSizeSlack)
	}
	if downloader.timeout != DefaultDownloadTimeout {
		t.Errorf("timeout = %v, want %v", downloader.timeout, DefaultDownloadTimeout)
	}
}

func TestHTTPDownloaderDownload_Success(t *testing.T) {
	testContent := bytes.Repeat([]byte("finmgr"), 40000) // several chunks

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(testContent)
	}))
	defer server.Close()

	tmpDir := t.TempDir()
	dstPath := filepath.Join(tmpDir, "update_temp.exe")

	var fractions []float64
	downloader := NewHTTPDownloader()
	n, err := downloader.Download(context.Background(), server.URL, dstPath, int64(len(testContent)), func(f float64) {
		fractions = append(fractions, f)
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	if n != int64(len(testContent)) {
		t.Errorf("Download() = %d bytes, want %d", n, len(testContent))
	}

	content, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("Failed to read downloaded file: %v", err)
	}
	if !bytes.Equal(content, testContent) {
		t.Error("Content mismatch")
	}

	if len(fractions) < 2 {
		t.Fatalf("expected progress after every chunk, got %d calls", len(fractions))
	}
	for i := 1; i < len(fractions); i++ {
		if fractions[i] < fractions[i-1] {
			t.Errorf("progress went backwards: %v then %v", fractions[i-1], fractions[i])
		}
		if fractions[i] < 0 || fractions[i] > 1 {
			t.Errorf("progress %v outside [0,1]", fractions[i])
		}
	}
	if last := fractions[len(fractions)-1]; math.Abs(last-1) > 1e-9 {
		t.Errorf("final progress = %v, want 1.0", last)
	}
}

func TestHTTPDownloaderDownload_UnknownSizeUsesContentLength(t *testing.T) {
	testContent := []byte("test binary content")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(testContent)))
		_, _ = w.Write(testContent)
	}))
	defer server.Close()

	var calls int
	dstPath := filepath.Join(t.TempDir(), "bin")
	if _, err := NewHTTPDownloader().Download(context.Background(), server.URL, dstPath, 0, func(float64) { calls++ }); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if calls == 0 {
		t.Error("expected progress from Content-Length")
	}
}

func TestHTTPDownloaderDownload_RemovesStaleFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("new"))
	}))
	defer server.Close()

	dstPath := filepath.Join(t.TempDir(), "update_temp.exe")
	if err := os.WriteFile(dstPath, []byte("stale partial download from last time"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewHTTPDownloader().Download(context.Background(), server.URL, dstPath, 3, nil); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	content, _ := os.ReadFile(dstPath)
	if string(content) != "new" {
		t.Errorf("content = %q, stale data was not discarded", content)
	}
}

func TestHTTPDownloaderDownload_SizeMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 1000))
	}))
	defer server.Close()

	tests := []struct {
		name     string
		expected int64
		slack    int64
		wantErr  bool
	}{
		{name: "exact", expected: 1000, slack: 0, wantErr: false},
		{name: "within slack", expected: 1010, slack: 16, wantErr: false},
		{name: "short beyond slack", expected: 5000, slack: 16, wantErr: true},
		{name: "long beyond slack", expected: 500, slack: 16, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dstPath := filepath.Join(t.TempDir(), "update_temp")
			_, err := NewHTTPDownloader().WithSizeSlack(tt.slack).Download(context.Background(), server.URL, dstPath, tt.expected, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Download() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}

			var ie *IntegrityError
			if !errors.As(err, &ie) {
				t.Fatalf("expected *IntegrityError, got %T: %v", err, err)
			}
			if ie.Reason != "size" {
				t.Errorf("Reason = %s, want size", ie.Reason)
			}
			if _, statErr := os.Stat(dstPath); !os.IsNotExist(statErr) {
				t.Error("partial file should be removed after integrity failure")
			}
		})
	}
}

func TestHTTPDownloaderDownload_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dstPath := filepath.Join(t.TempDir(), "test-binary")

	_, err := NewHTTPDownloader().Download(context.Background(), server.URL, dstPath, 0, nil)
	var de *DownloadError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DownloadError, got %v", err)
	}
	if de.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", de.StatusCode)
	}

	if _, err := os.Stat(dstPath); !os.IsNotExist(err) {
		t.Error("File should not exist after failed download")
	}
}

func TestHTTPDownloaderDownload_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	dstPath := filepath.Join(t.TempDir(), "test-binary")
	_, err := NewHTTPDownloader().Download(context.Background(), url, dstPath, 0, nil)
	if !errors.Is(err, ErrDownload) {
		t.Errorf("expected ErrDownload, got %v", err)
	}
}

func TestHTTPDownloaderDownload_EmptyURL(t *testing.T) {
	_, err := NewHTTPDownloader().Download(context.Background(), "", filepath.Join(t.TempDir(), "x"), 0, nil)
	if !errors.Is(err, ErrDownload) {
		t.Errorf("expected ErrDownload, got %v", err)
	}
}

func TestHTTPDownloaderDownload_Stalled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		_, _ = w.Write([]byte("first bytes"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	dstPath := filepath.Join(t.TempDir(), "update_temp")
	start := time.Now()
	_, err := NewHTTPDownloader().WithTimeout(100*time.Millisecond).Download(context.Background(), server.URL, dstPath, 100, nil)
	if !errors.Is(err, ErrDownload) {
		t.Fatalf("expected ErrDownload, got %v", err)
	}
	if !errors.Is(err, errStalled) {
		t.Errorf("expected stall cause, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("stalled download was not cut off")
	}
	if _, err := os.Stat(dstPath); !os.IsNotExist(err) {
		t.Error("partial file should be removed")
	}
}

func TestHTTPDownloaderDownload_InvalidDestination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("test"))
	}))
	defer server.Close()

	_, err := NewHTTPDownloader().Download(context.Background(), server.URL, "/invalid/path/that/does/not/exist", 0, nil)
	if err == nil {
		t.Error("Expected error for invalid destination path")
	}
}

func TestCalculateSHA256(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.txt")
	testContent := []byte("hello world")

	if err := os.WriteFile(testFile, testContent, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	checksum, err := calculateSHA256(testFile)
	if err != nil {
		t.Fatalf("calculateSHA256() error = %v", err)
	}

	sum := sha256.Sum256(testContent)
	if expected := hex.EncodeToString(sum[:]); checksum != expected {
		t.Errorf("Checksum mismatch: got %s, want %s", checksum, expected)
	}
}

func TestCalculateSHA256_FileNotFound(t *testing.T) {
	_, err := calculateSHA256("/path/that/does/not/exist")
	if err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestDownloadChecksums_MalformedLines(t *testing.T) {
	checksums := `abc123  file1.bin
malformed
def456 *file2.bin
onlyonefield
789ghi  file3.bin`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(checksums))
	}))
	defer server.Close()

	result, err := NewHTTPDownloader().downloadChecksums(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("downloadChecksums() error = %v", err)
	}

	expected := map[string]string{
		"file1.bin": "abc123",
		"file2.bin": "def456",
		"file3.bin": "789ghi",
	}
	if len(result) != len(expected) {
		t.Errorf("Expected %d checksums, got %d", len(expected), len(result))
	}
	for filename, checksum := range expected {
		if result[filename] != checksum {
			t.Errorf("Checksum mismatch for %s: got %s, want %s", filename, result[filename], checksum)
		}
	}
}

func TestDownloadChecksums_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := NewHTTPDownloader().downloadChecksums(context.Background(), server.URL); err == nil {
		t.Error("Expected error for 500 response")
	}
}

func checksumServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestVerifyChecksum_Success(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "update_temp.exe")
	testContent := []byte("binary content")
	if err := os.WriteFile(testFile, testContent, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	sum := sha256.Sum256(testContent)
	server := checksumServer(t, fmt.Sprintf("%s  FinanceManagerPro.exe\n", hex.EncodeToString(sum[:])))

	if err := NewHTTPDownloader().VerifyChecksum(context.Background(), testFile, "FinanceManagerPro.exe", server.URL); err != nil {
		t.Errorf("VerifyChecksum() error = %v", err)
	}
}

func TestVerifyChecksum_FallsBackToFileName(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "finmgr-linux-amd64")
	testContent := []byte("binary content")
	if err := os.WriteFile(testFile, testContent, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	sum := sha256.Sum256(testContent)
	server := checksumServer(t, fmt.Sprintf("%s  finmgr-linux-amd64\n", strings.ToUpper(hex.EncodeToString(sum[:]))))

	if err := NewHTTPDownloader().VerifyChecksum(context.Background(), testFile, "", server.URL); err != nil {
		t.Errorf("VerifyChecksum() error = %v", err)
	}
}

func TestVerifyChecksum_Mismatch(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "update_temp.exe")
	if err := os.WriteFile(testFile, []byte("binary content"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	wrongChecksum := strings.Repeat("0", 64)
	server := checksumServer(t, fmt.Sprintf("%s  FinanceManagerPro.exe\n", wrongChecksum))

	err := NewHTTPDownloader().VerifyChecksum(context.Background(), testFile, "FinanceManagerPro.exe", server.URL)
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
	if !strings.Contains(err.Error(), "mismatch") {
		t.Errorf("Error should mention mismatch, got: %v", err)
	}
	if _, statErr := os.Stat(testFile); !os.IsNotExist(statErr) {
		t.Error("file failing checksum should be removed")
	}
}

func TestVerifyChecksum_FileNotInChecksums(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "update_temp.exe")
	if err := os.WriteFile(testFile, []byte("content"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	server := checksumServer(t, "abc123  other-file.bin\n")

	err := NewHTTPDownloader().VerifyChecksum(context.Background(), testFile, "FinanceManagerPro.exe", server.URL)
	if err == nil {
		t.Fatal("Expected error for file not in checksums")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Error should mention not found, got: %v", err)
	}
}

func TestGetFilename(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "unix path",
			path: "/tmp/test/file.bin",
			want: "file.bin",
		},
		{
			name: "simple filename",
			path: "file.bin",
			want: "file.bin",
		},
		{
			name: "nested path",
			path: "a/b/c/d/file.bin",
			want: "file.bin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getFilename(tt.path); got != tt.want {
				t.Errorf("getFilename(%s) = %s, want %s", tt.path, got, tt.want)
			}
		})
	}
}
