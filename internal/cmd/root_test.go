package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/finmgr/finmgr/internal/update"
)

func withBuildVersion(t *testing.T, version string) {
	t.Helper()
	old := buildVersion
	buildVersion = version
	t.Cleanup(func() { buildVersion = old })
}

func withConfigPath(t *testing.T, path string) {
	t.Helper()
	old := configPath
	configPath = path
	t.Cleanup(func() { configPath = old })
}

func feedServer(t *testing.T, tag string) *httptest.Server {
	t.Helper()
	asset := "finmgr" + update.Detect().AssetSuffix()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"tag_name": tag,
			"assets": []map[string]interface{}{
				{"name": asset, "browser_download_url": "https://example.com/" + asset, "size": 4096},
			},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func writeHostConfig(t *testing.T, dir, feedURL string) string {
	t.Helper()
	content := "feed:\n" +
		"  url: " + feedURL + "\n" +
		"host:\n" +
		"  check_delay: 10ms\n" +
		"  executable: " + filepath.Join(dir, "finmgr") + "\n"

	path := filepath.Join(dir, "Updatefile.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunStartupAnnouncesUpdate(t *testing.T) {
	withBuildVersion(t, "1.0.0")
	withAssumeYes(t, false)

	dir := t.TempDir()
	server := feedServer(t, "v1.2.0")
	withConfigPath(t, writeHostConfig(t, dir, server.URL))

	leftover := filepath.Join(dir, update.Detect().Executable(update.UpdaterToolName))
	if err := os.WriteFile(leftover, []byte("old updater"), 0755); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := runStartup(context.Background(), strings.NewReader(""), &stdout, &stderr, false); err != nil {
		t.Fatalf("runStartup() error = %v", err)
	}

	out := stdout.String()
	if !strings.HasPrefix(out, "finmgr 1.0.0\n") {
		t.Errorf("output should start with the version banner:\n%s", out)
	}
	if !strings.Contains(out, "Update v1.2.0 available") {
		t.Errorf("update not announced:\n%s", out)
	}
	if _, err := os.Stat(leftover); !os.IsNotExist(err) {
		t.Error("stale updater copy not removed")
	}
}

func TestRunStartupUpToDate(t *testing.T) {
	withBuildVersion(t, "1.2.0")

	dir := t.TempDir()
	server := feedServer(t, "v1.2.0")
	withConfigPath(t, writeHostConfig(t, dir, server.URL))

	var stdout bytes.Buffer
	if err := runStartup(context.Background(), strings.NewReader(""), &stdout, &bytes.Buffer{}, false); err != nil {
		t.Fatalf("runStartup() error = %v", err)
	}
	if stdout.String() != "finmgr 1.2.0\n" {
		t.Errorf("output = %q", stdout.String())
	}
}

func TestRunStartupFeedDown(t *testing.T) {
	withBuildVersion(t, "1.0.0")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	dir := t.TempDir()
	withConfigPath(t, writeHostConfig(t, dir, server.URL))

	var stdout bytes.Buffer
	if err := runStartup(context.Background(), strings.NewReader(""), &stdout, &bytes.Buffer{}, true); err != nil {
		t.Errorf("feed failure must not fail startup: %v", err)
	}
	if strings.Contains(stdout.String(), "available") {
		t.Errorf("update offered without a feed:\n%s", stdout.String())
	}
}

func TestVersionInfo(t *testing.T) {
	withBuildVersion(t, "1.2.0")

	info := currentVersionInfo()
	if info.Version != "1.2.0" || info.Platform == "" {
		t.Errorf("currentVersionInfo() = %+v", info)
	}
	if !strings.HasPrefix(info.String(), "finmgr version 1.2.0 (commit ") {
		t.Errorf("String() = %q", info.String())
	}
}
