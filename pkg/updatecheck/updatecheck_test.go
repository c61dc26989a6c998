package updatecheck

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUpdateAvailable(t *testing.T) {
	tests := []struct {
		name    string
		current string
		latest  string
		want    bool
	}{
		{name: "newer patch", current: "1.2.3", latest: "1.2.4", want: true},
		{name: "same version", current: "1.2.3", latest: "1.2.3", want: false},
		{name: "older release", current: "2.0.0", latest: "1.9.9", want: false},
		{name: "v prefix", current: "v1.0.0", latest: "v1.1.0", want: true},
		{name: "unparsable current", current: "dev", latest: "0.0.1", want: true},
		{name: "unparsable latest", current: "0.0.1", latest: "garbage", want: false},
		{name: "both unparsable", current: "dev", latest: "garbage", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUpdateAvailable(tt.current, tt.latest))
		})
	}
}

func TestNewChecker_InvalidRepo(t *testing.T) {
	for _, repo := range []string{"", "owner", "/repo", "owner/", "a/b/c"} {
		_, err := NewChecker(repo, nil)
		assert.Error(t, err, repo)
	}
}

func releaseServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/tool/releases/latest", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestChecker(t *testing.T, server *httptest.Server) *Checker {
	t.Helper()
	checker, err := NewChecker("acme/tool", server.Client())
	require.NoError(t, err)
	checker, err = checker.WithBaseURL(server.URL)
	require.NoError(t, err)
	return checker
}

func TestLatestRelease(t *testing.T) {
	server := releaseServer(t, `{
		"tag_name": "v1.4.0",
		"html_url": "https://example.com/releases/v1.4.0",
		"body": "  Fixes.\n",
		"assets": [
			{"name": "checksums.txt", "browser_download_url": "https://example.com/checksums.txt"},
			{"name": "pro-tools-plugin-sync-1.4.0.dmg", "browser_download_url": "https://example.com/app.dmg"}
		]
	}`, http.StatusOK)

	release, err := newTestChecker(t, server).LatestRelease(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &ReleaseInfo{
		Version:  "1.4.0",
		Tag:      "v1.4.0",
		URL:      "https://example.com/releases/v1.4.0",
		AssetURL: "https://example.com/app.dmg",
		Notes:    "Fixes.",
	}, release)
}

func TestLatestRelease_NoAsset(t *testing.T) {
	server := releaseServer(t, `{"tag_name": "2.0.0", "assets": []}`, http.StatusOK)

	release, err := newTestChecker(t, server).LatestRelease(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", release.Version)
	assert.Empty(t, release.AssetURL)
}

func TestLatestRelease_EmptyTag(t *testing.T) {
	server := releaseServer(t, `{"tag_name": ""}`, http.StatusOK)

	_, err := newTestChecker(t, server).LatestRelease(context.Background())
	assert.ErrorIs(t, err, ErrNoRelease)
}

func TestLatestRelease_NotFound(t *testing.T) {
	server := releaseServer(t, `{"message": "Not Found"}`, http.StatusNotFound)

	_, err := newTestChecker(t, server).LatestRelease(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch latest release")
}
