// Package updatecheck looks up the latest published release of the tool.
package updatecheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/go-github/v72/github"
)

// AssetPrefix starts the file name of the installer attached to each release.
const AssetPrefix = "pro-tools-plugin-sync-"

var (
	// ErrNoRelease is returned when the repository has no usable release.
	ErrNoRelease = errors.New("no release found")

	zeroVersion = semver.MustParse("0.0.0")
)

// ReleaseInfo describes a published release.
type ReleaseInfo struct {
	Version  string
	Tag      string
	URL      string
	AssetURL string
	Notes    string
}

// Checker queries GitHub releases for one repository.
type Checker struct {
	client *github.Client
	owner  string
	repo   string
}

// NewChecker builds a Checker for repo in "owner/name" form. A nil
// httpClient gets a 10 second timeout.
func NewChecker(repo string, httpClient *http.Client) (*Checker, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("invalid repository %q", repo)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	client := github.NewClient(httpClient)
	client.UserAgent = "pluginsync"
	return &Checker{client: client, owner: owner, repo: name}, nil
}

// WithBaseURL points the checker at another API root, such as a GitHub
// Enterprise host.
func (c *Checker) WithBaseURL(raw string) (*Checker, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	c.client.BaseURL = base
	return c, nil
}

// LatestRelease fetches the most recent non-draft, non-prerelease release.
func (c *Checker) LatestRelease(ctx context.Context) (*ReleaseInfo, error) {
	release, _, err := c.client.Repositories.GetLatestRelease(ctx, c.owner, c.repo)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest release: %w", err)
	}

	tag := release.GetTagName()
	version := strings.TrimLeft(tag, "v")
	if version == "" {
		return nil, ErrNoRelease
	}
	return &ReleaseInfo{
		Version:  version,
		Tag:      tag,
		URL:      release.GetHTMLURL(),
		AssetURL: assetURL(release.Assets, version),
		Notes:    strings.TrimSpace(release.GetBody()),
	}, nil
}

func assetURL(assets []*github.ReleaseAsset, version string) string {
	expected := AssetPrefix + version + ".dmg"
	for _, asset := range assets {
		if asset.GetName() == expected {
			return asset.GetBrowserDownloadURL()
		}
	}
	return ""
}

// IsUpdateAvailable reports whether latest is newer than current. Either
// side that does not parse counts as 0.0.0.
func IsUpdateAvailable(current, latest string) bool {
	return parseVersion(latest).GreaterThan(parseVersion(current))
}

func parseVersion(text string) *semver.Version {
	v, err := semver.NewVersion(strings.TrimSpace(text))
	if err != nil {
		return zeroVersion
	}
	return v
}
