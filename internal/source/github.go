package source

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/farfarfun/funinstall/internal/logger"
	"github.com/farfarfun/funinstall/internal/platform"
)

const (
	defaultGitHubAPI = "https://api.github.com"
	defaultLimit     = 30
)

// GitHubRelease represents the structure of a GitHub release JSON response.
type GitHubRelease struct {
	TagName    string         `json:"tag_name"` // The release tag (e.g., v1.0.0)
	Name       string         `json:"name"`
	Draft      bool           `json:"draft"`
	Prerelease bool           `json:"prerelease"`
	Assets     []ReleaseAsset `json:"assets"`
}

// ReleaseAsset is one file attached to a GitHub release.
type ReleaseAsset struct {
	Name               string `json:"name"`                 // Asset filename
	BrowserDownloadURL string `json:"browser_download_url"` // Direct download URL for the asset
	Digest             string `json:"digest,omitempty"`     // "sha256:<hex>" on newer releases
}

// GitHub lists releases of a GitHub repository.
type GitHub struct {
	Repo       string // owner/name
	BaseURL    string
	Token      string
	Limit      int
	HTTPClient *http.Client

	patterns map[platform.Platform]*regexp.Regexp
}

// NewGitHub creates a GitHub source. assets maps "os/arch" to a regular expression
// selecting the asset for that platform; when empty, assets are matched by the OS and
// architecture spellings in their file names.
func NewGitHub(repo string, assets map[string]string) (*GitHub, error) {
	gh := &GitHub{
		Repo:       repo,
		BaseURL:    defaultGitHubAPI,
		Limit:      defaultLimit,
		HTTPClient: http.DefaultClient,
		patterns:   make(map[platform.Platform]*regexp.Regexp),
	}
	for key, expr := range assets {
		p, err := platform.Parse(key)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, errors.Wrapf(err, "asset pattern for %s", key)
		}
		gh.patterns[p] = re
	}
	return gh, nil
}

func (g *GitHub) Name() string {
	return "github.com/" + g.Repo
}

// Releases fetches up to Limit releases, newest first as GitHub returns them.
// Drafts are skipped and prereleases are marked unstable.
func (g *GitHub) Releases(ctx context.Context) ([]Release, error) {
	limit := g.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > 100 {
		limit = 100
	}

	url := fmt.Sprintf("%s/repos/%s/releases?per_page=%d", strings.TrimSuffix(g.BaseURL, "/"), g.Repo, limit)
	header := http.Header{}
	header.Set("Accept", "application/vnd.github+json")
	header.Set("X-GitHub-Api-Version", "2022-11-28")
	if g.Token != "" {
		header.Set("Authorization", "Bearer "+g.Token)
	}

	var raw []GitHubRelease
	if err := getJSON(ctx, g.HTTPClient, url, header, &raw); err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.Code == http.StatusForbidden || se.Code == http.StatusTooManyRequests) {
			return nil, errors.WithHint(
				errors.Wrapf(ErrRateLimited, "GitHub API for %s (HTTP %d)", g.Repo, se.Code),
				"Set GITHUB_TOKEN to raise the GitHub API rate limit",
			)
		}
		return nil, errors.Wrapf(err, "listing releases of %s", g.Repo)
	}

	releases := make([]Release, 0, len(raw))
	for _, r := range raw {
		if r.Draft {
			continue
		}
		rel := Release{
			Version:   strings.TrimPrefix(r.TagName, "v"),
			Stable:    !r.Prerelease,
			Artifacts: g.artifacts(r.Assets),
		}
		logger.Debug("[DEBUG] Release %s of %s: %d platform assets\n", r.TagName, g.Repo, len(rel.Artifacts))
		releases = append(releases, rel)
	}
	return releases, nil
}

// artifacts maps release assets to per-platform artifacts and attaches checksums.
func (g *GitHub) artifacts(assets []ReleaseAsset) []Artifact {
	byName := make(map[string]ReleaseAsset, len(assets))
	var checksumList string
	for _, a := range assets {
		byName[a.Name] = a
		if isChecksumList(a.Name) && checksumList == "" {
			checksumList = a.BrowserDownloadURL
		}
	}

	var out []Artifact
	if len(g.patterns) > 0 {
		keys := make([]platform.Platform, 0, len(g.patterns))
		for p := range g.patterns {
			keys = append(keys, p)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

		for _, p := range keys {
			for _, a := range assets {
				if g.patterns[p].MatchString(a.Name) {
					out = append(out, newArtifact(p.OS, p.Arch, a))
					break
				}
			}
		}
	} else {
		chosen := make(map[platform.Platform]int)
		for _, a := range assets {
			rank, ok := assetRank(a.Name)
			if !ok {
				continue
			}
			goos, goarch := platform.Detect(a.Name)
			if goos == "" || goarch == "" {
				continue
			}
			p := platform.Platform{OS: goos, Arch: goarch}
			if idx, seen := chosen[p]; seen {
				if prev, _ := assetRank(out[idx].Filename); prev <= rank {
					continue
				}
				out[idx] = newArtifact(goos, goarch, a)
				continue
			}
			chosen[p] = len(out)
			out = append(out, newArtifact(goos, goarch, a))
		}
	}

	for i := range out {
		if sidecar, ok := byName[out[i].Filename+".sha256"]; ok {
			out[i].ChecksumURL = sidecar.BrowserDownloadURL
		} else if out[i].SHA256 == "" {
			out[i].ChecksumURL = checksumList
		}
	}
	return out
}

func newArtifact(goos, goarch string, a ReleaseAsset) Artifact {
	art := Artifact{OS: goos, Arch: goarch, URL: a.BrowserDownloadURL, Filename: a.Name}
	if hex, ok := strings.CutPrefix(a.Digest, "sha256:"); ok {
		art.SHA256 = hex
	}
	return art
}

var archiveSuffixes = []string{".tar.gz", ".tgz", ".tar.xz", ".txz", ".tar.bz2", ".tbz2", ".tar", ".zip", ".7z"}

// Files that are never the program itself.
var skippedSuffixes = []string{
	".sha256", ".sha512", ".md5", ".sig", ".asc", ".pem", ".sbom", ".json", ".txt", ".md",
	".deb", ".rpm", ".apk", ".pkg", ".dmg", ".msi", ".appimage", ".zst", ".snap",
}

// assetRank reports whether an asset can be installed and how preferable it is.
// Archives rank before raw binaries.
func assetRank(name string) (int, bool) {
	lower := strings.ToLower(name)
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(lower, s) {
			return 0, true
		}
	}
	for _, s := range skippedSuffixes {
		if strings.HasSuffix(lower, s) {
			return 0, false
		}
	}
	return 1, true
}

func isChecksumList(name string) bool {
	lower := strings.ToLower(name)
	switch lower {
	case "checksums.txt", "sha256sums", "sha256sums.txt", "checksums.sha256":
		return true
	}
	return strings.HasSuffix(lower, "_checksums.txt") || strings.HasSuffix(lower, "-checksums.txt")
}
