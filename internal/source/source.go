// Package source lists the releases a package can be installed from: GitHub releases,
// the go.dev and nodejs.org download indexes, and static tables from the catalog.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/farfarfun/funinstall/internal/config"
	"github.com/farfarfun/funinstall/internal/logger"
	"github.com/farfarfun/funinstall/internal/platform"
)

// ErrRateLimited is returned when an API refuses requests because of rate limiting.
var ErrRateLimited = errors.New("rate limited")

// Artifact is one downloadable file of a release, built for a single platform.
type Artifact struct {
	OS       string // Go OS name; empty means any
	Arch     string // Go arch name; empty means any
	URL      string
	Filename string

	// SHA256 is the expected hex digest when the source publishes it inline.
	SHA256 string
	// ChecksumURL points to a checksum list (sha256sum format) covering Filename.
	ChecksumURL string
}

// Release is one version published by a source.
type Release struct {
	Version string
	// Stable is false for prereleases and non-LTS lines.
	Stable bool
	// Floating marks a moving artifact (e.g. an installer script served from HEAD)
	// whose installed version cannot be predicted up front.
	Floating  bool
	Artifacts []Artifact
}

// ArtifactFor returns the artifact built for p, or nil when the release ships none.
// Exact OS/arch matches win over artifacts that declare no platform.
func (r Release) ArtifactFor(p platform.Platform) *Artifact {
	var fallback *Artifact
	for i := range r.Artifacts {
		a := &r.Artifacts[i]
		if !p.Matches(a.OS, a.Arch) {
			continue
		}
		if a.OS != "" && a.Arch != "" {
			return a
		}
		if fallback == nil {
			fallback = a
		}
	}
	return fallback
}

// Source lists the releases of a single package.
// Releases must not modify the environment.
type Source interface {
	Name() string
	Releases(ctx context.Context) ([]Release, error)
}

// Options carries the environment shared by all sources.
type Options struct {
	HTTPClient  *http.Client
	GitHubToken string
}

// New builds the source described by a recipe.
func New(spec config.SourceSpec, versions []config.StaticVersion, opts Options) (Source, error) {
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	switch spec.Type {
	case config.SourceGitHub:
		gh, err := NewGitHub(spec.Repo, spec.Assets)
		if err != nil {
			return nil, err
		}
		gh.HTTPClient = client
		gh.Token = opts.GitHubToken
		gh.Limit = spec.Limit
		if spec.URL != "" {
			gh.BaseURL = spec.URL
		}
		return gh, nil
	case config.SourceGo:
		g := NewGoDist()
		g.HTTPClient = client
		if spec.URL != "" {
			g.BaseURL = spec.URL
		}
		return g, nil
	case config.SourceNode:
		n := NewNodeDist()
		n.HTTPClient = client
		if spec.URL != "" {
			n.BaseURL = spec.URL
		}
		return n, nil
	case config.SourceStatic:
		return NewStatic(versions)
	default:
		return nil, errors.Newf("unknown source type %q", spec.Type)
	}
}

// getJSON fetches url and decodes the JSON body into v.
func getJSON(ctx context.Context, client *http.Client, url string, header http.Header, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "building request for %s", url)
	}
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}

	logger.Debug("[DEBUG] GET %s\n", url)
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", url)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("[WARN] Failed to close HTTP response body: %v\n", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{URL: url, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrapf(err, "decoding response from %s", url)
	}
	return nil
}

// StatusError reports an unexpected HTTP status from a release index.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.Code)
	}
	return fmt.Sprintf("GET %s: HTTP %d: %s", e.URL, e.Code, e.Body)
}

// joinURL appends name to base, which may or may not end in a slash.
func joinURL(base string, elem ...string) string {
	return strings.TrimSuffix(base, "/") + "/" + path.Join(elem...)
}
