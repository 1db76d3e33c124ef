package source

import (
	"context"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/farfarfun/funinstall/internal/platform"
)

const defaultGoDistURL = "https://go.dev/dl/"

// goRelease mirrors one entry of https://go.dev/dl/?mode=json.
type goRelease struct {
	Version string   `json:"version"` // "go1.22.1"
	Stable  bool     `json:"stable"`
	Files   []goFile `json:"files"`
}

type goFile struct {
	Filename string `json:"filename"`
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	SHA256   string `json:"sha256"`
	Kind     string `json:"kind"` // archive, installer or source
}

// GoDist lists Go toolchain releases from the go.dev download index.
type GoDist struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewGoDist returns a GoDist reading from go.dev.
func NewGoDist() *GoDist {
	return &GoDist{BaseURL: defaultGoDistURL, HTTPClient: http.DefaultClient}
}

func (g *GoDist) Name() string {
	return "go.dev"
}

// Releases returns every published Go release with its archive downloads.
func (g *GoDist) Releases(ctx context.Context) ([]Release, error) {
	base := strings.TrimSuffix(g.BaseURL, "/") + "/"

	var raw []goRelease
	if err := getJSON(ctx, g.HTTPClient, base+"?mode=json&include=all", nil, &raw); err != nil {
		return nil, errors.Wrap(err, "listing Go releases")
	}

	releases := make([]Release, 0, len(raw))
	for _, r := range raw {
		rel := Release{
			Version: strings.TrimPrefix(r.Version, "go"),
			Stable:  r.Stable,
		}
		for _, f := range r.Files {
			if f.Kind != "archive" || f.OS == "" || f.Arch == "" {
				continue
			}
			rel.Artifacts = append(rel.Artifacts, Artifact{
				OS:       platform.CanonicalOS(f.OS),
				Arch:     platform.CanonicalArch(f.Arch),
				URL:      base + f.Filename,
				Filename: f.Filename,
				SHA256:   f.SHA256,
			})
		}
		releases = append(releases, rel)
	}
	return releases, nil
}
