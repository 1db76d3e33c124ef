package source

import (
	"context"
	"path"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/farfarfun/funinstall/internal/config"
	"github.com/farfarfun/funinstall/internal/platform"
)

// FloatingVersion is the version of a static row that always points at the newest artifact.
const FloatingVersion = "latest"

// Static serves a fixed version table from the catalog.
type Static struct {
	releases []Release
}

// NewStatic converts catalog rows into releases.
func NewStatic(rows []config.StaticVersion) (*Static, error) {
	if len(rows) == 0 {
		return nil, errors.New("static source has no versions")
	}

	s := &Static{}
	for _, row := range rows {
		rel := Release{
			Version:  row.Version,
			Stable:   row.Stable == nil || *row.Stable,
			Floating: strings.EqualFold(row.Version, FloatingVersion),
		}
		filename := path.Base(row.URL)
		if len(row.Platforms) == 0 {
			rel.Artifacts = []Artifact{{URL: row.URL, Filename: filename, SHA256: row.SHA256}}
		}
		for _, key := range row.Platforms {
			p, err := platform.Parse(key)
			if err != nil {
				return nil, err
			}
			rel.Artifacts = append(rel.Artifacts, Artifact{
				OS:       p.OS,
				Arch:     p.Arch,
				URL:      row.URL,
				Filename: filename,
				SHA256:   row.SHA256,
			})
		}
		s.releases = append(s.releases, rel)
	}
	return s, nil
}

func (s *Static) Name() string {
	return "static"
}

// Releases returns a copy of the table; it never touches the network.
func (s *Static) Releases(context.Context) ([]Release, error) {
	out := make([]Release, len(s.releases))
	copy(out, s.releases)
	return out, nil
}
