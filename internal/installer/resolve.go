package installer

import (
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"

	"github.com/farfarfun/funinstall/internal/logger"
	"github.com/farfarfun/funinstall/internal/platform"
	"github.com/farfarfun/funinstall/internal/source"
)

// Resolve picks the release that satisfies req on platform p.
//
// Pinned requests look the version up exactly, or take the newest release matching a
// constraint such as "20.x". A pinned version that exists but has no artifact for p is
// still returned (with a nil Artifact) so acquisition can report the platform gap.
//
// Latest and update requests take the newest release with an artifact for p. Stable
// releases are preferred unless req.Newest is set; when no stable release fits, any
// release is considered.
func Resolve(releases []source.Release, req Request, p platform.Platform) (ResolvedVersion, error) {
	sorted := make([]source.Release, len(releases))
	copy(sorted, releases)
	sort.SliceStable(sorted, func(i, j int) bool {
		// Floating rows have no comparable version; keep them first.
		if sorted[i].Floating != sorted[j].Floating {
			return sorted[i].Floating
		}
		return CompareVersions(sorted[i].Version, sorted[j].Version) > 0
	})

	if req.Mode == ModePinned {
		return resolvePinned(sorted, req, p)
	}

	pick := func(stableOnly bool) (ResolvedVersion, bool) {
		for _, r := range sorted {
			if stableOnly && !r.Stable {
				continue
			}
			if a := r.ArtifactFor(p); a != nil {
				return resolved(r, a, p), true
			}
		}
		return ResolvedVersion{}, false
	}

	if !req.Newest {
		if rv, ok := pick(true); ok {
			return rv, nil
		}
		logger.Debug("[DEBUG] No stable release of %s for %s, considering prereleases\n", req.Name, p)
	}
	if rv, ok := pick(false); ok {
		return rv, nil
	}
	return ResolvedVersion{}, errors.Wrapf(ErrNoReleases, "%s on %s (%d releases checked)", req.Name, p, len(sorted))
}

func resolvePinned(sorted []source.Release, req Request, p platform.Platform) (ResolvedVersion, error) {
	want := NormalizeVersion(req.Version)
	for _, r := range sorted {
		if NormalizeVersion(r.Version) == want || (!r.Floating && SameVersion(r.Version, want)) {
			return resolved(r, r.ArtifactFor(p), p), nil
		}
	}

	if IsConstraint(want) {
		c, err := ParseConstraint(want)
		if err != nil {
			return ResolvedVersion{}, errors.Wrapf(err, "invalid version constraint %q", want)
		}

		var first *source.Release
		for i, r := range sorted {
			v, err := semver.NewVersion(NormalizeVersion(r.Version))
			if err != nil || !c.Check(v) {
				continue
			}
			if first == nil {
				first = &sorted[i]
			}
			if a := r.ArtifactFor(p); a != nil {
				return resolved(r, a, p), nil
			}
		}
		if first != nil {
			return resolved(*first, nil, p), nil
		}
	}

	return ResolvedVersion{}, errors.Wrapf(ErrVersionNotFound, "%s %s", req.Name, req.Version)
}

func resolved(r source.Release, a *source.Artifact, p platform.Platform) ResolvedVersion {
	rv := ResolvedVersion{
		Version:  NormalizeVersion(r.Version),
		Platform: p,
		Floating: r.Floating,
	}
	if a != nil {
		art := *a
		rv.Artifact = &art
	}
	return rv
}
