package installer

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/farfarfun/funinstall/internal/platform"
	"github.com/farfarfun/funinstall/internal/source"
)

// Installer is the capability set every package variant provides.
// ProbePresence and ResolveVersion must not modify the environment; Acquire writes only
// into the staging area and Place only into the final location.
type Installer interface {
	Name() string
	ProbePresence(ctx context.Context) (InstalledState, error)
	ResolveVersion(ctx context.Context, req Request) (ResolvedVersion, error)
	Acquire(ctx context.Context, rv ResolvedVersion, stage *Staging) (Staged, error)
	Place(ctx context.Context, staged Staged) error
}

// Mode says how the requested version is chosen.
type Mode int

const (
	// ModeLatest installs the newest version unless some version is already present.
	ModeLatest Mode = iota
	// ModePinned installs exactly the requested version (or the newest matching a constraint).
	ModePinned
	// ModeUpdate installs the newest version, replacing an older one that is present.
	ModeUpdate
)

func (m Mode) String() string {
	switch m {
	case ModePinned:
		return "pinned"
	case ModeUpdate:
		return "update-if-present"
	default:
		return "latest"
	}
}

// Request is one install invocation. It is built once and never changed.
type Request struct {
	Name    string
	Version string // set only in ModePinned
	Mode    Mode
	// Newest widens resolution to prereleases and non-LTS lines.
	Newest bool
	// Force reinstalls even when the environment already satisfies the request.
	Force bool
}

// NewRequest builds a request from CLI options.
func NewRequest(name, version string, latest, update, force bool) (Request, error) {
	if name == "" {
		return Request{}, errors.New("package name is required")
	}
	req := Request{Name: name, Newest: latest, Force: force}
	switch {
	case version != "" && update:
		return Request{}, errors.WithHint(
			errors.New("--update cannot be combined with --version"),
			"Use --version to pin, or --update to move to the newest release",
		)
	case version != "":
		req.Mode = ModePinned
		req.Version = NormalizeVersion(version)
	case update:
		req.Mode = ModeUpdate
	default:
		req.Mode = ModeLatest
	}
	return req, nil
}

// ResolvedVersion is the concrete version chosen for a request.
type ResolvedVersion struct {
	Version  string
	Platform platform.Platform
	// Artifact is nil when the version exists but ships nothing for Platform.
	Artifact *source.Artifact
	// Floating marks artifacts whose installed version is only known after placement.
	Floating bool
}

// InstalledState is a fresh answer from a presence probe.
type InstalledState struct {
	Present bool
	Version string
	Path    string
	// Managed is true when the version lives under the install root.
	Managed bool
}

// Staged is an artifact downloaded and verified inside a staging directory.
type Staged struct {
	Version ResolvedVersion
	Path    string // downloaded file; empty when nothing had to be fetched
	Dir     string // staging directory holding Path
	SHA256  string // digest of Path
}

// Outcome is the only result of Orchestrator.Install.
type Outcome struct {
	Succeeded bool
	Skipped   bool
	Version   string
	// Kind names the failing step; empty on success.
	Kind Kind
	Err  error
}
