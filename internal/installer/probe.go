package installer

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"

	"github.com/farfarfun/funinstall/internal/logger"
	"github.com/farfarfun/funinstall/internal/state"
)

// versionCommandTimeout bounds a single "<tool> --version" call.
const versionCommandTimeout = 15 * time.Second

var defaultVersionPattern = regexp.MustCompile(`v?([0-9]+(?:\.[0-9]+)+)`)

// Prober answers whether a package is installed and usable. It never modifies anything.
//
// A managed install (Root/Name/current) is checked first: the receipt must load, the
// primary executable must exist and be executable, and the version command must succeed.
// Otherwise SearchPaths and $PATH are searched for Binary.
type Prober struct {
	Name string
	// Root is the install root; empty disables the managed check.
	Root           string
	Binary         string
	VersionArgs    []string
	VersionPattern *regexp.Regexp
	SearchPaths    []string
	Runner         Runner
	LookPath       func(string) (string, error)
}

// Probe inspects the environment. Errors mean the check itself could not run.
func (p *Prober) Probe(ctx context.Context) (InstalledState, error) {
	if p.Root != "" {
		st, found, err := p.probeManaged(ctx)
		if err != nil || found {
			return st, err
		}
	}
	return p.probeExternal(ctx), nil
}

func (p *Prober) probeManaged(ctx context.Context) (InstalledState, bool, error) {
	current := filepath.Join(p.Root, p.Name, CurrentLink)
	if _, err := os.Lstat(current); err != nil {
		if os.IsNotExist(err) {
			return InstalledState{}, false, nil
		}
		return InstalledState{}, false, errors.Wrapf(err, "inspecting %s", current)
	}

	dir, err := filepath.EvalSymlinks(current)
	if err != nil {
		logger.Debug("[DEBUG] %s is dangling: %v\n", current, err)
		return InstalledState{}, true, nil
	}

	receipt, err := state.Load(dir)
	if err != nil {
		logger.Debug("[DEBUG] %s has no usable receipt: %v\n", dir, err)
		return InstalledState{}, true, nil
	}

	bin := receipt.PrimaryPath(dir)
	if !isExecutable(bin) {
		logger.Debug("[DEBUG] %s is missing or not executable\n", bin)
		return InstalledState{}, true, nil
	}
	if len(p.VersionArgs) > 0 {
		if _, err := p.runVersion(ctx, bin); err != nil {
			logger.Debug("[DEBUG] %s does not run: %v\n", bin, err)
			return InstalledState{}, true, nil
		}
	}

	return InstalledState{Present: true, Version: receipt.Version, Path: dir, Managed: true}, true, nil
}

func (p *Prober) probeExternal(ctx context.Context) InstalledState {
	lookPath := p.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	candidates := make([]string, 0, len(p.SearchPaths)+1)
	for _, sp := range p.SearchPaths {
		candidates = append(candidates, expandHome(sp))
	}
	if found, err := lookPath(p.Binary); err == nil {
		candidates = append(candidates, found)
	}

	for _, bin := range candidates {
		if !isExecutable(bin) {
			continue
		}
		if len(p.VersionArgs) == 0 {
			return InstalledState{Present: true, Path: bin}
		}
		version, err := p.runVersion(ctx, bin)
		if err != nil {
			logger.Debug("[DEBUG] %s does not run: %v\n", bin, err)
			continue
		}
		return InstalledState{Present: true, Version: version, Path: bin}
	}
	return InstalledState{}
}

// runVersion runs the version command and extracts the version string from its output.
// Output without a recognizable version is an error.
func (p *Prober) runVersion(ctx context.Context, bin string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionCommandTimeout)
	defer cancel()

	cmd := Command{Name: bin, Args: p.VersionArgs}
	out, err := p.Runner.Run(ctx, cmd)
	if err != nil {
		return "", err
	}
	version := ParseVersionOutput(string(out), p.VersionPattern)
	if version == "" {
		return "", errors.Newf("no version in the output of %s: %q", cmd, tail(out, 3))
	}
	return version, nil
}

// ParseVersionOutput extracts a version from tool output using pattern's first group
// (or whole match), falling back to the first dotted number.
func ParseVersionOutput(out string, pattern *regexp.Regexp) string {
	if pattern == nil {
		pattern = defaultVersionPattern
	}
	m := pattern.FindStringSubmatch(out)
	if m == nil && pattern != defaultVersionPattern {
		m = defaultVersionPattern.FindStringSubmatch(out)
	}
	switch {
	case m == nil:
		return ""
	case len(m) > 1:
		return NormalizeVersion(m[1])
	default:
		return NormalizeVersion(m[0])
	}
}

func isExecutable(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}

func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(xdg.Home, rest)
	}
	return path
}
