// Package packages turns catalog recipes into installers.
//
// Every recipe kind maps to one variant: archivePackage for release archives and raw
// binaries, scriptPackage for installer scripts and systemPackage for OS package managers.
// The variants only supply package-specific steps; sequencing, skipping and error
// classification stay in installer.Orchestrator.
package packages

import (
	"context"
	"net/http"
	"os/exec"
	"regexp"

	"github.com/cockroachdb/errors"

	"github.com/farfarfun/funinstall/internal/config"
	"github.com/farfarfun/funinstall/internal/installer"
	"github.com/farfarfun/funinstall/internal/logger"
	"github.com/farfarfun/funinstall/internal/platform"
	"github.com/farfarfun/funinstall/internal/source"
)

// Env carries everything an installer touches outside its recipe.
type Env struct {
	Settings   *config.Settings
	Platform   platform.Platform
	HTTPClient *http.Client
	Runner     installer.Runner
	LookPath   func(string) (string, error)
	// IsRoot overrides the effective-user check of system packages.
	IsRoot func() bool
}

// Uninstaller is implemented by packages that can remove themselves.
type Uninstaller interface {
	Uninstall(ctx context.Context) error
}

// New builds the installer for a recipe.
func New(r config.Recipe, env Env) (installer.Installer, error) {
	if env.Settings == nil {
		return nil, errors.New("packages: settings are required")
	}
	if env.Platform == (platform.Platform{}) {
		env.Platform = platform.Current()
	}
	if env.HTTPClient == nil {
		env.HTTPClient = http.DefaultClient
	}
	if env.Runner == nil {
		env.Runner = installer.ExecRunner{}
	}
	if env.LookPath == nil {
		env.LookPath = exec.LookPath
	}

	b, err := newBase(r, env)
	if err != nil {
		return nil, err
	}

	switch r.Kind {
	case config.KindArchive:
		return &archivePackage{base: b}, nil
	case config.KindScript:
		return &scriptPackage{base: b}, nil
	case config.KindSystem:
		return &systemPackage{base: b}, nil
	default:
		return nil, errors.Newf("%s: unknown recipe kind %q", r.Name, r.Kind)
	}
}

// base holds what all variants share: the recipe, the environment and the compiled probe pattern.
type base struct {
	recipe  config.Recipe
	env     Env
	pattern *regexp.Regexp
}

func newBase(r config.Recipe, env Env) (base, error) {
	b := base{recipe: r, env: env}
	if r.VersionPattern != "" {
		re, err := regexp.Compile(r.VersionPattern)
		if err != nil {
			return base{}, errors.Wrapf(err, "%s: invalid version_pattern", r.Name)
		}
		b.pattern = re
	}
	return b, nil
}

func (b *base) Name() string {
	return b.recipe.Name
}

// prober builds a fresh probe. An empty root skips the managed check.
func (b *base) prober(root string) *installer.Prober {
	return &installer.Prober{
		Name:           b.recipe.Name,
		Root:           root,
		Binary:         b.recipe.Binary,
		VersionArgs:    b.recipe.VersionArgs,
		VersionPattern: b.pattern,
		SearchPaths:    b.recipe.SearchPaths,
		Runner:         b.env.Runner,
		LookPath:       b.env.LookPath,
	}
}

// resolve lists the recipe's releases and picks one for req.
func (b *base) resolve(ctx context.Context, req installer.Request) (installer.ResolvedVersion, error) {
	src, err := source.New(b.recipe.Source, b.recipe.Versions, source.Options{
		HTTPClient:  b.env.HTTPClient,
		GitHubToken: b.env.Settings.GitHubToken,
	})
	if err != nil {
		return installer.ResolvedVersion{}, err
	}

	logger.Debug("[DEBUG] Listing releases of %s from %s\n", b.recipe.Name, src.Name())
	releases, err := src.Releases(ctx)
	if err != nil {
		return installer.ResolvedVersion{}, err
	}
	logger.Debug("[DEBUG] %s has %d releases\n", b.recipe.Name, len(releases))
	return installer.Resolve(releases, req, b.env.Platform)
}

func (b *base) fetch(ctx context.Context, rv installer.ResolvedVersion, stage *installer.Staging) (installer.Staged, error) {
	return installer.NewFetcher(b.env.Settings, b.env.HTTPClient).Acquire(ctx, rv, stage)
}

// archivePackage installs release archives or raw binaries into versioned directories.
type archivePackage struct {
	base
}

func (p *archivePackage) ProbePresence(ctx context.Context) (installer.InstalledState, error) {
	return p.prober(p.env.Settings.InstallRoot).Probe(ctx)
}

func (p *archivePackage) ResolveVersion(ctx context.Context, req installer.Request) (installer.ResolvedVersion, error) {
	return p.resolve(ctx, req)
}

func (p *archivePackage) Acquire(ctx context.Context, rv installer.ResolvedVersion, stage *installer.Staging) (installer.Staged, error) {
	return p.fetch(ctx, rv, stage)
}

func (p *archivePackage) Place(ctx context.Context, staged installer.Staged) error {
	placer := &installer.ArchivePlacer{
		Root:   p.env.Settings.InstallRoot,
		BinDir: p.env.Settings.BinDir,
		Name:   p.recipe.Name,
		Binary: p.recipe.Binary,
		Links:  p.recipe.Links,
	}
	return placer.Place(ctx, staged)
}

func (p *archivePackage) Uninstall(context.Context) error {
	return installer.Uninstall(p.env.Settings.InstallRoot, p.env.Settings.BinDir, p.recipe.Name)
}

// scriptPackage downloads an installer script and runs it. The script decides where the
// package lands, so presence is always checked externally.
type scriptPackage struct {
	base
}

func (p *scriptPackage) ProbePresence(ctx context.Context) (installer.InstalledState, error) {
	return p.prober("").Probe(ctx)
}

func (p *scriptPackage) ResolveVersion(ctx context.Context, req installer.Request) (installer.ResolvedVersion, error) {
	return p.resolve(ctx, req)
}

func (p *scriptPackage) Acquire(ctx context.Context, rv installer.ResolvedVersion, stage *installer.Staging) (installer.Staged, error) {
	return p.fetch(ctx, rv, stage)
}

func (p *scriptPackage) Place(ctx context.Context, staged installer.Staged) error {
	placer := &installer.ScriptPlacer{
		Args:   p.recipe.Script.Args,
		Env:    p.recipe.Script.Env,
		Runner: p.env.Runner,
	}
	return placer.Place(ctx, staged)
}

func (p *scriptPackage) Uninstall(context.Context) error {
	return errors.WithHint(
		errors.Newf("%s was installed by its own installer script", p.recipe.Name),
		"Use the uninstall procedure documented by the package itself",
	)
}

// systemPackage delegates to the OS package manager. Nothing is downloaded.
type systemPackage struct {
	base
}

func (p *systemPackage) placer() *installer.SystemPlacer {
	return &installer.SystemPlacer{
		Packages: p.recipe.Packages,
		Runner:   p.env.Runner,
		LookPath: p.env.LookPath,
		IsRoot:   p.env.IsRoot,
	}
}

func (p *systemPackage) ProbePresence(ctx context.Context) (installer.InstalledState, error) {
	return p.prober("").Probe(ctx)
}

// ResolveVersion passes an exact pin through to the package manager; otherwise the
// manager's candidate version is installed and only known afterwards.
func (p *systemPackage) ResolveVersion(_ context.Context, req installer.Request) (installer.ResolvedVersion, error) {
	if req.Mode == installer.ModePinned {
		if installer.IsConstraint(req.Version) {
			return installer.ResolvedVersion{}, errors.WithHint(
				errors.Wrapf(installer.ErrVersionNotFound, "%s %s: system packages take an exact version", req.Name, req.Version),
				"Pin an exact version such as 2.43.0, or omit --version",
			)
		}
		return installer.ResolvedVersion{Version: req.Version, Platform: p.env.Platform}, nil
	}
	return installer.ResolvedVersion{Version: source.FloatingVersion, Platform: p.env.Platform, Floating: true}, nil
}

func (p *systemPackage) Acquire(_ context.Context, rv installer.ResolvedVersion, stage *installer.Staging) (installer.Staged, error) {
	if _, _, err := p.placer().Manager(); err != nil {
		return installer.Staged{}, &installer.StageError{Kind: installer.KindUnsupportedPlatform, Err: err}
	}
	return installer.Staged{Version: rv, Dir: stage.Dir}, nil
}

func (p *systemPackage) Place(ctx context.Context, staged installer.Staged) error {
	return p.placer().Place(ctx, staged)
}

func (p *systemPackage) Uninstall(ctx context.Context) error {
	return p.placer().Remove(ctx)
}
