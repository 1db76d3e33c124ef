package installer

import (
	"context"
	"os"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farfarfun/funinstall/internal/source"
)

// fakeInstaller is an in-memory package: Place records the version and the probe reports it.
type fakeInstaller struct {
	installed string
	latest    string

	resolveErr error
	acquireErr error
	placeErr   error
	probeErr   error
	// reportVersion overrides what the probe reports after Place.
	reportVersion string
	placePanics   bool

	calls      []string
	stagingDir string
}

func (f *fakeInstaller) Name() string { return "fake" }

func (f *fakeInstaller) ProbePresence(context.Context) (InstalledState, error) {
	f.calls = append(f.calls, "probe")
	if f.probeErr != nil {
		return InstalledState{}, f.probeErr
	}
	if f.installed == "" {
		return InstalledState{}, nil
	}
	return InstalledState{Present: true, Version: f.installed, Managed: true}, nil
}

func (f *fakeInstaller) ResolveVersion(_ context.Context, req Request) (ResolvedVersion, error) {
	f.calls = append(f.calls, "resolve")
	if f.resolveErr != nil {
		return ResolvedVersion{}, f.resolveErr
	}
	v := f.latest
	if req.Mode == ModePinned {
		v = req.Version
	}
	return ResolvedVersion{Version: v, Platform: platformA, Artifact: &source.Artifact{Filename: "fake.tar.gz"}}, nil
}

func (f *fakeInstaller) Acquire(_ context.Context, rv ResolvedVersion, stage *Staging) (Staged, error) {
	f.calls = append(f.calls, "acquire")
	f.stagingDir = stage.Dir
	if f.acquireErr != nil {
		return Staged{}, f.acquireErr
	}
	path := stage.Path(rv.Artifact.Filename)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		return Staged{}, err
	}
	return Staged{Version: rv, Path: path, Dir: stage.Dir}, nil
}

func (f *fakeInstaller) Place(_ context.Context, staged Staged) error {
	f.calls = append(f.calls, "place")
	if f.placePanics {
		panic("disk on fire")
	}
	if f.placeErr != nil {
		return f.placeErr
	}
	f.installed = staged.Version.Version
	if f.reportVersion != "" {
		f.installed = f.reportVersion
	}
	return nil
}

func install(t *testing.T, f *fakeInstaller, req Request) Outcome {
	t.Helper()
	o := &Orchestrator{StagingDir: t.TempDir()}
	return o.Install(context.Background(), f, req)
}

func TestInstallFreshThenIdempotent(t *testing.T) {
	f := &fakeInstaller{latest: "2.0.0"}
	stagingRoot := t.TempDir()
	o := &Orchestrator{StagingDir: stagingRoot}

	out := o.Install(context.Background(), f, Request{Name: "fake", Mode: ModeLatest})
	require.NoError(t, out.Err)
	assert.True(t, out.Succeeded)
	assert.False(t, out.Skipped)
	assert.Equal(t, "2.0.0", out.Version)
	assert.Equal(t, []string{"probe", "resolve", "acquire", "place", "probe"}, f.calls)
	assert.NoDirExists(t, f.stagingDir, "staging released")

	f.calls = nil
	out = o.Install(context.Background(), f, Request{Name: "fake", Mode: ModeLatest})
	assert.True(t, out.Succeeded)
	assert.True(t, out.Skipped)
	assert.Equal(t, "2.0.0", out.Version)
	assert.Equal(t, []string{"probe"}, f.calls, "second run has no side effects")
}

func TestInstallSkipDecisions(t *testing.T) {
	tests := []struct {
		name      string
		installed string
		req       Request
		skipped   bool
		calls     []string
	}{
		{
			name:      "pinned and satisfied",
			installed: "1.0.0",
			req:       Request{Mode: ModePinned, Version: "1.0.0"},
			skipped:   true,
			calls:     []string{"probe"},
		},
		{
			name:      "pinned constraint satisfied",
			installed: "20.11.0",
			req:       Request{Mode: ModePinned, Version: "20.x"},
			skipped:   true,
			calls:     []string{"probe"},
		},
		{
			name:      "pinned other version",
			installed: "1.0.0",
			req:       Request{Mode: ModePinned, Version: "1.2.0"},
			calls:     []string{"probe", "resolve", "acquire", "place", "probe"},
		},
		{
			name:      "update already newest",
			installed: "2.0.0",
			req:       Request{Mode: ModeUpdate},
			skipped:   true,
			calls:     []string{"probe", "resolve"},
		},
		{
			name:      "update older",
			installed: "1.0.0",
			req:       Request{Mode: ModeUpdate},
			calls:     []string{"probe", "resolve", "acquire", "place", "probe"},
		},
		{
			name:      "update when absent",
			installed: "",
			req:       Request{Mode: ModeUpdate},
			calls:     []string{"probe", "resolve", "acquire", "place", "probe"},
		},
		{
			name:      "forced latest",
			installed: "2.0.0",
			req:       Request{Mode: ModeLatest, Force: true},
			calls:     []string{"probe", "resolve", "acquire", "place", "probe"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeInstaller{installed: tt.installed, latest: "2.0.0"}
			out := install(t, f, tt.req)
			require.NoError(t, out.Err)
			assert.True(t, out.Succeeded)
			assert.Equal(t, tt.skipped, out.Skipped)
			assert.Equal(t, tt.calls, f.calls)
		})
	}
}

func TestInstallFailFast(t *testing.T) {
	integrity := &StageError{Kind: KindIntegrity, Err: ErrChecksumMismatch}

	tests := []struct {
		name  string
		f     *fakeInstaller
		kind  Kind
		calls []string
	}{
		{
			name:  "probe",
			f:     &fakeInstaller{probeErr: errors.New("permission denied")},
			kind:  KindProbe,
			calls: []string{"probe"},
		},
		{
			name:  "resolution",
			f:     &fakeInstaller{resolveErr: errors.Wrap(ErrNoReleases, "fake")},
			kind:  KindResolution,
			calls: []string{"probe", "resolve"},
		},
		{
			name:  "acquisition",
			f:     &fakeInstaller{latest: "1.0.0", acquireErr: errors.New("connection reset")},
			kind:  KindAcquisition,
			calls: []string{"probe", "resolve", "acquire"},
		},
		{
			name:  "integrity keeps its kind",
			f:     &fakeInstaller{latest: "1.0.0", acquireErr: integrity},
			kind:  KindIntegrity,
			calls: []string{"probe", "resolve", "acquire"},
		},
		{
			name:  "placement",
			f:     &fakeInstaller{latest: "1.0.0", placeErr: errors.New("read-only file system")},
			kind:  KindPlacement,
			calls: []string{"probe", "resolve", "acquire", "place"},
		},
		{
			name:  "placement panic",
			f:     &fakeInstaller{latest: "1.0.0", placePanics: true},
			kind:  KindPlacement,
			calls: []string{"probe", "resolve", "acquire", "place"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := install(t, tt.f, Request{Name: "fake", Mode: ModeLatest})
			assert.False(t, out.Succeeded)
			assert.Equal(t, tt.kind, out.Kind)
			assert.Equal(t, tt.kind, KindOf(out.Err))
			assert.Equal(t, tt.calls, tt.f.calls)
			if tt.f.stagingDir != "" {
				assert.NoDirExists(t, tt.f.stagingDir, "staging released on failure")
			}
		})
	}
}

func TestInstallVerificationMismatch(t *testing.T) {
	f := &fakeInstaller{latest: "2.0.0", reportVersion: "1.9.0"}

	out := install(t, f, Request{Name: "fake", Mode: ModeLatest})
	assert.False(t, out.Succeeded)
	assert.Equal(t, KindVerification, out.Kind)
	assert.True(t, errors.Is(out.Err, ErrNotVerified))
}

// vanishingInstaller places nothing, so the final probe finds no package.
type vanishingInstaller struct{ fakeInstaller }

func (v *vanishingInstaller) Place(context.Context, Staged) error { return nil }

func TestInstallVerificationAbsent(t *testing.T) {
	v := &vanishingInstaller{fakeInstaller{latest: "2.0.0"}}

	out := (&Orchestrator{StagingDir: t.TempDir()}).Install(context.Background(), v, Request{Name: "fake"})
	assert.False(t, out.Succeeded)
	assert.Equal(t, KindVerification, out.Kind)
	assert.True(t, errors.Is(out.Err, ErrNotVerified))
}

// floatingInstaller resolves to a moving target such as an install script.
type floatingInstaller struct{ fakeInstaller }

func (f *floatingInstaller) ResolveVersion(ctx context.Context, req Request) (ResolvedVersion, error) {
	rv, err := f.fakeInstaller.ResolveVersion(ctx, req)
	rv.Floating = true
	return rv, err
}

func TestInstallFloatingReportsProbedVersion(t *testing.T) {
	f := &floatingInstaller{fakeInstaller{latest: "latest", reportVersion: "4.2.10"}}

	out := (&Orchestrator{StagingDir: t.TempDir()}).Install(context.Background(), f, Request{Name: "fake"})
	require.NoError(t, out.Err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, "4.2.10", out.Version)
}

func TestInstallExactVersionMustMatch(t *testing.T) {
	f := &fakeInstaller{latest: "latest", reportVersion: "4.2.10"}

	out := install(t, f, Request{Name: "fake"})
	assert.False(t, out.Succeeded)
	assert.Equal(t, KindVerification, out.Kind)
}
