package installer

import (
	"context"
	"os"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lookPathOf reports only the named managers as available.
func lookPathOf(available ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, a := range available {
			if a == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", os.ErrNotExist
	}
}

var gitPackages = map[string]string{"apt-get": "git", "pacman": "git", "brew": "git"}

func TestSystemPlacerInstall(t *testing.T) {
	tests := []struct {
		name      string
		available []string
		root      bool
		version   ResolvedVersion
		want      string
	}{
		{
			name:      "apt as user",
			available: []string{"apt-get"},
			version:   ResolvedVersion{Version: "latest", Floating: true},
			want:      "sudo apt-get install -y git",
		},
		{
			name:      "apt as root",
			available: []string{"apt-get"},
			root:      true,
			version:   ResolvedVersion{Version: "latest", Floating: true},
			want:      "apt-get install -y git",
		},
		{
			name:      "apt pinned",
			available: []string{"apt-get"},
			root:      true,
			version:   ResolvedVersion{Version: "1:2.43.0-1"},
			want:      "apt-get install -y git=1:2.43.0-1",
		},
		{
			name:      "brew never uses sudo",
			available: []string{"brew"},
			version:   ResolvedVersion{Version: "2.44.0"},
			want:      "brew install git@2.44.0",
		},
		{
			name:      "first listed manager wins",
			available: []string{"brew", "apt-get"},
			root:      true,
			version:   ResolvedVersion{Floating: true},
			want:      "apt-get install -y git",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			p := &SystemPlacer{
				Packages: gitPackages,
				Runner:   runner,
				LookPath: lookPathOf(tt.available...),
				IsRoot:   func() bool { return tt.root },
			}
			require.NoError(t, p.Place(context.Background(), Staged{Version: tt.version}))
			assert.Equal(t, []string{tt.want}, runner.ran())
			assert.True(t, runner.commands[0].Interactive)
		})
	}
}

func TestSystemPlacerPacmanRejectsPin(t *testing.T) {
	runner := &fakeRunner{}
	p := &SystemPlacer{Packages: gitPackages, Runner: runner, LookPath: lookPathOf("pacman"), IsRoot: func() bool { return true }}

	err := p.Place(context.Background(), Staged{Version: ResolvedVersion{Version: "2.43.0"}})
	assert.ErrorContains(t, err, "cannot install a specific version")
	assert.Empty(t, runner.ran())
}

func TestSystemPlacerNoManager(t *testing.T) {
	p := &SystemPlacer{Packages: gitPackages, Runner: &fakeRunner{}, LookPath: lookPathOf("dnf")}

	_, _, err := p.Manager()
	assert.True(t, errors.Is(err, ErrUnsupportedPlatform))
	assert.True(t, errors.Is(p.Place(context.Background(), Staged{}), ErrUnsupportedPlatform))
}

func TestSystemPlacerFailureCarriesOutput(t *testing.T) {
	runner := &fakeRunner{fail: map[string]error{"apt-get install -y git": assert.AnError}}
	p := &SystemPlacer{Packages: gitPackages, Runner: runner, LookPath: lookPathOf("apt-get"), IsRoot: func() bool { return true }}

	err := p.Place(context.Background(), Staged{Version: ResolvedVersion{Floating: true}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.True(t, errors.Is(err, assert.AnError))
}

func TestSystemPlacerRemove(t *testing.T) {
	runner := &fakeRunner{}
	p := &SystemPlacer{Packages: gitPackages, Runner: runner, LookPath: lookPathOf("apt-get"), IsRoot: func() bool { return false }}

	require.NoError(t, p.Remove(context.Background()))
	assert.Equal(t, []string{"sudo apt-get remove -y git"}, runner.ran())
}
