package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendLineDeduplicates(t *testing.T) {
	rc := filepath.Join(t.TempDir(), ".zshrc")
	require.NoError(t, os.WriteFile(rc, []byte("alias gs=\"git status\"\n"), 0o644))
	line := exportLine("/home/me/.local/bin")

	added, err := appendLine(rc, line)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = appendLine(rc, line)
	require.NoError(t, err)
	assert.False(t, added)

	data, err := os.ReadFile(rc)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), line))
	assert.True(t, strings.HasPrefix(string(data), "alias gs="), "existing content is kept")
}

func TestAppendLineCreatesFile(t *testing.T) {
	rc := filepath.Join(t.TempDir(), ".bashrc")

	added, err := appendLine(rc, exportLine("/opt/bin"))
	require.NoError(t, err)
	assert.True(t, added)
	assert.FileExists(t, rc)
}

func TestExportLine(t *testing.T) {
	assert.Equal(t, `export PATH="/opt/bin:$PATH"`, exportLine("/opt/bin"))
}

func TestDetectShell(t *testing.T) {
	tests := map[string]string{
		"/bin/zsh":            "zsh",
		"/usr/local/bin/bash": "bash",
		"/home/zsh/bin/bash":  "bash",
		"/usr/bin/fish":       "zsh",
		"":                    "zsh",
	}
	for shell, want := range tests {
		t.Setenv("SHELL", shell)
		assert.Equal(t, want, detectShell(), shell)
	}
}
