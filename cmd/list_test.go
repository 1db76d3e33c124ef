package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farfarfun/funinstall/internal/config"
	"github.com/farfarfun/funinstall/internal/installer"
)

func TestWriteList(t *testing.T) {
	rows := []listRow{
		{recipe: config.Recipe{Name: "nodejs", Kind: config.KindArchive, Description: "Node.js runtime"}, state: installer.InstalledState{Present: true, Managed: true, Version: "20.11.0"}},
		{recipe: config.Recipe{Name: "git", Kind: config.KindSystem}, state: installer.InstalledState{Present: true, Version: "2.43.0"}},
		{recipe: config.Recipe{Name: "frpc", Kind: config.KindArchive}},
		{recipe: config.Recipe{Name: "go", Kind: config.KindArchive}, err: assert.AnError},
	}

	var buf bytes.Buffer
	require.NoError(t, writeList(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, []string{"NAME", "KIND", "STATUS", "VERSION", "DESCRIPTION"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"nodejs", "archive", "installed", "20.11.0", "Node.js", "runtime"}, strings.Fields(lines[1]))
	assert.Contains(t, lines[2], "external")
	assert.Contains(t, lines[3], "not installed")
	assert.Contains(t, lines[4], "error")
}
