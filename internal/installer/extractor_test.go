package installer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTarGzHoistsTopLevelDir(t *testing.T) {
	archive := writeTemp(t, "node-v20.11.0-darwin-arm64.tar.gz", buildTarGz(t, []tarEntry{
		{Name: "node-v20.11.0-darwin-arm64/", Dir: true},
		{Name: "node-v20.11.0-darwin-arm64/bin/node", Body: "binary", Mode: 0o755},
		{Name: "node-v20.11.0-darwin-arm64/lib/node_modules/npm/bin/npm-cli.js", Body: "js", Mode: 0o755},
		{Name: "node-v20.11.0-darwin-arm64/bin/npm", Linkname: "../lib/node_modules/npm/bin/npm-cli.js"},
	}))
	dest := filepath.Join(t.TempDir(), "out")

	root, err := ExtractArchive(archive, dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "node-v20.11.0-darwin-arm64"), root)

	info, err := os.Stat(filepath.Join(root, "bin", "node"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	target, err := os.Readlink(filepath.Join(root, "bin", "npm"))
	require.NoError(t, err)
	assert.Equal(t, "../lib/node_modules/npm/bin/npm-cli.js", target)
	data, err := os.ReadFile(filepath.Join(root, "bin", "npm"))
	require.NoError(t, err)
	assert.Equal(t, "js", string(data))
}

func TestExtractFlatArchiveKeepsDest(t *testing.T) {
	archive := writeTemp(t, "frp.tar.gz", buildTarGz(t, []tarEntry{
		{Name: "frpc", Body: "binary", Mode: 0o755},
		{Name: "LICENSE", Body: "text"},
	}))
	dest := t.TempDir()

	root, err := ExtractArchive(archive, dest)
	require.NoError(t, err)
	assert.Equal(t, dest, root)
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []tarEntry
	}{
		{name: "path traversal", entries: []tarEntry{{Name: "../evil", Body: "x"}}},
		{name: "absolute symlink", entries: []tarEntry{{Name: "link", Linkname: "/etc/passwd"}}},
		{name: "escaping symlink", entries: []tarEntry{{Name: "a/link", Linkname: "../../outside"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive := writeTemp(t, "bad.tar.gz", buildTarGz(t, tt.entries))
			dest := filepath.Join(t.TempDir(), "out")

			_, err := ExtractArchive(archive, dest)
			assert.Error(t, err)
			assert.NoFileExists(t, filepath.Join(filepath.Dir(dest), "evil"))
		})
	}
}

func TestExtractZip(t *testing.T) {
	archive := writeTemp(t, "tool.zip", buildZip(t, map[string]string{
		"tool-1.0/tool":      "\x7fELF fake",
		"tool-1.0/README.md": "readme",
	}))
	dest := t.TempDir()

	root, err := ExtractArchive(archive, dest)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "tool"))

	found, err := findExecutables(root, "tool")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "tool"), found[0], "ELF header marks the file executable")
}

func TestExtractUnsupported(t *testing.T) {
	_, err := ExtractArchive(writeTemp(t, "tool.rar", []byte("x")), t.TempDir())
	assert.Error(t, err)
}

func TestFindExecutablesPrefersExactName(t *testing.T) {
	root := t.TempDir()
	writeExecutable(t, filepath.Join(root, "frpc_helper"), "#!/bin/sh\n")
	writeExecutable(t, filepath.Join(root, "deep", "dir", "frpc"), "#!/bin/sh\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "frpc.toml"), []byte("cfg"), 0o644))

	found, err := findExecutables(root, "frpc")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "deep", "dir", "frpc"), found[0])
	assert.Len(t, found, 2)

	_, err = findExecutables(root, "missing")
	assert.Error(t, err)
}

func TestIsArchive(t *testing.T) {
	for _, name := range []string{"a.tar.gz", "a.TGZ", "a.tar.xz", "a.tar.bz2", "a.zip", "a.7z", "a.tar"} {
		assert.True(t, IsArchive(name), name)
	}
	for _, name := range []string{"v2raya_linux_x64_2.2.5.1", "install.sh", "tool.exe"} {
		assert.False(t, IsArchive(name), name)
	}
}
