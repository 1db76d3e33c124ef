package installer

import (
	"archive/tar"    // For reading .tar archives
	"archive/zip"    // For reading .zip archives
	"bytes"          // For sniffing executable headers
	"compress/bzip2" // For reading .bz2 compressed data
	"compress/gzip"  // For reading .gz compressed data
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bodgit/sevenzip" // For reading .7z archives
	"github.com/cockroachdb/errors"
	"github.com/xi2/xz" // For reading .xz compressed data

	"github.com/farfarfun/funinstall/internal/logger"
)

// archiveFormat returns the archive type of a file name, or "" for anything else.
func archiveFormat(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return "zip"
	case strings.HasSuffix(lower, ".7z"):
		return "7z"
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return "tar.gz"
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return "tar.bz2"
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return "tar.xz"
	case strings.HasSuffix(lower, ".tar"):
		return "tar"
	}
	return ""
}

// IsArchive reports whether name has an extension ExtractArchive understands.
func IsArchive(name string) bool {
	return archiveFormat(name) != ""
}

// ExtractArchive unpacks src into dest and returns the content root: dest itself, or the
// single top-level directory when the archive wraps everything in one.
func ExtractArchive(src, dest string) (string, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating %s", dest)
	}

	var err error
	switch format := archiveFormat(src); format {
	case "zip":
		logger.Debug("[DEBUG] compression type is zip\n")
		err = extractZip(src, dest)
	case "7z":
		logger.Debug("[DEBUG] compression type is 7z\n")
		err = extract7z(src, dest)
	case "tar", "tar.gz", "tar.bz2", "tar.xz":
		logger.Debug("[DEBUG] compression type is %s\n", format)
		err = extractTarArchive(src, dest, format)
	default:
		return "", errors.Newf("unsupported archive format: %s", filepath.Base(src))
	}
	if err != nil {
		return "", errors.Wrapf(err, "extracting %s", filepath.Base(src))
	}
	return contentRoot(dest)
}

// contentRoot descends into dest when it holds exactly one directory and nothing else.
func contentRoot(dest string) (string, error) {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", dest)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dest, entries[0].Name()), nil
	}
	return dest, nil
}

// sanitizePath joins name onto dest and rejects entries that would escape it.
func sanitizePath(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	root := filepath.Clean(dest)
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", errors.Newf("illegal path in archive: %s", name)
	}
	return target, nil
}

// safeSymlink creates a symlink at target pointing to linkname, which must stay inside dest.
func safeSymlink(dest, target, linkname string) error {
	if filepath.IsAbs(linkname) {
		return errors.Newf("illegal absolute symlink in archive: %s -> %s", target, linkname)
	}
	resolved := filepath.Join(filepath.Dir(target), linkname)
	root := filepath.Clean(dest)
	if resolved != root && !strings.HasPrefix(resolved, root+string(os.PathSeparator)) {
		return errors.Newf("illegal symlink in archive: %s -> %s", target, linkname)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	_ = os.Remove(target)
	return os.Symlink(linkname, target)
}

// writeFile copies r into target with the given permission bits.
func writeFile(target string, r io.Reader, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// OpenFile is subject to umask; archives carry the intended bits.
	return os.Chmod(target, mode)
}

// extractTarArchive handles tar and compressed tar variants
func extractTarArchive(src, dest, format string) error {
	logger.Debug("[DEBUG] uncompressing %s to %s\n", src, dest)
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	var reader io.Reader = f
	switch format {
	case "tar.gz":
		gr, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gr.Close()
		reader = gr
	case "tar.bz2":
		reader = bzip2.NewReader(f)
	case "tar.xz":
		xzr, err := xz.NewReader(f, 0)
		if err != nil {
			return err
		}
		reader = xzr
	}

	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil // End of archive
		}
		if err != nil {
			return err
		}

		target, err := sanitizePath(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, fs.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := safeSymlink(dest, target, hdr.Linkname); err != nil {
				return err
			}
		case tar.TypeLink:
			linked, err := sanitizePath(dest, hdr.Linkname)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Link(linked, target); err != nil {
				return err
			}
		default:
			logger.Debug("[DEBUG] Skipping tar entry %s (type %c)\n", hdr.Name, hdr.Typeflag)
		}
	}
}

// extractZip extracts a .zip archive
func extractZip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if err := extractEntry(dest, f.Name, f.FileInfo().Mode(), f.Open); err != nil {
			return err
		}
	}
	return nil
}

// extract7z handles .7z extraction using the sevenzip library
func extract7z(src, dest string) error {
	r, err := sevenzip.OpenReader(src)
	if err != nil {
		return errors.Wrap(err, "failed to open 7z archive")
	}
	defer r.Close()

	for _, f := range r.File {
		if err := extractEntry(dest, f.Name, f.FileInfo().Mode(), f.Open); err != nil {
			return err
		}
	}
	return nil
}

// extractEntry writes one zip or 7z entry; symlinks store their target as content.
func extractEntry(dest, name string, mode fs.FileMode, open func() (io.ReadCloser, error)) error {
	target, err := sanitizePath(dest, name)
	if err != nil {
		return err
	}
	if mode.IsDir() {
		return os.MkdirAll(target, 0o755)
	}

	rc, err := open()
	if err != nil {
		return err
	}
	defer rc.Close()

	if mode&fs.ModeSymlink != 0 {
		linkname, err := io.ReadAll(io.LimitReader(rc, 4096))
		if err != nil {
			return err
		}
		return safeSymlink(dest, target, string(linkname))
	}
	return writeFile(target, rc, mode.Perm())
}

// findExecutables scans a directory tree and returns executable files named like the tool,
// best match first: exact name, then shortest path.
func findExecutables(root string, toolName string) ([]string, error) {
	logger.Debug("[DEBUG] Scanning directory for executables: %s\n", root)
	var executables []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			logger.Debug("[DEBUG] WalkDir error: %v\n", err)
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			logger.Debug("[DEBUG] Failed to get file info for %s: %v\n", path, err)
			return nil
		}
		filename := filepath.Base(path)

		// Skip if filename doesn't start with toolName
		if !strings.HasPrefix(strings.ToLower(filename), strings.ToLower(toolName)) {
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		// Check if it's executable based on permissions, then on the file header
		if info.Mode().Perm()&0o111 != 0 || hasExecutableHeader(path) {
			logger.Debug("[DEBUG] Found executable: %s\n", path)
			executables = append(executables, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	if len(executables) == 0 {
		return nil, errors.Newf("no executable named %s found in %s", toolName, root)
	}

	exact := func(p string) bool {
		base := strings.ToLower(filepath.Base(p))
		return base == strings.ToLower(toolName) || base == strings.ToLower(toolName)+".exe"
	}
	sort.SliceStable(executables, func(i, j int) bool {
		if exact(executables[i]) != exact(executables[j]) {
			return exact(executables[i])
		}
		return len(executables[i]) < len(executables[j])
	})
	return executables, nil
}

// Magic numbers of ELF, Mach-O (thin and fat) and PE binaries.
var executableMagic = [][]byte{
	{0x7f, 'E', 'L', 'F'},
	{0xfe, 0xed, 0xfa, 0xce}, {0xce, 0xfa, 0xed, 0xfe},
	{0xfe, 0xed, 0xfa, 0xcf}, {0xcf, 0xfa, 0xed, 0xfe},
	{0xca, 0xfe, 0xba, 0xbe},
	{'M', 'Z'},
}

// hasExecutableHeader sniffs the first bytes of path for a native binary header.
// Zip archives often drop the executable bit, so permissions alone are not enough.
func hasExecutableHeader(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 4)
	n, _ := io.ReadFull(f, head)
	head = head[:n]
	for _, magic := range executableMagic {
		if bytes.HasPrefix(head, magic) {
			return true
		}
	}
	return false
}

// copyBinary copies a raw binary to dst with executable permissions
func copyBinary(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	return writeFile(dst, in, 0o755)
}
