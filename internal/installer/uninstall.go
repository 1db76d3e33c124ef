package installer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/farfarfun/funinstall/internal/logger"
)

// ErrNotInstalled is returned by Uninstall when the package has no managed directory.
var ErrNotInstalled = errors.New("not installed by funinstall")

// Uninstall removes a managed package: every shim in binDir that points into
// <root>/<name>, then the package directory with all its versions.
func Uninstall(root, binDir, name string) error {
	logger.Info("[INFO] Uninstalling %s...\n", name)

	pkgDir := filepath.Join(root, name)
	if _, err := os.Lstat(pkgDir); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrNotInstalled, "%s", name)
		}
		return errors.Wrapf(err, "inspecting %s", pkgDir)
	}

	removed, err := removeShims(binDir, pkgDir)
	if err != nil {
		return err
	}
	for _, shim := range removed {
		logger.Info("[INFO] Removed link %s\n", shim)
	}

	if err := os.RemoveAll(pkgDir); err != nil {
		return errors.Wrapf(err, "removing %s", pkgDir)
	}
	logger.Info("[INFO] Successfully removed directory %s\n", pkgDir)
	return nil
}

// removeShims deletes symlinks in binDir whose target lies inside pkgDir.
func removeShims(binDir, pkgDir string) ([]string, error) {
	entries, err := os.ReadDir(binDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading %s", binDir)
	}

	prefix := filepath.Clean(pkgDir) + string(os.PathSeparator)
	var removed []string
	for _, e := range entries {
		if e.Type()&os.ModeSymlink == 0 {
			continue
		}
		shim := filepath.Join(binDir, e.Name())
		target, err := os.Readlink(shim)
		if err != nil {
			logger.Debug("[DEBUG] Failed to read link %s: %v\n", shim, err)
			continue
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(binDir, target)
		}
		if !strings.HasPrefix(filepath.Clean(target), prefix) {
			continue
		}
		if err := os.Remove(shim); err != nil {
			return removed, errors.Wrapf(err, "removing %s", shim)
		}
		removed = append(removed, shim)
	}
	return removed, nil
}
