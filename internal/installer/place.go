package installer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/oklog/ulid/v2"
	"golang.org/x/term"

	"github.com/farfarfun/funinstall/internal/logger"
	"github.com/farfarfun/funinstall/internal/state"
)

// CurrentLink is the name of the symlink selecting the active version of a package.
const CurrentLink = "current"

// ArchivePlacer installs an archive or raw binary into <Root>/<Name>/<version>, switches
// <Root>/<Name>/current to it and links its executables into BinDir.
//
// Content is prepared in a hidden sibling directory and renamed into place, so an
// observer sees either the old state or the new one.
type ArchivePlacer struct {
	Root   string
	BinDir string
	Name   string
	Binary string
	// Links maps shim names to paths inside the version directory. Empty means
	// "find Binary in the extracted content".
	Links map[string]string
}

// Place commits a staged artifact.
func (p *ArchivePlacer) Place(ctx context.Context, staged Staged) error {
	version := staged.Version.Version
	if version == "" || strings.ContainsAny(version, `/\`) || version == "." || version == ".." {
		return errors.Newf("refusing to place invalid version %q", version)
	}

	pkgDir := filepath.Join(p.Root, p.Name)
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", pkgDir)
	}
	pruneStale(pkgDir, ".incoming-")
	pruneStale(pkgDir, ".old-")

	id := ulid.Make().String()
	incoming := filepath.Join(pkgDir, ".incoming-"+id)
	defer os.RemoveAll(incoming)

	content, err := p.prepare(staged, incoming)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	links, err := p.resolveLinks(content)
	if err != nil {
		return err
	}
	if err := p.checkShimConflicts(pkgDir, links); err != nil {
		return err
	}

	receipt := &state.Receipt{
		Name:        p.Name,
		Version:     version,
		Platform:    staged.Version.Platform.String(),
		SHA256:      staged.SHA256,
		Binaries:    links,
		Primary:     primaryLink(p.Binary, links),
		InstalledAt: time.Now().UTC(),
	}
	if staged.Version.Artifact != nil {
		receipt.Source = staged.Version.Artifact.URL
	}
	if err := state.Save(content, receipt); err != nil {
		return errors.Wrap(err, "writing receipt")
	}

	if err := p.ensureBinDir(); err != nil {
		return err
	}

	currentLink := filepath.Join(pkgDir, CurrentLink)
	previous, _ := os.Readlink(currentLink)

	versionDir := filepath.Join(pkgDir, version)
	c, err := commitDir(content, versionDir, filepath.Join(pkgDir, ".old-"+id))
	if err != nil {
		return err
	}
	if err := switchSymlink(version, currentLink, pkgDir, id); err != nil {
		c.rollback()
		return errors.Wrap(err, "activating version")
	}
	if err := p.linkShims(pkgDir, links, id); err != nil {
		restoreLink(currentLink, previous, pkgDir, id)
		c.rollback()
		return err
	}
	c.finish()
	logger.Info("[INFO] Installed %s %s into %s\n", p.Name, version, versionDir)

	if !onPath(p.BinDir) {
		logger.Warn("[WARN] %s is not on your PATH; run `funinstall path --write` to add it\n", p.BinDir)
	}
	return nil
}

// prepare unpacks or copies the staged file below incoming and returns the content root.
func (p *ArchivePlacer) prepare(staged Staged, incoming string) (string, error) {
	if IsArchive(staged.Path) {
		root, err := ExtractArchive(staged.Path, incoming)
		if err != nil {
			return "", err
		}
		return root, nil
	}

	if err := os.MkdirAll(incoming, 0o755); err != nil {
		return "", errors.Wrapf(err, "creating %s", incoming)
	}
	name := p.Binary
	if strings.HasSuffix(strings.ToLower(staged.Path), ".exe") {
		name += ".exe"
	}
	if err := copyBinary(staged.Path, filepath.Join(incoming, name)); err != nil {
		return "", errors.Wrap(err, "copying binary")
	}
	return incoming, nil
}

// resolveLinks returns link name -> path relative to content for every shim.
func (p *ArchivePlacer) resolveLinks(content string) (map[string]string, error) {
	links := make(map[string]string)
	if len(p.Links) > 0 {
		for name, rel := range p.Links {
			if _, err := sanitizePath(content, rel); err != nil {
				return nil, err
			}
			if _, err := os.Lstat(filepath.Join(content, rel)); err != nil {
				return nil, errors.Wrapf(err, "%s: %s is missing from the artifact", name, rel)
			}
			links[name] = filepath.ToSlash(rel)
		}
	} else {
		found, err := findExecutables(content, p.Binary)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(content, found[0])
		if err != nil {
			return nil, err
		}
		links[p.Binary] = filepath.ToSlash(rel)
	}

	for _, rel := range links {
		ensureExecutable(filepath.Join(content, rel))
	}
	return links, nil
}

// ensureExecutable adds execute bits to a regular file that lacks them.
func ensureExecutable(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	if info.Mode().Perm()&0o111 == 0 {
		_ = os.Chmod(path, info.Mode().Perm()|0o755)
	}
}

// checkShimConflicts fails when a shim would replace a file this package does not own.
func (p *ArchivePlacer) checkShimConflicts(pkgDir string, links map[string]string) error {
	for name := range links {
		shim := filepath.Join(p.BinDir, name)
		info, err := os.Lstat(shim)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "checking %s", shim)
		}
		if info.Mode()&os.ModeSymlink == 0 {
			return errors.WithHint(
				errors.Newf("%s already exists and is not managed by funinstall", shim),
				"Remove it or set bin_dir to another directory",
			)
		}
		if target, err := os.Readlink(shim); err == nil && !strings.HasPrefix(target, pkgDir+string(os.PathSeparator)) {
			logger.Warn("[WARN] Replacing %s (was a link to %s)\n", shim, target)
		}
	}
	return nil
}

// ensureBinDir creates BinDir and checks that links can be written into it.
func (p *ArchivePlacer) ensureBinDir() error {
	const hint = "Set bin_dir (or --bin-dir) to a writable directory"
	if err := os.MkdirAll(p.BinDir, 0o755); err != nil {
		return errors.WithHint(errors.Wrapf(err, "creating %s", p.BinDir), hint)
	}
	f, err := os.CreateTemp(p.BinDir, ".funinstall-")
	if err != nil {
		return errors.WithHint(errors.Wrapf(err, "%s is not writable", p.BinDir), hint)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

// linkShims points every shim at the current version. On failure the shims it already
// switched get their previous targets back.
func (p *ArchivePlacer) linkShims(pkgDir string, links map[string]string, id string) error {
	names := make([]string, 0, len(links))
	for name := range links {
		names = append(names, name)
	}
	sort.Strings(names)

	previous := make(map[string]string)
	for _, name := range names {
		if target, err := os.Readlink(filepath.Join(p.BinDir, filepath.FromSlash(name))); err == nil {
			previous[name] = target
		}
	}

	for i, name := range names {
		shim := filepath.Join(p.BinDir, filepath.FromSlash(name))
		target := filepath.Join(pkgDir, CurrentLink, filepath.FromSlash(links[name]))
		if err := switchSymlink(target, shim, p.BinDir, id); err != nil {
			for _, done := range names[:i] {
				restoreLink(filepath.Join(p.BinDir, filepath.FromSlash(done)), previous[done], p.BinDir, id)
			}
			return errors.Wrapf(err, "linking %s", name)
		}
		logger.Debug("[DEBUG] Linked %s -> %s\n", shim, target)
	}
	return nil
}

// restoreLink points link back at previous, or removes it when there was none.
func restoreLink(link, previous, dir, id string) {
	if previous == "" {
		_ = os.Remove(link)
		return
	}
	if err := switchSymlink(previous, link, dir, id); err != nil {
		logger.Warn("[WARN] Could not restore %s -> %s: %v\n", link, previous, err)
	}
}

// commit is a version directory renamed into place, with the directory it replaced
// kept aside until finish.
type commit struct {
	final  string
	old    string
	hadOld bool
}

// commitDir renames content to final. An existing final directory is moved to old first
// and restored if the rename fails.
func commitDir(content, final, old string) (*commit, error) {
	c := &commit{final: final, old: old}
	if _, err := os.Lstat(final); err == nil {
		if err := os.Rename(final, old); err != nil {
			return nil, errors.Wrapf(err, "moving aside %s", final)
		}
		c.hadOld = true
	}

	if err := os.Rename(content, final); err != nil {
		if c.hadOld {
			_ = os.Rename(old, final)
		}
		return nil, errors.Wrapf(err, "renaming into %s", final)
	}
	return c, nil
}

// rollback removes the committed directory and puts the replaced one back.
func (c *commit) rollback() {
	_ = os.RemoveAll(c.final)
	if c.hadOld {
		if err := os.Rename(c.old, c.final); err != nil {
			logger.Warn("[WARN] Could not restore %s: %v\n", c.final, err)
		}
	}
}

// finish drops the replaced directory.
func (c *commit) finish() {
	if c.hadOld {
		_ = os.RemoveAll(c.old)
	}
}

// switchSymlink points link at target by renaming a fresh symlink over it.
func switchSymlink(target, link, dir, id string) error {
	tmp := filepath.Join(dir, ".link-"+id+"-"+filepath.Base(link))
	_ = os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func primaryLink(binary string, links map[string]string) string {
	if _, ok := links[binary]; ok {
		return binary
	}
	names := make([]string, 0, len(links))
	for name := range links {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// onPath reports whether dir is listed in $PATH.
func onPath(dir string) bool {
	clean := filepath.Clean(dir)
	for _, p := range filepath.SplitList(os.Getenv("PATH")) {
		if filepath.Clean(p) == clean {
			return true
		}
	}
	return false
}

// ScriptPlacer runs a downloaded installer script with sh.
type ScriptPlacer struct {
	Args   []string
	Env    map[string]string
	Runner Runner
}

// Place executes the staged script. The script owns the final location; the presence
// probe checks the result.
func (p *ScriptPlacer) Place(ctx context.Context, staged Staged) error {
	if staged.Path == "" {
		return errors.New("no installer script was staged")
	}

	env := os.Environ()
	keys := make([]string, 0, len(p.Env))
	for k := range p.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+p.Env[k])
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if !interactive {
		env = append(env, "NONINTERACTIVE=1", "CI=1")
	}

	cmd := Command{
		Name:        "sh",
		Args:        append([]string{staged.Path}, p.Args...),
		Env:         env,
		Dir:         staged.Dir,
		Interactive: interactive,
	}
	logger.Info("[INFO] Running installer script %s\n", filepath.Base(staged.Path))
	if out, err := p.Runner.Run(ctx, cmd); err != nil {
		return errors.Wrapf(err, "installer script failed: %s", tail(out, 20))
	}
	return nil
}

// tail returns the last n lines of command output.
func tail(out []byte, n int) string {
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
