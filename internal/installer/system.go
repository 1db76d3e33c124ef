package installer

import (
	"context"
	"os"
	"os/exec"

	"github.com/cockroachdb/errors"

	"github.com/farfarfun/funinstall/internal/logger"
)

// PackageManager describes how to drive one OS package manager.
type PackageManager struct {
	Name    string
	Install []string
	Remove  []string
	// PinSep joins package and version ("git=1:2.43" for apt); empty means pinning is unsupported.
	PinSep string
	// NoSudo marks managers that must run as the invoking user.
	NoSudo bool
}

// PackageManagers lists supported managers in detection order.
var PackageManagers = []PackageManager{
	{Name: "apt-get", Install: []string{"install", "-y"}, Remove: []string{"remove", "-y"}, PinSep: "="},
	{Name: "dnf", Install: []string{"install", "-y"}, Remove: []string{"remove", "-y"}, PinSep: "-"},
	{Name: "yum", Install: []string{"install", "-y"}, Remove: []string{"remove", "-y"}, PinSep: "-"},
	{Name: "pacman", Install: []string{"-S", "--noconfirm"}, Remove: []string{"-R", "--noconfirm"}},
	{Name: "apk", Install: []string{"add"}, Remove: []string{"del"}, PinSep: "="},
	{Name: "brew", Install: []string{"install"}, Remove: []string{"uninstall"}, PinSep: "@", NoSudo: true},
}

// SystemPlacer installs a package through the OS package manager.
type SystemPlacer struct {
	// Packages maps manager name to package name.
	Packages map[string]string
	Runner   Runner
	LookPath func(string) (string, error)
	// IsRoot overrides the effective-user check.
	IsRoot func() bool
}

// Manager returns the first available manager that the recipe has a package name for.
func (p *SystemPlacer) Manager() (PackageManager, string, error) {
	lookPath := p.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	for _, m := range PackageManagers {
		pkg, ok := p.Packages[m.Name]
		if !ok {
			continue
		}
		if _, err := lookPath(m.Name); err == nil {
			return m, pkg, nil
		}
	}
	return PackageManager{}, "", errors.Wrap(ErrUnsupportedPlatform, "no supported package manager found")
}

// Place installs the package, pinned to staged.Version.Version unless it is floating.
func (p *SystemPlacer) Place(ctx context.Context, staged Staged) error {
	m, pkg, err := p.Manager()
	if err != nil {
		return err
	}
	if !staged.Version.Floating && staged.Version.Version != "" {
		if m.PinSep == "" {
			return errors.Newf("%s cannot install a specific version of %s", m.Name, pkg)
		}
		pkg += m.PinSep + staged.Version.Version
	}

	logger.Info("[INFO] Installing %s with %s\n", pkg, m.Name)
	return p.run(ctx, m, append(append([]string{}, m.Install...), pkg))
}

// Remove uninstalls the package through the same manager.
func (p *SystemPlacer) Remove(ctx context.Context) error {
	m, pkg, err := p.Manager()
	if err != nil {
		return err
	}
	logger.Info("[INFO] Removing %s with %s\n", pkg, m.Name)
	return p.run(ctx, m, append(append([]string{}, m.Remove...), pkg))
}

func (p *SystemPlacer) run(ctx context.Context, m PackageManager, args []string) error {
	isRoot := p.IsRoot
	if isRoot == nil {
		isRoot = func() bool { return os.Geteuid() == 0 }
	}

	cmd := Command{Name: m.Name, Args: args, Interactive: true}
	if !m.NoSudo && !isRoot() {
		cmd = Command{Name: "sudo", Args: append([]string{m.Name}, args...), Interactive: true}
	}
	if out, err := p.Runner.Run(ctx, cmd); err != nil {
		return errors.Wrapf(err, "%s failed: %s", cmd, tail(out, 20))
	}
	return nil
}
