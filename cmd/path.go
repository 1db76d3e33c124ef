package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/farfarfun/funinstall/internal/logger"
)

var pathOptions struct {
	write bool
	shell string
}

// shellrcMap maps supported shells to their rc file names.
var shellrcMap = map[string]string{
	"zsh":  ".zshrc",
	"bash": ".bashrc",
}

// pathCmd prints the PATH export for the bin directory, or appends it to the shell rc file.
var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show or persist the PATH entry for installed executables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		line := exportLine(a.settings.BinDir)
		if !pathOptions.write {
			fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		}

		shell := pathOptions.shell
		if shell == "" {
			shell = detectShell()
		}
		rc, ok := shellrcMap[shell]
		if !ok {
			return errors.WithHint(errors.Newf("unsupported shell %q", shell), "Use --shell zsh or --shell bash")
		}
		rcPath := filepath.Join(xdg.Home, rc)

		added, err := appendLine(rcPath, line)
		if err != nil {
			return err
		}
		if added {
			logger.Info("[INFO] Added %s to %s\n", a.settings.BinDir, rcPath)
		} else {
			logger.Info("[INFO] %s already sets up %s\n", rcPath, a.settings.BinDir)
		}
		return nil
	},
}

// exportLine is the shell statement that puts dir on PATH.
func exportLine(dir string) string {
	return fmt.Sprintf("export PATH=\"%s:$PATH\"", dir)
}

// detectShell picks the rc file family from $SHELL, falling back to zsh.
func detectShell() string {
	shell := filepath.Base(os.Getenv("SHELL"))
	logger.Debug("[DEBUG] $SHELL is %q\n", shell)
	if _, ok := shellrcMap[shell]; ok {
		return shell
	}
	return "zsh"
}

// appendLine appends line to the rc file at path unless an identical line is already there.
// The file is created if missing. It reports whether the line was written.
func appendLine(path, line string) (bool, error) {
	// Read existing lines from the rc file to avoid duplicates
	if f, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if strings.TrimSpace(scanner.Text()) == line {
				_ = f.Close()
				return false, nil
			}
		}
		_ = f.Close()
		if err := scanner.Err(); err != nil {
			return false, errors.Wrapf(err, "reading %s", path)
		}
	} else if !os.IsNotExist(err) {
		return false, errors.Wrapf(err, "opening %s", path)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, errors.Wrapf(err, "unable to open %s for appending", path)
	}
	defer file.Close()

	if _, err := file.WriteString("\n# Added by funinstall\n" + line + "\n"); err != nil {
		return false, errors.Wrapf(err, "writing %s", path)
	}
	return true, nil
}

func init() {
	pathCmd.Flags().BoolVar(&pathOptions.write, "write", false, "Append the PATH entry to the shell rc file")
	pathCmd.Flags().StringVar(&pathOptions.shell, "shell", "", "Shell whose rc file to update (zsh or bash; default detected from $SHELL)")
	rootCmd.AddCommand(pathCmd)
}
