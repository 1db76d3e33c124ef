package cmd

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/farfarfun/funinstall/internal/config"
	"github.com/farfarfun/funinstall/internal/installer"
	"github.com/farfarfun/funinstall/internal/logger"
)

// manifestPath holds the path to the tools manifest.
// It's passed via the `--file` or `-f` flag.
var manifestPath string

// syncCmd installs every package listed in a manifest.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Install every package listed in a manifest",
	Long: `Install every package listed in a manifest file:

  tools:
    - name: nodejs
    - name: go
      version: 1.22.1
    - name: frpc
      update: true

Packages are processed in order. A failure is reported and the remaining packages are
still installed; the command exits non-zero if any package failed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest, err := config.LoadManifest(manifestPath)
		if err != nil {
			return err
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		return syncManifest(cmd.Context(), manifest, a.installEntry)
	},
}

// installFunc installs one manifest entry and reports the outcome.
type installFunc func(ctx context.Context, entry config.ManifestEntry) installer.Outcome

// installEntry installs one manifest entry with a fresh installer.
func (a *app) installEntry(ctx context.Context, entry config.ManifestEntry) installer.Outcome {
	inst, recipe, err := a.newInstaller(entry.Name)
	if err != nil {
		return installer.Outcome{Kind: installer.KindResolution, Err: err}
	}
	req, err := installer.NewRequest(recipe.Name, entry.Version, entry.Latest, entry.Update, false)
	if err != nil {
		return installer.Outcome{Kind: installer.KindResolution, Err: err}
	}
	return a.orchestrator().Install(ctx, inst, req)
}

// syncManifest installs the entries in order and continues past failures.
func syncManifest(ctx context.Context, m *config.Manifest, install installFunc) error {
	logger.Debug("[DEBUG] Starting sync with %d packages\n", len(m.Tools))

	var failed []string
	var installed, skipped int
	for _, entry := range m.Tools {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "sync interrupted")
		}

		out := install(ctx, entry)
		switch {
		case !out.Succeeded:
			logger.Error("[ERROR] %s: %v\n", entry.Name, out.Err)
			for _, hint := range errors.GetAllHints(out.Err) {
				logger.Warn("[HINT] %s\n", hint)
			}
			failed = append(failed, entry.Name)
		case out.Skipped:
			logger.Info("[INFO] %s %s is current. Skipping.\n", entry.Name, out.Version)
			skipped++
		default:
			logger.Info("[INFO] Installed %s %s\n", entry.Name, out.Version)
			installed++
		}
	}

	logger.Info("[INFO] Sync finished: %d installed, %d unchanged, %d failed\n", installed, skipped, len(failed))
	if len(failed) > 0 {
		return errors.Newf("%d of %d packages failed: %v", len(failed), len(m.Tools), failed)
	}
	return nil
}

// init sets up CLI flags and adds the command to the root command.
func init() {
	syncCmd.Flags().StringVarP(&manifestPath, "file", "f", "tools.yaml", "Path to the manifest file")
	rootCmd.AddCommand(syncCmd)
}
