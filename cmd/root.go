package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/farfarfun/funinstall/internal/config"
	"github.com/farfarfun/funinstall/internal/logger"
)

// debug flag indicates whether debug logging should be enabled.
// It can be toggled via the `--debug` command-line flag.
var debug bool

// configPath is an explicit config file; empty means the default search paths.
var configPath string

// rootCmd is the base command for the CLI tool `funinstall`.
// It sets up the root-level CLI structure and provides global flags.
var rootCmd = &cobra.Command{
	Use:   "funinstall",
	Short: "Install developer tools from their upstream releases",
	Long: `funinstall installs command line tools and runtimes straight from their upstream
release channels (GitHub releases, go.dev, nodejs.org, installer scripts or the system
package manager) and keeps every install idempotent: running the same command twice
changes nothing the second time.`,

	// Errors are reported once by Execute, with their hints.
	SilenceUsage:  true,
	SilenceErrors: true,

	// PersistentPreRunE is a hook that runs before any subcommand.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init(debug) // Set up logging (verbose if --debug is true)
		return nil
	},
}

func init() {
	config.Init()

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")
	flags.StringVar(&configPath, "config", "", "Path to config file (default ./config.yaml or $XDG_CONFIG_HOME/funinstall/config.yaml)")
	flags.String("bin-dir", "", "Directory that receives executable links")
	flags.String("install-root", "", "Directory that holds installed package versions")

	// Flags take precedence over the config file and environment.
	_ = viper.BindPFlag("bin_dir", flags.Lookup("bin-dir"))
	_ = viper.BindPFlag("install_root", flags.Lookup("install-root"))
}

// Execute runs the CLI and exits non-zero on any failure.
// It's the entry point for the CLI when invoked by the user.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		reportError(err)
		os.Exit(1)
	}
}

// reportError prints err and every hint attached to it.
func reportError(err error) {
	logger.Error("[ERROR] %v\n", err)
	for _, hint := range errors.GetAllHints(err) {
		logger.Warn("[HINT] %s\n", hint)
	}
	if debug {
		logger.Debug("[DEBUG] %+v\n", err)
	}
}
