package cmd

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/farfarfun/funinstall/internal/config"
	"github.com/farfarfun/funinstall/internal/installer"
	"github.com/farfarfun/funinstall/internal/logger"
)

// installOptions are shared by `install` and every generated package subcommand.
var installOptions struct {
	version string
	latest  bool
	update  bool
	force   bool
}

// installCmd installs any catalog package by name, including user-catalog recipes.
var installCmd = &cobra.Command{
	Use:   "install <package>",
	Short: "Install a package",
	Example: `  funinstall install nodejs
  funinstall install go -v 1.22.1
  funinstall install code-server --latest
  funinstall install frpc -u`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstall(cmd, args[0])
	},
}

// runInstall builds the request from the flags and runs the install protocol once.
func runInstall(cmd *cobra.Command, name string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	inst, recipe, err := a.newInstaller(name)
	if err != nil {
		return err
	}
	req, err := installer.NewRequest(recipe.Name, installOptions.version, installOptions.latest, installOptions.update, installOptions.force)
	if err != nil {
		return err
	}

	out := a.orchestrator().Install(cmd.Context(), inst, req)
	if !out.Succeeded {
		return out.Err
	}
	if out.Skipped {
		logger.Info("[INFO] Nothing to do: %s %s is installed\n", recipe.Name, out.Version)
	} else {
		logger.Info("[INFO] Installed %s %s\n", recipe.Name, out.Version)
	}
	return nil
}

// packageCommand generates `install <name>` for one built-in recipe.
func packageCommand(r config.Recipe) *cobra.Command {
	short := "Install " + r.Name
	if r.Description != "" {
		short += " (" + r.Description + ")"
	}
	name := r.Name
	return &cobra.Command{
		Use:     name,
		Aliases: r.Aliases,
		Short:   short,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, name)
		},
	}
}

// latestAlias accepts the historical `--lasted` spelling of `--latest`.
func latestAlias(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == "lasted" {
		name = "latest"
	}
	return pflag.NormalizedName(name)
}

func init() {
	flags := installCmd.PersistentFlags()
	flags.StringVarP(&installOptions.version, "version", "v", "", "Install this version or constraint (e.g. 1.22.1, ^20)")
	flags.BoolVarP(&installOptions.latest, "latest", "l", false, "Consider prereleases and non-LTS lines when picking the newest version")
	flags.BoolVarP(&installOptions.update, "update", "u", false, "Upgrade an existing install to the newest version")
	flags.BoolVar(&installOptions.force, "force", false, "Reinstall even when the package is already present")
	installCmd.SetGlobalNormalizationFunc(latestAlias)

	// The built-in catalog is embedded, so a load failure is a packaging bug.
	cat, err := config.Builtin()
	if err != nil {
		panic(errors.Wrap(err, "loading built-in catalog"))
	}
	for _, r := range cat.Recipes() {
		installCmd.AddCommand(packageCommand(r))
	}

	rootCmd.AddCommand(installCmd)
}
