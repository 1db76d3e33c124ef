package cmd

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/farfarfun/funinstall/internal/logger"
	"github.com/farfarfun/funinstall/internal/packages"
)

// uninstallCmd removes a package installed by funinstall.
var uninstallCmd = &cobra.Command{
	Use:     "uninstall <package>",
	Aliases: []string{"remove"},
	Short:   "Remove an installed package",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		inst, recipe, err := a.newInstaller(args[0])
		if err != nil {
			return err
		}

		u, ok := inst.(packages.Uninstaller)
		if !ok {
			return errors.Newf("%s cannot be uninstalled", recipe.Name)
		}
		if err := u.Uninstall(cmd.Context()); err != nil {
			return err
		}
		logger.Info("[INFO] Uninstalled %s\n", recipe.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
