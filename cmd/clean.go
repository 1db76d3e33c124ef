package cmd

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/farfarfun/funinstall/internal/logger"
)

// cleanCmd removes leftover downloads from interrupted installs.
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the staging directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		dir := a.settings.StagingDir
		if err := os.RemoveAll(dir); err != nil {
			return errors.Wrapf(err, "removing %s", dir)
		}
		logger.Info("[INFO] Removed %s\n", dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
