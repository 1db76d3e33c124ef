package cmd

import (
	"net/http"

	"github.com/farfarfun/funinstall/internal/config"
	"github.com/farfarfun/funinstall/internal/installer"
	"github.com/farfarfun/funinstall/internal/logger"
	"github.com/farfarfun/funinstall/internal/packages"
	"github.com/farfarfun/funinstall/internal/platform"
)

// app bundles what every command needs: settings, the recipe catalog and the
// environment handed to installers.
type app struct {
	settings *config.Settings
	catalog  *config.Catalog
	env      packages.Env
}

// loadApp reads settings and the catalog for the current invocation.
func loadApp() (*app, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if used := config.ConfigFileUsed(); used != "" {
		logger.Debug("[DEBUG] Using config file %s\n", used)
	}
	catalog, err := config.LoadCatalog(settings.CatalogFile)
	if err != nil {
		return nil, err
	}
	return &app{
		settings: settings,
		catalog:  catalog,
		env: packages.Env{
			Settings:   settings,
			Platform:   platform.Current(),
			HTTPClient: &http.Client{},
			Runner:     installer.ExecRunner{},
		},
	}, nil
}

// newInstaller builds a fresh installer for name, resolving aliases and typos.
func (a *app) newInstaller(name string) (installer.Installer, config.Recipe, error) {
	recipe, err := packages.Lookup(a.catalog, name)
	if err != nil {
		return nil, config.Recipe{}, err
	}
	inst, err := packages.New(recipe, a.env)
	if err != nil {
		return nil, config.Recipe{}, err
	}
	return inst, recipe, nil
}

func (a *app) orchestrator() *installer.Orchestrator {
	return &installer.Orchestrator{StagingDir: a.settings.StagingDir}
}
