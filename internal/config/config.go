// Package config provides runtime settings (via Viper) and the package recipe catalog.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// AppName is the application name used for config, data and cache directories.
const AppName = "funinstall"

// Init registers config search paths, environment binding and defaults.
// Call this once at startup before Load.
func Init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Search paths (in order of precedence)
	viper.AddConfigPath(".")
	viper.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))

	viper.SetEnvPrefix("FUNINSTALL")
	viper.AutomaticEnv()
	_ = viper.BindEnv("github_token", "FUNINSTALL_GITHUB_TOKEN", "GITHUB_TOKEN")

	viper.SetDefault("install_root", filepath.Join(xdg.DataHome, AppName, "pkgs"))
	viper.SetDefault("bin_dir", filepath.Join(xdg.Home, ".local", "bin"))
	viper.SetDefault("staging_dir", filepath.Join(xdg.CacheHome, AppName, "staging"))
	viper.SetDefault("catalog_file", "")
	viper.SetDefault("http_timeout", "10m")
	viper.SetDefault("retries", 3)
	viper.SetDefault("retry_backoff", "1s")
}

// Load reads the configuration file and returns the merged settings.
// An explicit path must exist; without one a missing config file is fine and defaults apply.
func Load(path string) (*Settings, error) {
	if path != "" {
		viper.SetConfigFile(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}

	s.InstallRoot = expandHome(s.InstallRoot)
	s.BinDir = expandHome(s.BinDir)
	s.StagingDir = expandHome(s.StagingDir)
	s.CatalogFile = expandHome(s.CatalogFile)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks settings that would otherwise fail deep inside an install.
func (s *Settings) Validate() error {
	if s.InstallRoot == "" {
		return errors.WithHint(errors.New("install_root is empty"), "Set install_root in config.yaml or FUNINSTALL_INSTALL_ROOT")
	}
	if s.BinDir == "" {
		return errors.WithHint(errors.New("bin_dir is empty"), "Set bin_dir in config.yaml or FUNINSTALL_BIN_DIR")
	}
	if s.StagingDir == "" {
		return errors.New("staging_dir is empty")
	}
	if s.Retries < 0 {
		return errors.Newf("retries must not be negative, got %d", s.Retries)
	}
	if s.HTTPTimeout < 0 {
		return errors.Newf("http_timeout must not be negative, got %s", s.HTTPTimeout)
	}
	return nil
}

// ConfigFileUsed returns the config file Viper read, if any.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(path string) string {
	if path == "~" {
		return xdg.Home
	}
	if strings.HasPrefix(path, "~"+string(os.PathSeparator)) || strings.HasPrefix(path, "~/") {
		return filepath.Join(xdg.Home, path[2:])
	}
	return path
}
