package config

import "time"

// Settings holds the resolved runtime configuration.
// Values come from flags, FUNINSTALL_* environment variables, the config file and defaults,
// in that order of precedence.
type Settings struct {
	InstallRoot  string        `mapstructure:"install_root"`
	BinDir       string        `mapstructure:"bin_dir"`
	StagingDir   string        `mapstructure:"staging_dir"`
	CatalogFile  string        `mapstructure:"catalog_file"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
	Retries      int           `mapstructure:"retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	GitHubToken  string        `mapstructure:"github_token"`
}

// Recipe kinds select the installer variant.
const (
	KindArchive = "archive" // Release archive or raw binary placed into a versioned directory
	KindScript  = "script"  // Installer script executed with sh
	KindSystem  = "system"  // OS package manager (apt, dnf, brew, ...)
)

// Source types select the version source.
const (
	SourceGitHub = "github"
	SourceGo     = "golang"
	SourceNode   = "nodejs"
	SourceStatic = "static"
)

// Recipe describes how one package is resolved, fetched, placed and probed.
// Recipes are pure data; the installer core never hard-codes a package.
type Recipe struct {
	Name        string   `yaml:"name" toml:"name"`
	Aliases     []string `yaml:"aliases,omitempty" toml:"aliases,omitempty"`
	Description string   `yaml:"description,omitempty" toml:"description,omitempty"`
	Kind        string   `yaml:"kind" toml:"kind"`

	Source SourceSpec `yaml:"source" toml:"source"`

	// Binary is the primary executable name; it is also what the probe looks for on PATH.
	Binary string `yaml:"binary" toml:"binary"`
	// Links maps shim names in the bin dir to paths inside the installed version.
	// When empty, the binary is searched for in the extracted content.
	Links map[string]string `yaml:"links,omitempty" toml:"links,omitempty"`

	VersionArgs    []string `yaml:"version_args,omitempty" toml:"version_args,omitempty"`
	VersionPattern string   `yaml:"version_pattern,omitempty" toml:"version_pattern,omitempty"`
	SearchPaths    []string `yaml:"search_paths,omitempty" toml:"search_paths,omitempty"`

	Versions []StaticVersion   `yaml:"versions,omitempty" toml:"versions,omitempty"`
	Script   ScriptSpec        `yaml:"script,omitempty" toml:"script,omitempty"`
	Packages map[string]string `yaml:"packages,omitempty" toml:"packages,omitempty"`
}

// SourceSpec configures the version source of a recipe.
type SourceSpec struct {
	Type  string `yaml:"type" toml:"type"`
	Repo  string `yaml:"repo,omitempty" toml:"repo,omitempty"`
	URL   string `yaml:"url,omitempty" toml:"url,omitempty"`
	Limit int    `yaml:"limit,omitempty" toml:"limit,omitempty"`
	// Assets maps "os/arch" to a regular expression selecting the asset name.
	Assets map[string]string `yaml:"assets,omitempty" toml:"assets,omitempty"`
}

// StaticVersion is one row of a static version table.
type StaticVersion struct {
	Version string `yaml:"version" toml:"version"`
	Stable  *bool  `yaml:"stable,omitempty" toml:"stable,omitempty"`
	URL     string `yaml:"url" toml:"url"`
	SHA256  string `yaml:"sha256,omitempty" toml:"sha256,omitempty"`
	// Platforms limits the row to "os/arch" entries; empty means any platform.
	Platforms []string `yaml:"platforms,omitempty" toml:"platforms,omitempty"`
}

// ScriptSpec configures an installer-script recipe.
type ScriptSpec struct {
	Args []string          `yaml:"args,omitempty" toml:"args,omitempty"`
	Env  map[string]string `yaml:"env,omitempty" toml:"env,omitempty"`
}

// Manifest is a flat list of packages consumed by the sync command.
type Manifest struct {
	Tools []ManifestEntry `yaml:"tools"`
}

// ManifestEntry is one package of a sync manifest.
type ManifestEntry struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version,omitempty"`
	Latest  bool   `yaml:"latest,omitempty"`
	Update  bool   `yaml:"update,omitempty"`
}
