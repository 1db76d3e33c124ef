package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/farfarfun/funinstall/internal/logger"
	"github.com/farfarfun/funinstall/internal/platform"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// ErrUnknownPackage is returned by Catalog.Get for names that match no recipe.
var ErrUnknownPackage = errors.New("unknown package")

// catalogFile is the on-disk shape of a catalog in YAML or TOML.
type catalogFile struct {
	Packages []Recipe `yaml:"packages" toml:"packages"`
}

// Catalog is an ordered, name-indexed set of recipes.
type Catalog struct {
	recipes []Recipe
}

// Builtin returns the catalog shipped inside the binary.
func Builtin() (*Catalog, error) {
	recipes, err := ParseCatalog(builtinCatalog, "yaml")
	if err != nil {
		return nil, errors.Wrap(err, "parsing built-in catalog")
	}
	return NewCatalog(recipes)
}

// LoadCatalog returns the built-in catalog with the recipes of the file at path layered on top.
// Recipes in the file replace built-ins of the same name. An empty path returns the built-ins.
func LoadCatalog(path string) (*Catalog, error) {
	c, err := Builtin()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading catalog %s", path)
	}

	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = "toml"
	}
	user, err := ParseCatalog(data, format)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing catalog %s", path)
	}

	for _, r := range user {
		logger.Debug("[DEBUG] Catalog %s provides recipe %s\n", path, r.Name)
	}
	return c.Merge(user)
}

// ParseCatalog decodes recipes from YAML or TOML and validates each of them.
func ParseCatalog(data []byte, format string) ([]Recipe, error) {
	var f catalogFile
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, errors.Wrap(err, "decoding yaml")
		}
	case "toml":
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, errors.Wrap(err, "decoding toml")
		}
	default:
		return nil, errors.Newf("unsupported catalog format %q", format)
	}

	for i := range f.Packages {
		if err := f.Packages[i].Validate(); err != nil {
			return nil, err
		}
	}
	return f.Packages, nil
}

// NewCatalog builds a catalog, rejecting names or aliases that two recipes share.
// Lookups ignore case, so an alias that only differs from its own recipe name in case
// (v2rayA / v2raya) is allowed.
func NewCatalog(recipes []Recipe) (*Catalog, error) {
	c := &Catalog{}
	seen := make(map[string]string)
	for _, r := range recipes {
		own := make(map[string]bool)
		for _, key := range append([]string{r.Name}, r.Aliases...) {
			k := strings.ToLower(key)
			if own[k] {
				continue
			}
			own[k] = true
			if owner, dup := seen[k]; dup {
				return nil, errors.Newf("catalog: %q of recipe %s already used by %s", key, r.Name, owner)
			}
			seen[k] = r.Name
		}
		c.recipes = append(c.recipes, r)
	}
	return c, nil
}

// Merge returns a new catalog where the given recipes replace existing ones by name
// and are appended otherwise.
func (c *Catalog) Merge(recipes []Recipe) (*Catalog, error) {
	merged := make([]Recipe, len(c.recipes))
	copy(merged, c.recipes)

	for _, r := range recipes {
		replaced := false
		for i := range merged {
			if strings.EqualFold(merged[i].Name, r.Name) {
				merged[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, r)
		}
	}
	return NewCatalog(merged)
}

// Get finds a recipe by name or alias, ignoring case.
func (c *Catalog) Get(name string) (Recipe, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, r := range c.recipes {
		if strings.ToLower(r.Name) == want {
			return r, nil
		}
		for _, a := range r.Aliases {
			if strings.ToLower(a) == want {
				return r, nil
			}
		}
	}
	return Recipe{}, errors.Wrapf(ErrUnknownPackage, "%q", name)
}

// Names returns every recipe name, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.recipes))
	for _, r := range c.recipes {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// Recipes returns the recipes in catalog order.
func (c *Catalog) Recipes() []Recipe {
	out := make([]Recipe, len(c.recipes))
	copy(out, c.recipes)
	return out
}

// Validate checks that a recipe carries everything its kind and source need.
func (r *Recipe) Validate() error {
	if r.Name == "" {
		return errors.New("recipe: name is required")
	}
	if r.Binary == "" {
		return errors.Newf("recipe %s: binary is required", r.Name)
	}

	switch r.Kind {
	case KindArchive, KindScript:
		if err := r.Source.validate(r.Name, r.Versions); err != nil {
			return err
		}
	case KindSystem:
		if len(r.Packages) == 0 {
			return errors.Newf("recipe %s: system recipes need packages", r.Name)
		}
	default:
		return errors.Newf("recipe %s: unknown kind %q", r.Name, r.Kind)
	}

	if r.Kind == KindScript && r.Source.Type != SourceStatic {
		return errors.Newf("recipe %s: script recipes need a static source", r.Name)
	}
	if r.VersionPattern != "" {
		if _, err := regexp.Compile(r.VersionPattern); err != nil {
			return errors.Wrapf(err, "recipe %s: version_pattern", r.Name)
		}
	}
	return nil
}

func (s *SourceSpec) validate(name string, versions []StaticVersion) error {
	switch s.Type {
	case SourceGitHub:
		if owner, repo, ok := strings.Cut(s.Repo, "/"); !ok || owner == "" || repo == "" {
			return errors.Newf("recipe %s: github source needs repo as owner/name, got %q", name, s.Repo)
		}
		for plat, expr := range s.Assets {
			if _, err := platform.Parse(plat); err != nil {
				return errors.Wrapf(err, "recipe %s: assets", name)
			}
			if _, err := regexp.Compile(expr); err != nil {
				return errors.Wrapf(err, "recipe %s: asset pattern for %s", name, plat)
			}
		}
	case SourceGo, SourceNode:
	case SourceStatic:
		if len(versions) == 0 {
			return errors.Newf("recipe %s: static source needs versions", name)
		}
		for _, v := range versions {
			if v.Version == "" || v.URL == "" {
				return errors.Newf("recipe %s: static versions need version and url", name)
			}
			for _, p := range v.Platforms {
				if _, err := platform.Parse(p); err != nil {
					return errors.Wrapf(err, "recipe %s: version %s", name, v.Version)
				}
			}
		}
	default:
		return errors.Newf("recipe %s: unknown source type %q", name, s.Type)
	}
	return nil
}

// LoadManifest reads a sync manifest listing packages to install.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest %s", path)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "parsing manifest %s", path)
	}
	for i, t := range m.Tools {
		if t.Name == "" {
			return nil, errors.Newf("manifest %s: entry %d has no name", path, i+1)
		}
	}
	return &m, nil
}
