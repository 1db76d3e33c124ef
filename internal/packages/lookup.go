package packages

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sahilm/fuzzy"

	"github.com/farfarfun/funinstall/internal/config"
)

const maxSuggestions = 3

// Lookup finds a recipe by name or alias. An unknown name carries a hint naming the
// closest catalog entries.
func Lookup(cat *config.Catalog, name string) (config.Recipe, error) {
	r, err := cat.Get(name)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, config.ErrUnknownPackage) {
		return config.Recipe{}, err
	}

	if s := Suggest(name, cat.Names()); len(s) > 0 {
		return config.Recipe{}, errors.WithHint(err, fmt.Sprintf("Did you mean: %s?", strings.Join(s, ", ")))
	}
	return config.Recipe{}, errors.WithHint(err, "Run 'funinstall list' to see the available packages")
}

// Suggest returns up to three names that fuzzy-match name, best first.
func Suggest(name string, names []string) []string {
	matches := fuzzy.Find(strings.ToLower(name), lowered(names))
	var out []string
	for _, m := range matches {
		out = append(out, names[m.Index])
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

func lowered(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToLower(n)
	}
	return out
}
