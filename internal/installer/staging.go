package installer

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/oklog/ulid/v2"

	"github.com/farfarfun/funinstall/internal/logger"
)

// staleAfter is how old an abandoned staging or incoming directory must be before it is pruned.
const staleAfter = 24 * time.Hour

// Staging is an isolated, package-scoped scratch directory for one install.
// Its name is a ULID so concurrent or interrupted runs never share a directory.
type Staging struct {
	Dir string
}

// NewStaging creates <root>/<name>/<ULID> and prunes stale siblings left by earlier runs.
func NewStaging(root, name string) (*Staging, error) {
	parent := filepath.Join(root, name)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating staging root %s", parent)
	}
	pruneStale(parent, "")

	dir := filepath.Join(parent, ulid.Make().String())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, errors.Wrapf(err, "creating staging directory %s", dir)
	}
	logger.Debug("[DEBUG] Staging %s in %s\n", name, dir)
	return &Staging{Dir: dir}, nil
}

// Path returns the location of filename inside the staging directory.
func (s *Staging) Path(filename string) string {
	return filepath.Join(s.Dir, filepath.Base(filename))
}

// Release deletes the staging directory. It is safe to call more than once.
func (s *Staging) Release() error {
	if err := os.RemoveAll(s.Dir); err != nil {
		return errors.Wrapf(err, "removing staging directory %s", s.Dir)
	}
	// Drop the package directory too once the last run is gone.
	_ = os.Remove(filepath.Dir(s.Dir))
	return nil
}

// pruneStale removes entries of dir named prefix+ULID whose ULID is older than staleAfter.
func pruneStale(dir, prefix string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-staleAfter)
	for _, e := range entries {
		name := e.Name()
		if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
			continue
		}
		id, err := ulid.ParseStrict(name[len(prefix):])
		if err != nil {
			continue
		}
		if ulid.Time(id.Time()).Before(cutoff) {
			logger.Debug("[DEBUG] Pruning stale %s\n", filepath.Join(dir, name))
			_ = os.RemoveAll(filepath.Join(dir, name))
		}
	}
}
