package state

import (
	"encoding/json" // For JSON encoding and decoding of the receipt file
	"os"            // For file system operations like reading and writing files
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/farfarfun/funinstall/internal/logger"
)

// ReceiptFile is the name of the version marker written next to an installed version.
const ReceiptFile = ".funinstall.json"

// ErrNoReceipt is returned by Load when the directory holds no receipt.
var ErrNoReceipt = errors.New("no install receipt")

// Receipt records what was placed into a version directory.
// It is the only identity the presence probe needs to read an installed version
// back without invoking the tool.
type Receipt struct {
	// Name is the package name from the catalog.
	Name string `json:"name"`
	// Version is the resolved version that was installed.
	Version string `json:"version"`
	// Platform is the os/arch the artifact was built for.
	Platform string `json:"platform"`
	// Source is the URL the artifact was fetched from.
	Source string `json:"source,omitempty"`
	// SHA256 is the checksum of the staged artifact, when one was verified.
	SHA256 string `json:"sha256,omitempty"`
	// Binaries maps link names to paths relative to the version directory.
	Binaries map[string]string `json:"binaries"`
	// Primary is the link name of the main executable.
	Primary string `json:"primary"`
	// InstalledAt is when placement committed.
	InstalledAt time.Time `json:"installed_at"`
}

// PrimaryPath returns the absolute path of the main executable inside dir.
func (r *Receipt) PrimaryPath(dir string) string {
	rel, ok := r.Binaries[r.Primary]
	if !ok {
		return ""
	}
	return filepath.Join(dir, rel)
}

// Load reads the receipt stored in dir.
// A missing file yields ErrNoReceipt; a corrupt file yields a wrapped decode error
// so the probe can treat the install as broken.
func Load(dir string) (*Receipt, error) {
	path := filepath.Join(dir, ReceiptFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoReceipt
		}
		return nil, errors.Wrapf(err, "reading receipt %s", path)
	}

	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(err, "parsing receipt %s", path)
	}
	if r.Version == "" {
		return nil, errors.Newf("receipt %s has no version", path)
	}
	if r.Binaries == nil {
		r.Binaries = make(map[string]string)
	}
	return &r, nil
}

// Save writes the receipt into dir using a temp file + rename so that an interrupted
// write never leaves a half-written marker behind.
func Save(dir string, r *Receipt) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling receipt")
	}
	data = append(data, '\n')

	logger.Debug("[DEBUG] Writing receipt to %s:\n%s", dir, string(data))
	return AtomicWriteFile(filepath.Join(dir, ReceiptFile), data, 0o644)
}

// AtomicWriteFile writes data to path via a temp file in the same directory and a rename.
// The caller is responsible for ensuring the parent directory exists.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".funinstall-atomic-*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tmpName := tmp.Name()
	defer func() {
		// Only still present when the rename did not happen.
		if _, statErr := os.Stat(tmpName); statErr == nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temp file")
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return errors.Wrap(err, "setting file permissions")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, "renaming temp file")
	}
	return nil
}
