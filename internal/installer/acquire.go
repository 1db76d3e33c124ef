package installer

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/farfarfun/funinstall/internal/config"
	"github.com/farfarfun/funinstall/internal/logger"
	"github.com/farfarfun/funinstall/internal/source"
)

// Fetcher downloads artifacts into a staging directory with retries and checksum verification.
type Fetcher struct {
	Client *http.Client
	// Timeout bounds a whole acquisition, retries and checksum lookups included.
	Timeout time.Duration
	// Retries is how many times a failed request is repeated.
	Retries int
	// Backoff is the first retry delay; it doubles on every further attempt.
	Backoff time.Duration
}

// NewFetcher builds a Fetcher from the runtime settings.
func NewFetcher(s *config.Settings, client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		Client:  client,
		Timeout: s.HTTPTimeout,
		Retries: s.Retries,
		Backoff: s.RetryBackoff,
	}
}

// Acquire downloads the artifact of rv into stage and verifies it.
// A nil artifact fails with UnsupportedPlatformError before any request is made.
// A checksum mismatch deletes the download and fails with IntegrityError.
func (f *Fetcher) Acquire(ctx context.Context, rv ResolvedVersion, stage *Staging) (Staged, error) {
	if rv.Artifact == nil {
		return Staged{}, &StageError{
			Kind: KindUnsupportedPlatform,
			Err:  errors.Wrapf(ErrUnsupportedPlatform, "version %s for %s", rv.Version, rv.Platform),
		}
	}
	art := rv.Artifact

	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	dest := stage.Path(art.Filename)
	logger.Info("[INFO] Downloading %s\n", art.URL)
	sum, err := f.Download(ctx, art.URL, dest)
	if err != nil {
		return Staged{}, &StageError{Kind: KindAcquisition, Err: err}
	}

	expected := strings.ToLower(art.SHA256)
	if expected == "" && art.ChecksumURL != "" {
		list, err := f.Get(ctx, art.ChecksumURL)
		if err != nil {
			return Staged{}, &StageError{Kind: KindAcquisition, Err: errors.Wrap(err, "fetching checksums")}
		}
		var ok bool
		if expected, ok = lookupChecksum(list, art.Filename); !ok {
			logger.Warn("[WARN] %s lists no checksum for %s, skipping verification\n", art.ChecksumURL, art.Filename)
		}
	}

	if expected != "" {
		if sum != expected {
			_ = os.Remove(dest)
			return Staged{}, &StageError{
				Kind: KindIntegrity,
				Err:  errors.Wrapf(ErrChecksumMismatch, "%s: expected sha256 %s, got %s", art.Filename, expected, sum),
			}
		}
		logger.Debug("[DEBUG] Verified sha256 of %s\n", art.Filename)
	} else {
		logger.Debug("[DEBUG] No checksum published for %s\n", art.Filename)
	}

	return Staged{Version: rv, Path: dest, Dir: stage.Dir, SHA256: sum}, nil
}

// Download streams url into dest and returns its hex SHA-256.
// The body is written to dest+".part" and renamed once complete.
func (f *Fetcher) Download(ctx context.Context, url, dest string) (string, error) {
	var sum string
	err := f.retry(ctx, url, func() error {
		var err error
		sum, err = f.downloadOnce(ctx, url, dest)
		return err
	})
	return sum, err
}

// Get fetches a small document such as a checksum list.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := f.retry(ctx, url, func() error {
		body, err := f.open(ctx, url)
		if err != nil {
			return err
		}
		defer body.Close()
		data, err = io.ReadAll(io.LimitReader(body, 8<<20))
		return err
	})
	return data, err
}

// retry runs fn until it succeeds, fails permanently, or attempts run out.
// Transport errors, 5xx and 429 are retried with exponential backoff.
func (f *Fetcher) retry(ctx context.Context, url string, fn func() error) error {
	attempts := f.Retries + 1
	if attempts < 1 {
		attempts = 1
	}
	wait := f.Backoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !retryable(ctx, err) || attempt == attempts {
			break
		}
		logger.Warn("[WARN] Request to %s failed (%v), retrying in %s (%d/%d)\n", url, err, wait, attempt, f.Retries)
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "downloading %s", url)
		case <-time.After(wait):
		}
		wait *= 2
	}
	return errors.Wrapf(err, "downloading %s", url)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *source.StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return true
}

func (f *Fetcher) open(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %s", url)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &source.StatusError{URL: url, Code: resp.StatusCode}
	}
	return resp.Body, nil
}

func (f *Fetcher) downloadOnce(ctx context.Context, url, dest string) (string, error) {
	body, err := f.open(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	part := dest + ".part"
	out, err := os.OpenFile(part, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", errors.Wrapf(err, "creating %s", part)
	}

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, h), body); err != nil {
		out.Close()
		_ = os.Remove(part)
		return "", errors.Wrap(err, "writing download")
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(part)
		return "", errors.Wrapf(err, "closing %s", part)
	}
	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return "", errors.Wrapf(err, "renaming %s", part)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// lookupChecksum finds filename in a sha256sum-style list. A list holding a single bare
// digest (a per-file ".sha256" sidecar) applies to any file.
func lookupChecksum(list []byte, filename string) (string, bool) {
	var lines [][]string
	scanner := bufio.NewScanner(bytes.NewReader(list))
	for scanner.Scan() {
		if fields := strings.Fields(scanner.Text()); len(fields) > 0 {
			lines = append(lines, fields)
		}
	}

	for _, fields := range lines {
		if len(fields) < 2 {
			continue
		}
		name := strings.TrimPrefix(fields[len(fields)-1], "*")
		name = strings.TrimPrefix(name, "./")
		if name == filename && isSHA256(fields[0]) {
			return strings.ToLower(fields[0]), true
		}
	}
	if len(lines) == 1 && len(lines[0]) == 1 && isSHA256(lines[0][0]) {
		return strings.ToLower(lines[0][0]), true
	}
	return "", false
}

func isSHA256(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
