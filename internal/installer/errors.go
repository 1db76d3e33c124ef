package installer

import (
	"github.com/cockroachdb/errors"
)

// Kind classifies the step an install failed in.
type Kind string

const (
	KindResolution          Kind = "ResolutionError"
	KindUnsupportedPlatform Kind = "UnsupportedPlatformError"
	KindAcquisition         Kind = "AcquisitionError"
	KindIntegrity           Kind = "IntegrityError"
	KindPlacement           Kind = "PlacementError"
	KindVerification        Kind = "VerificationError"
	KindProbe               Kind = "ProbeError"
)

var (
	// ErrVersionNotFound is a ResolutionError: the pinned version does not exist.
	ErrVersionNotFound = errors.New("version not found")
	// ErrNoReleases is a ResolutionError: no release has an artifact for this platform.
	ErrNoReleases = errors.New("no release available for this platform")
	// ErrUnsupportedPlatform means the resolved version ships nothing for this OS/arch.
	ErrUnsupportedPlatform = errors.New("no artifact for this platform")
	// ErrChecksumMismatch means the downloaded artifact does not match its published digest.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrNotVerified means the post-install probe did not find the expected version.
	ErrNotVerified = errors.New("installed package could not be verified")
)

// StageError attaches a Kind to the error of a failed install step.
type StageError struct {
	Kind Kind
	Err  error
}

func (e *StageError) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind carried by err, or "" when err was never classified.
func KindOf(err error) Kind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// classify wraps err in a StageError of kind unless a step already classified it.
func classify(kind Kind, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	return &StageError{Kind: kind, Err: err}
}
