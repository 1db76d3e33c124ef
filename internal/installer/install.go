// Package installer implements the install protocol shared by every package:
// probe, resolve, acquire, place and verify, composed into Orchestrator.Install.
package installer

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/farfarfun/funinstall/internal/logger"
)

// Orchestrator runs the install protocol for any Installer.
type Orchestrator struct {
	// StagingDir is the root under which per-install staging directories are created.
	StagingDir string
}

// Install brings the environment to the state req asks for and reports how it went.
//
// It probes first and returns a skipped success when nothing needs to change. Otherwise it
// resolves, acquires into a fresh staging directory, places, and probes again. Any failure
// stops the run and is reported with the Kind of the failing step. The staging directory is
// always removed.
func (o *Orchestrator) Install(ctx context.Context, inst Installer, req Request) (out Outcome) {
	stage := "probe"
	defer func() {
		if r := recover(); r != nil {
			out = fail(kindForStage(stage), errors.Newf("panic during %s: %v", stage, r))
		}
	}()

	name := inst.Name()
	logger.Debug("[DEBUG] Installing %s (mode %s, version %q, force %t)\n", name, req.Mode, req.Version, req.Force)

	installed, err := inst.ProbePresence(ctx)
	if err != nil {
		return fail(KindProbe, err)
	}
	if installed.Present && !req.Force {
		switch {
		case req.Mode == ModeLatest:
			logger.Info("[INFO] %s %s is already installed. Skipping.\n", name, installed.Version)
			return skipped(installed.Version)
		case req.Mode == ModePinned && Satisfies(installed.Version, req.Version):
			logger.Info("[INFO] %s %s satisfies %s. Skipping.\n", name, installed.Version, req.Version)
			return skipped(installed.Version)
		}
	}

	stage = "resolve"
	rv, err := inst.ResolveVersion(ctx, req)
	if err != nil {
		return fail(KindResolution, err)
	}
	logger.Info("[INFO] Resolved %s to version %s\n", name, displayVersion(rv))

	if req.Mode == ModeUpdate && installed.Present && !req.Force && !rv.Floating && SameVersion(installed.Version, rv.Version) {
		logger.Info("[INFO] %s is already at %s. Skipping.\n", name, installed.Version)
		return skipped(installed.Version)
	}

	stage = "acquire"
	staging, err := NewStaging(o.StagingDir, name)
	if err != nil {
		return fail(KindAcquisition, err)
	}
	defer func() {
		if err := staging.Release(); err != nil {
			logger.Warn("[WARN] %v\n", err)
		}
	}()

	staged, err := inst.Acquire(ctx, rv, staging)
	if err != nil {
		return fail(KindAcquisition, err)
	}

	stage = "place"
	err = inst.Place(ctx, staged)
	if relErr := staging.Release(); relErr != nil {
		logger.Warn("[WARN] %v\n", relErr)
	}
	if err != nil {
		return fail(KindPlacement, err)
	}

	stage = "verify"
	after, err := inst.ProbePresence(ctx)
	if err != nil {
		return fail(KindProbe, err)
	}
	if !after.Present {
		return fail(KindVerification, errors.Wrapf(ErrNotVerified, "%s is not present after install", name))
	}
	if !rv.Floating && !SameVersion(after.Version, rv.Version) {
		return fail(KindVerification, errors.Wrapf(ErrNotVerified,
			"%s reports version %q, expected %s (found at %s)", name, after.Version, rv.Version, after.Path))
	}

	version := rv.Version
	if rv.Floating {
		version = after.Version
	}
	logger.Info("[INFO] %s %s is ready\n", name, version)
	return Outcome{Succeeded: true, Version: version}
}

func skipped(version string) Outcome {
	return Outcome{Succeeded: true, Skipped: true, Version: version}
}

func fail(kind Kind, err error) Outcome {
	se := classify(kind, err)
	return Outcome{Kind: se.Kind, Err: se}
}

func kindForStage(stage string) Kind {
	switch stage {
	case "resolve":
		return KindResolution
	case "acquire":
		return KindAcquisition
	case "place":
		return KindPlacement
	case "verify":
		return KindVerification
	default:
		return KindProbe
	}
}

func displayVersion(rv ResolvedVersion) string {
	if rv.Floating {
		return fmt.Sprintf("%s (floating)", rv.Version)
	}
	return rv.Version
}
