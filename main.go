package main

import (
	"github.com/farfarfun/funinstall/cmd" // Import the cmd package which contains the CLI commands and execution logic
)

// main is the program entry point.
// It delegates to cmd.Execute() which handles command line argument parsing and execution.
//
// funinstall installs developer tools and runtimes from their upstream release channels:
//   - Package recipes (built-in catalog.yaml plus an optional user catalog) describe where
//     versions come from and how an artifact becomes an installed tool
//   - Every install follows the same protocol: probe what is present, resolve a version,
//     download and verify the artifact, place it, then probe again to confirm
//   - Archives are unpacked into versioned directories with a `current` link and shims in the
//     bin directory, so switching versions never leaves a half-written install behind
//   - Installer scripts and system package managers are driven through the same protocol
//
// A failed step stops the install and is reported with its kind (ResolutionError,
// IntegrityError, ...); the process exits with a non-zero status.
func main() {
	cmd.Execute()
}
