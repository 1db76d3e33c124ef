// Package platform describes the operating system and CPU architecture an
// artifact is built for, and the many spellings release pages use for them.
package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform is an OS/architecture pair using Go's GOOS/GOARCH names.
type Platform struct {
	OS   string
	Arch string
}

// Current returns the platform of the running binary.
func Current() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// Parse reads an "os/arch" string such as "linux/amd64".
// Aliases are accepted on both sides ("macos/aarch64" becomes darwin/arm64).
func Parse(s string) (Platform, error) {
	osPart, archPart, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || osPart == "" || archPart == "" {
		return Platform{}, fmt.Errorf("invalid platform %q, expected os/arch", s)
	}
	return Platform{OS: CanonicalOS(osPart), Arch: CanonicalArch(archPart)}, nil
}

// String renders the platform as "os/arch".
func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

// Matches reports whether an artifact built for (os, arch) runs on p.
// An empty os or arch on the artifact side means "any".
func (p Platform) Matches(os, arch string) bool {
	if os != "" && CanonicalOS(os) != p.OS {
		return false
	}
	if arch != "" && CanonicalArch(arch) != p.Arch {
		return false
	}
	return true
}

// osAliases maps Go OS names to the spellings seen in release asset names.
var osAliases = map[string][]string{
	"darwin":  {"darwin", "macos", "macOS", "osx", "apple", "mac"},
	"linux":   {"linux"},
	"windows": {"windows", "win64", "win32", "win"},
	"freebsd": {"freebsd"},
}

// archAliases maps Go architecture names to the spellings seen in release asset names.
// Order matters: longer, more specific spellings come first.
var archAliases = map[string][]string{
	"amd64": {"amd64", "x86_64", "x86-64", "x64", "64bit"},
	"arm64": {"arm64", "aarch64", "armv8"},
	"386":   {"386", "i386", "i686", "x86", "32bit"},
	"arm":   {"armv7l", "armv7", "armv6l", "armv6", "armhf", "arm"},
}

// OSAliases returns every known spelling for a Go OS name, the name itself first.
func OSAliases(goos string) []string {
	if a, ok := osAliases[goos]; ok {
		return a
	}
	return []string{goos}
}

// ArchAliases returns every known spelling for a Go architecture name, the name itself first.
func ArchAliases(goarch string) []string {
	if a, ok := archAliases[goarch]; ok {
		return a
	}
	return []string{goarch}
}

// CanonicalOS converts an alias such as "macos" or "osx" into its Go name.
// Unknown names are returned lower-cased.
func CanonicalOS(name string) string {
	lower := strings.ToLower(name)
	for goos, aliases := range osAliases {
		for _, a := range aliases {
			if strings.ToLower(a) == lower {
				return goos
			}
		}
	}
	return lower
}

// CanonicalArch converts an alias such as "x86_64" or "aarch64" into its Go name.
// Unknown names are returned lower-cased.
func CanonicalArch(name string) string {
	lower := strings.ToLower(name)
	for goarch, aliases := range archAliases {
		for _, a := range aliases {
			if a == lower {
				return goarch
			}
		}
	}
	return lower
}

// Detect guesses the platform an asset file name was built for.
// Tokens are split on '-', '_' and '.', so "frp_0.58.1_linux_amd64.tar.gz" yields linux/amd64.
// Either half may come back empty when the name does not mention it.
func Detect(filename string) (goos, goarch string) {
	tokens := strings.FieldsFunc(strings.ToLower(filename), func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
	// Re-join adjacent tokens so "x86_64" and "x86-64" are recognised.
	joined := make([]string, 0, len(tokens)*2)
	joined = append(joined, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		joined = append(joined, tokens[i]+"_"+tokens[i+1], tokens[i]+"-"+tokens[i+1])
	}

	for _, candidate := range []string{"darwin", "linux", "windows", "freebsd"} {
		if containsAny(joined, OSAliases(candidate)) {
			goos = candidate
			break
		}
	}
	for _, candidate := range []string{"amd64", "arm64", "386", "arm"} {
		if containsAny(joined, ArchAliases(candidate)) {
			goarch = candidate
			break
		}
	}
	return goos, goarch
}

func containsAny(tokens, aliases []string) bool {
	for _, tok := range tokens {
		for _, a := range aliases {
			if tok == strings.ToLower(a) {
				return true
			}
		}
	}
	return false
}
