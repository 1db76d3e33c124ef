package installer

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// NormalizeVersion trims whitespace and a leading "v" from a version tag.
func NormalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > 1 && (v[0] == 'v' || v[0] == 'V') && v[1] >= '0' && v[1] <= '9' {
		return v[1:]
	}
	return v
}

// CompareVersions orders two versions: -1 if a < b, 0 if equal, 1 if a > b.
// Semantic versions compare by semver rules; anything else (2.2.5.1, 1.21rc2) falls
// back to comparing numeric segments, with a trailing prerelease sorting first.
func CompareVersions(a, b string) int {
	a, b = NormalizeVersion(a), NormalizeVersion(b)
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	return compareLoose(a, b)
}

// SameVersion reports whether a and b name the same version ("1.22" equals "1.22.0").
func SameVersion(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return CompareVersions(a, b) == 0
}

// ParseConstraint parses a semver range such as "20.x", "^1.22" or ">=0.58, <0.60".
func ParseConstraint(s string) (*semver.Constraints, error) {
	return semver.NewConstraint(strings.TrimSpace(s))
}

// Satisfies reports whether an installed version fulfils a pinned request,
// either by being the same version or by matching it as a constraint.
func Satisfies(installed, requested string) bool {
	if SameVersion(installed, requested) {
		return true
	}
	if !IsConstraint(requested) {
		return false
	}
	c, err := ParseConstraint(requested)
	if err != nil {
		return false
	}
	v, err := semver.NewVersion(NormalizeVersion(installed))
	if err != nil {
		return false
	}
	return c.Check(v)
}

// IsConstraint reports whether s is a range rather than a single version.
func IsConstraint(s string) bool {
	if strings.ContainsAny(s, "^~<>=*|, ") {
		return true
	}
	for _, part := range strings.Split(s, ".") {
		if part == "x" || part == "X" {
			return true
		}
	}
	return false
}

func compareLoose(a, b string) int {
	na, pa := splitLoose(a)
	nb, pb := splitLoose(b)

	for i := 0; i < len(na) || i < len(nb); i++ {
		var x, y int
		if i < len(na) {
			x = na[i]
		}
		if i < len(nb) {
			y = nb[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}

	switch {
	case pa == pb:
		return 0
	case pa == "":
		return 1
	case pb == "":
		return -1
	}
	la, xa := splitPrerelease(pa)
	lb, xb := splitPrerelease(pb)
	if la != lb {
		return strings.Compare(la, lb)
	}
	switch {
	case xa < xb:
		return -1
	case xa > xb:
		return 1
	}
	return 0
}

// splitPrerelease splits "rc2" into "rc" and 2.
func splitPrerelease(p string) (string, int) {
	i := 0
	for i < len(p) && (p[i] < '0' || p[i] > '9') {
		i++
	}
	j := i
	for j < len(p) && p[j] >= '0' && p[j] <= '9' {
		j++
	}
	n, _ := strconv.Atoi(p[i:j])
	return strings.ToLower(strings.TrimRight(p[:i], "-.")), n
}

// splitLoose splits "1.21rc2" into [1 21] and "rc2".
func splitLoose(v string) ([]int, string) {
	var nums []int
	i := 0
	for i < len(v) {
		j := i
		for j < len(v) && v[j] >= '0' && v[j] <= '9' {
			j++
		}
		if j == i {
			break
		}
		n, _ := strconv.Atoi(v[i:j])
		nums = append(nums, n)
		i = j
		if i < len(v) && v[i] == '.' && i+1 < len(v) && v[i+1] >= '0' && v[i+1] <= '9' {
			i++
			continue
		}
		break
	}
	return nums, strings.TrimLeft(v[i:], "-+._")
}
