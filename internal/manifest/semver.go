package manifest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// SemVer is a three part release version.
type SemVer struct {
	Major uint64
	Minor uint64
	Patch uint64
}

// ParseSemVer splits v on dots. Missing, negative or non-numeric parts are zero.
func ParseSemVer(v string) SemVer {
	parts := strings.Split(strings.TrimSpace(v), ".")
	nums := [3]uint64{}
	for i := 0; i < len(nums) && i < len(parts); i++ {
		n, err := strconv.ParseUint(strings.TrimSpace(parts[i]), 10, 64)
		if err != nil {
			continue
		}
		nums[i] = n
	}
	return SemVer{Major: nums[0], Minor: nums[1], Patch: nums[2]}
}

// ValidVersion reports whether v has the strict major.minor.patch form.
func ValidVersion(v string) bool {
	return versionPattern.MatchString(v)
}

func (s SemVer) String() string {
	return fmt.Sprintf("%d.%d.%d", s.Major, s.Minor, s.Patch)
}

// Compare returns -1, 0 or 1 ordering s against o by major, minor, then patch.
func (s SemVer) Compare(o SemVer) int {
	switch {
	case s.Major != o.Major:
		return cmpUint(s.Major, o.Major)
	case s.Minor != o.Minor:
		return cmpUint(s.Minor, o.Minor)
	default:
		return cmpUint(s.Patch, o.Patch)
	}
}

func (s SemVer) Less(o SemVer) bool {
	return s.Compare(o) < 0
}

// Bump increments the named part ("major", "minor" or "patch") and resets the lower ones.
func (s SemVer) Bump(part string) (SemVer, error) {
	switch strings.ToLower(part) {
	case "major":
		return SemVer{Major: s.Major + 1}, nil
	case "minor":
		return SemVer{Major: s.Major, Minor: s.Minor + 1}, nil
	case "patch", "":
		return SemVer{Major: s.Major, Minor: s.Minor, Patch: s.Patch + 1}, nil
	default:
		return s, fmt.Errorf("unknown version part %q", part)
	}
}

func cmpUint(a, b uint64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
