package manifest

import "strings"

const tagSeparator = "_"

// VersionTag is "{version}_{manifestDigest}". Two tags are equal only if the strings are.
type VersionTag string

func NewVersionTag(version, digest string) VersionTag {
	return VersionTag(version + tagSeparator + digest)
}

// ParseVersionTag trims surrounding whitespace from a stored tag.
func ParseVersionTag(s string) VersionTag {
	return VersionTag(strings.TrimSpace(s))
}

func (t VersionTag) String() string {
	return string(t)
}

func (t VersionTag) IsZero() bool {
	return t == ""
}

// Version is the part before the first separator, or the whole tag if there is none.
func (t VersionTag) Version() string {
	v, _, _ := strings.Cut(string(t), tagSeparator)
	return v
}

// Digest is the manifest digest after the first separator.
func (t VersionTag) Digest() string {
	_, d, _ := strings.Cut(string(t), tagSeparator)
	return d
}

func (t VersionTag) SemVer() SemVer {
	return ParseSemVer(t.Version())
}

// Short is the display form: version plus the last six digest characters.
func (t VersionTag) Short() string {
	s := string(t)
	v, d, ok := strings.Cut(s, tagSeparator)
	if !ok {
		return lastN(s, 6)
	}
	return v + tagSeparator + lastN(d, 6)
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
