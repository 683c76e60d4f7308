package maven

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Version is a Maven artifact version split into its numeric components and
// qualifier, following the layout Maven's default artifact version uses:
// up to three dot-separated numbers, then a qualifier introduced by '.' or '-'.
type Version struct {
	raw       string
	nums      []int
	qualifier string
}

// Bucket is the release line a version belongs to.
type Bucket struct {
	Major int
	Minor int
}

// nonFinalPrefixes are upper-case qualifier prefixes that mark a pre-release.
var nonFinalPrefixes = []string{"ALPHA", "BETA", "CR"}

// releaseQualifiers are qualifiers Maven treats as a plain release.
var releaseQualifiers = map[string]bool{"FINAL": true, "GA": true, "RELEASE": true}

// ParseVersion never fails. A version whose leading component is not numeric
// is kept whole as its qualifier and has no bucket.
func ParseVersion(s string) Version {
	v := Version{raw: s}

	main, qualifier := s, ""
	if i := strings.IndexByte(s, '-'); i >= 0 {
		main, qualifier = s[:i], s[i+1:]
	}

	parts := strings.Split(main, ".")
	for i, p := range parts {
		n, ok := atoi(p)
		if !ok || len(v.nums) == 3 {
			qualifier = joinQualifier(strings.Join(parts[i:], "."), qualifier)
			break
		}

		v.nums = append(v.nums, n)
	}

	if len(v.nums) == 0 {
		v.qualifier = s
		return v
	}

	v.qualifier = qualifier

	return v
}

func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}

	return n, true
}

func joinQualifier(rest, qualifier string) string {
	switch {
	case rest == "":
		return qualifier
	case qualifier == "":
		return rest
	default:
		return rest + "-" + qualifier
	}
}

// String returns the version exactly as it was parsed.
func (v Version) String() string {
	return v.raw
}

// Qualifier returns the non-numeric suffix, or "" for a plain numeric version.
func (v Version) Qualifier() string {
	return v.qualifier
}

// Numeric reports whether the version starts with a numeric component.
func (v Version) Numeric() bool {
	return len(v.nums) > 0
}

// Bucket returns the (major, minor) release line. ok is false when the
// version has no numeric major component.
func (v Version) Bucket() (Bucket, bool) {
	if !v.Numeric() {
		return Bucket{}, false
	}

	return Bucket{Major: v.component(0), Minor: v.component(1)}, true
}

func (v Version) component(i int) int {
	if i < len(v.nums) {
		return v.nums[i]
	}

	return 0
}

// IsFinal reports whether the qualifier, compared case-insensitively, does not
// start with ALPHA, BETA or CR. A version with no qualifier is final.
func (v Version) IsFinal() bool {
	q := strings.TrimSpace(v.qualifier)
	if q == "" {
		return true
	}

	q = cases.Upper(language.Und).String(q)
	for _, prefix := range nonFinalPrefixes {
		if strings.HasPrefix(q, prefix) {
			return false
		}
	}

	return true
}

// IsFinal is shorthand for ParseVersion(s).IsFinal().
func IsFinal(s string) bool {
	return ParseVersion(s).IsFinal()
}

// Semver converts v to a semantic version for ordering. Release qualifiers
// (Final, GA, RELEASE) map to a plain release; any other qualifier becomes
// the pre-release part. ok is false for non-numeric versions.
func (v Version) Semver() (*semver.Version, bool) {
	if !v.Numeric() {
		return nil, false
	}

	pre := v.qualifier
	if releaseQualifiers[cases.Upper(language.Und).String(pre)] {
		pre = ""
	}

	return semver.New(uint64(v.component(0)), uint64(v.component(1)), uint64(v.component(2)), pre, ""), true //nolint:gosec // components are parsed from digits only
}

// Compare orders two versions by semantic version precedence. ok is false
// when either side cannot be ordered.
func Compare(a, b Version) (result int, ok bool) {
	sa, okA := a.Semver()
	sb, okB := b.Semver()
	if !okA || !okB {
		return 0, false
	}

	return sa.Compare(sb), true
}
