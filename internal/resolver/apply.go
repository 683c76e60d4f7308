package resolver

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"

	"github.com/quarkusio/jbang-catalog/internal/descriptor"
	"github.com/quarkusio/jbang-catalog/internal/maven"
)

// Patterns is a compiled set of exclusion expressions. A version is excluded
// when one expression matches the whole string; a partial match does not count.
type Patterns []*regexp.Regexp

// CompilePatterns anchors and compiles each expression.
func CompilePatterns(exprs []string) (Patterns, error) {
	out := make(Patterns, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(`^(?:` + expr + `)$`)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude-versions pattern %q: %w", expr, err)
		}

		out = append(out, re)
	}

	return out, nil
}

// Match reports whether version is excluded.
func (p Patterns) Match(version string) bool {
	for _, re := range p {
		if re.MatchString(version) {
			return true
		}
	}

	return false
}

// Apply folds an upstream version list (oldest first, as listed in
// maven-metadata.xml) into the current entries:
//
//  1. the list is reversed to newest first;
//  2. only the first version seen per (major, minor) bucket is kept;
//     versions without a numeric major are kept and never bucketed;
//  3. excluded versions are dropped;
//  4. entries already present keep their metadata, others are bare.
//
// New holds the kept versions that were not in current.
func Apply(upstream []string, current []descriptor.VersionEntry, excludes Patterns, logger *slog.Logger) *Result {
	if logger == nil {
		logger = slog.Default()
	}

	prior := make(map[string]descriptor.VersionEntry, len(current))
	for _, e := range current {
		if _, dup := prior[e.Value]; !dup {
			prior[e.Value] = e
		}
	}

	res := &Result{}
	for _, v := range latestPerBucket(upstream, logger) {
		if excludes.Match(v) {
			continue
		}

		if e, ok := prior[v]; ok {
			res.Versions = append(res.Versions, e)
			continue
		}

		res.Versions = append(res.Versions, descriptor.NewVersionEntry(v))
		res.New = append(res.New, v)
	}

	return res
}

// latestPerBucket reverses upstream and keeps the first version of each
// (major, minor) bucket. Duplicates of a version string are dropped.
func latestPerBucket(upstream []string, logger *slog.Logger) []string {
	newestFirst := slices.Clone(upstream)
	slices.Reverse(newestFirst)

	kept := make(map[maven.Bucket]maven.Version)
	seen := make(map[string]bool, len(newestFirst))
	out := make([]string, 0, len(newestFirst))

	for _, raw := range newestFirst {
		if seen[raw] {
			continue
		}

		seen[raw] = true

		v := maven.ParseVersion(raw)

		b, ok := v.Bucket()
		if !ok {
			out = append(out, raw)
			continue
		}

		if first, dup := kept[b]; dup {
			if c, ok := maven.Compare(v, first); ok && c > 0 {
				logger.Warn("upstream metadata is not ordered; keeping first version listed for bucket",
					"kept", first.String(), "newer", raw, "bucket", fmt.Sprintf("%d.%d", b.Major, b.Minor))
			}

			continue
		}

		kept[b] = v
		out = append(out, raw)
	}

	return out
}
