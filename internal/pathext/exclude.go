package pathext

import (
	"path"
	"strings"
)

// MatchesExclude reports whether name matches pattern. A pattern
// matches if it equals the full path or the basename, if it is a
// proper prefix of the path followed by "/", or if it contains a
// single "*" whose prefix/suffix split matches the full path or the
// basename.
func MatchesExclude(pattern, name string) bool {
	name = strings.TrimSuffix(name, "/")

	if pattern == name || pattern == path.Base(name) {
		return true
	}

	if strings.HasPrefix(name, pattern+"/") {
		return true
	}

	if i := strings.IndexByte(pattern, '*'); i >= 0 && strings.IndexByte(pattern[i+1:], '*') < 0 {
		prefix, suffix := pattern[:i], pattern[i+1:]

		if matchWildcard(prefix, suffix, name) || matchWildcard(prefix, suffix, path.Base(name)) {
			return true
		}
	}

	return false
}

func matchWildcard(prefix, suffix, name string) bool {
	return len(name) >= len(prefix)+len(suffix) && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix)
}

// MatchesAnyExclude reports whether name matches any of the patterns.
func MatchesAnyExclude(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if MatchesExclude(pattern, name) {
			return true
		}
	}

	return false
}
