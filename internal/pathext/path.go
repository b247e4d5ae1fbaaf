package pathext

import "strings"

func IsRoot(path string, trim bool) bool {
	if trim && len(strings.TrimSpace(path)) == 0 {
		return true
	}

	return path == "" || path == "." || path == "/" || path == "./"
}

// MakeRelative strips leading "/" and "../" elements unless absolute
// names are allowed, the way tar sanitizes member names.
func MakeRelative(path string, allowAbsolute bool) string {
	if allowAbsolute {
		return path
	}

	for strings.HasPrefix(path, "/") {
		path = strings.TrimPrefix(path, "/")
	}

	for strings.HasPrefix(path, "../") {
		path = strings.TrimPrefix(path, "../")
	}

	return path
}

// StripComponents drops the first n slash-separated components. The
// second return is false if the path has n or fewer components left.
func StripComponents(path string, n uint32) (string, bool) {
	if n == 0 {
		return path, true
	}

	trailingSlash := strings.HasSuffix(path, "/")

	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if uint32(len(parts)) <= n {
		return "", false
	}

	out := strings.Join(parts[n:], "/")
	if trailingSlash {
		out += "/"
	}

	return out, true
}
