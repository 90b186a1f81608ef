package utils

import (
	"path"
	"strings"
)

// CleanCatalogPath normalizes a slash separated catalog path: it always
// starts with "/" and never ends with one, except for the root itself.
func CleanCatalogPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

// HasPathPrefix reports whether p equals prefix or lies below it. Matching is
// by whole segments, so "/music" does not cover "/musicals".
func HasPathPrefix(p, prefix string) bool {
	p = CleanCatalogPath(p)
	prefix = CleanCatalogPath(prefix)

	if prefix == "/" || p == prefix {
		return true
	}
	return strings.HasPrefix(p, prefix+"/")
}

// RelativeTo returns p relative to prefix as a slash path without a leading
// slash. The second result is false when p is not under prefix.
func RelativeTo(p, prefix string) (string, bool) {
	if !HasPathPrefix(p, prefix) {
		return "", false
	}
	p = CleanCatalogPath(p)
	prefix = CleanCatalogPath(prefix)
	if p == prefix {
		return "", true
	}
	if prefix == "/" {
		return p[1:], true
	}
	return p[len(prefix)+1:], true
}
