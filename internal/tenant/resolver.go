// Package tenant derives tenant identity from the archive directory layout.
package tenant

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnresolved is returned when a path does not follow the tenant folder
// convention. The caller decides whether to fall back to a single-tenant
// default or skip the file; a wrong tenant is never silently assigned.
var ErrUnresolved = errors.New("tenant not resolvable from path")

// CodeLength is the fixed width of a tenant code.
const CodeLength = 8

// ValidCode reports whether s is an 8-digit numeric tenant code.
func ValidCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Resolve extracts the tenant code from a channel-root-relative path. The
// first path segment must be an 8-digit numeric folder name.
func Resolve(relPath string) (string, error) {
	rel := filepath.ToSlash(relPath)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return "", ErrUnresolved
	}

	first := rel
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		first = rel[:i]
	}
	if !ValidCode(first) {
		return "", fmt.Errorf("segment %q: %w", first, ErrUnresolved)
	}
	return first, nil
}

// DefaultName is the auto-created display name for a tenant first seen during
// an archive scan.
func DefaultName(code string) string {
	return "Mandant " + code
}
