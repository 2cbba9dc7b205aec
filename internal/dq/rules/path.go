package rules

import (
	"path/filepath"
	"strings"
)

// ResolveFilePath resolves a rule's file source against the directory the
// rules file lives in. Paths that look absolute under any OS convention
// (Unix, Windows drive letters, UNC shares) pass through untouched, so a
// rules file written on one platform keeps working on another.
func ResolveFilePath(path, baseDir string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if isAbsoluteLike(path) || strings.TrimSpace(baseDir) == "" {
		return path
	}

	return filepath.Join(baseDir, path)
}

func isAbsoluteLike(path string) bool {
	if filepath.IsAbs(path) {
		return true
	}
	if strings.HasPrefix(path, `\\`) || strings.HasPrefix(path, `//`) {
		return true
	}
	if strings.HasPrefix(path, "/") {
		return true
	}
	if len(path) >= 3 && isASCIIAlpha(path[0]) && path[1] == ':' && (path[2] == '\\' || path[2] == '/') {
		return true
	}

	return false
}

func isASCIIAlpha(char byte) bool {
	return (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z')
}
