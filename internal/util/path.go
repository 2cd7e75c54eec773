package util

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// NormalizeRelPath turns a request path into a clean slash-separated path
// relative to a root.
func NormalizeRelPath(p string) string {
	clean := strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	clean = strings.TrimPrefix(clean, "./")
	if clean == "." || clean == "/" {
		return ""
	}
	clean = strings.TrimPrefix(path.Clean("/"+clean), "/")
	if clean == "." {
		return ""
	}
	return clean
}

func absPath(p string) (string, error) {
	a, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(a), nil
}

func symlinkAwarePath(p string) string {
	real, err := filepath.EvalSymlinks(p)
	if err != nil {
		return p
	}
	return real
}

func withinRoot(root, target string) bool {
	if root == target {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(target, root+sep)
}

// SafeJoin resolves rel under root. Paths that leave root, directly or
// through a symlink, are rejected.
func SafeJoin(root, rel string) (string, error) {
	if strings.ContainsRune(rel, '\x00') {
		return "", errors.New("invalid path")
	}
	normalized := NormalizeRelPath(rel)
	rootAbs, err := absPath(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	joined := filepath.Join(rootAbs, filepath.FromSlash(normalized))
	joinedAbs, err := absPath(joined)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if !withinRoot(rootAbs, joinedAbs) {
		return "", errors.New("path escapes root")
	}

	rootReal := symlinkAwarePath(rootAbs)
	targetReal := joinedAbs
	if _, err := os.Stat(joinedAbs); err == nil {
		targetReal = symlinkAwarePath(joinedAbs)
	} else {
		// Missing targets are checked through their parent.
		parent := symlinkAwarePath(filepath.Dir(joinedAbs))
		if !withinRoot(rootReal, parent) {
			return "", errors.New("path escapes root via symlink")
		}
	}
	if !withinRoot(rootReal, targetReal) {
		return "", errors.New("path escapes root via symlink")
	}
	return joinedAbs, nil
}
