// Package security validates the file paths and filenames that arrive from
// users: the shell's file commands and identifiers embedded in download
// names.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// canonicalize resolves path to its symlink-free absolute form. For a path
// that does not exist yet, the longest existing ancestor is resolved and the
// remaining components are appended, so a symlinked parent cannot smuggle
// the path out of its directory.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rel, err := filepath.Rel(dir, abs)
			if err != nil {
				return abs, nil
			}
			return filepath.Join(resolved, rel), nil
		}
		if dir == filepath.Dir(dir) {
			// Walked to the root without an existing ancestor.
			return abs, nil
		}
	}
}

// ValidatePathWithinDirectory checks that filePath stays inside safeDir once
// cleaned and with symlinks resolved. Escaping by dot-dot segments or by a
// symlinked parent is an error.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	path, err := canonicalize(filePath)
	if err != nil {
		return err
	}

	absSafe, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("resolve safe directory path: %w", err)
	}
	safe, err := filepath.EvalSymlinks(absSafe)
	if err != nil {
		return fmt.Errorf("resolve safe directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(safe, path)
	if err != nil {
		return fmt.Errorf("path is outside safe directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", filePath, safeDir)
	}
	return nil
}

// ValidatePathWithinAllowedDirs accepts filePath when it is inside any of
// allowedDirs.
func ValidatePathWithinAllowedDirs(filePath string, allowedDirs []string) error {
	if len(allowedDirs) == 0 {
		return fmt.Errorf("no allowed directories specified")
	}
	for _, dir := range allowedDirs {
		if ValidatePathWithinDirectory(filePath, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("path must be within one of the allowed directories: %v", allowedDirs)
}

// ValidateLocalPath validates a path handed to a file command, such as the
// shell's sendfile and recvfile. Only the temp directory and the current
// working directory are reachable.
func ValidateLocalPath(filePath string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	return ValidatePathWithinAllowedDirs(filePath, []string{os.TempDir(), cwd})
}

// SanitizeFilename reduces an arbitrary identifier to something safe to
// embed in a filename. ASCII letters, digits, dot, underscore and dash pass
// through; any run of other characters collapses to a single underscore.
// The result is capped at 128 bytes and is never empty.
func SanitizeFilename(s string) string {
	const maxLen = 128

	var b strings.Builder
	underscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			underscore = false
		default:
			if !underscore {
				b.WriteByte('_')
				underscore = true
			}
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
