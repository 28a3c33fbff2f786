package middlewares

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const maxFilenameLength = 255

// PathSanitizer turns module paths and step names into safe file names and
// vets the folders step output is written to.
type PathSanitizer struct {
	// Patterns that could indicate path traversal attempts
	dangerousPatterns []*regexp.Regexp
	replacer          *strings.Replacer
	systemDirs        []string
}

// NewPathSanitizer creates a sanitizer with the default rules.
func NewPathSanitizer() *PathSanitizer {
	return &PathSanitizer{
		dangerousPatterns: []*regexp.Regexp{
			regexp.MustCompile(`\.\.`),                    // Directory traversal
			regexp.MustCompile(`^~`),                      // Home directory reference
			regexp.MustCompile(`(?i)^(con|prn|aux|nul)$`), // Windows reserved names
			regexp.MustCompile(`[<>"|?*]`),                // Invalid filename chars
		},
		replacer: strings.NewReplacer(
			"/", "_",
			"\\", "_",
			"..", "_",
			"~", "_",
			"$", "_",
			"`", "_",
			"|", "_",
			"<", "_",
			">", "_",
			":", "_",
			"\"", "_",
			"?", "_",
			"*", "_",
			" ", "_",
			"\x00", "_",
		),
		systemDirs: []string{"/etc", "/bin", "/sbin", "/usr/bin", "/usr/sbin", "/sys", "/proc", "/dev"},
	}
}

// SanitizeFilename flattens name into a single path element of at most 255
// bytes, keeping its extension when truncating.
func (ps *PathSanitizer) SanitizeFilename(name string) string {
	safe := ps.replacer.Replace(name)

	if len(safe) > maxFilenameLength {
		ext := filepath.Ext(safe)
		if len(ext) < maxFilenameLength {
			safe = safe[:maxFilenameLength-len(ext)] + ext
		} else {
			safe = safe[:maxFilenameLength]
		}
	}

	if safe == "" || safe == "." {
		safe = "unnamed"
	}

	return safe
}

// StepFilename builds the base name used for the saved output of one step.
func (ps *PathSanitizer) StepFilename(module, kind, name string) string {
	return ps.SanitizeFilename(strings.Join([]string{module, kind, name}, "_"))
}

// ValidateSaveFolder refuses traversal patterns and system directories.
func (ps *PathSanitizer) ValidateSaveFolder(folder string) error {
	for _, pattern := range ps.dangerousPatterns {
		if pattern.MatchString(folder) {
			return fmt.Errorf("%w: %q", ErrDangerousPattern, folder)
		}
	}

	cleanPath := filepath.Clean(folder)
	for _, sysDir := range ps.systemDirs {
		if cleanPath == sysDir || strings.HasPrefix(cleanPath, sysDir+string(filepath.Separator)) {
			return fmt.Errorf("%w: %s", ErrSystemDirectory, sysDir)
		}
	}

	return nil
}

// DefaultSanitizer is the sanitizer used by Save.
var DefaultSanitizer = NewPathSanitizer()

// SanitizeFilename is a convenience function using the default sanitizer
func SanitizeFilename(filename string) string {
	return DefaultSanitizer.SanitizeFilename(filename)
}
