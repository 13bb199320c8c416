package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// prefixRegex matches file name prefixes safe to embed in page names.
var prefixRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidatePrefix validates the file name prefix used for page and merged
// documents. The prefix becomes part of a file name, so it must not carry
// path components.
//
// Validation rules:
//   - Prefix cannot be empty
//   - Maximum length of 128 characters
//   - No control characters, path separators or traversal sequences
//   - Must start with a letter or digit
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return New(ErrCodeInvalidInput, "file prefix cannot be empty")
	}

	if len(prefix) > 128 {
		return New(ErrCodeInvalidInput, "file prefix too long (max 128 characters)")
	}

	for _, r := range prefix {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "file prefix contains invalid control characters")
		}
	}

	for _, pattern := range []string{"..", "/", "\\"} {
		if strings.Contains(prefix, pattern) {
			return New(ErrCodeInvalidInput, "file prefix contains invalid characters: %q", pattern)
		}
	}

	if !prefixRegex.MatchString(prefix) {
		return New(ErrCodeInvalidInput, "invalid file prefix: %q", prefix)
	}

	return nil
}

// ValidateRange validates a requested identifier range.
func ValidateRange(start, count int) error {
	if start < 0 {
		return New(ErrCodeConfig, "starting identifier must be >= 0, got %d", start)
	}
	if count < 0 {
		return New(ErrCodeConfig, "count must be >= 0, got %d", count)
	}
	const maxInt = int(^uint(0) >> 1)
	if count > 0 && start > maxInt-count {
		return New(ErrCodeConfig, "identifier range overflows: start %d + count %d", start, count)
	}
	return nil
}
