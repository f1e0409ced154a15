package utils

import (
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrorWithTrace wraps e with the caller's file:line and a stack trace.
// A nil error stays nil so call sites can wrap unconditionally.
func ErrorWithTrace(e error) error {
	if e == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	return errors.WrapWithDepthf(1, e, "%s:%d", filepath.Base(file), line)
}

var trailingJunk = regexp.MustCompile(`[\d'\-]+$`)

// NormalizeName strips the trailing digits, apostrophes and dashes that leak
// into player names from HTML row ids, and trims surrounding whitespace.
func NormalizeName(name string) string {
	return strings.TrimSpace(trailingJunk.ReplaceAllString(strings.TrimSpace(name), ""))
}
