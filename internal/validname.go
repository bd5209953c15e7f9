package internal

import (
	"regexp"
	"strings"
)

const (
	// MaxNameLen is the fixed width of grid, variable and unit names.
	MaxNameLen = 16

	// A valid variable name must start with a letter or underscore.
	// After that it may contain anything printable except white space, slash and comma.
	pattern = `^[\pL_][^\pC\pZ\s/,]*$`
)

var re *regexp.Regexp

func init() {
	var err error
	re, err = regexp.Compile(pattern)
	if err != nil {
		panic(err)
	}
}

// IsValidVariableName returns true if name can be stored as a variable
// name in a fixed-width header field.
func IsValidVariableName(name string) bool {
	return len(name) > 0 && len(name) <= MaxNameLen && re.MatchString(name)
}

// IsBlank is true for strings holding nothing but white space.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// SameName compares two names ignoring leading and trailing white space,
// which is how fixed-width name fields are padded.
func SameName(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

// Pad returns s truncated or blank-padded to exactly width bytes.
func Pad(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// Unpad strips the blank and NUL padding of a fixed-width field.
func Unpad(s string) string {
	return strings.TrimRight(s, " \x00")
}
