package config

import (
	"fmt"
	"strings"
)

// ParseError describes a syntax error in the configuration source. It keeps
// the original line so the error message can point at the offending input.
type ParseError struct {
	File    string
	Line    int
	Text    string
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	file := e.File
	if file == "" {
		file = "<input>"
	}
	return fmt.Sprintf("%s:%d: %s: |%s|", file, e.Line, e.Message, e.Text)
}

// NoSectionError indicates a lookup against a section that does not exist.
type NoSectionError struct {
	Section string
}

// Error implements the error interface.
func (e *NoSectionError) Error() string {
	return fmt.Sprintf("no section %q", e.Section)
}

// NoOptionError indicates a missing option. When the lookup cascaded,
// Ancestors lists every shorter prefix section that was consulted.
type NoOptionError struct {
	Option    string
	Section   string
	Ancestors []string
}

// Error implements the error interface.
func (e *NoOptionError) Error() string {
	if len(e.Ancestors) == 0 {
		return fmt.Sprintf("no option %q in section %q", e.Option, e.Section)
	}
	quoted := make([]string, len(e.Ancestors))
	for i, a := range e.Ancestors {
		quoted[i] = fmt.Sprintf("%q", a)
	}
	return fmt.Sprintf("no option %q in section %q nor in its ancestors: %s",
		e.Option, e.Section, strings.Join(quoted, ", "))
}

// InterpolationDepthError indicates that resolving a value did not converge
// within MaxInterpolationDepth substitution rounds. It bounds interpolation
// cycles without a dedicated cycle detector in the substitution pass.
type InterpolationDepthError struct {
	Section string
	Option  string
	Value   string
}

// Error implements the error interface.
func (e *InterpolationDepthError) Error() string {
	return fmt.Sprintf("interpolation depth exceeded for option %q in section %q (raw value %q)",
		e.Option, e.Section, e.Value)
}

// BadListError indicates an option value that could not be parsed as a
// delimited list.
type BadListError struct {
	Section string
	Option  string
	Err     error
}

// Error implements the error interface.
func (e *BadListError) Error() string {
	return fmt.Sprintf("option %q in section %q is not a valid list: %v", e.Option, e.Section, e.Err)
}

// Unwrap returns the underlying parse failure.
func (e *BadListError) Unwrap() error { return e.Err }
