package config

import (
	"fmt"
	"io"
	"strings"
)

// Reserved option names. They shape provisioning (dependencies, provider
// selection) and are stripped before a section's options are handed to a
// provider.
const (
	UsesOption     = "_uses"
	ProviderOption = "_provider"
)

// lineKind classifies a preprocessed input line.
type lineKind int

const (
	lineEmpty lineKind = iota
	lineSection
	lineOption
	lineContinuation
)

// Parse reads a configuration from r. The filename is only used in error
// messages.
func Parse(r io.Reader, filename string) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseString(string(raw), filename)
}

// ParseString parses a configuration from source text.
//
// Grammar, line oriented:
//
//	[label1 label2 ...]   section header, one or more labels
//	key: value            option; value may be a comma separated list
//	    more, values      continuation of the previous option
//	# comment             comments run to end of line
func ParseString(source, filename string) (*Config, error) {
	cfg := &Config{sections: make(map[string]*section)}

	var (
		cur       *section
		curOption string
		curLine   int
		curText   string
	)

	fail := func(line int, text, msg string) error {
		return &ParseError{File: filename, Line: line, Text: text, Message: msg}
	}

	// A section that ends (next header or EOF) without options is invalid.
	closeSection := func() error {
		if cur != nil && len(cur.keys) == 0 {
			return fail(curLine, curText, "section without options")
		}
		return nil
	}

	for lnum, orig := range strings.Split(source, "\n") {
		lnum++ // 1-based for error messages

		line := orig
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)

		switch classifyLine(line) {
		case lineEmpty:
			continue

		case lineSection:
			if err := closeSection(); err != nil {
				return nil, err
			}
			if !strings.HasSuffix(line, "]") {
				return nil, fail(lnum, orig, "bad section syntax")
			}
			labels := strings.Fields(line[1 : len(line)-1])
			if len(labels) == 0 {
				return nil, fail(lnum, orig, "no labels in section")
			}
			name := strings.Join(labels, " ")
			if _, dup := cfg.sections[name]; dup {
				return nil, fail(lnum, orig, fmt.Sprintf("duplicate section %q", name))
			}
			cur = &section{name: name, labels: labels, opts: make(map[string]string)}
			cfg.sections[name] = cur
			cfg.names = append(cfg.names, name)
			curOption = ""
			curLine, curText = lnum, orig

		case lineOption:
			if cur == nil {
				return nil, fail(lnum, orig, "option not within a section")
			}
			key, value, _ := strings.Cut(line, ":")
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			if !validOptionName(key) {
				return nil, fail(lnum, orig, fmt.Sprintf("invalid option name %q", key))
			}
			if _, dup := cur.opts[key]; dup {
				return nil, fail(lnum, orig, fmt.Sprintf("duplicate option %q", key))
			}
			if value == "" {
				return nil, fail(lnum, orig, fmt.Sprintf("option %q has no value", key))
			}
			cur.opts[key] = value
			cur.keys = append(cur.keys, key)
			curOption = key

		case lineContinuation:
			if cur == nil || curOption == "" {
				return nil, fail(lnum, orig, "continuation line without a preceding option")
			}
			cur.opts[curOption] += "\n" + line
		}
	}

	if err := closeSection(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func classifyLine(line string) lineKind {
	switch {
	case line == "":
		return lineEmpty
	case strings.HasPrefix(line, "["):
		return lineSection
	case optionRe(line):
		return lineOption
	default:
		return lineContinuation
	}
}

// optionRe reports whether the line starts with "<key>:" where the key
// contains no whitespace. Interpolation references ("[sect]:key") never match
// because section lines are classified first and continuation values are
// indented copies of option values.
func optionRe(line string) bool {
	i := strings.IndexByte(line, ':')
	if i <= 0 {
		return false
	}
	return !strings.ContainsAny(line[:i], " \t")
}

// validOptionName accepts the reserved names plus identifiers made of
// letters, digits, underscores and dashes, starting with a letter or
// underscore.
func validOptionName(name string) bool {
	if name == UsesOption || name == ProviderOption {
		return true
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return false
		}
	}
	return len(name) > 0
}
