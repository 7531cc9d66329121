package config

import (
	"encoding/csv"
	"regexp"
	"sort"
	"strings"
)

// MaxInterpolationDepth bounds the number of substitution rounds applied to
// a single value. Reference chains (including cycles) that do not converge
// within this many rounds fail with an InterpolationDepthError.
const MaxInterpolationDepth = 10

// refRe matches a cross-section reference of the form "[section]:key".
var refRe = regexp.MustCompile(`\[([^\][]+)\]:(\S+)`)

// section is one parsed configuration section.
type section struct {
	name   string
	labels []string
	opts   map[string]string // raw, uninterpolated values
	keys   []string          // declaration order
}

// Config is a parsed cascading configuration. It is immutable after parsing
// and safe for concurrent readers; each provisioning session should own its
// own instance regardless.
type Config struct {
	sections map[string]*section
	names    []string // file order
}

// Sections returns all section names in file order.
func (c *Config) Sections() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// HasSection reports whether the exact section name exists.
func (c *Config) HasSection(name string) bool {
	_, ok := c.sections[name]
	return ok
}

// parentName strips the last label from a section name. It returns the
// input unchanged when there is nothing left to strip.
func parentName(name string) string {
	if i := strings.LastIndexByte(name, ' '); i >= 0 {
		return name[:i]
	}
	return name
}

// rawGet resolves an option without interpolation. With cascade enabled the
// lookup walks successively shorter label prefixes, nearest ancestor first.
func (c *Config) rawGet(name, option string, cascade bool) (string, error) {
	sec, ok := c.sections[name]
	if !ok {
		return "", &NoSectionError{Section: name}
	}
	if v, ok := sec.opts[option]; ok {
		return v, nil
	}
	if !cascade {
		return "", &NoOptionError{Option: option, Section: name}
	}

	var ancestors []string
	for cur := name; ; {
		parent := parentName(cur)
		if parent == cur {
			break
		}
		cur = parent
		ancestors = append(ancestors, cur)
		if anc, ok := c.sections[cur]; ok {
			if v, ok := anc.opts[option]; ok {
				return v, nil
			}
		}
	}
	return "", &NoOptionError{Option: option, Section: name, Ancestors: ancestors}
}

// Get resolves an option to its fully interpolated value. With cascade
// enabled, a miss on the exact section retries each shorter prefix, nearest
// ancestor first.
func (c *Config) Get(name, option string, cascade bool) (string, error) {
	raw, err := c.rawGet(name, option, cascade)
	if err != nil {
		return "", err
	}
	return c.interpolate(name, option, raw)
}

// GetList resolves an option and parses it as a delimited list. Each line of
// the value is split CSV style (comma delimiter, quoting honoured) and the
// fields are concatenated in order.
func (c *Config) GetList(name, option string, cascade bool) ([]string, error) {
	value, err := c.Get(name, option, cascade)
	if err != nil {
		return nil, err
	}
	return splitList(name, option, value)
}

func splitList(name, option, value string) ([]string, error) {
	var out []string
	for _, line := range strings.Split(value, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		r := csv.NewReader(strings.NewReader(line))
		r.TrimLeadingSpace = true
		fields, err := r.Read()
		if err != nil {
			return nil, &BadListError{Section: name, Option: option, Err: err}
		}
		for _, f := range fields {
			if f = strings.TrimSpace(f); f != "" {
				out = append(out, f)
			}
		}
	}
	return out, nil
}

// Options returns the option names visible from a section: its own options
// and, when cascading, every ancestor option not shadowed at a more specific
// level. Order is most specific first, then declaration order.
func (c *Config) Options(name string, cascade bool) ([]string, error) {
	sec, ok := c.sections[name]
	if !ok {
		return nil, &NoSectionError{Section: name}
	}

	out := make([]string, 0, len(sec.keys))
	seen := make(map[string]bool, len(sec.keys))
	for _, k := range sec.keys {
		out = append(out, k)
		seen[k] = true
	}
	if cascade {
		for cur := name; ; {
			parent := parentName(cur)
			if parent == cur {
				break
			}
			cur = parent
			anc, ok := c.sections[cur]
			if !ok {
				continue
			}
			for _, k := range anc.keys {
				if !seen[k] {
					out = append(out, k)
					seen[k] = true
				}
			}
		}
	}
	return out, nil
}

// Items returns the visible option names mapped to their interpolated
// values. With cascade enabled, ancestor values are merged in but a key
// already defined at a more specific level always wins.
func (c *Config) Items(name string, cascade bool) (map[string]string, error) {
	keys, err := c.Options(name, cascade)
	if err != nil {
		return nil, err
	}
	items := make(map[string]string, len(keys))
	for _, k := range keys {
		v, err := c.Get(name, k, cascade)
		if err != nil {
			return nil, err
		}
		items[k] = v
	}
	return items, nil
}

// Provider resolves the reserved provider-selector option. It cascades, so a
// family of sections can inherit one declaration from an ancestor.
func (c *Config) Provider(name string) (string, error) {
	return c.Get(name, ProviderOption, true)
}

// Uses returns the sections this section depends on: the explicitly declared
// "_uses" targets plus every section referenced through interpolation in any
// of the section's own option values. The result is sorted and deduplicated.
func (c *Config) Uses(name string) ([]string, error) {
	sec, ok := c.sections[name]
	if !ok {
		return nil, &NoSectionError{Section: name}
	}

	set := make(map[string]bool)

	if raw, ok := sec.opts[UsesOption]; ok {
		targets, err := splitList(name, UsesOption, raw)
		if err != nil {
			return nil, err
		}
		for _, t := range targets {
			t = strings.TrimSuffix(strings.TrimPrefix(t, "["), "]")
			t = strings.TrimSpace(t)
			if !c.HasSection(t) {
				return nil, &NoSectionError{Section: t}
			}
			set[t] = true
		}
	}

	for _, k := range sec.keys {
		for _, m := range refRe.FindAllStringSubmatch(sec.opts[k], -1) {
			target := m[1]
			if !c.HasSection(target) {
				return nil, &NoSectionError{Section: target}
			}
			set[target] = true
		}
	}

	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// interpolate substitutes "[section]:key" references until the value is
// stable or the depth bound is exceeded. Reference targets resolve against
// the exact named section (no cascade); a missing key falls back to the
// longest defined option name that prefixes the requested one, with the
// unmatched residue appended verbatim.
func (c *Config) interpolate(name, option, raw string) (string, error) {
	value := raw
	for range MaxInterpolationDepth {
		if !refRe.MatchString(value) {
			return value, nil
		}
		var rerr error
		value = refRe.ReplaceAllStringFunc(value, func(match string) string {
			if rerr != nil {
				return match
			}
			sub := refRe.FindStringSubmatch(match)
			replaced, err := c.resolveReference(sub[1], sub[2])
			if err != nil {
				rerr = err
				return match
			}
			return replaced
		})
		if rerr != nil {
			return "", rerr
		}
	}
	return "", &InterpolationDepthError{Section: name, Option: option, Value: raw}
}

// resolveReference resolves one "[section]:key" target to the referenced raw
// value. The result may itself contain references; the caller's substitution
// loop handles those.
func (c *Config) resolveReference(target, key string) (string, error) {
	sec, ok := c.sections[target]
	if !ok {
		return "", &NoSectionError{Section: target}
	}
	if v, ok := sec.opts[key]; ok {
		return v, nil
	}

	// Longest-prefix fallback: the longest existing option name that
	// prefixes the requested key wins, and the residue rides along.
	names := make([]string, 0, len(sec.keys))
	names = append(names, sec.keys...)
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	for _, n := range names {
		if strings.HasPrefix(key, n) {
			return sec.opts[n] + key[len(n):], nil
		}
	}
	return "", &NoOptionError{Option: key, Section: target}
}
