package engine

import "github.com/openspaces/spaced/pkg/config"

// ProviderEntry is one provider instance bound to its section, in execution
// order.
type ProviderEntry struct {
	// Section is the configuration section the provider was built from.
	Section string
	// Name is the provider selector the section declared.
	Name string
	// Provider is the constructed instance. Its lifetime is one run.
	Provider Provider
}

// BuildPlan resolves the configuration into the ordered provider list a
// session executes. Sections are ordered by the dependency graph, then each
// provider is constructed against its section's resolved, cascaded,
// reserved-key-stripped option mapping.
func BuildPlan(cfg *config.Config, factory ProviderFactory) ([]ProviderEntry, error) {
	order, err := NewGraphBuilder().Build(cfg)
	if err != nil {
		return nil, err
	}

	entries := make([]ProviderEntry, 0, len(order))
	for _, section := range order {
		name, err := cfg.Provider(section)
		if err != nil {
			return nil, NewConfigError("no provider declared", err).
				WithSection(section).WithCode(ErrCodeNoProvider)
		}

		params, err := sectionParams(cfg, section)
		if err != nil {
			return nil, err
		}

		provider, err := factory(name, section, params)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ProviderEntry{Section: section, Name: name, Provider: provider})
	}
	return entries, nil
}

// sectionParams builds the parameter mapping for one section: every visible
// option (cascading, nearest definition wins), interpolated and list-parsed,
// with the reserved options stripped.
func sectionParams(cfg *config.Config, section string) (Params, error) {
	keys, err := cfg.Options(section, true)
	if err != nil {
		return nil, NewConfigError("resolving options", err).WithSection(section)
	}

	params := make(Params, len(keys))
	for _, key := range keys {
		if key == config.UsesOption || key == config.ProviderOption {
			continue
		}
		values, err := cfg.GetList(section, key, true)
		if err != nil {
			return nil, NewConfigError("resolving option values", err).WithSection(section)
		}
		params[key] = values
	}
	return params, nil
}
