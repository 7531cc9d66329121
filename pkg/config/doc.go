// Package config implements the cascading section configuration model used
// to declare a space.
//
// A configuration is a set of hierarchically named sections. A section name
// is an ordered sequence of labels ("[python venv dev]"), and sections form
// an implicit prefix hierarchy: a lookup against "python venv dev" may
// cascade to "python venv" and then to "python". Option values are scalar
// strings or comma separated lists, and may reference another section's
// option with the "[section]:key" interpolation form.
//
// Two option names are reserved: "_uses" declares explicit dependencies on
// other sections, and "_provider" selects the provider implementation bound
// to the section.
package config
