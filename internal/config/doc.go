// Package config loads, validates, and normalizes scribe's TOML
// configuration.
//
// Configuration is resolved from an explicit --config path, then
// ~/.config/scribe/config.toml, then a scribe.toml in the working directory.
// All path fields are tilde-expanded and made absolute during load so the
// rest of the system never deals with relative paths.
package config
