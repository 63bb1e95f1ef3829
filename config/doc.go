// Package config loads application configuration from defaults, an
// optional YAML file, and RAGWEAVE_* environment overrides, validating
// the result at startup.
package config
