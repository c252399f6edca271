// Package config loads the twquote configuration.
//
// Configuration is read from YAML with ${VAR} environment expansion. A
// .env file, when present, is loaded into the environment first. Command
// line flags override file values; see cmd/twquote.
package config
