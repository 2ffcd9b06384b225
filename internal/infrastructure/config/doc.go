// Package config loads and validates the simulator relay configuration.
//
// Configuration is layered: hardcoded defaults, then a YAML file, then
// SIMRELAY_* environment variable overrides. Load returns a validated
// *Config or an error describing every validation failure at once.
package config
