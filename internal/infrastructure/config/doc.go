// Package config loads and validates the RS-485 bridge configuration.
//
// Configuration is read from a YAML file, with defaults applied first and
// environment variable overrides (RS485BRIDGE_*) applied last. The loaded
// Config is validated once at startup; components receive typed sections
// rather than re-reading values ad hoc.
package config
