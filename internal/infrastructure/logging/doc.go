// Package logging provides structured logging for the RS-485 bridge.
//
// It wraps Go's standard log/slog package so every component logs with
// the same format, level filtering, and default fields.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting bridge", "banks", 2)
//	logger.Error("failed to connect", "error", err)
//
// Never log secrets, tokens, or broker passwords.
package logging
