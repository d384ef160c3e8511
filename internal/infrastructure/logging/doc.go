// Package logging provides structured logging for the access endpoint.
//
// It wraps log/slog so every entry carries the same default fields
// (service, version) and components share one configured handler.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	cycleLog := logger.Component("cycle").With("door", cfg.Site.DoorID)
//	cycleLog.Info("access cycle started")
//
// # Privacy
//
// Raw card UIDs and the pseudonymization key are never logged. Tokens reach
// the log only through the telemetry privacy policy, which redacts them by
// default.
package logging
