// Package logging provides structured logging for blescan.
//
// This package wraps a global zap logger with convenience functions. It is
// silent unless a level is given explicitly or through the BLESCAN_LOG_LEVEL
// environment variable, so the CLI's curated output is never interleaved
// with log lines by default.
//
// # Log Levels
//
//   - Debug: session state transitions, every peripheral observation
//   - Info: sessions started and completed, HTTP requests, connections
//   - Warn: skipped peripherals, dropped events, slow scan shutdown
//   - Error: failed sessions, server errors
//
// # Structured Logging
//
//	logging.Info("Scan completed",
//	    zap.String("session", id),
//	    zap.Int("devices", len(devices)),
//	)
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Logs are written to stderr in console format.
package logging
