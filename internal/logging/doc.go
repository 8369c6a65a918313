// Package logging provides structured logging utilities for the rtv
// application.
//
// This package centralizes logging patterns to ensure consistent, structured
// logging throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - Consistent attribute naming across the codebase
//   - Token sanitization so credentials never reach the log output
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "oauth.authorize")
//	logger.Info("handshake finished",
//	    logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Debug("token refreshed",
//	    slog.String("token", logging.SanitizeToken(token)))
package logging
