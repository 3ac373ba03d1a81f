// Package logging provides a simple leveled logging interface for the
// video cleaner service.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (resolved ffmpeg command lines)
//   - INFO: General operational messages
//   - WARN: Warning conditions (failed scratch deletions, slow clients)
//   - ERROR: Error conditions (failed jobs)
//   - CRITICAL: Infrastructure faults that need an operator, always printed
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true. Tests may call SetLevel directly.
package logging
