// Package log provides structured logging built on zerolog. Components
// receive child loggers through dependency injection rather than printing
// through process-wide helpers.
package log
