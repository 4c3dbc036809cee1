// Package telemetry provides structured logging for anaconda-project.
//
// Logging is built on zerolog. Components obtain child loggers via
// NewComponentLogger so that every log line carries the component name,
// and loggers travel through context.Context for code that does not
// hold an explicit reference.
package telemetry
