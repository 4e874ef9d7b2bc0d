// Package logger provides a context-aware logging facade over zap.
//
// Binaries configure a single global sugared logger at startup; components
// derive named loggers through the context so that every record carries the
// originating component name.
package logger
