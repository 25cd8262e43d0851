// Package log provides structured protocol capture for SimLink sessions.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, wire, client). It is
// separate from operational logging (slog) - protocol capture provides a
// complete machine-readable trace of a session for debugging a misbehaving
// simulator link, including every frame, state transition, and reconnect
// attempt.
//
// # Basic Usage
//
// Applications configure capture by providing a Logger implementation:
//
//	// For development: mirror protocol events to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("session.plog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: raw frame bytes (FrameEvent)
//   - Wire: decoded messages (MessageEvent)
//   - Client/channel: state changes and reconnects (StateChangeEvent)
//
// Errors at any layer have a dedicated event type.
//
// # File Format
//
// Log files use CBOR encoding with the .plog extension. The simlink-logdump
// CLI tool decodes, filters, and prints captured traces.
package log
