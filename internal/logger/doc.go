// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a sane console encoder,
//   - an optional rotating JSON log file next to the console output,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Services and state machines accept a context and extract the logger from it,
// so every alarm and delivery session logs with its own scoped fields.
package logger
