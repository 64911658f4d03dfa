// Package logger wraps zap to provide:
//   - a global sugared logger with a console or JSON encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level and format parsing for the settings file,
//   - convenience functions (Infof, WarnKV, etc.).
//
// Components receive a context and extract the logger from it, so every log
// line carries the scope (session id, port) of the caller.
package logger
