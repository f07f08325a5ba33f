// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder on stdout,
//   - optional size-rotated file output,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, ErrorKV, etc.).
package logger
