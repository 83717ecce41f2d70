// Package logx configures alertbot's structured logging.
//
// logx.Logger is a small value type over zerolog that keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - An optional Telegram sink for warnings (min-level + rate limited)
//
// A Logger derived from a Service follows Service.Apply() at runtime, so a
// config hot-reload changes level and sinks for every component at once.
package logx
