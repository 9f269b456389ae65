// Package logx wraps zerolog behind a small Field-based API so the rest of
// the bot never imports zerolog directly. The Service variant supports
// swapping level and sinks at runtime when the configuration reloads.
package logx
