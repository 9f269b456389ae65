package storage

// Package storage provides the persistence layer used by the bot.
//
// It currently keeps:
//   - The command debounce ledger (sender, command, integer timestamp)
//   - Net check-in rows (callsign, net name, date)
