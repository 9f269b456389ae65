package bot

import "time"

// datetimeInt encodes t as the integer YYYYMMDDHHMMSS used by the debouncer
// table. The encoding sorts chronologically, but arithmetic on it does not
// equal elapsed seconds across minute/hour rollovers; the suppression window
// in the debouncer deliberately keeps that behavior (see DESIGN.md).
func datetimeInt(t time.Time) int64 {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return int64(y)*1e10 +
		int64(mo)*1e8 +
		int64(d)*1e6 +
		int64(h)*1e4 +
		int64(mi)*1e2 +
		int64(s)
}

// dayString encodes t's date as YYYYMMDD, the day granularity used by net
// session rosters.
func dayString(t time.Time) string {
	return t.Format("20060102")
}
