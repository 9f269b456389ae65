package aprs

import (
	"errors"
	"fmt"
	"strings"
)

// DestAddress is the destination ("tocall") used for frames we originate.
// APZ prefixes are reserved for experimental software.
const DestAddress = "APZ001"

// Frame is an AX.25 UI frame in TNC2 monitor form: SRC>DST,PATH:info.
// Only the textual representation is handled here; KISS byte framing lives
// in the tnc package.
type Frame struct {
	Source string
	Dest   string
	Path   []string
	Info   string
}

// ParseFrame parses a TNC2-style textual frame.
func ParseFrame(raw string) (*Frame, error) {
	raw = strings.TrimRight(raw, "\r\n")
	if raw == "" {
		return nil, errors.New("empty frame")
	}

	gt := strings.IndexByte(raw, '>')
	colon := strings.IndexByte(raw, ':')
	if gt <= 0 || colon < 0 || colon < gt {
		return nil, fmt.Errorf("malformed frame %q", raw)
	}

	header := raw[:colon]
	info := raw[colon+1:]

	src := header[:gt]
	rest := header[gt+1:]
	hops := strings.Split(rest, ",")
	if len(hops) == 0 || hops[0] == "" {
		return nil, fmt.Errorf("frame %q has no destination", raw)
	}

	f := &Frame{
		Source: src,
		Dest:   hops[0],
		Info:   info,
	}
	if len(hops) > 1 {
		f.Path = hops[1:]
	}
	return f, nil
}

// String re-serializes the frame in TNC2 form. Used both for transmission
// and for the ?aprst diagnostic echo.
func (f *Frame) String() string {
	var b strings.Builder
	b.WriteString(f.Source)
	b.WriteByte('>')
	b.WriteString(f.Dest)
	for _, hop := range f.Path {
		b.WriteByte(',')
		b.WriteString(hop)
	}
	b.WriteByte(':')
	b.WriteString(f.Info)
	return b.String()
}

// NewFrame builds a frame originated by this station. path is the
// comma-separated digipeater path from configuration; empty means direct.
func NewFrame(source, path, info string) *Frame {
	f := &Frame{Source: source, Dest: DestAddress, Info: info}
	if p := strings.TrimSpace(path); p != "" {
		f.Path = strings.Split(p, ",")
	}
	return f
}
