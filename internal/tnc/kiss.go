package tnc

import (
	"bufio"
	"errors"
	"io"
)

// KISS protocol constants.
const (
	fend  = 0xC0 // frame delimiter
	fesc  = 0xDB // escape
	tfend = 0xDC // escaped FEND
	tfesc = 0xDD // escaped FESC

	cmdData = 0x00 // data frame on port 0
)

var errEmptyFrame = errors.New("empty kiss frame")

// kissEncode wraps payload in a KISS data frame with FESC escaping.
func kissEncode(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+3)
	out = append(out, fend, cmdData)
	for _, b := range payload {
		switch b {
		case fend:
			out = append(out, fesc, tfend)
		case fesc:
			out = append(out, fesc, tfesc)
		default:
			out = append(out, b)
		}
	}
	return append(out, fend)
}

// kissDecoder extracts KISS payloads from a byte stream.
type kissDecoder struct {
	r *bufio.Reader
}

func newKISSDecoder(r io.Reader) *kissDecoder {
	return &kissDecoder{r: bufio.NewReader(r)}
}

// Next blocks until a complete non-empty data frame arrives and returns its
// payload with the command byte stripped and escapes resolved.
func (d *kissDecoder) Next() ([]byte, error) {
	for {
		payload, err := d.readFrame()
		if err == nil {
			return payload, nil
		}
		if errors.Is(err, errEmptyFrame) {
			continue
		}
		return nil, err
	}
}

func (d *kissDecoder) readFrame() ([]byte, error) {
	// Skip to the first delimiter, then collect until the closing one.
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == fend {
			break
		}
	}

	var buf []byte
	esc := false
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == fend {
			break
		}
		if esc {
			switch b {
			case tfend:
				buf = append(buf, fend)
			case tfesc:
				buf = append(buf, fesc)
			default:
				// Invalid escape; keep the byte as-is.
				buf = append(buf, b)
			}
			esc = false
			continue
		}
		if b == fesc {
			esc = true
			continue
		}
		buf = append(buf, b)
	}

	// buf[0] is the command byte; anything that is not a data frame
	// (hardware commands echoed back, empty keepalives) is skipped.
	if len(buf) < 2 || buf[0]&0x0F != cmdData {
		return nil, errEmptyFrame
	}
	return buf[1:], nil
}
