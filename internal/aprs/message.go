package aprs

import (
	"fmt"
	"strings"
)

// Message is an addressed APRS text message extracted from a frame.
type Message struct {
	// Source is the sender's callsign+SSID.
	Source string
	// Addressee is the station the message is directed to.
	Addressee string
	Text      string
	// ID is the message id when the sender requested confirmation, else "".
	ID string

	// Frame is the frame the message was decoded from.
	Frame *Frame
}

// addresseeWidth is the fixed width of the addressee field in the message
// info format (APRS Protocol Reference chapter 14).
const addresseeWidth = 9

// MessageFromFrame decodes an addressed message from a frame's info field.
// The second return is false when the frame is not a message.
func MessageFromFrame(f *Frame) (*Message, bool) {
	info := f.Info
	if len(info) < addresseeWidth+2 || info[0] != ':' || info[addresseeWidth+1] != ':' {
		return nil, false
	}

	m := &Message{
		Source:    f.Source,
		Addressee: strings.TrimSpace(info[1 : addresseeWidth+1]),
		Text:      info[addresseeWidth+2:],
		Frame:     f,
	}
	if i := strings.LastIndexByte(m.Text, '{'); i >= 0 {
		m.ID = m.Text[i+1:]
		m.Text = m.Text[:i]
	}
	return m, true
}

// MessageInfo renders the info field of an addressed message.
func MessageInfo(addressee, text string) string {
	return fmt.Sprintf(":%-*s:%s", addresseeWidth, addressee, text)
}

// StatusInfo renders the info field of a status report.
func StatusInfo(status string) string {
	return ">" + status
}

// AckText is the text of an acknowledgement for the given message id.
func AckText(msgid string) string {
	return "ack" + msgid
}
