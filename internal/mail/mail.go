package mail

import "time"

// RawMail is one unseen message returned by a poll, decoded to plain text.
type RawMail struct {
	Token      string
	Subject    string
	Body       string
	ReceivedAt time.Time
	Sender     string
}
