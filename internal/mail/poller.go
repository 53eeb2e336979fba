package mail

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/htmlindex"
)

// Config configures a Poller against one IMAP mailbox.
type Config struct {
	Server   string
	Port     int
	Address  string
	Password string
	Sender   string // rules.sender filter; empty matches everything
	Mailbox  string // defaults to INBOX
	Timeout  time.Duration
}

// Poller implements C2: an idempotent IMAP fetch of new matching mail.
type Poller struct {
	cfg Config
}

// New builds a Poller from configuration.
func New(cfg Config) *Poller {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Poller{cfg: cfg}
}

// Poll opens an IMAP session, searches for unseen matching mail, and
// returns them decoded to plain text. Network failures are returned as a
// retryable error; a session that finds zero new messages is not an error.
//
// tokenSeen is called for each candidate message after it is fetched (the
// token is derived from its headers) and before its body is decoded; it
// should perform the upsert_processed_mail check and return whether the
// token already existed, so an already-processed message is never returned
// twice.
func (p *Poller) Poll(tokenSeen func(token string) (existed bool, err error)) ([]RawMail, error) {
	client, err := dialIMAP(p.cfg.Server, p.cfg.Port, p.cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to imap server: %w", err)
	}
	defer client.logout()

	if err := client.login(p.cfg.Address, p.cfg.Password); err != nil {
		return nil, fmt.Errorf("imap authentication failed: %w", err)
	}

	if err := client.selectMailbox(p.cfg.Mailbox); err != nil {
		return nil, fmt.Errorf("selecting mailbox: %w", err)
	}

	uids, err := client.searchUnseenFrom(p.cfg.Sender)
	if err != nil {
		return nil, fmt.Errorf("searching unseen mail: %w", err)
	}

	var out []RawMail
	for _, uid := range uids {
		raw, err := client.fetchPeek(uid)
		if err != nil {
			log.Printf("mail: fetch uid %d failed: %v", uid, err)
			continue
		}

		msg, err := mail.ReadMessage(strings.NewReader(raw))
		if err != nil {
			log.Printf("mail: parsing uid %d failed: %v", uid, err)
			continue
		}

		token := deriveToken(uid, msg)
		existed, err := tokenSeen(token)
		if err != nil {
			log.Printf("mail: dedup check for uid %d failed: %v", uid, err)
			continue
		}
		if existed {
			continue
		}

		body, err := decodeBody(msg)
		if err != nil {
			log.Printf("mail: decoding uid %d failed: %v", uid, err)
			continue
		}

		receivedAt := time.Now()
		if d, err := msg.Header.Date(); err == nil {
			receivedAt = d
		}

		out = append(out, RawMail{
			Token:      token,
			Subject:    decodeHeaderWord(msg.Header.Get("Subject")),
			Body:       body,
			ReceivedAt: receivedAt,
			Sender:     msg.Header.Get("From"),
		})
	}

	return out, nil
}

// deriveToken prefers a SHA-1 hash of message-id+date, which stays stable
// even on servers that renumber UIDs across sessions, falling back to the
// server UID when the message has no Message-Id header.
func deriveToken(uid uint32, msg *mail.Message) string {
	if msgID := strings.TrimSpace(msg.Header.Get("Message-Id")); msgID != "" {
		date := strings.TrimSpace(msg.Header.Get("Date"))
		sum := sha1.Sum([]byte(msgID + "|" + date))
		return hex.EncodeToString(sum[:])
	}
	return "uid-" + strconv.FormatUint(uint64(uid), 10)
}

var htmlTagRE = regexp.MustCompile(`<[^>]*>`)

// decodeBody walks a (possibly multipart) message and returns plain text,
// preferring text/html (stripped to text) over text/plain, with UTF-8 as
// the last-resort charset when the declared one is unknown.
func decodeBody(msg *mail.Message) (string, error) {
	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(msg.Body, params["boundary"])
		var htmlPart, plainPart string
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				break
			}
			partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
			text := decodePart(part, part.Header.Get("Content-Transfer-Encoding"), partType)
			if strings.HasPrefix(partType, "text/html") && htmlPart == "" {
				htmlPart = text
			} else if strings.HasPrefix(partType, "text/plain") && plainPart == "" {
				plainPart = text
			}
		}
		if htmlPart != "" {
			return stripHTML(htmlPart), nil
		}
		return plainPart, nil
	}

	text := decodePart(msg.Body, msg.Header.Get("Content-Transfer-Encoding"), mediaType)
	if strings.HasPrefix(mediaType, "text/html") {
		return stripHTML(text), nil
	}
	return text, nil
}

func decodePart(r io.Reader, transferEncoding, contentType string) string {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return ""
	}

	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if charset := strings.ToLower(params["charset"]); charset != "" && charset != "utf-8" {
			if enc, err := htmlindex.Get(charset); err == nil {
				if decoded, err := enc.NewDecoder().Bytes(data); err == nil {
					data = decoded
				}
			}
		}
	}

	return string(data)
}

func stripHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return htmlTagRE.ReplaceAllString(s, " ")
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					b.WriteString(attr.Val)
					b.WriteString(" ")
				}
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(b.String()), " ")
}

func decodeHeaderWord(s string) string {
	dec := new(mime.WordDecoder)
	out, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return out
}
