package mail

import (
	"net/mail"
	"strings"
	"testing"
)

func TestDeriveTokenPrefersMessageID(t *testing.T) {
	raw := "Message-Id: <abc123@example.com>\r\nDate: Mon, 02 Jan 2006 15:04:05 +0800\r\n\r\nbody"
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("parsing message: %v", err)
	}

	token := deriveToken(7, msg)
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if strings.HasPrefix(token, "uid-") {
		t.Error("expected message-id-derived token, got uid fallback")
	}

	// Same message-id+date must derive the same token (P1's dedup basis).
	msg2, _ := mail.ReadMessage(strings.NewReader(raw))
	if deriveToken(9, msg2) != token {
		t.Error("expected deriveToken to be stable across different UIDs for the same message-id+date")
	}
}

func TestDeriveTokenFallsBackToUID(t *testing.T) {
	raw := "Subject: no message id\r\n\r\nbody"
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("parsing message: %v", err)
	}

	token := deriveToken(42, msg)
	if token != "uid-42" {
		t.Errorf("expected uid fallback token, got %q", token)
	}
}

func TestDecodeBodyPlainText(t *testing.T) {
	raw := "Content-Type: text/plain; charset=utf-8\r\n\r\nhello world"
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("parsing message: %v", err)
	}

	body, err := decodeBody(msg)
	if err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if strings.TrimSpace(body) != "hello world" {
		t.Errorf("expected 'hello world', got %q", body)
	}
}

func TestDecodeBodyStripsHTML(t *testing.T) {
	raw := "Content-Type: text/html; charset=utf-8\r\n\r\n<p>hello <b>world</b></p>"
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("parsing message: %v", err)
	}

	body, err := decodeBody(msg)
	if err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if !strings.Contains(body, "hello") || !strings.Contains(body, "world") || strings.Contains(body, "<b>") {
		t.Errorf("expected html stripped to plain text, got %q", body)
	}
}

func TestStripHTMLCollapsesWhitespace(t *testing.T) {
	got := stripHTML("<div>  a  \n <span>b</span>  </div>")
	if got != "a b" {
		t.Errorf("expected 'a b', got %q", got)
	}
}
