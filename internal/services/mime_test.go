package services

import (
	"strings"
	"testing"
	"time"
)

const bounceFixture = "From: Mail Delivery Subsystem <mailer-daemon@googlemail.com>\r\n" +
	"To: me@example.com\r\n" +
	"Subject: Delivery Status Notification (Failure)\r\n" +
	"Date: Mon, 06 Oct 2025 10:00:00 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/report; report-type=delivery-status; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: multipart/alternative; boundary=\"b2\"\r\n" +
	"\r\n" +
	"--b2\r\n" +
	"Content-Type: text/plain; charset=UTF-8\r\n" +
	"\r\n" +
	"Your message wasn't delivered to ghost@example.org because the address couldn't be found.\r\n" +
	"--b2--\r\n" +
	"--b1\r\n" +
	"Content-Type: message/delivery-status\r\n" +
	"\r\n" +
	"Final-Recipient: rfc822; ghost@example.org\r\n" +
	"Action: failed\r\n" +
	"--b1\r\n" +
	"Content-Type: message/rfc822\r\n" +
	"\r\n" +
	"From: me@example.com\r\n" +
	"To: ghost@example.org\r\n" +
	"Subject: Music Submission\r\n" +
	"\r\n" +
	"original pitch\r\n" +
	"--b1--\r\n"

func TestComposeMIME(t *testing.T) {
	date := time.Date(2025, 10, 6, 10, 0, 0, 0, time.UTC)

	t.Run("Plain Only", func(t *testing.T) {
		raw, err := ComposeMIME(Email{To: "jane@example.com", Subject: "Hello", Plain: "hi there", Date: date})
		if err != nil {
			t.Fatalf("ComposeMIME() error = %v", err)
		}
		s := string(raw)
		if !strings.Contains(s, "Content-Type: text/plain; charset=utf-8") {
			t.Errorf("expected single text/plain part:\n%s", s)
		}
		if strings.Contains(s, "multipart") {
			t.Errorf("plain message should not be multipart:\n%s", s)
		}
	})

	t.Run("HTML With Fallback And CC", func(t *testing.T) {
		raw, err := ComposeMIME(Email{
			To:      "jane@example.com",
			CC:      []string{"me@example.com", ""},
			Subject: "Music Submission for Caf\u00e9 Mix",
			Plain:   "hi",
			HTML:    "<p>hi</p>",
			Date:    date,
		})
		if err != nil {
			t.Fatalf("ComposeMIME() error = %v", err)
		}
		s := string(raw)
		for _, want := range []string{"multipart/alternative", "Cc: <me@example.com>", "text/plain", "text/html"} {
			if !strings.Contains(s, want) {
				t.Errorf("message missing %q:\n%s", want, s)
			}
		}
		if strings.Index(s, "text/plain") > strings.Index(s, "text/html") {
			t.Error("plain part should precede html part")
		}
		if strings.Contains(s, "Caf\u00e9") {
			t.Error("non-ASCII subject should be encoded")
		}

		parsed, err := ParseMessage(raw)
		if err != nil {
			t.Fatalf("ParseMessage() error = %v", err)
		}
		if parsed.Subject != "Music Submission for Caf\u00e9 Mix" {
			t.Errorf("round trip subject = %q", parsed.Subject)
		}
	})

	t.Run("Missing Recipient", func(t *testing.T) {
		if _, err := ComposeMIME(Email{Plain: "x"}); err == nil {
			t.Error("expected error for missing recipient")
		}
	})
}

func TestParseMessage(t *testing.T) {
	parsed, err := ParseMessage([]byte(bounceFixture))
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}

	if parsed.Subject != "Delivery Status Notification (Failure)" {
		t.Errorf("Subject = %q", parsed.Subject)
	}
	if len(parsed.From) != 1 || parsed.From[0] != "mailer-daemon@googlemail.com" {
		t.Errorf("From = %v", parsed.From)
	}
	if parsed.Date.IsZero() {
		t.Error("Date should be parsed")
	}
	if !strings.Contains(parsed.Text, "couldn't be found") {
		t.Errorf("Text missing plain body:\n%s", parsed.Text)
	}
	if !strings.Contains(parsed.Text, "Final-Recipient: rfc822; ghost@example.org") {
		t.Errorf("Text missing delivery status:\n%s", parsed.Text)
	}
	if strings.Contains(parsed.Text, "original pitch") {
		t.Error("embedded original message should be skipped")
	}
}
