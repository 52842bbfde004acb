package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// ParsedMessage is the text content of a fetched message.
type ParsedMessage struct {
	Subject string
	From    []string
	Date    time.Time
	Text    string // text/* and delivery-status parts, joined
}

func addressList(addrs ...string) []*mail.Address {
	list := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		if a = strings.TrimSpace(a); a != "" {
			list = append(list, &mail.Address{Address: a})
		}
	}
	return list
}

func textHeader(contentType string) mail.InlineHeader {
	var h mail.InlineHeader
	h.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	return h
}

func writePart(w io.WriteCloser, body string) error {
	if _, err := io.WriteString(w, body); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// ComposeMIME renders e as an RFC 5322 message. Messages with HTML become multipart/alternative
// with the plain text part first.
func ComposeMIME(e Email) ([]byte, error) {
	if strings.TrimSpace(e.To) == "" {
		return nil, fmt.Errorf("missing recipient")
	}

	var h mail.Header
	date := e.Date
	if date.IsZero() {
		date = time.Now()
	}
	h.SetDate(date)
	h.SetSubject(e.Subject)
	h.SetAddressList("To", addressList(e.To))
	if cc := addressList(e.CC...); len(cc) > 0 {
		h.SetAddressList("Cc", cc)
	}
	if e.From != "" {
		h.SetAddressList("From", addressList(e.From))
	}

	var buf bytes.Buffer
	if e.HTML == "" {
		h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		h.Set("Content-Transfer-Encoding", "quoted-printable")
		w, err := mail.CreateSingleInlineWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("failed to create message: %w", err)
		}
		if err := writePart(w, e.Plain); err != nil {
			return nil, fmt.Errorf("failed to write body: %w", err)
		}
		return buf.Bytes(), nil
	}

	iw, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	if e.Plain != "" {
		w, err := iw.CreatePart(textHeader("text/plain"))
		if err != nil {
			return nil, fmt.Errorf("failed to create text part: %w", err)
		}
		if err := writePart(w, e.Plain); err != nil {
			return nil, fmt.Errorf("failed to write text part: %w", err)
		}
	}
	w, err := iw.CreatePart(textHeader("text/html"))
	if err != nil {
		return nil, fmt.Errorf("failed to create html part: %w", err)
	}
	if err := writePart(w, e.HTML); err != nil {
		return nil, fmt.Errorf("failed to write html part: %w", err)
	}
	if err := iw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseMessage extracts subject, sender, date and readable text from a raw message.
// Embedded copies of the original message (message/rfc822) are skipped.
func ParseMessage(raw []byte) (*ParsedMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	defer mr.Close()

	parsed := &ParsedMessage{}
	parsed.Subject, _ = mr.Header.Subject()
	parsed.Date, _ = mr.Header.Date()
	if from, err := mr.Header.AddressList("From"); err == nil {
		for _, a := range from {
			parsed.From = append(parsed.From, a.Address)
		}
	}

	var text strings.Builder
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read part: %w", err)
		}

		var ct string
		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ = h.ContentType()
		case *mail.AttachmentHeader:
			ct, _, _ = h.ContentType()
		}
		if !readablePart(ct) {
			continue
		}

		body, err := io.ReadAll(p.Body)
		if err != nil {
			continue
		}
		text.Write(body)
		text.WriteByte('\n')
	}

	parsed.Text = text.String()
	return parsed, nil
}

func readablePart(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.HasPrefix(ct, "text/") || ct == "message/delivery-status"
}
