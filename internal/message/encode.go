// Package message turns compose payloads into RFC 5322 messages and raw
// messages into render-ready views.
package message

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/vdavid/vmail-lite/internal/mailerr"
	"github.com/vdavid/vmail-lite/internal/models"
)

// Encode renders payload as a multipart/mixed message from the account
// address. Bcc recipients are left out of the headers; they only exist in
// the SMTP envelope. Empty recipients and subject are allowed so drafts
// can be encoded with the same code.
func Encode(payload models.ComposePayload, from string) ([]byte, error) {
	return encodeAt(payload, from, time.Now())
}

func encodeAt(payload models.ComposePayload, from string, now time.Time) ([]byte, error) {
	sender, err := mail.ParseAddress(from)
	if err != nil {
		return nil, mailerr.New(mailerr.KindInvalidInput, "encode", fmt.Errorf("invalid sender %q: %w", from, err))
	}

	to, err := parseAddresses(payload.To)
	if err != nil {
		return nil, err
	}
	cc, err := parseAddresses(payload.CC)
	if err != nil {
		return nil, err
	}

	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{sender})
	if len(to) > 0 {
		h.SetAddressList("To", to)
	}
	if len(cc) > 0 {
		h.SetAddressList("Cc", cc)
	}
	h.SetSubject(payload.Subject)
	h.SetMessageID(uuid.NewString() + "@" + messageIDDomain(sender.Address))

	textBody, htmlBody := alternatives(payload)

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create inline writer: %w", err)
	}
	if err := writeInline(iw, "text/plain", textBody); err != nil {
		return nil, err
	}
	if err := writeInline(iw, "text/html", htmlBody); err != nil {
		return nil, err
	}
	if err := iw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close inline writer: %w", err)
	}

	for _, file := range payload.Attachments {
		if err := writeAttachment(mw, file); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message writer: %w", err)
	}

	return buf.Bytes(), nil
}

// alternatives picks the text and HTML bodies, deriving whichever one the
// payload does not carry from the other.
func alternatives(payload models.ComposePayload) (string, string) {
	text, body := payload.TextBody, payload.HTMLBody
	switch {
	case text == "" && body != "":
		text = HTMLToText(body)
	case body == "" && text != "":
		body = TextToHTML(text)
	}
	return text, body
}

func writeInline(iw *mail.InlineWriter, contentType, body string) error {
	var h mail.InlineHeader
	h.SetContentType(contentType, map[string]string{"charset": "utf-8"})

	w, err := iw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return fmt.Errorf("failed to write %s part: %w", contentType, err)
	}
	return w.Close()
}

func writeAttachment(mw *mail.Writer, file models.UploadedFile) error {
	name := file.Filename
	if name == "" {
		name = unnamedFile
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(name))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var h mail.AttachmentHeader
	h.SetContentType(contentType, nil)
	h.SetFilename(name)

	w, err := mw.CreateAttachment(h)
	if err != nil {
		return fmt.Errorf("failed to create attachment %s: %w", name, err)
	}
	if _, err := w.Write(file.Content); err != nil {
		return fmt.Errorf("failed to write attachment %s: %w", name, err)
	}
	return w.Close()
}

func parseAddresses(list []string) ([]*mail.Address, error) {
	addrs := make([]*mail.Address, 0, len(list))
	for _, raw := range list {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			return nil, mailerr.New(mailerr.KindInvalidInput, "encode", fmt.Errorf("invalid recipient %q: %w", raw, err))
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func messageIDDomain(address string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		return address[at+1:]
	}
	return "localhost"
}

// SplitRecipients splits a comma or semicolon separated recipient field.
func SplitRecipients(field string) []string {
	parts := strings.FieldsFunc(field, func(r rune) bool { return r == ',' || r == ';' })
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}
	return list
}
