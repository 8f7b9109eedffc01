package message

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"github.com/vdavid/vmail-lite/internal/mailerr"
	"github.com/vdavid/vmail-lite/internal/models"
)

const (
	unnamedFile = "unnamed_file"

	// DefaultPlaceholder is shown when a message has no displayable body.
	DefaultPlaceholder = "Mail içeriği görüntülenemiyor."
)

// ErrAttachmentNotFound is returned when no part has the requested name.
var ErrAttachmentNotFound = errors.New("attachment not found")

var cidRE = regexp.MustCompile(`(?i)cid:([^"'\s)>]+)`)

// Decoded is a parsed message ready to be shown.
type Decoded struct {
	Subject string
	From    string
	To      string
	Date    time.Time
	Body    string
	IsHTML  bool
	// Text is the plain text alternative, derived from the HTML part when
	// the message has none.
	Text        string
	Attachments []models.Attachment
}

// Decoder parses raw messages. The zero value renders plain text bodies as
// HTML and uses DefaultPlaceholder.
type Decoder struct {
	// KeepPlainText returns text-only bodies as they are instead of
	// rendering them to HTML.
	KeepPlainText bool
	Placeholder   string
}

// Decode parses raw with the default decoder.
func Decode(raw []byte) (*Decoded, error) {
	return Decoder{}.Decode(raw)
}

// Decode parses raw. A message without any body is not an error: the body
// becomes the placeholder.
func (d Decoder) Decode(raw []byte) (*Decoded, error) {
	return d.decode(bytes.NewReader(raw))
}

func (d Decoder) decode(r io.Reader) (*Decoded, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, mailerr.New(mailerr.KindDecode, "decode", fmt.Errorf("failed to parse message: %w", err))
	}

	decoded := &Decoded{
		Subject:     env.GetHeader("Subject"),
		From:        addressText(env, "From"),
		To:          addressText(env, "To"),
		Text:        env.Text,
		Attachments: attachmentList(env),
	}
	if date, err := mail.ParseDate(env.GetHeader("Date")); err == nil {
		decoded.Date = date
	}

	switch {
	case strings.TrimSpace(env.HTML) != "":
		decoded.Body = InlineImages(env.HTML, env)
		decoded.IsHTML = true
	case strings.TrimSpace(env.Text) != "" && !d.KeepPlainText:
		decoded.Body = TextToHTML(env.Text)
		decoded.IsHTML = true
	case strings.TrimSpace(env.Text) != "":
		decoded.Body = env.Text
	default:
		decoded.Body = d.placeholder()
	}

	return decoded, nil
}

func (d Decoder) placeholder() string {
	if d.Placeholder != "" {
		return d.Placeholder
	}
	return DefaultPlaceholder
}

// addressText formats an address header as "Name <addr>, addr". Headers
// that do not parse as address lists are returned decoded but otherwise
// untouched.
func addressText(env *enmime.Envelope, key string) string {
	list, err := env.AddressList(key)
	if err != nil || len(list) == 0 {
		return env.GetHeader(key)
	}

	formatted := make([]string, 0, len(list))
	for _, a := range list {
		if a.Name != "" {
			formatted = append(formatted, fmt.Sprintf("%s <%s>", a.Name, a.Address))
		} else {
			formatted = append(formatted, a.Address)
		}
	}
	return strings.Join(formatted, ", ")
}

// fileParts are the parts offered for download: attachments first, then
// inline and unclassified parts that carry a file name or a Content-ID.
// Text bodies carry neither and are skipped.
func fileParts(env *enmime.Envelope) []*enmime.Part {
	parts := make([]*enmime.Part, 0, len(env.Attachments)+len(env.Inlines))
	parts = append(parts, env.Attachments...)
	for _, group := range [][]*enmime.Part{env.Inlines, env.OtherParts} {
		for _, p := range group {
			if p.FileName != "" || p.ContentID != "" {
				parts = append(parts, p)
			}
		}
	}
	return parts
}

func partName(p *enmime.Part) string {
	if p.FileName != "" {
		return p.FileName
	}
	return unnamedFile
}

func attachmentList(env *enmime.Envelope) []models.Attachment {
	parts := fileParts(env)
	list := make([]models.Attachment, 0, len(parts))
	for _, p := range parts {
		list = append(list, models.Attachment{
			Filename:    partName(p),
			ContentType: p.ContentType,
			Size:        len(p.Content),
			ContentID:   p.ContentID,
		})
	}
	return list
}

// InlineImages replaces every cid: reference in body with a data URI built
// from the part carrying that Content-ID. References without a matching part
// are left as they are.
func InlineImages(body string, env *enmime.Envelope) string {
	byID := make(map[string]*enmime.Part)
	for _, group := range [][]*enmime.Part{env.Inlines, env.Attachments, env.OtherParts} {
		for _, p := range group {
			if p.ContentID != "" {
				if _, dup := byID[p.ContentID]; !dup {
					byID[p.ContentID] = p
				}
			}
		}
	}
	if len(byID) == 0 {
		return body
	}

	return cidRE.ReplaceAllStringFunc(body, func(ref string) string {
		p, ok := byID[ref[len("cid:"):]]
		if !ok {
			return ref
		}
		return "data:" + p.ContentType + ";base64," + base64.StdEncoding.EncodeToString(p.Content)
	})
}

// FindAttachment returns the first downloadable part named filename.
func FindAttachment(raw []byte, filename string) (*models.AttachmentContent, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, mailerr.New(mailerr.KindDecode, "decode", fmt.Errorf("failed to parse message: %w", err))
	}

	for _, p := range fileParts(env) {
		if partName(p) == filename {
			return &models.AttachmentContent{
				Filename:    partName(p),
				ContentType: p.ContentType,
				Content:     p.Content,
			}, nil
		}
	}

	return nil, mailerr.New(mailerr.KindNotFound, "find attachment", ErrAttachmentNotFound)
}
