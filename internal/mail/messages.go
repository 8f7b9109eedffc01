package mail

import (
	"context"
	"strings"

	goimap "github.com/emersion/go-imap"

	"github.com/vdavid/vmail-lite/internal/imap"
	"github.com/vdavid/vmail-lite/internal/message"
	"github.com/vdavid/vmail-lite/internal/models"
)

// ListMessages returns the most recent messages of folder, newest first.
// STARRED lists the flagged messages of INBOX and touches no other folder.
func (s *Service) ListMessages(ctx context.Context, creds models.Credentials, folder string) ([]models.MessageSummary, error) {
	var summaries []models.MessageSummary

	err := s.sessions.WithFolder(ctx, creds, folder, func(m *imap.Mailbox) error {
		var err error
		summaries, err = m.FetchSummaries(s.opts.ListLimit, m.Role == models.RoleStarred)
		return err
	})
	if err != nil {
		return nil, err
	}

	return summaries, nil
}

// GetMessage fetches, marks as seen and decodes one message.
func (s *Service) GetMessage(ctx context.Context, creds models.Credentials, folder string, uid uint32) (*models.MessageDetail, error) {
	var detail *models.MessageDetail

	err := s.sessions.WithFolder(ctx, creds, folder, func(m *imap.Mailbox) error {
		fetched, err := m.FetchRaw(uid)
		if err != nil {
			return err
		}

		if err := m.AddFlags(imap.UIDSet(uid), goimap.SeenFlag); err != nil {
			return err
		}

		decoded, err := message.Decode(fetched.Raw)
		if err != nil {
			return err
		}

		detail = buildDetail(fetched, decoded)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return detail, nil
}

// buildDetail prefers the server's envelope and falls back to the parsed
// headers where the envelope is empty.
func buildDetail(fetched *imap.FetchedMessage, decoded *message.Decoded) *models.MessageDetail {
	summary := fetched.Summary()

	detail := &models.MessageDetail{
		UID:         fetched.UID,
		Subject:     summary.Subject,
		From:        summary.From,
		Date:        summary.Date,
		Body:        decoded.Body,
		IsHTML:      decoded.IsHTML,
		Attachments: decoded.Attachments,
	}

	if fetched.Envelope != nil {
		detail.To = strings.Join(imap.AddressList(fetched.Envelope.To), ", ")
	}
	if detail.To == "" {
		detail.To = decoded.To
	}
	if detail.Date.IsZero() {
		detail.Date = decoded.Date
	}

	return detail
}

// DownloadRaw returns the full source of a message without marking it seen.
func (s *Service) DownloadRaw(ctx context.Context, creds models.Credentials, folder string, uid uint32) ([]byte, error) {
	var raw []byte

	err := s.sessions.WithFolder(ctx, creds, folder, func(m *imap.Mailbox) error {
		fetched, err := m.FetchRaw(uid)
		if err != nil {
			return err
		}
		raw = fetched.Raw
		return nil
	})
	if err != nil {
		return nil, err
	}

	return raw, nil
}

// DownloadAttachment returns the first part of a message named filename.
func (s *Service) DownloadAttachment(ctx context.Context, creds models.Credentials, folder string, uid uint32, filename string) (*models.AttachmentContent, error) {
	raw, err := s.DownloadRaw(ctx, creds, folder, uid)
	if err != nil {
		return nil, err
	}
	return message.FindAttachment(raw, filename)
}
