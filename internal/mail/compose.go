package mail

import (
	"context"
	"errors"
	"fmt"

	goimap "github.com/emersion/go-imap"
	"github.com/rs/zerolog/log"

	"github.com/vdavid/vmail-lite/internal/delivery"
	"github.com/vdavid/vmail-lite/internal/imap"
	"github.com/vdavid/vmail-lite/internal/mailerr"
	"github.com/vdavid/vmail-lite/internal/message"
	"github.com/vdavid/vmail-lite/internal/models"
)

const (
	draftSubject = "(Konu Yok)"
	// fallbackDrafts is created when the account has no usable drafts folder.
	fallbackDrafts = "Drafts"
)

var errNoRecipients = errors.New("at least one recipient is required")

// Send encodes and delivers payload. When replaceDraft is non-zero the draft
// with that UID is removed from the drafts folder after a successful
// delivery; failing to remove it only logs.
//
// A delivered message whose Sent copy could not be stored is a success: the
// archival error is reported in the result, never as the returned error.
func (s *Service) Send(ctx context.Context, creds models.Credentials, payload models.ComposePayload, replaceDraft uint32) (delivery.Result, error) {
	recipients := payload.EnvelopeRecipients()
	if len(recipients) == 0 {
		return delivery.Result{}, mailerr.New(mailerr.KindInvalidInput, "send", errNoRecipients)
	}

	raw, err := message.Encode(payload, creds.Address)
	if err != nil {
		return delivery.Result{}, err
	}

	result := s.deliverer.Deliver(ctx, creds, raw, recipients)
	if !result.Delivered {
		return result, result.DeliveryErr
	}

	if replaceDraft != 0 {
		err := s.sessions.WithFolder(ctx, creds, "DRAFTS", func(m *imap.Mailbox) error {
			return m.Delete(imap.UIDSet(replaceDraft))
		})
		if err != nil {
			log.Warn().Err(err).Uint32("uid", replaceDraft).Msg("Send: message sent but draft could not be removed")
		}
	}

	return result, nil
}

// SaveDraft stores payload as a new draft. When the append to the resolved
// drafts folder fails, a folder named Drafts is created and the append is
// retried there once.
func (s *Service) SaveDraft(ctx context.Context, creds models.Credentials, payload models.ComposePayload) error {
	if payload.Subject == "" {
		payload.Subject = draftSubject
	}

	raw, err := message.Encode(payload, creds.Address)
	if err != nil {
		return err
	}

	return s.sessions.WithSession(ctx, creds, func(sess *imap.Session) error {
		system, err := sess.SystemFolders()
		if err != nil {
			return err
		}

		appendErr := sess.Append(system.Drafts, []string{goimap.DraftFlag}, raw)
		if appendErr == nil {
			return nil
		}

		log.Warn().Err(appendErr).Str("folder", system.Drafts).Msg("SaveDraft: append failed, creating Drafts")
		if err := sess.Create(fallbackDrafts); err != nil {
			return fmt.Errorf("failed to create drafts folder after %v: %w", appendErr, err)
		}
		return sess.Append(fallbackDrafts, []string{goimap.DraftFlag}, raw)
	})
}

// UpdateDraft replaces the draft uid in folder with payload. The new draft
// is stored before the old one is removed, so a failure leaves at worst a
// duplicate. The replacement gets a new UID.
func (s *Service) UpdateDraft(ctx context.Context, creds models.Credentials, folder string, uid uint32, payload models.ComposePayload) error {
	raw, err := message.Encode(payload, creds.Address)
	if err != nil {
		return err
	}

	return s.sessions.WithFolder(ctx, creds, folder, func(m *imap.Mailbox) error {
		if err := m.Append(m.Path, []string{goimap.DraftFlag}, raw); err != nil {
			return err
		}
		return m.Delete(imap.UIDSet(uid))
	})
}
