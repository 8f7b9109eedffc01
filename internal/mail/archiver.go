package mail

import (
	"context"

	goimap "github.com/emersion/go-imap"

	"github.com/vdavid/vmail-lite/internal/imap"
	"github.com/vdavid/vmail-lite/internal/models"
)

// SentArchiver stores delivered messages in the account's Sent folder,
// marked as seen. It opens its own session for every message.
type SentArchiver struct {
	sessions *imap.Manager
}

func NewSentArchiver(sessions *imap.Manager) *SentArchiver {
	return &SentArchiver{sessions: sessions}
}

func (a *SentArchiver) Archive(ctx context.Context, creds models.Credentials, raw []byte) error {
	return a.sessions.WithSession(ctx, creds, func(sess *imap.Session) error {
		system, err := sess.SystemFolders()
		if err != nil {
			return err
		}
		return sess.Append(system.Sent, []string{goimap.SeenFlag}, raw)
	})
}
