package mail

import (
	"context"
	"errors"

	goimap "github.com/emersion/go-imap"
	"github.com/rs/zerolog/log"

	"github.com/vdavid/vmail-lite/internal/imap"
	"github.com/vdavid/vmail-lite/internal/mailerr"
	"github.com/vdavid/vmail-lite/internal/models"
)

var errNoDestination = errors.New("destination folder is required")

// Delete removes a batch of messages. From the trash they are deleted for
// good; from anywhere else the whole batch goes to the trash in one MOVE.
func (s *Service) Delete(ctx context.Context, creds models.Credentials, folder, uidList string) error {
	uids, _, err := imap.ParseUIDs(uidList)
	if err != nil {
		return err
	}

	return s.sessions.WithFolder(ctx, creds, folder, func(m *imap.Mailbox) error {
		system, err := m.SystemFolders()
		if err != nil {
			return err
		}

		if m.Role == models.RoleTrash || m.Path == system.Trash {
			log.Debug().Str("folder", m.Path).Str("uids", uids.String()).Msg("Delete: expunging from trash")
			return m.Delete(uids)
		}
		return m.Move(uids, system.Trash)
	})
}

// Move moves a batch of messages to dest, which may be a role alias such as
// ARCHIVE or a literal folder path.
func (s *Service) Move(ctx context.Context, creds models.Credentials, folder, uidList, dest string) error {
	if dest == "" {
		return mailerr.New(mailerr.KindInvalidInput, "move", errNoDestination)
	}

	uids, _, err := imap.ParseUIDs(uidList)
	if err != nil {
		return err
	}

	return s.sessions.WithFolder(ctx, creds, folder, func(m *imap.Mailbox) error {
		destPath, _, err := m.ResolveFolder(dest)
		if err != nil {
			return err
		}
		return m.Move(uids, destPath)
	})
}

// Archive moves messages to the archive folder.
func (s *Service) Archive(ctx context.Context, creds models.Credentials, folder, uidList string) error {
	return s.Move(ctx, creds, folder, uidList, "ARCHIVE")
}

// MarkSpam moves messages to the junk folder.
func (s *Service) MarkSpam(ctx context.Context, creds models.Credentials, folder, uidList string) error {
	return s.Move(ctx, creds, folder, uidList, "SPAM")
}

func (s *Service) MarkUnread(ctx context.Context, creds models.Credentials, folder, uidList string) error {
	uids, _, err := imap.ParseUIDs(uidList)
	if err != nil {
		return err
	}

	return s.sessions.WithFolder(ctx, creds, folder, func(m *imap.Mailbox) error {
		return m.RemoveFlags(uids, goimap.SeenFlag)
	})
}

// EmptyTrash permanently deletes everything in the trash and returns how
// many messages were removed.
func (s *Service) EmptyTrash(ctx context.Context, creds models.Credentials) (uint32, error) {
	var removed uint32

	err := s.sessions.WithFolder(ctx, creds, "TRASH", func(m *imap.Mailbox) error {
		var err error
		removed, err = m.DeleteAll()
		return err
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}
