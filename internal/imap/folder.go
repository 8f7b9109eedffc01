package imap

import (
	"bytes"
	"time"

	"github.com/emersion/go-imap"

	"github.com/vdavid/vmail-lite/internal/mailerr"
)

// ListFolders lists every folder on the server in server order.
func (s *Session) ListFolders() ([]FolderInfo, error) {
	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)

	go func() {
		done <- s.conn.List("", "*", mailboxes)
	}()

	var folders []FolderInfo
	for m := range mailboxes {
		folders = append(folders, FolderInfo{
			Path:       m.Name,
			Delimiter:  m.Delimiter,
			Attributes: m.Attributes,
		})
	}

	if err := <-done; err != nil {
		return nil, classify("list folders", err, mailerr.KindOperation)
	}

	return folders, nil
}

// Append stores raw as a new message in folder.
func (s *Session) Append(folder string, flags []string, raw []byte) error {
	if err := s.conn.Append(folder, flags, time.Now(), bytes.NewBuffer(raw)); err != nil {
		return classify("append to "+folder, err, mailerr.KindOperation)
	}
	return nil
}

// Create creates folder.
func (s *Session) Create(folder string) error {
	if err := s.conn.Create(folder); err != nil {
		return classify("create "+folder, err, mailerr.KindOperation)
	}
	return nil
}
