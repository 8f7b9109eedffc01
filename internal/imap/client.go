package imap

import (
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// Conn is the part of an IMAP client connection used by a session.
// *client.Client from go-imap satisfies it.
type Conn interface {
	Login(username, password string) error
	List(ref, name string, ch chan *imap.MailboxInfo) error
	Create(name string) error
	Append(mbox string, flags []string, date time.Time, msg imap.Literal) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Store(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	UidMove(seqset *imap.SeqSet, dest string) error
	Expunge(ch chan uint32) error
	Support(capability string) (bool, error)
	Unselect() error
	Close() error
	Logout() error
	Terminate() error
}

var _ Conn = (*client.Client)(nil)
