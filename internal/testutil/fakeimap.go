package testutil

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
)

// FakeIMAPConn is a scripted IMAP connection. It records every call by
// method name and fails a method when Fail holds an error for it.
type FakeIMAPConn struct {
	mu sync.Mutex

	Calls []string
	Fail  map[string]error

	Folders  []*imap.MailboxInfo
	Statuses map[string]*imap.MailboxStatus
	Messages []*imap.Message
	Caps     map[string]bool

	Selected   []string
	FetchSets  []string
	Moves      []FakeMove
	Appends    []FakeAppend
	Stores     []FakeStore
	Expunges   int
	Terminates int
}

type FakeMove struct {
	UIDs string
	Dest string
}

type FakeAppend struct {
	Folder string
	Flags  []string
	Raw    []byte
}

type FakeStore struct {
	UIDs  string
	Item  imap.StoreItem
	Flags []interface{}
}

func NewFakeIMAPConn() *FakeIMAPConn {
	return &FakeIMAPConn{
		Fail:     make(map[string]error),
		Statuses: make(map[string]*imap.MailboxStatus),
		Caps:     map[string]bool{"UNSELECT": true, "MOVE": true},
	}
}

func (c *FakeIMAPConn) record(call string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, call)
	return c.Fail[call]
}

// CallCount returns how many times call was made.
func (c *FakeIMAPConn) CallCount(call string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, made := range c.Calls {
		if made == call {
			n++
		}
	}
	return n
}

func (c *FakeIMAPConn) Login(username, password string) error {
	return c.record("Login")
}

func (c *FakeIMAPConn) List(ref, name string, ch chan *imap.MailboxInfo) error {
	defer close(ch)
	if err := c.record("List"); err != nil {
		return err
	}
	for _, f := range c.Folders {
		ch <- f
	}
	return nil
}

func (c *FakeIMAPConn) Create(name string) error {
	return c.record("Create")
}

func (c *FakeIMAPConn) Append(mbox string, flags []string, date time.Time, msg imap.Literal) error {
	if err := c.record("Append"); err != nil {
		return err
	}
	raw, err := io.ReadAll(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.Appends = append(c.Appends, FakeAppend{Folder: mbox, Flags: flags, Raw: raw})
	c.mu.Unlock()
	return nil
}

func (c *FakeIMAPConn) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	if err := c.record("Select"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Selected = append(c.Selected, name)
	if status, ok := c.Statuses[name]; ok {
		return status, nil
	}
	return imap.NewMailboxStatus(name, nil), nil
}

func (c *FakeIMAPConn) Fetch(seqSet *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	defer close(ch)
	if err := c.record("Fetch"); err != nil {
		return err
	}
	c.mu.Lock()
	c.FetchSets = append(c.FetchSets, seqSet.String())
	c.mu.Unlock()
	for _, msg := range c.Messages {
		if seqSet.Contains(msg.SeqNum) {
			ch <- msg
		}
	}
	return nil
}

func (c *FakeIMAPConn) UidFetch(seqSet *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	defer close(ch)
	if err := c.record("UidFetch"); err != nil {
		return err
	}
	for _, msg := range c.Messages {
		if seqSet.Contains(msg.Uid) {
			ch <- msg
		}
	}
	return nil
}

func (c *FakeIMAPConn) Store(seqSet *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error {
	return c.store("Store", seqSet, item, value, ch)
}

func (c *FakeIMAPConn) UidStore(seqSet *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error {
	return c.store("UidStore", seqSet, item, value, ch)
}

func (c *FakeIMAPConn) store(call string, seqSet *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error {
	if ch != nil {
		defer close(ch)
	}
	if err := c.record(call); err != nil {
		return err
	}
	flags, _ := value.([]interface{})
	c.mu.Lock()
	c.Stores = append(c.Stores, FakeStore{UIDs: seqSet.String(), Item: item, Flags: flags})
	c.mu.Unlock()
	return nil
}

func (c *FakeIMAPConn) UidMove(seqSet *imap.SeqSet, dest string) error {
	if err := c.record("UidMove"); err != nil {
		return err
	}
	c.mu.Lock()
	c.Moves = append(c.Moves, FakeMove{UIDs: seqSet.String(), Dest: dest})
	c.mu.Unlock()
	return nil
}

func (c *FakeIMAPConn) Expunge(ch chan uint32) error {
	if ch != nil {
		defer close(ch)
	}
	if err := c.record("Expunge"); err != nil {
		return err
	}
	c.mu.Lock()
	c.Expunges++
	c.mu.Unlock()
	return nil
}

func (c *FakeIMAPConn) Support(capability string) (bool, error) {
	if err := c.record("Support"); err != nil {
		return false, err
	}
	return c.Caps[capability], nil
}

func (c *FakeIMAPConn) Unselect() error {
	return c.record("Unselect")
}

func (c *FakeIMAPConn) Close() error {
	return c.record("Close")
}

func (c *FakeIMAPConn) Logout() error {
	return c.record("Logout")
}

func (c *FakeIMAPConn) Terminate() error {
	c.mu.Lock()
	c.Terminates++
	c.mu.Unlock()
	return c.record("Terminate")
}

// Envelope builds a fetched message with the given sequence number, UID and
// subject.
func Envelope(seq, uid uint32, subject, from string, flags ...string) *imap.Message {
	msg := imap.NewMessage(seq, []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid})
	msg.Uid = uid
	msg.Flags = flags
	msg.Envelope = &imap.Envelope{
		Subject: subject,
		Date:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Minute),
	}
	if from != "" {
		mailbox, host, _ := strings.Cut(from, "@")
		msg.Envelope.From = []*imap.Address{{MailboxName: mailbox, HostName: host}}
	}
	return msg
}

// WithBody attaches raw as the full body of msg, the way a server answers
// BODY.PEEK[]. The body can be read once.
func WithBody(msg *imap.Message, raw string) *imap.Message {
	msg.Body[&imap.BodySectionName{}] = bytes.NewReader([]byte(raw))
	return msg
}
