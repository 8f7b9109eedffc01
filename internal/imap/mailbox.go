package imap

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"

	"github.com/vdavid/vmail-lite/internal/mailerr"
)

var errEmptyUIDList = errors.New("no message ids given")

// ParseUIDs parses a comma-separated list of positive UIDs such as "4,7,12".
func ParseUIDs(list string) (*imap.SeqSet, []uint32, error) {
	seqSet := new(imap.SeqSet)
	var uids []uint32

	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil || n == 0 {
			return nil, nil, mailerr.New(mailerr.KindInvalidInput, "parse ids", fmt.Errorf("invalid message id %q", part))
		}
		seqSet.AddNum(uint32(n))
		uids = append(uids, uint32(n))
	}

	if len(uids) == 0 {
		return nil, nil, mailerr.New(mailerr.KindInvalidInput, "parse ids", errEmptyUIDList)
	}

	return seqSet, uids, nil
}

// UIDSet builds a sequence set from UIDs.
func UIDSet(uids ...uint32) *imap.SeqSet {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)
	return seqSet
}

// AddFlags adds flags to the messages in uids without asking for the
// updated flags back.
func (m *Mailbox) AddFlags(uids *imap.SeqSet, flags ...string) error {
	return m.storeFlags(uids, imap.AddFlags, flags)
}

// RemoveFlags removes flags from the messages in uids.
func (m *Mailbox) RemoveFlags(uids *imap.SeqSet, flags ...string) error {
	return m.storeFlags(uids, imap.RemoveFlags, flags)
}

func (m *Mailbox) storeFlags(uids *imap.SeqSet, op imap.FlagsOp, flags []string) error {
	item := imap.FormatFlagsOp(op, true)
	value := make([]interface{}, len(flags))
	for i, f := range flags {
		value[i] = f
	}

	if err := m.conn.UidStore(uids, item, value, nil); err != nil {
		return classify("store flags in "+m.Path, err, mailerr.KindOperation)
	}
	return nil
}

// Move moves the messages in uids to dest.
func (m *Mailbox) Move(uids *imap.SeqSet, dest string) error {
	if err := m.conn.UidMove(uids, dest); err != nil {
		return classify(fmt.Sprintf("move %s to %s", m.Path, dest), err, mailerr.KindOperation)
	}
	return nil
}

// Delete marks the messages in uids as deleted and expunges the folder.
// Without UIDPLUS the expunge also removes any message some other client
// had already marked as deleted in this folder.
func (m *Mailbox) Delete(uids *imap.SeqSet) error {
	if err := m.AddFlags(uids, imap.DeletedFlag); err != nil {
		return err
	}
	if err := m.conn.Expunge(nil); err != nil {
		return classify("expunge "+m.Path, err, mailerr.KindOperation)
	}
	return nil
}

// DeleteAll permanently removes every message in the folder and returns how
// many there were.
func (m *Mailbox) DeleteAll() (uint32, error) {
	count := uint32(0)
	if m.Status != nil {
		count = m.Status.Messages
	}
	if count == 0 {
		return 0, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(1, 0)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := m.conn.Store(seqSet, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
		return 0, classify("store flags in "+m.Path, err, mailerr.KindOperation)
	}
	if err := m.conn.Expunge(nil); err != nil {
		return 0, classify("expunge "+m.Path, err, mailerr.KindOperation)
	}

	return count, nil
}
