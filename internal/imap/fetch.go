package imap

import (
	"fmt"
	"io"
	"sort"

	"github.com/emersion/go-imap"

	"github.com/vdavid/vmail-lite/internal/mailerr"
	"github.com/vdavid/vmail-lite/internal/models"
)

const (
	noSubject     = "(Konu Yok)"
	unknownSender = "Bilinmeyen"
)

// FetchSummaries returns up to limit of the highest-numbered messages in the
// selected folder, most recent first. With onlyFlagged only messages
// carrying \Flagged are kept.
func (m *Mailbox) FetchSummaries(limit int, onlyFlagged bool) ([]models.MessageSummary, error) {
	exists := uint32(0)
	if m.Status != nil {
		exists = m.Status.Messages
	}
	if exists == 0 {
		return []models.MessageSummary{}, nil
	}

	start := uint32(1)
	if limit > 0 && exists > uint32(limit) {
		start = exists - uint32(limit) + 1
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(start, exists)

	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchUid,
	}

	messages := make(chan *imap.Message, 32)
	done := make(chan error, 1)

	go func() {
		done <- m.conn.Fetch(seqSet, items, messages)
	}()

	var fetched []*imap.Message
	for msg := range messages {
		if onlyFlagged && !hasFlag(msg.Flags, imap.FlaggedFlag) {
			continue
		}
		fetched = append(fetched, msg)
	}

	if err := <-done; err != nil {
		return nil, classify("fetch "+m.Path, err, mailerr.KindOperation)
	}

	sort.Slice(fetched, func(i, j int) bool {
		return fetched[i].SeqNum > fetched[j].SeqNum
	})

	summaries := make([]models.MessageSummary, 0, len(fetched))
	for _, msg := range fetched {
		summaries = append(summaries, summaryFromMessage(msg))
	}

	return summaries, nil
}

func summaryFromMessage(msg *imap.Message) models.MessageSummary {
	summary := models.MessageSummary{
		UID:     msg.Uid,
		Subject: noSubject,
		From:    unknownSender,
		Flags:   msg.Flags,
	}
	if summary.Flags == nil {
		summary.Flags = []string{}
	}

	if env := msg.Envelope; env != nil {
		if env.Subject != "" {
			summary.Subject = env.Subject
		}
		if addr := firstAddress(env.From); addr != "" {
			summary.From = addr
		}
		summary.Date = env.Date
	}

	return summary
}

// FetchedMessage is the raw source of one message plus its envelope.
type FetchedMessage struct {
	UID      uint32
	Envelope *imap.Envelope
	Raw      []byte
}

// Summary is the envelope view of the message with the listing fallbacks
// applied to subject and sender.
func (f *FetchedMessage) Summary() models.MessageSummary {
	return summaryFromMessage(&imap.Message{Uid: f.UID, Envelope: f.Envelope})
}

// FetchRaw returns the full source of the message with the given UID.
// BODY.PEEK is used so fetching never marks the message as seen.
func (m *Mailbox) FetchRaw(uid uint32) (*FetchedMessage, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- m.conn.UidFetch(seqSet, items, messages)
	}()

	var msg *imap.Message
	for fetched := range messages {
		if fetched.Uid == uid {
			msg = fetched
		}
	}

	if err := <-done; err != nil {
		return nil, classify(fmt.Sprintf("fetch uid %d", uid), err, mailerr.KindOperation)
	}

	if msg == nil {
		return nil, mailerr.New(mailerr.KindNotFound, "fetch", fmt.Errorf("message %d not found in %s", uid, m.Path))
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, mailerr.New(mailerr.KindNotFound, "fetch", fmt.Errorf("server returned no body for message %d", uid))
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, classify("read body", err, mailerr.KindOperation)
	}

	return &FetchedMessage{UID: msg.Uid, Envelope: msg.Envelope, Raw: raw}, nil
}

func firstAddress(addrs []*imap.Address) string {
	for _, a := range addrs {
		if a == nil {
			continue
		}
		if addr := a.Address(); addr != "" && addr != "@" {
			return addr
		}
	}
	return ""
}

// AddressList formats every address of an envelope field.
func AddressList(addrs []*imap.Address) []string {
	list := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == nil {
			continue
		}
		if addr := a.Address(); addr != "" && addr != "@" {
			list = append(list, addr)
		}
	}
	return list
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
