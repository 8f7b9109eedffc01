package models

import "time"

// FolderRole is the logical purpose of a mailbox, independent of the name
// the server gives it.
type FolderRole string

const (
	RoleInbox   FolderRole = "INBOX"
	RoleSent    FolderRole = "SENT"
	RoleDrafts  FolderRole = "DRAFTS"
	RoleJunk    FolderRole = "JUNK"
	RoleTrash   FolderRole = "TRASH"
	RoleArchive FolderRole = "ARCHIVE"
	// RoleStarred is a filtered view over INBOX, never a server folder.
	RoleStarred FolderRole = "STARRED"
	RoleUser    FolderRole = "USER"
)

// SystemRoles lists the roles that resolve to a real server folder other
// than INBOX, in resolution order.
var SystemRoles = []FolderRole{RoleTrash, RoleJunk, RoleSent, RoleDrafts, RoleArchive}

// Folder is one entry of the annotated folder list.
type Folder struct {
	Name string     `json:"name"`
	Path string     `json:"path"`
	Type FolderRole `json:"type"`
}

// MessageSummary is a row of a folder listing.
type MessageSummary struct {
	UID     uint32    `json:"uid"`
	Subject string    `json:"subject"`
	From    string    `json:"from"`
	Date    time.Time `json:"date"`
	Flags   []string  `json:"flags"`
}

// MessageDetail is the render-ready view of one message.
type MessageDetail struct {
	UID         uint32       `json:"uid"`
	Subject     string       `json:"subject"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	Date        time.Time    `json:"date"`
	Body        string       `json:"body"`
	IsHTML      bool         `json:"isHtml"`
	Attachments []Attachment `json:"attachments"`
}

type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
	ContentID   string `json:"-"`
}

// AttachmentContent is returned by attachment downloads only.
type AttachmentContent struct {
	Filename    string
	ContentType string
	Content     []byte
}

// UploadedFile is a file attached to an outgoing message.
type UploadedFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ComposePayload is the input for sending a message or saving a draft.
// It only lives for the duration of one request.
type ComposePayload struct {
	To          []string
	CC          []string
	BCC         []string
	Subject     string
	HTMLBody    string
	TextBody    string
	Attachments []UploadedFile
}

// EnvelopeRecipients returns every address the message is delivered to,
// including blind copies.
func (p ComposePayload) EnvelopeRecipients() []string {
	rcpts := make([]string, 0, len(p.To)+len(p.CC)+len(p.BCC))
	rcpts = append(rcpts, p.To...)
	rcpts = append(rcpts, p.CC...)
	rcpts = append(rcpts, p.BCC...)
	return rcpts
}

// DeliveryRecord is the outcome of one send, as kept in the delivery
// journal. It never holds credentials or message content.
type DeliveryRecord struct {
	ID            string    `json:"id"`
	Address       string    `json:"-"`
	Recipients    []string  `json:"recipients"`
	Attempt       string    `json:"attempt"`
	Delivered     bool      `json:"delivered"`
	DeliveryError string    `json:"deliveryError,omitempty"`
	ArchivalError string    `json:"archivalError,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}
