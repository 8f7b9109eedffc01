package api

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/vdavid/vmail-lite/internal/mail"
	"github.com/vdavid/vmail-lite/internal/models"
)

type MailsHandler struct {
	service *mail.Service
}

func NewMailsHandler(service *mail.Service) *MailsHandler {
	return &MailsHandler{service: service}
}

// List returns the newest messages of ?folder= (INBOX by default).
func (h *MailsHandler) List(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}

	messages, err := h.service.ListMessages(r.Context(), creds, folderParam(r))
	if err != nil {
		writeError(w, r, "list messages", err)
		return
	}
	if messages == nil {
		messages = []models.MessageSummary{}
	}

	writeData(w, messages)
}

// Get returns one decoded message and marks it as read.
func (h *MailsHandler) Get(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}
	uid, err := singleUID(r)
	if err != nil {
		writeError(w, r, "get message", err)
		return
	}

	detail, err := h.service.GetMessage(r.Context(), creds, folderParam(r), uid)
	if err != nil {
		writeError(w, r, "get message", err)
		return
	}

	writeData(w, detail)
}

// Download streams the raw source as an .eml file without marking it read.
func (h *MailsHandler) Download(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}
	uid, err := singleUID(r)
	if err != nil {
		writeError(w, r, "download message", err)
		return
	}

	raw, err := h.service.DownloadRaw(r.Context(), creds, folderParam(r), uid)
	if err != nil {
		writeError(w, r, "download message", err)
		return
	}

	filename := "mail-" + strconv.FormatUint(uint64(uid), 10) + ".eml"
	w.Header().Set("Content-Type", "message/rfc822")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
	if _, err := w.Write(raw); err != nil {
		log.Warn().Err(err).Uint32("uid", uid).Msg("MailsHandler: failed to write download")
	}
}

// Attachment streams one attachment of a message by filename.
func (h *MailsHandler) Attachment(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}
	uid, err := singleUID(r)
	if err != nil {
		writeError(w, r, "download attachment", err)
		return
	}

	att, err := h.service.DownloadAttachment(r.Context(), creds, folderParam(r), uid, chi.URLParam(r, "filename"))
	if err != nil {
		writeError(w, r, "download attachment", err)
		return
	}

	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(att.Content)))
	if _, err := w.Write(att.Content); err != nil {
		log.Warn().Err(err).Uint32("uid", uid).Msg("MailsHandler: failed to write attachment")
	}
}

// Delete moves the messages to Trash, or removes them for good when they
// already are in Trash. {uid} may be a comma-separated list.
func (h *MailsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), creds, folderParam(r), chi.URLParam(r, "uid")); err != nil {
		writeError(w, r, "delete messages", err)
		return
	}

	writeMessage(w, "Silindi")
}

func (h *MailsHandler) Move(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}

	var req MoveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "move messages", err)
		return
	}

	if err := h.service.Move(r.Context(), creds, folderParam(r), chi.URLParam(r, "uid"), req.Destination); err != nil {
		writeError(w, r, "move messages", err)
		return
	}

	writeMessage(w, "Taşındı")
}

func (h *MailsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}

	if err := h.service.Archive(r.Context(), creds, folderParam(r), chi.URLParam(r, "uid")); err != nil {
		writeError(w, r, "archive messages", err)
		return
	}

	writeMessage(w, "Arşivlendi")
}

func (h *MailsHandler) Spam(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkSpam(r.Context(), creds, folderParam(r), chi.URLParam(r, "uid")); err != nil {
		writeError(w, r, "mark spam", err)
		return
	}

	writeMessage(w, "Spam olarak işaretlendi")
}

func (h *MailsHandler) Unread(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkUnread(r.Context(), creds, folderParam(r), chi.URLParam(r, "uid")); err != nil {
		writeError(w, r, "mark unread", err)
		return
	}

	writeMessage(w, "Okunmadı olarak işaretlendi")
}

// EmptyTrash permanently removes everything in Trash.
func (h *MailsHandler) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}

	removed, err := h.service.EmptyTrash(r.Context(), creds)
	if err != nil {
		writeError(w, r, "empty trash", err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "Çöp kutusu boşaltıldı",
		Data:    map[string]uint32{"deleted": removed},
	})
}
