package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/vdavid/vmail-lite/internal/mail"
	"github.com/vdavid/vmail-lite/internal/message"
	"github.com/vdavid/vmail-lite/internal/models"
)

// DefaultMaxUploadBytes caps compose request bodies when no limit is set.
const DefaultMaxUploadBytes = 10 << 20

type ComposeHandler struct {
	service        *mail.Service
	maxUploadBytes int64
}

func NewComposeHandler(service *mail.Service, maxUploadBytes int64) *ComposeHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &ComposeHandler{service: service, maxUploadBytes: maxUploadBytes}
}

// Send delivers a multipart compose form. A message that was delivered but
// could not be copied to Sent still succeeds, with a warning.
func (h *ComposeHandler) Send(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}

	form, ok := h.parseForm(w, r, "send")
	if !ok {
		return
	}

	result, err := h.service.Send(r.Context(), creds, form.payload, form.replaceUID)
	if err != nil {
		writeError(w, r, "send", err)
		return
	}

	resp := envelope{Success: true, Message: "E-posta gönderildi"}
	if result.ArchivalErr != nil {
		log.Warn().Err(result.ArchivalErr).Str("email", creds.Address).Msg("ComposeHandler: sent copy not stored")
		resp.Warning = "E-posta gönderildi ancak Gönderilmiş klasörüne kaydedilemedi."
	}
	writeJSON(w, http.StatusOK, resp)
}

// SaveDraft stores a multipart compose form as a new draft.
func (h *ComposeHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}

	form, ok := h.parseForm(w, r, "save draft")
	if !ok {
		return
	}

	if err := h.service.SaveDraft(r.Context(), creds, form.payload); err != nil {
		writeError(w, r, "save draft", err)
		return
	}

	writeMessage(w, "Taslak kaydedildi")
}

// UpdateDraft replaces an existing draft from a JSON body.
func (h *ComposeHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}
	uid, err := singleUID(r)
	if err != nil {
		writeError(w, r, "update draft", err)
		return
	}

	var req UpdateDraftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "update draft", err)
		return
	}
	if req.Folder == "" {
		req.Folder = string(models.RoleDrafts)
	}

	payload := models.ComposePayload{
		To:       message.SplitRecipients(req.To),
		Subject:  req.Subject,
		HTMLBody: req.Body,
	}

	if err := h.service.UpdateDraft(r.Context(), creds, req.Folder, uid, payload); err != nil {
		writeError(w, r, "update draft", err)
		return
	}

	writeMessage(w, "Taslak güncellendi")
}

func (h *ComposeHandler) parseForm(w http.ResponseWriter, r *http.Request, op string) (*composeForm, bool) {
	form, err := parseComposeForm(w, r, h.maxUploadBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Info().Int64("limit", tooLarge.Limit).Str("op", op).Msg("ComposeHandler: request body too large")
			writeJSON(w, http.StatusRequestEntityTooLarge, envelope{Success: false, Error: "Dosya boyutu çok büyük"})
			return nil, false
		}
		writeError(w, r, op, err)
		return nil, false
	}
	return form, true
}
