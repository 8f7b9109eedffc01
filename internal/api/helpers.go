package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/vdavid/vmail-lite/internal/auth"
	"github.com/vdavid/vmail-lite/internal/delivery"
	"github.com/vdavid/vmail-lite/internal/mailerr"
	"github.com/vdavid/vmail-lite/internal/models"
)

// envelope is the shape of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Warning string `json:"warning,omitempty"`
	Error   string `json:"error,omitempty"`
}

var errInvalidUID = errors.New("invalid message id")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("API: failed to encode response")
	}
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message})
}

// writeError maps a classified error to its status and user-facing text.
// The cause is logged but never sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := mailerr.KindOf(err)
	status := mailerr.HTTPStatus(kind)

	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("op", op).Str("kind", kind.String()).Int("status", status).
		Str("path", r.URL.Path).Msg("API: request failed")

	writeJSON(w, status, envelope{Success: false, Error: errorMessage(kind, err)})
}

// errorMessage is the kind's message, plus the server's reason when every
// submission attempt was refused.
func errorMessage(kind mailerr.Kind, err error) string {
	msg := mailerr.Message(kind)
	if kind != mailerr.KindDeliverySubmission {
		return msg
	}
	if cause := delivery.FailureCause(err); cause != "" {
		return strings.TrimSuffix(msg, ".") + ": " + cause
	}
	return msg
}

// credentials returns the caller's credentials, writing a 401 when the auth
// middleware did not run.
func credentials(w http.ResponseWriter, r *http.Request) (models.Credentials, bool) {
	creds, ok := auth.GetCredentialsFromContext(r.Context())
	if !ok {
		log.Error().Str("path", r.URL.Path).Msg("API: no credentials in context")
		writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: mailerr.Message(mailerr.KindInvalidToken)})
		return models.Credentials{}, false
	}
	return creds, true
}

// folderParam returns ?folder=, defaulting to INBOX.
func folderParam(r *http.Request) string {
	if folder := r.URL.Query().Get("folder"); folder != "" {
		return folder
	}
	return "INBOX"
}

// singleUID parses the {uid} path segment as one positive UID.
func singleUID(r *http.Request) (uint32, error) {
	raw := chi.URLParam(r, "uid")
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || n == 0 {
		return 0, mailerr.New(mailerr.KindInvalidInput, "parse uid", fmt.Errorf("%w: %q", errInvalidUID, raw))
	}
	return uint32(n), nil
}
