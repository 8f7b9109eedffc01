package api

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/vdavid/vmail-lite/internal/mail"
	"github.com/vdavid/vmail-lite/internal/mailerr"
	"github.com/vdavid/vmail-lite/internal/models"
)

type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
}

type AuthHandler struct {
	service *mail.Service
}

func NewAuthHandler(service *mail.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

// Login verifies the account against its IMAP server and returns a session
// token. Bad input is a 400; any failure to log in is a 401 carrying the
// reason.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Debug().Err(err).Msg("AuthHandler: invalid login request")
		writeJSON(w, http.StatusBadRequest, loginResponse{Message: mailerr.Message(mailerr.KindInvalidInput)})
		return
	}

	creds := models.Credentials{
		Address: req.Email,
		Secret:  req.Password,
		Host:    req.Host,
		Port:    req.Port,
	}

	token, err := h.service.Login(r.Context(), creds, req.Secure)
	if err != nil {
		kind := mailerr.KindOf(err)
		status := http.StatusUnauthorized
		if kind == mailerr.KindInvalidInput {
			status = http.StatusBadRequest
		}
		log.Info().Err(err).Str("email", req.Email).Str("kind", kind.String()).Msg("AuthHandler: login failed")
		writeJSON(w, status, loginResponse{Message: mailerr.Message(kind)})
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Success: true, Token: token})
}
