package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vdavid/vmail-lite/internal/mailerr"
	"github.com/vdavid/vmail-lite/internal/message"
	"github.com/vdavid/vmail-lite/internal/models"
)

var validate = validator.New()

// LoginRequest is the body of POST /api/login. Host, port and secure fall
// back to the server defaults when left out.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Host     string `json:"host" validate:"omitempty,hostname_rfc1123|ip"`
	Port     int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Secure   *bool  `json:"secure"`
}

type MoveRequest struct {
	Destination string `json:"destination" validate:"required"`
}

// UpdateDraftRequest is the body of POST /api/mails/{uid}/draft.
type UpdateDraftRequest struct {
	Folder  string `json:"folder"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	To      string `json:"to"`
}

// decodeJSON reads and validates a JSON body. Any failure is InvalidInput.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return mailerr.New(mailerr.KindInvalidInput, "decode body", fmt.Errorf("invalid JSON: %w", err))
	}
	if err := validate.Struct(v); err != nil {
		return mailerr.New(mailerr.KindInvalidInput, "validate body", fmt.Errorf("validation error: %w", err))
	}
	return nil
}

// composeForm is a parsed multipart compose request.
type composeForm struct {
	payload    models.ComposePayload
	replaceUID uint32
}

// parseComposeForm reads a multipart (or urlencoded) compose form. The body
// is capped at maxBytes; a larger body is reported as *http.MaxBytesError.
func parseComposeForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (*composeForm, error) {
	if r.ContentLength > maxBytes {
		return nil, &http.MaxBytesError{Limit: maxBytes}
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, mailerr.New(mailerr.KindInvalidInput, "parse form", err)
	}

	form := &composeForm{
		payload: models.ComposePayload{
			To:       message.SplitRecipients(r.FormValue("to")),
			CC:       message.SplitRecipients(r.FormValue("cc")),
			BCC:      message.SplitRecipients(r.FormValue("bcc")),
			Subject:  r.FormValue("subject"),
			HTMLBody: r.FormValue("html"),
			TextBody: r.FormValue("body"),
		},
	}

	if raw := strings.TrimSpace(r.FormValue("draftUid")); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || n == 0 {
			return nil, mailerr.New(mailerr.KindInvalidInput, "parse form", fmt.Errorf("%w: draftUid %q", errInvalidUID, raw))
		}
		form.replaceUID = uint32(n)
	}

	if r.MultipartForm == nil {
		return form, nil
	}

	for _, fh := range r.MultipartForm.File["attachments"] {
		f, err := fh.Open()
		if err != nil {
			return nil, mailerr.New(mailerr.KindInvalidInput, "read attachment", err)
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, mailerr.New(mailerr.KindInvalidInput, "read attachment", err)
		}

		form.payload.Attachments = append(form.payload.Attachments, models.UploadedFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     content,
		})
	}

	return form, nil
}
