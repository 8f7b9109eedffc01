package api

import (
	"net/http"

	"github.com/vdavid/vmail-lite/internal/mail"
)

type FoldersHandler struct {
	service *mail.Service
}

func NewFoldersHandler(service *mail.Service) *FoldersHandler {
	return &FoldersHandler{service: service}
}

func (h *FoldersHandler) GetFolders(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}

	folders, err := h.service.ListFolders(r.Context(), creds)
	if err != nil {
		writeError(w, r, "list folders", err)
		return
	}

	writeData(w, folders)
}
