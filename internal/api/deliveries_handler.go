package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/vdavid/vmail-lite/internal/models"
)

const (
	defaultDeliveriesLimit = 20
	maxDeliveriesLimit     = 100
)

// DeliveryLog reads past delivery outcomes.
type DeliveryLog interface {
	Recent(ctx context.Context, address string, limit int) ([]models.DeliveryRecord, error)
}

type DeliveriesHandler struct {
	log DeliveryLog
}

func NewDeliveriesHandler(log DeliveryLog) *DeliveriesHandler {
	return &DeliveriesHandler{log: log}
}

// List returns the caller's most recent send outcomes. ?limit= is clamped
// to 1..100.
func (h *DeliveriesHandler) List(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}

	limit := defaultDeliveriesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = min(max(n, 1), maxDeliveriesLimit)
		}
	}

	records, err := h.log.Recent(r.Context(), creds.Address, limit)
	if err != nil {
		writeError(w, r, "list deliveries", err)
		return
	}
	if records == nil {
		records = []models.DeliveryRecord{}
	}

	writeData(w, records)
}
