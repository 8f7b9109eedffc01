package api

import (
	"net/http"

	"github.com/vdavid/vmail-lite/internal/widgets"
)

type WidgetsHandler struct {
	aggregator *widgets.Aggregator
}

func NewWidgetsHandler(aggregator *widgets.Aggregator) *WidgetsHandler {
	return &WidgetsHandler{aggregator: aggregator}
}

// Get returns rates, weather and headlines. It always succeeds; missing
// sources come back empty.
func (h *WidgetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeData(w, h.aggregator.All(r.Context()))
}
