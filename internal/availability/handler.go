package availability

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bookline/bookline/pkg/logging"
)

// Handler exposes GET /providers/{providerID}/availability.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates an availability handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Day handles GET /providers/{providerID}/availability?date=YYYY-MM-DD.
func (h *Handler) Day(w http.ResponseWriter, r *http.Request) {
	providerID, err := strconv.ParseInt(chi.URLParam(r, "providerID"), 10, 64)
	if err != nil || providerID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid provider id")
		return
	}
	day, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation failed")
		return
	}
	slots, err := h.service.Day(r.Context(), providerID, day)
	if err != nil {
		h.logger.Error("availability lookup failed", "error", err, "provider_id", providerID)
		respondError(w, http.StatusInternalServerError, "failed to load availability")
		return
	}
	respondJSON(w, http.StatusOK, slots)
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
