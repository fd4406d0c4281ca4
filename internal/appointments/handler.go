package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bookline/bookline/internal/http/middleware"
	"github.com/bookline/bookline/pkg/logging"
)

// Handler exposes the booking endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates an appointments handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// List handles GET /appointments?page=N.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			page = parsed
		}
	}
	list, err := h.service.List(r.Context(), userID, page)
	if err != nil {
		h.logger.Error("appointment listing failed", "error", err, "user_id", userID)
		respondError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

type createRequest struct {
	ProviderID int64  `json:"provider_id"`
	Date       string `json:"date"`
}

// Create handles POST /appointments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, ErrValidation.Error())
		return
	}
	appt, err := h.service.Create(r.Context(), userID, req.ProviderID, req.Date)
	if err != nil {
		h.respondServiceError(w, err, userID)
		return
	}
	respondJSON(w, http.StatusOK, appt)
}

// Cancel handles DELETE /appointments/{id}.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	appt, err := h.service.Cancel(r.Context(), userID, id)
	if err != nil {
		h.respondServiceError(w, err, userID)
		return
	}
	respondJSON(w, http.StatusOK, appt)
}

// Schedule handles GET /schedule?date=YYYY-MM-DD, the provider-side day
// listing.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	day, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrValidation.Error())
		return
	}
	entries, err := h.service.ProviderDay(r.Context(), userID, day)
	if err != nil {
		h.respondServiceError(w, err, userID)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error, userID int64) {
	if status, ok := statusFor(err); ok {
		respondError(w, status, err.Error())
		return
	}
	h.logger.Error("booking operation failed", "error", err, "user_id", userID)
	respondError(w, http.StatusInternalServerError, "internal error")
}

// statusFor maps business-rule failures onto the wire statuses the
// original API used: rule rejections are 400, permission-shaped
// rejections are 401, and a missing appointment is 404.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrPastDate),
		errors.Is(err, ErrSlotUnavailable),
		errors.Is(err, ErrSelfBooking),
		errors.Is(err, ErrAlreadyCanceled):
		return http.StatusBadRequest, true
	case errors.Is(err, ErrNotAProvider),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrTooLateToCancel):
		return http.StatusUnauthorized, true
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, true
	}
	return 0, false
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
