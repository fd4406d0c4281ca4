package notifications

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bookline/bookline/internal/http/middleware"
	"github.com/bookline/bookline/internal/users"
	"github.com/bookline/bookline/pkg/logging"
)

// Handler exposes the provider-facing notification endpoints.
type Handler struct {
	repo   Repository
	users  users.Repository
	logger *logging.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(repo Repository, userRepo users.Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, users: userRepo, logger: logger}
}

// List handles GET /notifications. Only providers have notifications to
// read, so other callers are rejected outright.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	u, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("notification recipient lookup failed", "error", err, "user_id", userID)
		respondError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}
	if !u.Provider {
		respondError(w, http.StatusUnauthorized, "only providers can load notifications")
		return
	}
	list, err := h.repo.ListByRecipient(r.Context(), userID, ListLimit)
	if err != nil {
		h.logger.Error("notification listing failed", "error", err, "user_id", userID)
		respondError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// MarkRead handles PUT /notifications/{id}.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid notification id")
		return
	}
	n, err := h.repo.MarkRead(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("mark read failed", "error", err, "notification_id", id)
		respondError(w, http.StatusInternalServerError, "failed to update notification")
		return
	}
	respondJSON(w, http.StatusOK, n)
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
