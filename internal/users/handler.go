package users

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"

	"github.com/bookline/bookline/internal/http/middleware"
	"github.com/bookline/bookline/pkg/logging"
)

// Handler exposes account and session endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a users handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register handles POST /users.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.Name == "" || in.Password == "" || !validEmail(in.Email) {
		respondError(w, http.StatusBadRequest, "validation failed")
		return
	}
	u, err := h.service.Register(r.Context(), in)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("register failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to register user")
		return
	}
	respondJSON(w, http.StatusCreated, u.PublicProfile())
}

type sessionRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User  Profile `json:"user"`
	Token string  `json:"token"`
}

// CreateSession handles POST /sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var in sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.Email == "" || in.Password == "" {
		respondError(w, http.StatusBadRequest, "validation failed")
		return
	}
	u, token, err := h.service.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrWrongPassword) {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.logger.Error("login failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{User: u.PublicProfile(), Token: token})
}

// UpdateProfile handles PUT /users.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var in UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.Email != "" && !validEmail(in.Email) {
		respondError(w, http.StatusBadRequest, "validation failed")
		return
	}
	u, err := h.service.Update(r.Context(), userID, in)
	if err != nil {
		switch {
		case errors.Is(err, ErrWrongPassword):
			respondError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, ErrEmailTaken):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNotFound):
			respondError(w, http.StatusNotFound, err.Error())
		default:
			h.logger.Error("profile update failed", "error", err, "user_id", userID)
			respondError(w, http.StatusInternalServerError, "failed to update profile")
		}
		return
	}
	respondJSON(w, http.StatusOK, u.PublicProfile())
}

// ListProviders handles GET /providers.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.service.Providers(r.Context())
	if err != nil {
		h.logger.Error("list providers failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list providers")
		return
	}
	respondJSON(w, http.StatusOK, providers)
}

func validEmail(addr string) bool {
	if addr == "" {
		return false
	}
	_, err := mail.ParseAddress(addr)
	return err == nil
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
