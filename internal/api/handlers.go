package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/nipun22325/secret-sharing/config"
	"github.com/nipun22325/secret-sharing/internal/qr"
	"github.com/nipun22325/secret-sharing/internal/secrets"
	"github.com/nipun22325/secret-sharing/internal/store"
)

// notAvailable is the uniform answer for unknown, expired and already-viewed
// ids alike, so the response never confirms which case occurred.
const notAvailable = "secret not found or no longer available"

type Handler struct {
	manager *secrets.Manager
	config  *config.Config
}

func NewHandler(m *secrets.Manager, cfg *config.Config) *Handler {
	return &Handler{
		manager: m,
		config:  cfg,
	}
}

type CreateRequest struct {
	Content           string `json:"content"`
	TTLHours          *int   `json:"ttl_hours,omitempty"`
	PasswordProtected bool   `json:"password_protected,omitempty"`
	AccessPassword    string `json:"access_password,omitempty"`
}

type CreateResponse struct {
	SecretID  string    `json:"secret_id"`
	ExpiresAt time.Time `json:"expires_at"`
	QRCode    string    `json:"qr_code,omitempty"`
}

type RetrieveRequest struct {
	AccessPassword string `json:"access_password,omitempty"`
}

type RetrieveResponse struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type InfoResponse struct {
	Exists            bool       `json:"exists"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	PasswordProtected *bool      `json:"password_protected,omitempty"`
	Viewed            *bool      `json:"viewed,omitempty"`
}

type StatsResponse struct {
	TotalSecretsCreated int64 `json:"total_secrets_created"`
	TotalSecretsViewed  int64 `json:"total_secrets_viewed"`
	ActiveSecrets       int64 `json:"active_secrets"`
}

type CleanupResponse struct {
	DeletedCount int64 `json:"deleted_count"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"message": "Disposable Secret Sharing API is running"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreateSecret(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ttlHours := h.config.Secrets.DefaultTTLHours
	if req.TTLHours != nil {
		ttlHours = *req.TTLHours
	}

	if req.PasswordProtected && req.AccessPassword == "" {
		h.error(w, http.StatusBadRequest, "access_password is required when password_protected is set")
		return
	}

	password := ""
	if req.PasswordProtected {
		password = req.AccessPassword
	}

	result, err := h.manager.Create(r.Context(), secrets.CreateParams{
		Content:  req.Content,
		TTLHours: ttlHours,
		Password: password,
	})
	if err != nil {
		h.handleManagerError(w, err)
		return
	}

	resp := CreateResponse{
		SecretID:  result.ID,
		ExpiresAt: result.ExpiresAt,
	}

	shareURL := h.config.Server.BaseURL + "/view/" + result.ID
	if code, err := qr.EncodePNG(shareURL); err != nil {
		// The secret is already stored; a missing QR image is not worth
		// failing the request over.
		log.Warn().Err(err).Str("id", result.ID).Msg("qr code generation failed")
	} else {
		resp.QRCode = code
	}

	h.json(w, http.StatusCreated, resp)
}

func (h *Handler) RetrieveSecret(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	content, err := h.manager.Retrieve(r.Context(), id, req.AccessPassword)
	if err != nil {
		h.handleManagerError(w, err)
		return
	}

	h.json(w, http.StatusOK, RetrieveResponse{
		Content:   content.Content,
		CreatedAt: content.CreatedAt,
		ExpiresAt: content.ExpiresAt,
	})
}

func (h *Handler) GetInfo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	info, err := h.manager.Info(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.json(w, http.StatusOK, InfoResponse{Exists: false})
			return
		}
		h.handleManagerError(w, err)
		return
	}

	h.json(w, http.StatusOK, InfoResponse{
		Exists:            true,
		CreatedAt:         &info.CreatedAt,
		ExpiresAt:         &info.ExpiresAt,
		PasswordProtected: &info.PasswordProtected,
		Viewed:            &info.Viewed,
	})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.manager.Stats(r.Context())
	if err != nil {
		h.handleManagerError(w, err)
		return
	}

	h.json(w, http.StatusOK, StatsResponse{
		TotalSecretsCreated: st.TotalCreated,
		TotalSecretsViewed:  st.TotalViewed,
		ActiveSecrets:       st.Active,
	})
}

func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.manager.Cleanup(r.Context())
	if err != nil {
		h.handleManagerError(w, err)
		return
	}

	h.json(w, http.StatusOK, CleanupResponse{DeletedCount: deleted})
}

func (h *Handler) json(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) error(w http.ResponseWriter, status int, message string) {
	h.json(w, status, ErrorResponse{Error: message})
}

func (h *Handler) handleManagerError(w http.ResponseWriter, err error) {
	switch {
	case secrets.IsValidationError(err):
		h.error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, secrets.ErrPasswordRequired):
		h.error(w, http.StatusUnauthorized, "password required")
	case errors.Is(err, secrets.ErrWrongPassword):
		h.error(w, http.StatusUnauthorized, "invalid password")
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrExpired),
		errors.Is(err, store.ErrAlreadyViewed):
		h.error(w, http.StatusNotFound, notAvailable)
	case errors.Is(err, secrets.ErrUnavailable):
		h.error(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		h.error(w, http.StatusInternalServerError, "internal error")
	}
}
