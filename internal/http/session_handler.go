package http

import (
	"context"
	"net/http"
	"time"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
)

type SessionService interface {
	Snapshot() session.View
	Login(ctx context.Context, creds d.Credentials) (*d.User, error)
	Register(ctx context.Context, profile d.RegistrationProfile) (*d.User, error)
	Logout(ctx context.Context)
}

type SessionHandler struct {
	session SessionService
	timeout time.Duration
}

func NewSessionHandler(s SessionService, timeout time.Duration) *SessionHandler {
	return &SessionHandler{
		session: s,
		timeout: timeout,
	}
}

// GET /api/v1/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// POST /api/v1/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req d.Credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	if _, err := h.session.Login(ctx, req); err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}

// POST /api/v1/session/register
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req d.RegistrationProfile
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "name, email and password are required")
		return
	}

	if _, err := h.session.Register(ctx, req); err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.session.Snapshot())
}

// POST /api/v1/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.session.Logout(ctx)
	respondJSON(w, http.StatusOK, h.session.Snapshot())
}
