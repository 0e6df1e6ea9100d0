package auth

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nivekithan/gig-marketplace/internal/httputil"
	"github.com/nivekithan/gig-marketplace/internal/middleware"
	"github.com/nivekithan/gig-marketplace/internal/models"
	"github.com/nivekithan/gig-marketplace/internal/validation"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = middleware.SessionCookie

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SessionResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type Handler struct {
	svc       *Service
	validator *validation.Validator
	log       *zap.Logger
}

func NewHandler(svc *Service, validator *validation.Validator, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, validator: validator, log: log}
}

func (h *Handler) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(h.svc.TTL()),
	})
}

// Register handles POST /api/v1/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadBody(w, r)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	var req RegisterRequest
	if err := h.validator.Decode(validation.Register, body, &req); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	u, err := h.svc.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	token, err := h.svc.IssueToken(u)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	h.setSession(w, token)
	httputil.WriteJSON(w, http.StatusCreated, SessionResponse{Token: token, User: u})
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadBody(w, r)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	var req LoginRequest
	if err := h.validator.Decode(validation.Login, body, &req); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	token, u, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		httputil.WriteMessage(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
		return
	}
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	h.setSession(w, token)
	httputil.WriteJSON(w, http.StatusOK, SessionResponse{Token: token, User: u})
}

// Logout handles POST /api/v1/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}
