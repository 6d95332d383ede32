package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/georgemunganga/sso-users/internal/httpx"
)

type Handler struct {
	service         Service
	log             *zap.Logger
	loginMiddleware []func(http.Handler) http.Handler
}

// NewHandler builds the auth handler. mw wraps the login route only,
// typically with a rate limiter.
func NewHandler(service Service, log *zap.Logger, mw ...func(http.Handler) http.Handler) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{service: service, log: log, loginMiddleware: mw}
}

// RegisterRoutes mounts the login route on the /users sub-router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(h.loginMiddleware...).Post("/login", h.login)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	httpx.Respond(w, http.StatusOK, result)
}
