package user

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/georgemunganga/sso-users/internal/common"
	"github.com/georgemunganga/sso-users/internal/httpx"
)

type Handler struct {
	service Service
	log     *zap.Logger
}

func NewHandler(service Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{service: service, log: log}
}

// UserResponse wraps a summary with a confirmation message.
type UserResponse struct {
	Message string  `json:"message"`
	User    Summary `json:"user"`
}

// RegisterRoutes mounts the user routes on r, which is expected to be the
// /users sub-router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.registerUser)
	r.Get("/", h.listUsers)
	r.Get("/{id}", h.getUser)
	r.Put("/{id}", h.updateUser)
	r.Delete("/{id}", h.deleteUser)
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	user, err := h.service.RegisterUser(r.Context(), req)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	httpx.Respond(w, http.StatusOK, UserResponse{Message: "User added successfully", User: user.Summary()})
}

func queryInt(r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(r, "page", 1)
	if !ok {
		httpx.Error(w, r, h.log, common.InvalidInput("Invalid page number. Page must be a positive integer."))
		return
	}
	limit, ok := queryInt(r, "limit", 10)
	if !ok {
		httpx.Error(w, r, h.log, common.InvalidInput("Invalid limit number. Limit must be a positive integer."))
		return
	}

	result, err := h.service.ListUsers(r.Context(), page, limit)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, result)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, user.Summary())
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateUserRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}

	user, err := h.service.UpdateUser(r.Context(), id, req)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, UserResponse{
		Message: fmt.Sprintf("User %s updated successfully", user.Name),
		User:    user.Summary(),
	})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, httpx.MessageBody{
		Message: fmt.Sprintf("User with ID %s deleted successfully", id),
	})
}
