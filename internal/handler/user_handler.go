package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/netgrid-tools/devicehub/internal/middleware"
	"github.com/netgrid-tools/devicehub/internal/service"
)

// UserHandler exposes the external user directory for assignment
// pickers.
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// RegisterRoutes registers user directory routes.
func (h *UserHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/users", h.ListUsers).Methods("GET")
}

// ListUsers returns assignable users from the directory.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), middleware.GetPrincipal(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, users)
}
