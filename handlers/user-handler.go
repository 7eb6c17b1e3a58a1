package handlers

import (
	"net/http"

	"task-manager/models"
	"task-manager/services"

	"github.com/gorilla/mux"
)

type UserHandler struct {
	service   *services.UserService
	dashboard *services.DashboardService
}

func NewUserHandler(service *services.UserService, dashboard *services.DashboardService) *UserHandler {
	return &UserHandler{service: service, dashboard: dashboard}
}

// ListUsers returns members with their task counts. With ?role= it returns the
// plain directory for that role instead ("all" lists everyone).
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	identity, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if r.URL.Query().Has("role") {
		role := models.Role(r.URL.Query().Get("role"))
		if role == "all" {
			role = ""
		}
		users, err := h.service.ListUsers(r.Context(), identity, role)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
		return
	}

	summaries, err := h.dashboard.UserTaskSummary(r.Context(), identity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	if _, err := actor(r); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.service.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	identity, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.service.DeleteUser(r.Context(), identity, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
