package handlers

import (
	"net/http"
	"strconv"

	"task-manager/apperrors"
	"task-manager/authz"
	"task-manager/models"
	"task-manager/services"

	"github.com/gorilla/mux"
)

type TaskHandler struct {
	service   *services.TaskService
	dashboard *services.DashboardService
}

func NewTaskHandler(service *services.TaskService, dashboard *services.DashboardService) *TaskHandler {
	return &TaskHandler{service: service, dashboard: dashboard}
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	identity, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.service.ListTasks(r.Context(), identity, models.TaskStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	identity, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	task, err := h.service.GetTask(r.Context(), identity, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	identity, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.CreateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := h.service.CreateTask(r.Context(), identity, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	identity, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.UpdateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := h.service.UpdateTask(r.Context(), identity, mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	identity, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.service.DeleteTask(r.Context(), identity, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "task deleted"})
}

func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	identity, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.StatusUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := h.service.SetStatus(r.Context(), identity, mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) ReplaceChecklist(w http.ResponseWriter, r *http.Request) {
	identity, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req models.ChecklistReplaceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := h.service.ReplaceChecklist(r.Context(), identity, mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ToggleChecklistItem reads the item index from the path and the expected
// version from the body.
func (h *TaskHandler) ToggleChecklistItem(w http.ResponseWriter, r *http.Request) {
	identity, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		writeError(w, r, apperrors.Validation(map[string]string{"index": "invalid value"}))
		return
	}
	var req models.ChecklistToggleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Index = index

	task, err := h.service.ToggleChecklistItem(r.Context(), identity, vars["id"], req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// DashboardData serves the overview of the caller's scope: every task for
// admins, assigned tasks for members.
func (h *TaskHandler) DashboardData(w http.ResponseWriter, r *http.Request) {
	identity, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeOverview(w, r, identity, authz.ScopeFor(identity))
}

// UserDashboardData always serves the tasks assigned to the caller.
func (h *TaskHandler) UserDashboardData(w http.ResponseWriter, r *http.Request) {
	identity, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeOverview(w, r, identity, models.AssignedTo(identity.UserID))
}

func (h *TaskHandler) writeOverview(w http.ResponseWriter, r *http.Request, identity authz.Identity, scope models.TaskScope) {
	overview, err := h.dashboard.Overview(r.Context(), identity, scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}
