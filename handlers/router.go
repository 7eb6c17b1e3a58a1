package handlers

import (
	"context"
	"net/http"
	"time"

	"task-manager/logging"
	"task-manager/middleware"

	"github.com/gorilla/mux"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store Pinger
}

func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		logging.Logger.Errorf("Event ID: HEALTH_CHECK_FAILED, Description: store unreachable: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "store": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type RouterConfig struct {
	Auth           middleware.Authenticator
	ClientURL      string
	RequestTimeout time.Duration
}

// NewRouter mounts every route. Auth and health routes are public; the rest
// require a bearer token.
func NewRouter(cfg RouterConfig, auth *AuthHandler, users *UserHandler, tasks *TaskHandler, health *HealthHandler) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	r.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/register", auth.Register).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", auth.Login).Methods(http.MethodPost)

	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(middleware.JWTAuthMiddleware(cfg.Auth))

	protected.HandleFunc("/auth/info", auth.GetProfile).Methods(http.MethodGet)
	protected.HandleFunc("/auth/info", auth.UpdateProfile).Methods(http.MethodPut)

	protected.HandleFunc("/users", users.ListUsers).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}", users.GetUser).Methods(http.MethodGet)
	protected.HandleFunc("/users/{id}", users.DeleteUser).Methods(http.MethodDelete)

	protected.HandleFunc("/tasks/dashboard-data", tasks.DashboardData).Methods(http.MethodGet)
	protected.HandleFunc("/tasks/user-dashboard-data", tasks.UserDashboardData).Methods(http.MethodGet)
	protected.HandleFunc("/tasks", tasks.ListTasks).Methods(http.MethodGet)
	protected.HandleFunc("/tasks", tasks.CreateTask).Methods(http.MethodPost)
	protected.HandleFunc("/tasks/{id}", tasks.GetTask).Methods(http.MethodGet)
	protected.HandleFunc("/tasks/{id}", tasks.UpdateTask).Methods(http.MethodPut)
	protected.HandleFunc("/tasks/{id}", tasks.DeleteTask).Methods(http.MethodDelete)
	protected.HandleFunc("/tasks/{id}/status", tasks.UpdateStatus).Methods(http.MethodPut)
	protected.HandleFunc("/tasks/{id}/todo", tasks.ReplaceChecklist).Methods(http.MethodPut)
	protected.HandleFunc("/tasks/{id}/checklist", tasks.ReplaceChecklist).Methods(http.MethodPut)
	protected.HandleFunc("/tasks/{id}/todo/{index:[0-9]+}", tasks.ToggleChecklistItem).Methods(http.MethodPatch)

	origin := cfg.ClientURL
	if origin == "" {
		origin = "*"
	}
	return middleware.EnableCORS(origin)(r)
}
