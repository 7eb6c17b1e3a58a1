package services

import (
	"context"
	"testing"
	"time"

	"task-manager/authz"
	"task-manager/models"
	"task-manager/repositories"
)

// testEnv wires every service to one in-memory SQLite store and a clock that
// advances a second per reading.
type testEnv struct {
	tasks     *repositories.SQLiteTaskRepository
	users     *repositories.SQLiteUserRepository
	taskSvc   *TaskService
	dashboard *DashboardService
	userSvc   *UserService
	clock     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repositories.OpenSQLite(repositories.MemoryDSN)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		tasks: repositories.NewSQLiteTaskRepository(db),
		users: repositories.NewSQLiteUserRepository(db),
		clock: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	now := func() time.Time {
		env.clock = env.clock.Add(time.Second)
		return env.clock
	}

	env.taskSvc = NewTaskService(env.tasks, env.users)
	env.taskSvc.Now = now
	env.dashboard = NewDashboardService(env.tasks, env.users)
	env.dashboard.Now = now
	env.userSvc = NewUserService(env.users, env.tasks, NewJWTService("test-secret", time.Hour), "invite-me")
	env.userSvc.Now = now
	return env
}

func (e *testEnv) addUser(t *testing.T, name string, role models.Role) authz.Identity {
	t.Helper()
	user := &models.User{
		ID:        repositories.NewID(),
		Name:      name,
		Email:     name + "@example.com",
		Password:  "not-a-real-hash",
		Role:      role,
		CreatedAt: e.clock,
		UpdatedAt: e.clock,
	}
	if err := e.users.Insert(context.Background(), user); err != nil {
		t.Fatalf("insert user %s: %v", name, err)
	}
	return authz.Identity{UserID: user.ID, Role: role}
}

func (e *testEnv) createTask(t *testing.T, admin authz.Identity, title string, checklist []models.ChecklistItem, assignees ...string) *models.Task {
	t.Helper()
	task, err := e.taskSvc.CreateTask(context.Background(), admin, models.CreateTaskRequest{
		Title:       title,
		Description: "about " + title,
		AssignedTo:  assignees,
		Checklist:   checklist,
	})
	if err != nil {
		t.Fatalf("create task %s: %v", title, err)
	}
	return task
}

func items(done ...bool) []models.ChecklistItem {
	out := make([]models.ChecklistItem, len(done))
	for i, d := range done {
		out[i] = models.ChecklistItem{Text: string(rune('a' + i)), Completed: d}
	}
	return out
}

func int64Ptr(v int64) *int64 {
	return &v
}
