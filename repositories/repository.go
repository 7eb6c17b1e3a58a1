// Package repositories persists users and tasks. Every implementation reports
// missing records as not_found, concurrent version mismatches as stale_write,
// duplicate emails as conflict and driver or connectivity failures as
// unavailable.
package repositories

import (
	"context"
	"time"

	"task-manager/models"
)

// AnyVersion makes an update unconditional (last writer wins).
const AnyVersion int64 = 0

type TaskFilter struct {
	AssigneeID    string
	Status        models.TaskStatus
	Priority      models.Priority
	ExcludeStatus models.TaskStatus
	DueBefore     *time.Time
}

// ScopeFilter narrows a filter to the tasks of a scope.
func ScopeFilter(scope models.TaskScope) TaskFilter {
	return TaskFilter{AssigneeID: scope.AssigneeID}
}

type FindOptions struct {
	Limit int64 // 0 means unlimited
}

// Results of Find are always ordered newest first (createdAt descending).
type TaskRepository interface {
	Insert(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id string) (*models.Task, error)
	Find(ctx context.Context, filter TaskFilter, opts FindOptions) ([]models.Task, error)
	Count(ctx context.Context, filter TaskFilter) (int64, error)
	// Update writes the whole task. With expectedVersion != AnyVersion the write
	// only happens when the stored version still matches. On success the stored
	// version is expectedVersion+1 (or stored+1) and task.Version is updated.
	Update(ctx context.Context, task *models.Task, expectedVersion int64) error
	Delete(ctx context.Context, id string) error
	// CountReferences counts tasks a user created or is assigned to.
	CountReferences(ctx context.Context, userID string) (int64, error)
	Ping(ctx context.Context) error
}

type UserRepository interface {
	Insert(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByRole lists users of a role ordered by name; an empty role lists everyone.
	FindByRole(ctx context.Context, role models.Role) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}
