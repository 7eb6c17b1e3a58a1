package services

import (
	"context"
	"strings"
	"time"

	"task-manager/apperrors"
	"task-manager/authz"
	"task-manager/logging"
	"task-manager/models"
	"task-manager/repositories"
)

// TaskService owns every task mutation. Each operation evaluates the policy
// once, applies the change to a loaded copy, recomputes derived fields and
// persists the whole task in a single conditional write.
type TaskService struct {
	Tasks repositories.TaskRepository
	Users repositories.UserRepository
	Now   func() time.Time
}

func NewTaskService(tasks repositories.TaskRepository, users repositories.UserRepository) *TaskService {
	return &TaskService{
		Tasks: tasks,
		Users: users,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *TaskService) CreateTask(ctx context.Context, actor authz.Identity, req models.CreateTaskRequest) (*models.Task, error) {
	if err := authz.Authorize(actor, authz.CreateTask, authz.Resource{}).Err(); err != nil {
		logging.Logger.Warnf("Event ID: CREATE_TASK_FORBIDDEN, Description: user %s may not create tasks", actor.UserID)
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	assignees, err := s.resolveAssignees(ctx, req.AssignedTo)
	if err != nil {
		return nil, err
	}
	dueDate, err := models.ParseDueDate(req.DueDate)
	if err != nil {
		return nil, apperrors.Validation(map[string]string{"dueDate": err.Error()})
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityLow
	}

	now := s.Now()
	task := &models.Task{
		ID:          repositories.NewID(),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Priority:    priority,
		DueDate:     dueDate,
		CreatedBy:   actor.UserID,
		AssignedTo:  assignees,
		Attachments: nonNilStrings(req.Attachments),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// Progress and status always follow the checklist, even on create.
	task.ApplyChecklist(copyChecklist(req.Checklist))

	if err := s.Tasks.Insert(ctx, task); err != nil {
		logging.Logger.Errorf("Event ID: CREATE_TASK_FAILED, Description: failed to create task %q: %v", task.Title, err)
		return nil, err
	}

	logging.Logger.Infof("Event ID: TASK_CREATED, Description: task %s created by %s with %d assignees", task.ID, actor.UserID, len(task.AssignedTo))
	return task, nil
}

func (s *TaskService) GetTask(ctx context.Context, actor authz.Identity, id string) (*models.Task, error) {
	task, err := s.Tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.ViewTask, authz.TaskResource(task)).Err(); err != nil {
		logging.Logger.Warnf("Event ID: VIEW_TASK_FORBIDDEN, Description: user %s may not view task %s", actor.UserID, id)
		return nil, err
	}
	return task, nil
}

// ListTasks returns the tasks in the caller's scope, newest first, optionally
// narrowed to one status. The status summary always covers the whole scope.
func (s *TaskService) ListTasks(ctx context.Context, actor authz.Identity, status models.TaskStatus) (*models.TaskList, error) {
	if err := authz.Authorize(actor, authz.ListTasks, authz.Resource{}).Err(); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, apperrors.Validation(map[string]string{"status": "invalid value"})
	}

	scope := authz.ScopeFor(actor)
	filter := repositories.ScopeFilter(scope)
	filter.Status = status

	tasks, err := s.Tasks.Find(ctx, filter, repositories.FindOptions{})
	if err != nil {
		return nil, err
	}
	// The summary covers the whole scope, not just the status filter.
	summary, err := countByStatus(ctx, s.Tasks, repositories.ScopeFilter(scope))
	if err != nil {
		return nil, err
	}

	items := make([]models.TaskListItem, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, models.TaskListItem{Task: task, CompletedTodoCount: task.CompletedCount()})
	}
	return &models.TaskList{Tasks: items, StatusSummary: *summary}, nil
}

// UpdateTask applies the provided fields. Progress and status only change when
// the checklist is replaced.
func (s *TaskService) UpdateTask(ctx context.Context, actor authz.Identity, id string, req models.UpdateTaskRequest) (*models.Task, error) {
	task, err := s.loadAuthorized(ctx, actor, authz.UpdateTaskFields, id)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := checkVersion(task, req.Version); err != nil {
		return nil, err
	}

	if req.Title != nil {
		task.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		task.Description = strings.TrimSpace(*req.Description)
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.DueDate != nil {
		dueDate, err := models.ParseDueDate(*req.DueDate)
		if err != nil {
			return nil, apperrors.Validation(map[string]string{"dueDate": err.Error()})
		}
		task.DueDate = dueDate
	}
	if req.AssignedTo != nil {
		assignees, err := s.resolveAssignees(ctx, *req.AssignedTo)
		if err != nil {
			return nil, err
		}
		task.AssignedTo = assignees
	}
	if req.Attachments != nil {
		task.Attachments = nonNilStrings(*req.Attachments)
	}
	if req.Checklist != nil {
		task.ApplyChecklist(copyChecklist(*req.Checklist))
	}

	if err := s.save(ctx, task, req.Version); err != nil {
		return nil, err
	}
	logging.Logger.Infof("Event ID: TASK_UPDATED, Description: task %s updated by %s (version %d)", task.ID, actor.UserID, task.Version)
	return task, nil
}

// DeleteTask is admin only and not idempotent: a missing id is not_found.
func (s *TaskService) DeleteTask(ctx context.Context, actor authz.Identity, id string) error {
	if err := authz.Authorize(actor, authz.DeleteTask, authz.Resource{}).Err(); err != nil {
		logging.Logger.Warnf("Event ID: DELETE_TASK_FORBIDDEN, Description: user %s may not delete task %s", actor.UserID, id)
		return err
	}
	if err := s.Tasks.Delete(ctx, id); err != nil {
		return err
	}
	logging.Logger.Infof("Event ID: TASK_DELETED, Description: task %s deleted by %s", id, actor.UserID)
	return nil
}

// SetStatus sets the status directly. Moving to Completed marks every
// checklist item done and sets progress to 100; any other target leaves the
// checklist and progress as they are, including when leaving Completed.
func (s *TaskService) SetStatus(ctx context.Context, actor authz.Identity, id string, req models.StatusUpdateRequest) (*models.Task, error) {
	task, err := s.loadAuthorized(ctx, actor, authz.UpdateStatus, id)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := checkVersion(task, req.Version); err != nil {
		return nil, err
	}

	task.Status = req.Status
	if req.Status == models.StatusCompleted {
		items := copyChecklist(task.Checklist)
		for i := range items {
			items[i].Completed = true
		}
		task.Checklist = items
		task.Progress = 100
	}

	if err := s.save(ctx, task, req.Version); err != nil {
		return nil, err
	}
	logging.Logger.Infof("Event ID: TASK_STATUS_UPDATED, Description: task %s set to %q by %s", task.ID, task.Status, actor.UserID)
	return task, nil
}

// ReplaceChecklist swaps the whole checklist. Without a version the write is
// last-writer-wins.
func (s *TaskService) ReplaceChecklist(ctx context.Context, actor authz.Identity, id string, req models.ChecklistReplaceRequest) (*models.Task, error) {
	task, err := s.loadAuthorized(ctx, actor, authz.UpdateChecklist, id)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := checkVersion(task, req.Version); err != nil {
		return nil, err
	}

	task.ApplyChecklist(copyChecklist(req.Checklist))

	if err := s.save(ctx, task, req.Version); err != nil {
		return nil, err
	}
	logging.Logger.Infof("Event ID: TASK_CHECKLIST_REPLACED, Description: task %s checklist replaced by %s, progress %d%%", task.ID, actor.UserID, task.Progress)
	return task, nil
}

// ToggleChecklistItem flips one item, but only if the task is still at the
// version the caller read.
func (s *TaskService) ToggleChecklistItem(ctx context.Context, actor authz.Identity, id string, req models.ChecklistToggleRequest) (*models.Task, error) {
	task, err := s.loadAuthorized(ctx, actor, authz.UpdateChecklist, id)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := checkVersion(task, &req.Version); err != nil {
		return nil, err
	}
	if req.Index >= len(task.Checklist) {
		return nil, apperrors.Validation(map[string]string{"index": "checklist item does not exist"})
	}

	items := copyChecklist(task.Checklist)
	items[req.Index].Completed = !items[req.Index].Completed
	task.ApplyChecklist(items)

	if err := s.save(ctx, task, &req.Version); err != nil {
		return nil, err
	}
	logging.Logger.Infof("Event ID: TASK_CHECKLIST_ITEM_TOGGLED, Description: task %s item %d toggled by %s, progress %d%%", task.ID, req.Index, actor.UserID, task.Progress)
	return task, nil
}

func (s *TaskService) loadAuthorized(ctx context.Context, actor authz.Identity, action authz.Action, id string) (*models.Task, error) {
	task, err := s.Tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, action, authz.TaskResource(task)).Err(); err != nil {
		logging.Logger.Warnf("Event ID: TASK_ACTION_FORBIDDEN, Description: user %s denied %s on task %s", actor.UserID, action, id)
		return nil, err
	}
	return task, nil
}

func (s *TaskService) save(ctx context.Context, task *models.Task, version *int64) error {
	expected := repositories.AnyVersion
	if version != nil {
		expected = *version
	}
	task.UpdatedAt = s.Now()
	if err := s.Tasks.Update(ctx, task, expected); err != nil {
		if apperrors.Is(err, apperrors.KindStaleWrite) {
			logging.Logger.Warnf("Event ID: TASK_STALE_WRITE, Description: %v", err)
		}
		return err
	}
	return nil
}

// resolveAssignees dedupes the ids and checks that each one is a known user.
func (s *TaskService) resolveAssignees(ctx context.Context, ids []string) ([]string, error) {
	assignees := models.UniqueIDs(ids)
	if len(assignees) == 0 {
		return nil, apperrors.Validation(map[string]string{"assignedTo": "at least one assignee is required"})
	}
	for _, id := range assignees {
		if _, err := s.Users.FindByID(ctx, id); err != nil {
			if apperrors.Is(err, apperrors.KindNotFound) {
				return nil, apperrors.NotFound("assigned user %s not found", id)
			}
			return nil, err
		}
	}
	return assignees, nil
}

func checkVersion(task *models.Task, version *int64) error {
	if version == nil || *version == task.Version {
		return nil
	}
	return apperrors.Newf(apperrors.KindStaleWrite,
		"task %s was modified concurrently (expected version %d, current %d)", task.ID, *version, task.Version)
}

func copyChecklist(items []models.ChecklistItem) []models.ChecklistItem {
	out := make([]models.ChecklistItem, len(items))
	for i, item := range items {
		out[i] = models.ChecklistItem{Text: strings.TrimSpace(item.Text), Completed: item.Completed}
	}
	return out
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
