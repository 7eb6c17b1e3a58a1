package services

import (
	"context"
	"time"

	"task-manager/apperrors"
	"task-manager/authz"
	"task-manager/models"
	"task-manager/repositories"
)

const recentTasksLimit = 10

// DashboardService computes read-only summaries straight from the store on
// every call. Results reflect the store at call time only.
type DashboardService struct {
	Tasks repositories.TaskRepository
	Users repositories.UserRepository
	Now   func() time.Time
}

func NewDashboardService(tasks repositories.TaskRepository, users repositories.UserRepository) *DashboardService {
	return &DashboardService{
		Tasks: tasks,
		Users: users,
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

func countByStatus(ctx context.Context, tasks repositories.TaskRepository, base repositories.TaskFilter) (*models.TaskDistribution, error) {
	var dist models.TaskDistribution
	counts := []struct {
		status models.TaskStatus
		dst    *int64
	}{
		{"", &dist.All},
		{models.StatusPending, &dist.Pending},
		{models.StatusInProgress, &dist.InProgress},
		{models.StatusCompleted, &dist.Completed},
	}
	for _, c := range counts {
		filter := base
		filter.Status = c.status
		n, err := tasks.Count(ctx, filter)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}
	return &dist, nil
}

func (s *DashboardService) TaskDistribution(ctx context.Context, scope models.TaskScope) (*models.TaskDistribution, error) {
	return countByStatus(ctx, s.Tasks, repositories.ScopeFilter(scope))
}

func (s *DashboardService) PriorityDistribution(ctx context.Context, scope models.TaskScope) (*models.PriorityDistribution, error) {
	var dist models.PriorityDistribution
	counts := []struct {
		priority models.Priority
		dst      *int64
	}{
		{models.PriorityLow, &dist.Low},
		{models.PriorityMedium, &dist.Medium},
		{models.PriorityHigh, &dist.High},
	}
	for _, c := range counts {
		filter := repositories.ScopeFilter(scope)
		filter.Priority = c.priority
		n, err := s.Tasks.Count(ctx, filter)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}
	return &dist, nil
}

// UserTaskSummary reports per-member task counts. Every assignee of a task is
// credited independently.
func (s *DashboardService) UserTaskSummary(ctx context.Context, actor authz.Identity) ([]models.UserTaskSummary, error) {
	if err := authz.Authorize(actor, authz.ViewUserSummary, authz.Resource{}).Err(); err != nil {
		return nil, err
	}

	members, err := s.Users.FindByRole(ctx, models.RoleMember)
	if err != nil {
		return nil, err
	}
	tasks, err := s.Tasks.Find(ctx, repositories.TaskFilter{}, repositories.FindOptions{})
	if err != nil {
		return nil, err
	}

	summaries := make([]models.UserTaskSummary, len(members))
	index := make(map[string]*models.UserTaskSummary, len(members))
	for i, member := range members {
		summaries[i].User = member
		index[member.ID] = &summaries[i]
	}
	for _, task := range tasks {
		for _, assignee := range models.UniqueIDs(task.AssignedTo) {
			summary, ok := index[assignee]
			if !ok {
				continue
			}
			summary.TaskCount++
			switch task.Status {
			case models.StatusPending:
				summary.PendingTasks++
			case models.StatusInProgress:
				summary.InProgressTasks++
			case models.StatusCompleted:
				summary.CompletedTasks++
			}
		}
	}
	return summaries, nil
}

// RecentTasks returns up to limit tasks of the scope, newest first.
func (s *DashboardService) RecentTasks(ctx context.Context, scope models.TaskScope, limit int) ([]models.Task, error) {
	if limit <= 0 {
		return []models.Task{}, nil
	}
	return s.Tasks.Find(ctx, repositories.ScopeFilter(scope), repositories.FindOptions{Limit: int64(limit)})
}

// Overview gathers the statistics, charts and recent tasks of a scope. A task
// is overdue when its due date has passed and it is not completed.
func (s *DashboardService) Overview(ctx context.Context, actor authz.Identity, scope models.TaskScope) (*models.DashboardOverview, error) {
	if err := authz.Authorize(actor, authz.ViewDashboard, authz.Resource{}).Err(); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && scope.AssigneeID != actor.UserID {
		return nil, apperrors.Forbidden("members only see their own dashboard")
	}

	distribution, err := s.TaskDistribution(ctx, scope)
	if err != nil {
		return nil, err
	}
	priorities, err := s.PriorityDistribution(ctx, scope)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	overdueFilter := repositories.ScopeFilter(scope)
	overdueFilter.DueBefore = &now
	overdueFilter.ExcludeStatus = models.StatusCompleted
	overdue, err := s.Tasks.Count(ctx, overdueFilter)
	if err != nil {
		return nil, err
	}

	recent, err := s.RecentTasks(ctx, scope, recentTasksLimit)
	if err != nil {
		return nil, err
	}

	return &models.DashboardOverview{
		Statistics: models.DashboardStatistics{
			TotalTasks:     distribution.All,
			PendingTasks:   distribution.Pending,
			CompletedTasks: distribution.Completed,
			OverdueTasks:   overdue,
		},
		Charts: models.DashboardCharts{
			TaskDistribution:   *distribution,
			TaskPriorityLevels: *priorities,
		},
		RecentTasks: recent,
	}, nil
}
